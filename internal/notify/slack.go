// Copyright 2026 The Variantguard Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier sends notifications to Slack using incoming webhooks with Block Kit formatting.
type SlackNotifier struct {
	url    string
	client *http.Client
}

// NewSlackNotifier creates a new Slack notifier.
func NewSlackNotifier(url string) *SlackNotifier {
	return &SlackNotifier{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string `json:"color"`
	Blocks []any  `json:"blocks"`
}

type slackSection struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackContext struct {
	Type     string      `json:"type"`
	Elements []slackText `json:"elements"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Send sends a notification to Slack using Block Kit format.
func (n *SlackNotifier) Send(event NotifyEvent) error {
	payload := slackPayload{
		Attachments: []slackAttachment{
			{
				Color: "#f85149",
				Blocks: []any{
					slackSection{
						Type: "section",
						Text: &slackText{Type: "mrkdwn", Text: "*Variant file blocked*"},
					},
					slackSection{
						Type: "section",
						Fields: []slackText{
							{Type: "mrkdwn", Text: fmt.Sprintf("*Tool:*\n%s", event.Tool)},
							{Type: "mrkdwn", Text: fmt.Sprintf("*Path:*\n`%s`", event.Path)},
							{Type: "mrkdwn", Text: fmt.Sprintf("*Message:*\n%s", event.Message)},
						},
					},
					slackContext{
						Type: "context",
						Elements: []slackText{
							{Type: "mrkdwn", Text: fmt.Sprintf("Agent: %s | %s", event.Agent, event.Timestamp)},
						},
					},
				},
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	return postJSON(n.client, n.url, data, "slack webhook")
}
