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

// DiscordNotifier sends notifications to a Discord channel webhook as an embed.
type DiscordNotifier struct {
	url    string
	client *http.Client
}

// NewDiscordNotifier creates a new Discord notifier.
func NewDiscordNotifier(url string) *DiscordNotifier {
	return &DiscordNotifier{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	Timestamp string         `json:"timestamp"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Send posts the event as a Discord embed.
func (n *DiscordNotifier) Send(event NotifyEvent) error {
	payload := discordPayload{
		Embeds: []discordEmbed{{
			Title:     "Variant file blocked",
			Color:     0xf85149,
			Timestamp: event.Timestamp,
			Fields: []discordField{
				{Name: "Tool", Value: event.Tool, Inline: true},
				{Name: "Agent", Value: event.Agent, Inline: true},
				{Name: "Path", Value: event.Path, Inline: false},
				{Name: "Message", Value: event.Message, Inline: false},
			},
		}},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	return postJSON(n.client, n.url, data, "discord webhook")
}
