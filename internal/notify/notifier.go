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

// Package notify delivers user-visible warnings when a tool call is
// rejected. Delivery is best effort: callers treat every error returned by
// a Notifier as non-fatal.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// VariantError is the severity tag attached to rejection notifications.
const VariantError = "error"

// NotifyEvent contains the data for a notification.
type NotifyEvent struct {
	Action    string `json:"action"`    // "deny"
	Tool      string `json:"tool"`      // tool kind as sent by the host, e.g. "write"
	Path      string `json:"path"`      // offending file path
	Message   string `json:"message"`   // human-readable reason with guidance
	Variant   string `json:"variant"`   // severity tag, e.g. "error"
	Agent     string `json:"agent"`     // agent identifier
	Timestamp string `json:"timestamp"` // ISO 8601
}

// Notifier sends notifications.
type Notifier interface {
	Send(event NotifyEvent) error
}

// NotifierFunc adapts a plain function to the Notifier interface. Hosts
// with their own toast API can plug it in this way.
type NotifierFunc func(event NotifyEvent) error

// Send calls f(event).
func (f NotifierFunc) Send(event NotifyEvent) error {
	return f(event)
}

// WriterNotifier prints a one-line toast to a writer, typically stderr.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a notifier that writes to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Send writes the event as "[variant] message".
func (n *WriterNotifier) Send(event NotifyEvent) error {
	variant := event.Variant
	if variant == "" {
		variant = VariantError
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintf(n.w, "[%s] %s\n", variant, event.Message); err != nil {
		return fmt.Errorf("write toast: %w", err)
	}
	return nil
}

// GenericNotifier sends notifications to any webhook URL by POSTing the event as JSON.
type GenericNotifier struct {
	url    string
	client *http.Client
}

// NewGenericNotifier creates a new generic webhook notifier.
func NewGenericNotifier(url string) *GenericNotifier {
	return &GenericNotifier{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Send posts the event as JSON to the webhook URL.
func (n *GenericNotifier) Send(event NotifyEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return postJSON(n.client, n.url, data, "webhook")
}

// postJSON POSTs a JSON body and treats any non-2xx status as an error.
func postJSON(client *http.Client, url string, body []byte, platform string) error {
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post %s: %w", platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", platform, resp.StatusCode)
	}
	return nil
}
