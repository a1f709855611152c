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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testEvent() NotifyEvent {
	return NotifyEvent{
		Action:    "deny",
		Tool:      "write",
		Path:      "src/simple_utils.js",
		Message:   `variant filename "src/simple_utils.js" rejected`,
		Variant:   VariantError,
		Agent:     "test-agent",
		Timestamp: "2026-02-11T08:30:00Z",
	}
}

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://hooks.slack.com/services/EXAMPLE/EXAMPLE/EXAMPLE", "slack"},
		{"https://discord.com/api/webhooks/123456789012345678/abcdefghijklmnopqrstuvwxyz", "discord"},
		{"https://discordapp.com/api/webhooks/1/abc", "discord"},
		{"https://example.com/webhook", "webhook"},
		{"http://localhost:8080/notifications", "webhook"},
	}

	for _, test := range tests {
		t.Run(test.url, func(t *testing.T) {
			result := DetectPlatform(test.url)
			if result != test.expected {
				t.Errorf("DetectPlatform(%s) = %s, want %s", test.url, result, test.expected)
			}
		})
	}
}

func TestNewNotifier(t *testing.T) {
	tests := []struct {
		url      string
		platform string
		expected string
	}{
		{"https://hooks.slack.com/services/test", "slack", "*notify.SlackNotifier"},
		{"https://discord.com/api/webhooks/test", "discord", "*notify.DiscordNotifier"},
		{"https://example.com/webhook", "webhook", "*notify.GenericNotifier"},
		{"https://hooks.slack.com/services/test", "auto", "*notify.SlackNotifier"},
		{"https://discord.com/api/webhooks/test", "", "*notify.DiscordNotifier"},
		{"https://hooks.slack.com/services/test", "webhook", "*notify.GenericNotifier"},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("%s-%s", test.platform, test.url), func(t *testing.T) {
			notifier := NewNotifier(test.url, test.platform)
			typeName := fmt.Sprintf("%T", notifier)
			if typeName != test.expected {
				t.Errorf("NewNotifier(%s, %s) type = %s, want %s", test.url, test.platform, typeName, test.expected)
			}
		})
	}
}

func TestGenericNotifier_Send(t *testing.T) {
	event := testEvent()

	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewGenericNotifier(server.URL).Send(event); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	for key, want := range map[string]string{
		"action":  event.Action,
		"tool":    event.Tool,
		"path":    event.Path,
		"variant": event.Variant,
		"agent":   event.Agent,
	} {
		if got := received[key]; got != want {
			t.Errorf("%s = %v, want %s", key, got, want)
		}
	}
}

func TestGenericNotifier_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewGenericNotifier(server.URL).Send(testEvent())
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected status 500 error, got %v", err)
	}
}

func TestSlackNotifier_Send(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		body = buf.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewSlackNotifier(server.URL).Send(testEvent()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	var payload slackPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("invalid slack payload: %v", err)
	}
	if len(payload.Attachments) != 1 || payload.Attachments[0].Color != "#f85149" {
		t.Errorf("unexpected attachments: %+v", payload.Attachments)
	}
	if !strings.Contains(body, "src/simple_utils.js") {
		t.Errorf("slack payload missing path: %s", body)
	}
}

func TestDiscordNotifier_Send(t *testing.T) {
	var payload discordPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := NewDiscordNotifier(server.URL).Send(testEvent()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(payload.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(payload.Embeds))
	}
	embed := payload.Embeds[0]
	if embed.Title != "Variant file blocked" {
		t.Errorf("title = %q", embed.Title)
	}
	if embed.Fields[2].Value != "src/simple_utils.js" {
		t.Errorf("path field = %q", embed.Fields[2].Value)
	}
}

func TestWriterNotifier_Send(t *testing.T) {
	var buf bytes.Buffer
	n := NewWriterNotifier(&buf)

	if err := n.Send(testEvent()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	event := testEvent()
	event.Variant = ""
	if err := n.Send(event); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "[error] variant filename") {
			t.Errorf("unexpected toast line %q", line)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriterNotifier_WriteError(t *testing.T) {
	if err := NewWriterNotifier(failingWriter{}).Send(testEvent()); err == nil {
		t.Fatal("expected error from failing writer")
	}
}

func TestNotifierFunc(t *testing.T) {
	var got NotifyEvent
	var n Notifier = NotifierFunc(func(e NotifyEvent) error {
		got = e
		return nil
	})
	if err := n.Send(testEvent()); err != nil {
		t.Fatal(err)
	}
	if got.Path != "src/simple_utils.js" {
		t.Errorf("path = %q", got.Path)
	}
}
