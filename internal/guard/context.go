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

package guard

import "context"

type contextKey string

const (
	agentKey   contextKey = "variantguard-agent"
	sessionKey contextKey = "variantguard-session"

	defaultAgent   = "unknown-agent"
	defaultSession = "unknown-session"
)

// WithAgent returns a context carrying the calling agent's identifier.
// It is recorded in audit events and notifications.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentKey, agent)
}

// WithSession returns a context carrying the agent's session identifier.
func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// valueOrDefault returns a context string value for key, or fallback.
func valueOrDefault(ctx context.Context, key contextKey, fallback string) string {
	if ctx == nil {
		return fallback
	}

	value, _ := ctx.Value(key).(string)
	if value == "" {
		return fallback
	}

	return value
}
