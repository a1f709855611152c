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

// Package audit records guard decisions as hash-chained JSON lines.
//
// Each event carries the hash of the event written before it, so an edited
// or deleted line breaks the chain and is caught by VerifyChain.
package audit

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Event is a single audit record for one evaluated tool call.
type Event struct {
	// ID is a ULID, so IDs sort by creation time.
	ID string `json:"id"`

	// Timestamp is when the tool call was evaluated (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Agent identifies which agent made the call.
	Agent string `json:"agent"`

	// Session identifies the agent's session.
	Session string `json:"session"`

	// Tool is the tool name as sent by the host.
	Tool string `json:"tool"`

	// Kind is "create" or "patch".
	Kind string `json:"kind"`

	// Paths are the candidate paths that were classified, in order.
	Paths []string `json:"paths,omitempty"`

	// Decision records the guard's verdict.
	Decision EventDecision `json:"decision"`

	// PrevHash is the hash of the preceding event in the chain.
	// Empty string for the first event of a file.
	PrevHash string `json:"prev_hash"`

	// Hash is the SHA-256 hash of this event (excluding the hash field itself).
	Hash string `json:"hash"`
}

// EventDecision is the verdict part of an Event.
type EventDecision struct {
	// Action is "allow" or "deny".
	Action string `json:"action"`

	// Path is the offending path for a deny.
	Path string `json:"path,omitempty"`

	// Message is the human-readable reason for a deny.
	Message string `json:"message,omitempty"`

	// EvalTimeUS is the evaluation duration in microseconds.
	EvalTimeUS int64 `json:"evaluation_time_us"`
}

// ComputeHash sets e.Hash from the event contents and e.PrevHash.
func (e *Event) ComputeHash() error {
	e.Hash = ""
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal event for hashing: %w", err)
	}

	payload := append([]byte(e.PrevHash), data...)
	h := sha256.Sum256(payload)
	e.Hash = "sha256:" + hex.EncodeToString(h[:])
	return nil
}

// VerifyHash reports whether e.Hash matches the event contents.
func (e *Event) VerifyHash() (bool, error) {
	expected := e.Hash
	defer func() { e.Hash = expected }()

	if err := e.ComputeHash(); err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(e.Hash), []byte(expected)) == 1, nil
}
