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

package audit

import (
	"bufio"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// JSONLSink appends events to one JSONL file per UTC day. It is safe for
// concurrent use within a process; separate processes appending to the
// same file rely on O_APPEND.
type JSONLSink struct {
	mu sync.Mutex

	dir      string
	prefix   string
	file     *os.File
	day      string
	lastHash string
	fsync    bool
	closed   bool
	logger   *slog.Logger
	now      func() time.Time
}

// NewJSONLSink creates a sink writing into dir, creating it if needed.
func NewJSONLSink(dir string, opts ...SinkOption) (*JSONLSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("audit: sink dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("audit: create sink dir: %w", err)
	}

	cfg := defaultSinkConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JSONLSink{
		dir:    dir,
		prefix: cfg.prefix,
		fsync:  cfg.fsync,
		logger: logger,
		now:    time.Now,
	}, nil
}

// NewEventID returns a new ULID string.
func NewEventID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	if err == nil {
		return id.String()
	}

	slog.Error("audit: generate event id", "error", err)
	return ulid.Make().String()
}

// Write appends a single event to the JSONL audit trail. Missing ID and
// Timestamp are filled in.
func (s *JSONLSink) Write(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("audit: write on closed sink")
	}
	if event.ID == "" {
		event.ID = NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}

	if err := s.ensureFileLocked(); err != nil {
		return err
	}

	event.PrevHash = s.lastHash
	if err := event.ComputeHash(); err != nil {
		return err
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	line = append(line, '\n')

	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("audit: write event: %w", err)
	}
	if s.fsync {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("audit: fsync event: %w", err)
		}
	}
	s.lastHash = event.Hash

	s.logger.Debug("audit: wrote event",
		"event_id", event.ID,
		"action", event.Decision.Action,
		"file", s.file.Name(),
	)
	return nil
}

// Path returns the file the next event would be written to.
func (s *JSONLSink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pathFor(s.now().UTC().Format("2006-01-02"))
}

// Close syncs and closes the current file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.closeFileLocked()
}

func (s *JSONLSink) pathFor(day string) string {
	return filepath.Join(s.dir, s.prefix+"-"+day+".jsonl")
}

// ensureFileLocked opens today's file, rolling over at UTC midnight and
// recovering the hash chain head from any existing content.
func (s *JSONLSink) ensureFileLocked() error {
	day := s.now().UTC().Format("2006-01-02")
	if s.file != nil && s.day == day {
		return nil
	}
	if err := s.closeFileLocked(); err != nil {
		return err
	}

	path := s.pathFor(day)
	lastHash, _ := readLastLineHash(path)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", path, err)
	}
	s.file = f
	s.day = day
	s.lastHash = lastHash
	return nil
}

func (s *JSONLSink) closeFileLocked() error {
	if s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("audit: close sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audit: close sink file: %w", err)
	}
	return nil
}

// readLastLineHash returns the hash of the last non-empty line in path.
func readLastLineHash(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	var lastLine string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lastLine = line
		}
	}
	if lastLine == "" {
		return "", false
	}
	var partial struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal([]byte(lastLine), &partial); err != nil {
		return "", false
	}
	return partial.Hash, partial.Hash != ""
}
