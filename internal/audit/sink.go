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

import "log/slog"

// AuditSink is the destination for audit events.
type AuditSink interface {
	// Write records a single audit event.
	Write(event Event) error

	// Close flushes and releases the sink.
	Close() error
}

// SinkOption configures a JSONLSink.
type SinkOption func(*sinkConfig)

type sinkConfig struct {
	fsync  bool
	prefix string
	logger *slog.Logger
}

func defaultSinkConfig() sinkConfig {
	return sinkConfig{
		fsync:  true,
		prefix: "audit",
	}
}

// WithFsync controls whether every write is followed by fsync.
func WithFsync(enabled bool) SinkOption {
	return func(cfg *sinkConfig) {
		cfg.fsync = enabled
	}
}

// WithFilePrefix sets the file name prefix; files are named
// <prefix>-YYYY-MM-DD.jsonl.
func WithFilePrefix(prefix string) SinkOption {
	return func(cfg *sinkConfig) {
		if prefix != "" {
			cfg.prefix = prefix
		}
	}
}

// WithLogger sets the sink's logger.
func WithLogger(logger *slog.Logger) SinkOption {
	return func(cfg *sinkConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}
