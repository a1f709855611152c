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

package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/peg/variantguard/internal/config"
	"github.com/peg/variantguard/internal/guard"
	"github.com/peg/variantguard/internal/intercept"
	"github.com/peg/variantguard/internal/notify"
)

// ToolFunc is a runtime tool function wrapped by the variant check.
type ToolFunc func(ctx context.Context, params map[string]any) (any, error)

// AuditSink receives audit events for every checked create or patch call.
// Implemented by audit.JSONLSink.
type AuditSink = guard.AuditSink

// Notifier delivers user-visible warnings when a call is rejected.
type Notifier = notify.Notifier

// WithAgent returns a context carrying the calling agent's identifier.
func WithAgent(ctx context.Context, agent string) context.Context {
	return guard.WithAgent(ctx, agent)
}

// WithSession returns a context carrying the agent's session identifier.
func WithSession(ctx context.Context, session string) context.Context {
	return guard.WithSession(ctx, session)
}

type options struct {
	configPath string
	notifier   Notifier
	sink       AuditSink
	logger     *slog.Logger
}

// Option configures an SDK.
type Option func(*options)

// WithConfigFile loads tool mappings and token overrides from a YAML file.
// Without it the built-in defaults apply.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithNotifier sets where rejection warnings are sent.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithAuditSink records every checked call.
func WithAuditSink(s AuditSink) Option {
	return func(o *options) { o.sink = s }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// SDK wraps the guard for agent runtime integrations.
type SDK struct {
	guard  *guard.Guard
	fs     *intercept.FilesystemInterceptor
	logger *slog.Logger
}

// New creates an SDK.
func New(opts ...Option) (*SDK, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("sdk: load config: %w", err)
		}
		cfg = loaded
	}

	gopts := []guard.Option{guard.WithLogger(o.logger)}
	if o.notifier != nil {
		gopts = append(gopts, guard.WithNotifier(o.notifier))
	} else if cfg.NotifyEnabled() {
		gopts = append(gopts, guard.WithNotifier(notify.NewNotifier(cfg.Notify.URL, cfg.Notify.Platform)))
	}
	if o.sink != nil {
		gopts = append(gopts, guard.WithAuditSink(o.sink))
	}

	g := guard.New(cfg, gopts...)
	return &SDK{
		guard:  g,
		fs:     intercept.NewFilesystemInterceptor(g),
		logger: o.logger,
	}, nil
}

// OnBeforeToolExecution checks a tool call before the host runs it.
// A non-nil error is always *ErrVariantRejected and must abort the call.
func (s *SDK) OnBeforeToolExecution(ctx context.Context, toolName string, params map[string]any) error {
	return s.guard.OnBeforeToolExecution(ctx, toolName, params)
}

// Wrap returns a guarded wrapper for a tool function. A rejected call
// never reaches fn.
func (s *SDK) Wrap(toolName string, fn ToolFunc) ToolFunc {
	return func(ctx context.Context, params map[string]any) (any, error) {
		start := time.Now()
		if err := s.guard.OnBeforeToolExecution(ctx, toolName, params); err != nil {
			return nil, err
		}

		result, err := fn(ctx, params)
		s.logger.Debug("sdk: tool completed",
			"tool", toolName,
			"total_duration", time.Since(start),
			"error", err,
		)
		return result, err
	}
}

// WriteFile writes data to path unless its name is a variant. Runtimes
// that create files themselves, rather than through a tool call, use it in
// place of os.WriteFile.
func (s *SDK) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	return s.fs.WriteFile(ctx, path, data, perm)
}

// Preflight reports whether a tool call would be allowed without
// executing it, notifying anyone or writing audit events. Agents can use
// it to pick a non-variant filename before attempting the write.
func (s *SDK) Preflight(_ context.Context, toolName string, params map[string]any) PreflightResult {
	d := s.guard.Evaluate(guard.ToolInvocation{Tool: toolName, Args: params})

	res := PreflightResult{
		Allowed:  d.Allowed(),
		Action:   d.Action(),
		Kind:     d.Kind.String(),
		Paths:    d.Paths,
		EvalTime: d.EvalDuration,
	}
	if d.Rejection != nil {
		res.Path = d.Rejection.Path
		res.Message = d.Rejection.Message
	}
	return res
}

// PreflightResult is the outcome of a preflight check.
type PreflightResult struct {
	// Allowed is true if the tool call would proceed.
	Allowed bool

	// Action is "allow" or "deny".
	Action string

	// Kind is "create", "patch" or "other".
	Kind string

	// Paths are the candidate file paths that were checked.
	Paths []string

	// Path is the offending path when denied.
	Path string

	// Message is the rejection guidance when denied.
	Message string

	// EvalTime is how long evaluation took.
	EvalTime time.Duration
}
