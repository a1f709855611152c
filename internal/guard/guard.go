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

// Package guard intercepts agent tool calls before they run and rejects
// any call that would create a variant file (enhanced_foo.js, foo_v2.py,
// foo_backup.ts).
//
// The host calls OnBeforeToolExecution with the tool name and arguments.
// Create-kind tools are checked by their target path; patch-kind tools
// have their diff scanned for newly added files, each of which is checked
// in the order it appears. Every other tool passes untouched.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/peg/variantguard/internal/audit"
	"github.com/peg/variantguard/internal/config"
	"github.com/peg/variantguard/internal/diffscan"
	"github.com/peg/variantguard/internal/metrics"
	"github.com/peg/variantguard/internal/notify"
	"github.com/peg/variantguard/internal/variant"
)

// Kind is the class of a tool as far as the guard is concerned.
type Kind int

const (
	// KindOther is any tool the guard ignores.
	KindOther Kind = iota

	// KindCreate writes a file at a path taken from the arguments.
	KindCreate

	// KindPatch applies a diff taken from the arguments.
	KindPatch
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindOther:
		return "other"
	case KindCreate:
		return "create"
	case KindPatch:
		return "patch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ToolInvocation describes one attempted tool call.
type ToolInvocation struct {
	// Tool is the tool name as sent by the host (e.g., "write", "patch").
	Tool string

	// Args are the tool arguments.
	Args map[string]any
}

// Decision is the result of evaluating a tool invocation.
type Decision struct {
	// Kind is the resolved tool kind.
	Kind Kind

	// Paths are the candidate paths that were classified, in order.
	// Empty for KindOther.
	Paths []string

	// Rejection is set when a path was classified as a variant.
	Rejection *ErrVariantRejected

	// EvalDuration is how long evaluation took.
	EvalDuration time.Duration
}

// Allowed reports whether the invocation may proceed.
func (d Decision) Allowed() bool {
	return d.Rejection == nil
}

// Action returns "allow" or "deny".
func (d Decision) Action() string {
	if d.Allowed() {
		return "allow"
	}
	return "deny"
}

// AuditSink receives one event per evaluated create or patch call.
// Implemented by audit.JSONLSink.
type AuditSink interface {
	Write(event audit.Event) error
}

// Guard is the interception dispatcher. A Guard is immutable after New
// and safe for concurrent use.
type Guard struct {
	classifier *variant.Classifier
	create     map[string]struct{}
	patch      map[string]struct{}
	pathKeys   []string
	patchKeys  []string
	notifier   notify.Notifier
	sink       AuditSink
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithNotifier sets the sink for user-visible rejection warnings.
func WithNotifier(n notify.Notifier) Option {
	return func(g *Guard) {
		g.notifier = n
	}
}

// WithAuditSink records every evaluated create/patch call.
func WithAuditSink(s AuditSink) Option {
	return func(g *Guard) {
		g.sink = s
	}
}

// WithLogger sets the guard's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClassifier replaces the classifier derived from the config.
func WithClassifier(c *variant.Classifier) Option {
	return func(g *Guard) {
		if c != nil {
			g.classifier = c
		}
	}
}

// New creates a guard from cfg. A nil cfg means config.Default().
func New(cfg *config.Config, opts ...Option) *Guard {
	if cfg == nil {
		cfg = config.Default()
	}

	g := &Guard{
		classifier: variant.New(cfg.BannedTokens(variant.DefaultBannedTokens())...),
		create:     nameSet(cfg.Tools.Create),
		patch:      nameSet(cfg.Tools.Patch),
		pathKeys:   append([]string(nil), cfg.Tools.PathKeys...),
		patchKeys:  append([]string(nil), cfg.Tools.PatchKeys...),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}

// Classifier returns the classifier in use.
func (g *Guard) Classifier() *variant.Classifier {
	return g.classifier
}

// KindOf resolves a tool name to its kind. Matching is case-insensitive.
func (g *Guard) KindOf(tool string) Kind {
	name := strings.ToLower(tool)
	if _, ok := g.create[name]; ok {
		return KindCreate
	}
	if _, ok := g.patch[name]; ok {
		return KindPatch
	}
	return KindOther
}

// Evaluate classifies an invocation without side effects: no
// notification, audit or metrics.
func (g *Guard) Evaluate(inv ToolInvocation) Decision {
	kind := g.KindOf(inv.Tool)
	if kind == KindOther {
		return Decision{Kind: kind}
	}
	return g.evaluate(inv.Tool, kind, g.candidates(kind, inv.Args))
}

// candidates extracts the paths to classify from tool arguments.
func (g *Guard) candidates(kind Kind, args map[string]any) []string {
	switch kind {
	case KindCreate:
		if p := firstString(args, g.pathKeys); p != "" {
			return []string{p}
		}
	case KindPatch:
		return diffscan.ExtractAddedFiles(firstString(args, g.patchKeys))
	}
	return nil
}

// evaluate classifies paths in order; the first variant wins.
func (g *Guard) evaluate(tool string, kind Kind, paths []string) Decision {
	start := g.now()
	d := Decision{Kind: kind, Paths: paths}
	for _, p := range paths {
		c := g.classifier.Classify(p)
		if c.IsVariant() {
			d.Rejection = newRejection(p, tool, c.Matched)
			break
		}
	}
	d.EvalDuration = g.now().Sub(start)
	return d
}

// OnBeforeToolExecution is the host's interception point. It returns nil
// to let the call proceed, or an *ErrVariantRejected that must abort it.
// On rejection a notification is attempted first; its failure never
// changes the result.
func (g *Guard) OnBeforeToolExecution(ctx context.Context, tool string, args map[string]any) error {
	d := g.Evaluate(ToolInvocation{Tool: tool, Args: args})
	if d.Kind == KindOther {
		return nil
	}
	return g.enforce(ctx, tool, d)
}

// CheckCreate enforces the guard on a file about to be created at path,
// for callers that already know the target rather than holding raw tool
// arguments. An empty path is allowed.
func (g *Guard) CheckCreate(ctx context.Context, tool, path string) error {
	var paths []string
	if path != "" {
		paths = []string{path}
	}
	return g.enforce(ctx, tool, g.evaluate(tool, KindCreate, paths))
}

// CheckPatch enforces the guard on the files a diff would add.
func (g *Guard) CheckPatch(ctx context.Context, tool, diff string) error {
	return g.enforce(ctx, tool, g.evaluate(tool, KindPatch, diffscan.ExtractAddedFiles(diff)))
}

func (g *Guard) enforce(ctx context.Context, tool string, d Decision) error {
	agent := valueOrDefault(ctx, agentKey, defaultAgent)
	session := valueOrDefault(ctx, sessionKey, defaultSession)

	metrics.RecordDecision(d.Kind.String(), d.Action(), d.EvalDuration)
	g.record(tool, d, agent, session)

	if d.Allowed() {
		g.logger.Debug("guard: tool call allowed",
			"tool", tool,
			"kind", d.Kind,
			"paths", d.Paths,
		)
		return nil
	}

	g.logger.Warn("guard: variant file rejected",
		"tool", tool,
		"kind", d.Kind,
		"path", d.Rejection.Path,
		"matched", d.Rejection.Tokens,
		"agent", agent,
	)
	g.tryNotify(d.Rejection, agent)
	return d.Rejection
}

// tryNotify attempts delivery and discards any fault, including a panic
// inside the notifier.
func (g *Guard) tryNotify(rej *ErrVariantRejected, agent string) {
	if g.notifier == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordNotifyFailure()
			g.logger.Debug("guard: notifier panicked", "panic", r)
		}
	}()

	err := g.notifier.Send(notify.NotifyEvent{
		Action:    "deny",
		Tool:      rej.Tool,
		Path:      rej.Path,
		Message:   rej.Message,
		Variant:   notify.VariantError,
		Agent:     agent,
		Timestamp: g.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		metrics.RecordNotifyFailure()
		g.logger.Debug("guard: notification failed", "error", err)
	}
}

func (g *Guard) record(tool string, d Decision, agent, session string) {
	if g.sink == nil {
		return
	}

	event := audit.Event{
		ID:        audit.NewEventID(),
		Timestamp: g.now().UTC(),
		Agent:     agent,
		Session:   session,
		Tool:      tool,
		Kind:      d.Kind.String(),
		Paths:     d.Paths,
		Decision: audit.EventDecision{
			Action:     d.Action(),
			EvalTimeUS: d.EvalDuration.Microseconds(),
		},
	}
	if d.Rejection != nil {
		event.Decision.Path = d.Rejection.Path
		event.Decision.Message = d.Rejection.Message
	}

	if err := g.sink.Write(event); err != nil {
		g.logger.Error("guard: audit write failed", "error", err)
	}
}

// firstString returns the first non-empty string value among keys.
// Values of any other type are skipped.
func firstString(args map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := args[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
