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

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/peg/variantguard/internal/audit"
	"github.com/peg/variantguard/internal/config"
	"github.com/peg/variantguard/internal/guard"
	"github.com/peg/variantguard/internal/notify"
	"github.com/spf13/cobra"
)

const (
	formatClaudeCode = "claude-code"
	formatCline      = "cline"
	formatOpenCode   = "opencode"
)

// hookInput is the JSON sent by Claude Code on stdin for PreToolUse hooks.
type hookInput struct {
	SessionID string         `json:"session_id"`
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input"`
}

// hookOutput is the JSON response for Claude Code hooks.
type hookOutput struct {
	HookSpecificOutput hookDecision `json:"hookSpecificOutput"`
}

type hookDecision struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision,omitempty"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
}

// clineHookInput is the JSON sent by Cline on stdin for PreToolUse hooks.
type clineHookInput struct {
	TaskID     string        `json:"taskId"`
	PreToolUse *clineToolUse `json:"preToolUse"`
}

type clineToolUse struct {
	ToolName   string         `json:"toolName"`
	Parameters map[string]any `json:"parameters"`
}

// clineHookOutput is the JSON response for Cline hooks.
type clineHookOutput struct {
	Cancel       bool   `json:"cancel"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// openCodeHookInput is the tool.execute.before payload forwarded by the
// OpenCode plugin shim.
type openCodeHookInput struct {
	SessionID string         `json:"sessionID"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
}

type openCodeHookOutput struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// parsedHookInput is a host payload normalized to guard terms.
type parsedHookInput struct {
	Tool    string
	Params  map[string]any
	Agent   string
	Session string
}

func newHookCmd(opts *rootOptions) *cobra.Command {
	var auditDir string
	var mode string
	var format string

	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Agent hook: reads a tool call from stdin, returns allow/deny",
		Long: `Integrates with AI agent hook systems. Rejects file writes and patches
that would create variant files.

Supports multiple formats:
  --format claude-code (default): Claude Code PreToolUse hook
  --format cline: Cline PreToolUse hook
  --format opencode: OpenCode tool.execute.before plugin

Claude Code setup (add to ~/.claude/settings.json):
{
  "hooks": {
    "PreToolUse": [
      {
        "matcher": "Write",
        "hooks": [{ "type": "command", "command": "variantguard hook" }]
      }
    ]
  }
}

Input that cannot be parsed is allowed through.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mode != "enforce" && mode != "monitor" {
				return fmt.Errorf("hook: invalid mode %q (must be enforce or monitor)", mode)
			}
			if format != formatClaudeCode && format != formatCline && format != formatOpenCode {
				return fmt.Errorf("hook: invalid format %q (must be claude-code, cline or opencode)", format)
			}

			// stdout carries the hook response.
			logger := newLogger(opts, cmd.ErrOrStderr(), slog.LevelWarn)

			cfg, err := loadConfig(opts)
			if err != nil {
				logger.Warn("hook: config unusable, using defaults", "error", err)
				cfg = config.Default()
			}

			gopts := []guard.Option{guard.WithLogger(logger)}

			if auditDir == "" {
				auditDir = defaultAuditDir()
			}
			sink, err := audit.NewJSONLSink(auditDir, audit.WithFilePrefix("hook"), audit.WithLogger(logger))
			if err != nil {
				logger.Warn("hook: audit disabled", "error", err)
			} else {
				defer sink.Close()
				gopts = append(gopts, guard.WithAuditSink(sink))
			}

			switch {
			case cfg.NotifyEnabled():
				gopts = append(gopts, guard.WithNotifier(notify.NewNotifier(cfg.Notify.URL, cfg.Notify.Platform)))
			case mode == "monitor":
				// Enforce mode prints its own block message.
				gopts = append(gopts, guard.WithNotifier(notify.NewWriterNotifier(cmd.ErrOrStderr())))
			}

			in, err := parseHookInput(format, cmd.InOrStdin())
			if err != nil {
				logger.Warn("hook: failed to parse input", "format", format, "error", err)
				return outputHookResult(cmd.OutOrStdout(), format, false, "")
			}

			g := guard.New(cfg, gopts...)
			ctx := guard.WithSession(guard.WithAgent(cmd.Context(), in.Agent), in.Session)

			err = g.OnBeforeToolExecution(ctx, in.Tool, in.Params)
			var rej *guard.ErrVariantRejected
			if !errors.As(err, &rej) || mode != "enforce" {
				return outputHookResult(cmd.OutOrStdout(), format, false, "")
			}

			fmt.Fprint(cmd.ErrOrStderr(), formatDenyMessage(cmd.ErrOrStderr(), rej.Path, rej.Message))
			return outputHookResult(cmd.OutOrStdout(), format, true, rej.Message)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "enforce", "Mode: enforce | monitor")
	cmd.Flags().StringVar(&format, "format", formatClaudeCode, "Input format: claude-code | cline | opencode")
	cmd.Flags().StringVar(&auditDir, "audit-dir", "", "Directory for audit logs (default: ~/.variantguard/audit)")

	return cmd
}

func parseHookInput(format string, r io.Reader) (parsedHookInput, error) {
	switch format {
	case formatCline:
		return parseClineInput(r)
	case formatOpenCode:
		return parseOpenCodeInput(r)
	default:
		return parseClaudeCodeInput(r)
	}
}

// parseClaudeCodeInput parses Claude Code hook input format.
func parseClaudeCodeInput(r io.Reader) (parsedHookInput, error) {
	var input hookInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return parsedHookInput{}, err
	}
	if input.ToolName == "" {
		return parsedHookInput{}, fmt.Errorf("missing tool_name")
	}

	return parsedHookInput{
		Tool:    mapClaudeCodeTool(input.ToolName),
		Params:  nonNilParams(input.ToolInput),
		Agent:   formatClaudeCode,
		Session: input.SessionID,
	}, nil
}

// parseClineInput parses Cline hook input format.
func parseClineInput(r io.Reader) (parsedHookInput, error) {
	var input clineHookInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return parsedHookInput{}, err
	}
	if input.PreToolUse == nil {
		return parsedHookInput{}, fmt.Errorf("no preToolUse in input")
	}

	return parsedHookInput{
		Tool:    mapClineTool(input.PreToolUse.ToolName),
		Params:  nonNilParams(input.PreToolUse.Parameters),
		Agent:   formatCline,
		Session: input.TaskID,
	}, nil
}

// parseOpenCodeInput parses the OpenCode plugin payload.
func parseOpenCodeInput(r io.Reader) (parsedHookInput, error) {
	var input openCodeHookInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return parsedHookInput{}, err
	}
	if input.Tool == "" {
		return parsedHookInput{}, fmt.Errorf("missing tool")
	}

	return parsedHookInput{
		Tool:    mapOpenCodeTool(input.Tool),
		Params:  nonNilParams(input.Args),
		Agent:   formatOpenCode,
		Session: input.SessionID,
	}, nil
}

func nonNilParams(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	return params
}

// mapClaudeCodeTool maps Claude Code tool names to guard tool names.
// Unknown tools pass through lowercased.
func mapClaudeCodeTool(toolName string) string {
	switch toolName {
	case "Write", "WriteFile":
		return "write"
	default:
		return strings.ToLower(toolName)
	}
}

// mapClineTool maps Cline tool names to guard tool names.
func mapClineTool(toolName string) string {
	switch toolName {
	case "write_to_file":
		return "write"
	default:
		return toolName
	}
}

// mapOpenCodeTool maps OpenCode and Codex tool names to guard tool names.
func mapOpenCodeTool(toolName string) string {
	switch strings.ToLower(toolName) {
	case "apply_patch", "patch":
		return "patch"
	case "write":
		return "write"
	default:
		return toolName
	}
}

// outputHookResult writes the allow/deny response in the host's format.
func outputHookResult(w io.Writer, format string, deny bool, reason string) error {
	var out any
	switch format {
	case formatCline:
		o := clineHookOutput{Cancel: deny}
		if deny {
			o.ErrorMessage = "Blocked by variantguard: " + reason
		}
		out = o
	case formatOpenCode:
		o := openCodeHookOutput{Decision: "allow"}
		if deny {
			o.Decision = "deny"
			o.Reason = reason
		}
		out = o
	default:
		o := hookOutput{HookSpecificOutput: hookDecision{HookEventName: "PreToolUse"}}
		// An absent permissionDecision means allow.
		if deny {
			o.HookSpecificOutput.PermissionDecision = "deny"
			o.HookSpecificOutput.PermissionDecisionReason = "variantguard: " + reason
		}
		out = o
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("hook: write response: %w", err)
	}
	return nil
}
