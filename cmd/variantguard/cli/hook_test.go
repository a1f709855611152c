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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHook(t *testing.T, stdin string, args ...string) (map[string]any, string) {
	t.Helper()

	auditDir := t.TempDir()
	args = append([]string{"hook", "--audit-dir", auditDir}, args...)
	stdout, stderr, err := runCLIWithStdin(t, stdin, args...)
	require.NoError(t, err, "hook always exits 0")

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &out), stdout)
	return out, stderr
}

func hookSpecific(t *testing.T, out map[string]any) map[string]any {
	t.Helper()

	hso, ok := out["hookSpecificOutput"].(map[string]any)
	require.True(t, ok, "missing hookSpecificOutput")
	return hso
}

func TestHook_ClaudeCodeDeny(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	in := `{"session_id":"abc","tool_name":"Write","tool_input":{"file_path":"src/simple_utils.js","content":"x"}}`

	out, stderr := runHook(t, in)
	hso := hookSpecific(t, out)
	assert.Equal(t, "PreToolUse", hso["hookEventName"])
	assert.Equal(t, "deny", hso["permissionDecision"])
	assert.Contains(t, hso["permissionDecisionReason"], "src/simple_utils.js")
	assert.Contains(t, stderr, "variantguard blocked: src/simple_utils.js")
}

func TestHook_ClaudeCodeAllow(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"clean write", `{"tool_name":"Write","tool_input":{"file_path":"src/utils.js"}}`},
		{"edit is not a create", `{"tool_name":"Edit","tool_input":{"file_path":"src/utils_v2.js"}}`},
		{"bash", `{"tool_name":"Bash","tool_input":{"command":"touch foo_v2.py"}}`},
		{"invalid json fails open", `{`},
		{"missing tool fails open", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := runHook(t, tt.input)
			hso := hookSpecific(t, out)
			_, hasDecision := hso["permissionDecision"]
			assert.False(t, hasDecision, "absent permissionDecision means allow")
		})
	}
}

func TestHook_MonitorModeAllowsAndWarns(t *testing.T) {
	in := `{"tool_name":"Write","tool_input":{"file_path":"a/b_backup.go"}}`

	out, stderr := runHook(t, in, "--mode", "monitor")
	_, hasDecision := hookSpecific(t, out)["permissionDecision"]
	assert.False(t, hasDecision)
	assert.Contains(t, stderr, "[error] ")
	assert.Contains(t, stderr, "a/b_backup.go")
	assert.NotContains(t, stderr, "variantguard blocked")
}

func TestHook_EnforceModePrintsBannerWithoutToast(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	in := `{"tool_name":"Write","tool_input":{"file_path":"a/b_backup.go"}}`

	out, stderr := runHook(t, in)
	assert.Equal(t, "deny", hookSpecific(t, out)["permissionDecision"])
	assert.Equal(t, 1, strings.Count(stderr, "variantguard blocked: a/b_backup.go"))
	assert.NotContains(t, stderr, "[error] ", "no stderr toast without a webhook in enforce mode")
}

func TestHook_Cline(t *testing.T) {
	deny := `{"clineVersion":"3.0","hookName":"PreToolUse","taskId":"t1",
		"preToolUse":{"toolName":"write_to_file","parameters":{"path":"lib/old_parser.rb","content":""}}}`
	out, _ := runHook(t, deny, "--format", "cline")
	assert.Equal(t, true, out["cancel"])
	assert.True(t, strings.HasPrefix(out["errorMessage"].(string), "Blocked by variantguard: "))

	allow := `{"preToolUse":{"toolName":"write_to_file","parameters":{"path":"lib/parser.rb"}}}`
	out, _ = runHook(t, allow, "--format", "cline")
	assert.Equal(t, false, out["cancel"])
	assert.NotContains(t, out, "errorMessage")
}

func TestHook_OpenCodePatch(t *testing.T) {
	patch := "*** Begin Patch\n*** Add File: src/api_refactored.ts\n+export {}\n*** End Patch\n"
	payload, err := json.Marshal(map[string]any{
		"sessionID": "ses_1",
		"tool":      "apply_patch",
		"args":      map[string]any{"patchText": patch},
	})
	require.NoError(t, err)

	out, _ := runHook(t, string(payload), "--format", "opencode")
	assert.Equal(t, "deny", out["decision"])
	assert.Contains(t, out["reason"], "src/api_refactored.ts")

	out, _ = runHook(t, `{"tool":"read","args":{"filePath":"x_v2.ts"}}`, "--format", "opencode")
	assert.Equal(t, "allow", out["decision"])
}

func TestHook_InvalidFlags(t *testing.T) {
	_, _, err := runCLIWithStdin(t, "{}", "hook", "--mode", "audit")
	require.Error(t, err)

	_, _, err = runCLIWithStdin(t, "{}", "hook", "--format", "cursor")
	require.Error(t, err)
}

func TestHook_WritesAudit(t *testing.T) {
	auditDir := t.TempDir()
	in := `{"session_id":"s-9","tool_name":"Write","tool_input":{"file_path":"x_tmp.go"}}`

	_, _, err := runCLIWithStdin(t, in, "hook", "--audit-dir", auditDir)
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(auditDir, "hook-*.jsonl"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session":"s-9"`)
	assert.Contains(t, string(data), `"agent":"claude-code"`)

	stdout, _, err := runCLI(t, "audit", "verify", "--audit-dir", auditDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 events, chain intact")

	t.Setenv("NO_COLOR", "1")
	stdout, _, err = runCLI(t, "audit", "show", matches[0])
	require.NoError(t, err)
	assert.Contains(t, stdout, "deny")
	assert.Contains(t, stdout, "x_tmp.go")
}

func TestAuditVerify_DetectsTampering(t *testing.T) {
	auditDir := t.TempDir()
	for _, p := range []string{"a.go", "b_old.go"} {
		in := `{"tool_name":"Write","tool_input":{"file_path":"` + p + `"}}`
		_, _, err := runCLIWithStdin(t, in, "hook", "--audit-dir", auditDir)
		require.NoError(t, err)
	}

	matches, err := filepath.Glob(filepath.Join(auditDir, "*.jsonl"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"action":"deny"`, `"action":"allow"`, 1)
	require.NoError(t, os.WriteFile(matches[0], []byte(tampered), 0o600))

	stdout, _, err := runCLI(t, "audit", "verify", matches[0])
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, stdout, "chain broken at event 2")
}

func TestAudit_NoFiles(t *testing.T) {
	_, _, err := runCLI(t, "audit", "show", "--audit-dir", t.TempDir())
	require.Error(t, err)
}

func TestToolMappings(t *testing.T) {
	tests := []struct {
		name   string
		mapper func(string) string
		in     string
		want   string
	}{
		{"claude Write", mapClaudeCodeTool, "Write", "write"},
		{"claude WriteFile", mapClaudeCodeTool, "WriteFile", "write"},
		{"claude Edit", mapClaudeCodeTool, "Edit", "edit"},
		{"cline write_to_file", mapClineTool, "write_to_file", "write"},
		{"cline replace_in_file", mapClineTool, "replace_in_file", "replace_in_file"},
		{"opencode apply_patch", mapOpenCodeTool, "apply_patch", "patch"},
		{"opencode patch", mapOpenCodeTool, "patch", "patch"},
		{"opencode Write", mapOpenCodeTool, "Write", "write"},
		{"opencode read", mapOpenCodeTool, "read", "read"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mapper(tt.in))
		})
	}
}

func TestParseInput_Errors(t *testing.T) {
	_, err := parseClineInput(strings.NewReader(`{"postToolUse":{}}`))
	assert.Error(t, err)

	_, err = parseOpenCodeInput(strings.NewReader(`{"args":{}}`))
	assert.Error(t, err)

	in, err := parseClaudeCodeInput(strings.NewReader(`{"tool_name":"Write"}`))
	require.NoError(t, err)
	assert.NotNil(t, in.Params)
	assert.Equal(t, "claude-code", in.Agent)
}
