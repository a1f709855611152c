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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Tools, cfg.Tools)
	assert.Equal(t, "1", cfg.Version)
	assert.Nil(t, cfg.Notify)
	assert.False(t, cfg.NotifyEnabled())
}

func TestParse_ScalarOrList(t *testing.T) {
	cfg, err := Parse([]byte(`
version: "1"
tools:
  create: Write
  patch: [apply_patch, Edit]
  path_keys: file_path
variants:
  extra_tokens: draft
`))
	require.NoError(t, err)

	assert.Equal(t, StringOrSlice{"Write"}, cfg.Tools.Create)
	assert.Equal(t, StringOrSlice{"apply_patch", "Edit"}, cfg.Tools.Patch)
	assert.Equal(t, StringOrSlice{"file_path"}, cfg.Tools.PathKeys)
	assert.Equal(t, Default().Tools.PatchKeys, cfg.Tools.PatchKeys)
	assert.Equal(t, StringOrSlice{"draft"}, cfg.Variants.ExtraTokens)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad yaml",
			yaml:    "tools: [",
			wantErr: "parse",
		},
		{
			name:    "unsupported version",
			yaml:    `version: "2"`,
			wantErr: "unsupported version",
		},
		{
			name: "tool in both lists",
			yaml: `
tools:
  create: [write]
  patch: [WRITE]
`,
			wantErr: "both create and patch",
		},
		{
			name: "blank key",
			yaml: `
tools:
  path_keys: ["  "]
`,
			wantErr: "must not be empty",
		},
		{
			name: "unknown platform",
			yaml: `
notify:
  url: https://example.com
  platform: pager
`,
			wantErr: "unknown notify platform",
		},
		{
			name:    "map where list expected",
			yaml:    "tools:\n  create: {a: b}\n",
			wantErr: "string or list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_NotifyPlatformDefaultsToAuto(t *testing.T) {
	cfg, err := Parse([]byte("notify:\n  url: https://hooks.slack.com/services/x\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Notify)
	assert.Equal(t, "auto", cfg.Notify.Platform)
	assert.True(t, cfg.NotifyEnabled())
}

func TestBannedTokens(t *testing.T) {
	cfg := Default()
	cfg.Variants.AllowTokens = StringOrSlice{"New", "old"}
	cfg.Variants.ExtraTokens = StringOrSlice{"Draft", "backup", " "}

	got := cfg.BannedTokens([]string{"new", "old", "backup", "copy"})
	assert.Equal(t, []string{"backup", "copy", "draft"}, got)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte("variants:\n  extra_tokens: [wip]\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StringOrSlice{"wip"}, cfg.Variants.ExtraTokens)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`version: "9"`), 0o644))
	_, err = LoadOrDefault(bad)
	assert.Error(t, err)
}
