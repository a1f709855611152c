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

// Package config loads the variantguard YAML configuration.
//
// Every section is optional. Missing values fall back to Default(), so an
// empty file is a valid configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFilename is the config file looked up when no path is given.
const DefaultFilename = "variantguard.yaml"

// Config is the top-level configuration loaded from YAML.
type Config struct {
	// Version is the config schema version. Currently "1".
	Version string `yaml:"version"`

	// Tools maps host tool names onto create/patch kinds.
	Tools Tools `yaml:"tools"`

	// Variants tunes the banned token list.
	Variants Variants `yaml:"variants"`

	// Notify configures webhook notifications for rejections.
	Notify *NotifyConfig `yaml:"notify,omitempty"`
}

// Tools lists which tool names create files and which apply patches, and
// which argument keys carry the path or the diff text. Keys are tried in
// order; the first key holding a string wins.
type Tools struct {
	Create    StringOrSlice `yaml:"create"`
	Patch     StringOrSlice `yaml:"patch"`
	PathKeys  StringOrSlice `yaml:"path_keys"`
	PatchKeys StringOrSlice `yaml:"patch_keys"`
}

// Variants adjusts the built-in banned token list.
type Variants struct {
	// ExtraTokens are banned in addition to the defaults.
	ExtraTokens StringOrSlice `yaml:"extra_tokens"`

	// AllowTokens are removed from the defaults.
	AllowTokens StringOrSlice `yaml:"allow_tokens"`
}

// NotifyConfig configures webhook notifications.
type NotifyConfig struct {
	// URL is the webhook endpoint. Empty disables webhook delivery.
	URL string `yaml:"url"`

	// Platform is "auto", "slack", "discord" or "webhook". Default: "auto".
	Platform string `yaml:"platform"`
}

// StringOrSlice handles YAML fields that can be either a single string
// or a list of strings.
//
//	create: write            → ["write"]
//	create: [write, create]  → ["write", "create"]
type StringOrSlice []string

// UnmarshalYAML implements custom YAML unmarshaling for string-or-slice fields.
func (s *StringOrSlice) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "" {
			*s = nil
			return nil
		}
		*s = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return fmt.Errorf("config: invalid list: %w", err)
		}
		*s = items
		return nil
	default:
		return fmt.Errorf("config: line %d: expected a string or list of strings", value.Line)
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Tools: Tools{
			Create:    StringOrSlice{"write", "create", "write_to_file", "create_file"},
			Patch:     StringOrSlice{"patch", "apply-diff", "apply_diff", "apply_patch"},
			PathKeys:  StringOrSlice{"filePath", "path", "file_path"},
			PatchKeys: StringOrSlice{"patch", "content", "patchText", "diff"},
		},
	}
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve path %q: %w", path, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", absPath, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path if it exists and returns Default() otherwise.
// Any error other than a missing file is returned.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Parse decodes YAML config data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	def := Default()
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if len(cfg.Tools.Create) == 0 {
		cfg.Tools.Create = def.Tools.Create
	}
	if len(cfg.Tools.Patch) == 0 {
		cfg.Tools.Patch = def.Tools.Patch
	}
	if len(cfg.Tools.PathKeys) == 0 {
		cfg.Tools.PathKeys = def.Tools.PathKeys
	}
	if len(cfg.Tools.PatchKeys) == 0 {
		cfg.Tools.PatchKeys = def.Tools.PatchKeys
	}
	if cfg.Notify != nil && cfg.Notify.Platform == "" {
		cfg.Notify.Platform = "auto"
	}
}

// validate checks the config for structural errors.
func (cfg *Config) validate() error {
	if cfg.Version != "1" {
		return fmt.Errorf("unsupported version %q", cfg.Version)
	}

	create := make(map[string]bool, len(cfg.Tools.Create))
	for _, name := range cfg.Tools.Create {
		create[strings.ToLower(name)] = true
	}
	for _, name := range cfg.Tools.Patch {
		if create[strings.ToLower(name)] {
			return fmt.Errorf("tool %q is listed as both create and patch", name)
		}
	}

	for _, key := range append(append([]string{}, cfg.Tools.PathKeys...), cfg.Tools.PatchKeys...) {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("argument keys must not be empty")
		}
	}

	if cfg.Notify != nil {
		switch cfg.Notify.Platform {
		case "auto", "slack", "discord", "webhook":
		default:
			return fmt.Errorf("unknown notify platform %q", cfg.Notify.Platform)
		}
	}

	return nil
}

// BannedTokens returns the effective banned token list: defaults minus
// AllowTokens plus ExtraTokens, lowercased, in a stable order.
func (cfg *Config) BannedTokens(defaults []string) []string {
	allow := make(map[string]bool, len(cfg.Variants.AllowTokens))
	for _, tok := range cfg.Variants.AllowTokens {
		allow[strings.ToLower(strings.TrimSpace(tok))] = true
	}

	seen := make(map[string]bool)
	var out []string
	add := func(tok string) {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" || seen[tok] {
			return
		}
		seen[tok] = true
		out = append(out, tok)
	}

	for _, tok := range defaults {
		if !allow[strings.ToLower(tok)] {
			add(tok)
		}
	}
	for _, tok := range cfg.Variants.ExtraTokens {
		add(tok)
	}
	return out
}

// NotifyEnabled reports whether a webhook URL is configured.
func (cfg *Config) NotifyEnabled() bool {
	return cfg.Notify != nil && cfg.Notify.URL != ""
}
