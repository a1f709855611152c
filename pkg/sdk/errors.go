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

// Package sdk provides the public API for embedding variantguard into
// agent runtimes.
//
// The SDK wraps tool functions with the variant filename check. When a
// wrapped function is called, the guard inspects its arguments and either
// lets it run or returns an error without calling it.
//
// Basic usage:
//
//	g, err := sdk.New(sdk.WithConfigFile("variantguard.yaml"))
//	safeWrite := g.Wrap("write", writeFile)
//	_, err = safeWrite(ctx, map[string]any{"filePath": "src/utils_v2.js"})
//	// err is *ErrVariantRejected
package sdk

import (
	"github.com/peg/variantguard/internal/guard"
)

// ErrVariantRejected is returned when a tool call would create a variant
// file. Path names the offending file and Message carries the guidance
// shown to the agent.
type ErrVariantRejected = guard.ErrVariantRejected

// ErrRejected matches any rejection under errors.Is.
var ErrRejected = guard.ErrRejected
