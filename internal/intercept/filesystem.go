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

// Package intercept applies the guard to file operations performed
// directly by a Go agent runtime, without going through a tool call.
package intercept

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/peg/variantguard/internal/guard"
)

// Tool names recorded for intercepted operations.
const (
	ToolWrite = "fs.write"
	ToolPatch = "fs.patch"
)

// FilesystemInterceptor checks file creations and patches against the
// guard before they touch disk.
type FilesystemInterceptor struct {
	guard *guard.Guard
}

// NewFilesystemInterceptor creates a FilesystemInterceptor backed by g.
func NewFilesystemInterceptor(g *guard.Guard) *FilesystemInterceptor {
	return &FilesystemInterceptor{guard: g}
}

// EvaluateWrite checks whether a file may be written at path.
func (i *FilesystemInterceptor) EvaluateWrite(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	return i.guard.CheckCreate(ctx, ToolWrite, filepath.Clean(path))
}

// EvaluatePatch checks the files a unified diff would add.
func (i *FilesystemInterceptor) EvaluatePatch(ctx context.Context, diff string) error {
	return i.guard.CheckPatch(ctx, ToolPatch, diff)
}

// WriteFile writes data to path unless path is a variant name. On
// rejection nothing is written and the error is *guard.ErrVariantRejected.
func (i *FilesystemInterceptor) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	if err := i.EvaluateWrite(ctx, path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("intercept: write %s: %w", path, err)
	}
	return nil
}
