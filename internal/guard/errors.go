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

package guard

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRejected matches any *ErrVariantRejected under errors.Is.
var ErrRejected = errors.New("variant file rejected")

// ErrVariantRejected is returned when a tool call would create a variant
// file. It is terminal for that call: retrying cannot change the outcome.
type ErrVariantRejected struct {
	// Path is the offending file path as the agent sent it.
	Path string

	// Tool is the tool name that triggered the rejection (e.g., "write").
	Tool string

	// Tokens are the name tokens that marked the file as a variant.
	Tokens []string

	// Message is the user-facing explanation, with corrective guidance.
	Message string
}

// Error implements the error interface.
func (e *ErrVariantRejected) Error() string {
	return e.Message
}

// Is reports whether target is ErrRejected.
func (e *ErrVariantRejected) Is(target error) bool {
	return target == ErrRejected
}

func newRejection(path, tool string, tokens []string) *ErrVariantRejected {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = fmt.Sprintf("%q", tok)
	}

	msg := fmt.Sprintf(
		"variant filename %q rejected for tool %q (matched %s): variant filenames are not allowed. "+
			"Edit the existing file in place instead of creating a new version of it.",
		path, tool, strings.Join(quoted, ", "),
	)

	return &ErrVariantRejected{
		Path:    path,
		Tool:    tool,
		Tokens:  tokens,
		Message: msg,
	}
}
