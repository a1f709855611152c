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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peg/variantguard/internal/variant"
)

// noColor returns true when the NO_COLOR environment variable is set.
// Respects the NO_COLOR convention (https://no-color.org/).
func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

type palette struct {
	deny  lipgloss.Style
	allow lipgloss.Style
	dim   lipgloss.Style
}

// paletteFor returns styles rendered for w. Writers that are not a
// terminal, or NO_COLOR, get plain text.
func paletteFor(w io.Writer) palette {
	if noColor() {
		return palette{}
	}
	r := lipgloss.NewRenderer(w)
	return palette{
		deny:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		allow: r.NewStyle().Foreground(lipgloss.Color("10")),
		dim:   r.NewStyle().Faint(true),
	}
}

// formatDenyMessage returns the block message printed to stderr when a
// hook rejects a call.
func formatDenyMessage(w io.Writer, path, reason string) string {
	p := paletteFor(w)
	return fmt.Sprintf("%s\n   %s\n",
		p.deny.Render("variantguard blocked: "+path),
		p.dim.Render("Reason: "+reason),
	)
}

// formatVerdict renders one classification line for check and diff.
func formatVerdict(w io.Writer, c variant.Classification) string {
	p := paletteFor(w)
	if c.IsVariant() {
		return fmt.Sprintf("%s %s  %s\n",
			p.deny.Render("variant"),
			c.Path,
			p.dim.Render("(matched: "+strings.Join(c.Matched, ", ")+")"),
		)
	}
	return fmt.Sprintf("%s %s\n", p.allow.Render("ok     "), c.Path)
}
