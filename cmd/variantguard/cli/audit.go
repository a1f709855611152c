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
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/peg/variantguard/internal/audit"
	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	var auditDir string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and verify audit logs",
	}
	cmd.PersistentFlags().StringVar(&auditDir, "audit-dir", defaultAuditDir(), "Directory for audit logs")

	show := &cobra.Command{
		Use:   "show [FILE]",
		Short: "Print audit events (default: most recent log file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := auditFileArg(auditDir, args)
			if err != nil {
				return err
			}
			events, err := audit.ReadEvents(path)
			if err != nil {
				return fmt.Errorf("cli: read audit file: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, e := range events {
				if _, err := io.WriteString(out, formatAuditEvent(out, e)); err != nil {
					return fmt.Errorf("cli: write output: %w", err)
				}
			}
			return nil
		},
	}

	verify := &cobra.Command{
		Use:   "verify [FILE]",
		Short: "Verify the hash chain of an audit log file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := auditFileArg(auditDir, args)
			if err != nil {
				return err
			}
			events, err := audit.ReadEvents(path)
			if err != nil {
				return fmt.Errorf("cli: read audit file: %w", err)
			}

			broken, err := audit.VerifyChain(events)
			if err != nil {
				return fmt.Errorf("cli: verify chain: %w", err)
			}
			if broken >= 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: chain broken at event %d (%s)\n", path, broken+1, events[broken].ID)
				return exitCodeError{code: 1}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d events, chain intact\n", path, len(events))
			return nil
		},
	}

	cmd.AddCommand(show, verify)
	return cmd
}

// auditFileArg returns the explicit file argument or the newest .jsonl
// file in dir.
func auditFileArg(dir string, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return "", fmt.Errorf("cli: list audit files: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("cli: no audit files in %s", dir)
	}

	sort.Slice(matches, func(i, j int) bool {
		return modTime(matches[i]).After(modTime(matches[j]))
	})
	return matches[0], nil
}

func modTime(path string) time.Time {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}

func formatAuditEvent(w io.Writer, e audit.Event) string {
	p := paletteFor(w)
	ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")

	action := p.allow.Render(fmt.Sprintf("%-5s", e.Decision.Action))
	target := strings.Join(e.Paths, ", ")
	if e.Decision.Action == "deny" {
		action = p.deny.Render(fmt.Sprintf("%-5s", e.Decision.Action))
		target = e.Decision.Path
	}
	if target == "" {
		target = "-"
	}

	return fmt.Sprintf("%s %s %s %-6s %s\n",
		p.dim.Render(ts), action, e.Tool, e.Kind, target)
}
