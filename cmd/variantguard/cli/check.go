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
	"fmt"
	"io"
	"os"

	"github.com/peg/variantguard/internal/diffscan"
	"github.com/peg/variantguard/internal/variant"
	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "check PATH...",
		Short: "Classify file paths; exit 1 if any is a variant name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := classifierFromConfig(opts)
			if err != nil {
				return err
			}

			results := make([]variant.Classification, 0, len(args))
			for _, p := range args {
				results = append(results, c.Classify(p))
			}
			return reportClassifications(cmd.OutOrStdout(), results, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	return cmd
}

func newDiffCmd(opts *rootOptions) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "diff [FILE|-]",
		Short: "Check the files a unified diff adds; exit 1 if any is a variant name",
		Long: `Scans a git-style unified diff (or an apply_patch envelope) for newly
added files and classifies each one. Reads stdin when FILE is omitted or "-".

  git diff --cached | variantguard diff`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := classifierFromConfig(opts)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("cli: open diff: %w", err)
				}
				defer f.Close()
				in = f
			}

			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("cli: read diff: %w", err)
			}

			paths := diffscan.ExtractAddedFiles(string(data))
			results := make([]variant.Classification, 0, len(paths))
			for _, p := range paths {
				results = append(results, c.Classify(p))
			}
			return reportClassifications(cmd.OutOrStdout(), results, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	return cmd
}

func classifierFromConfig(opts *rootOptions) (*variant.Classifier, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return variant.New(cfg.BannedTokens(variant.DefaultBannedTokens())...), nil
}

type classificationJSON struct {
	Path    string   `json:"path"`
	Variant bool     `json:"variant"`
	Tokens  []string `json:"tokens"`
	Matched []string `json:"matched,omitempty"`
}

// reportClassifications prints results and returns exit status 1 when any
// result is a variant.
func reportClassifications(w io.Writer, results []variant.Classification, jsonOut bool) error {
	found := false
	for _, r := range results {
		if r.IsVariant() {
			found = true
			break
		}
	}

	if jsonOut {
		out := make([]classificationJSON, 0, len(results))
		for _, r := range results {
			out = append(out, classificationJSON{
				Path:    r.Path,
				Variant: r.IsVariant(),
				Tokens:  r.Tokens,
				Matched: r.Matched,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("cli: write json: %w", err)
		}
	} else {
		for _, r := range results {
			if _, err := io.WriteString(w, formatVerdict(w, r)); err != nil {
				return fmt.Errorf("cli: write output: %w", err)
			}
		}
	}

	if found {
		return exitCodeError{code: 1}
	}
	return nil
}
