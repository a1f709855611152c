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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/peg/variantguard/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

// Execute runs the variantguard CLI command tree.
func Execute() error {
	cmd := NewRootCmd(context.Background(), os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		var ec interface{ ExitCode() int }
		if !errors.As(err, &ec) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		return err
	}
	return nil
}

// ExitCode returns the process exit code implied by err.
// Non-nil errors default to exit code 1 unless they expose ExitCode().
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		code := ec.ExitCode()
		if code > 0 {
			return code
		}
	}

	return 1
}

// NewRootCmd builds the variantguard root command.
func NewRootCmd(ctx context.Context, outWriter, errWriter io.Writer) *cobra.Command {
	opts := &rootOptions{}
	var showVersion bool
	if ctx == nil {
		ctx = context.Background()
	}

	cmd := &cobra.Command{
		Use:           "variantguard",
		Short:         "Stop AI agents from creating variant files (foo_v2.py, enhanced_foo.js)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				return writeVersion(cmd.OutOrStdout())
			}
			return cmd.Help()
		},
	}
	cmd.SetContext(ctx)
	cmd.SetOut(outWriter)
	cmd.SetErr(errWriter)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultFilename, "Path to config file")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&showVersion, "version", false, "Print version information and exit")

	const (
		groupSetup   = "setup"
		groupCheck   = "check"
		groupRuntime = "runtime"
	)
	cmd.AddGroup(
		&cobra.Group{ID: groupSetup, Title: "Setup"},
		&cobra.Group{ID: groupCheck, Title: "Checks"},
		&cobra.Group{ID: groupRuntime, Title: "Runtime"},
	)

	initCmd := newInitCmd(opts)
	checkCmd := newCheckCmd(opts)
	diffCmd := newDiffCmd(opts)
	hookCmd := newHookCmd(opts)
	serveCmd := newServeCmd(opts, nil)
	auditCmd := newAuditCmd()

	initCmd.GroupID = groupSetup
	checkCmd.GroupID = groupCheck
	diffCmd.GroupID = groupCheck
	hookCmd.GroupID = groupRuntime
	serveCmd.GroupID = groupRuntime
	auditCmd.GroupID = groupRuntime

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(initCmd)
	cmd.AddCommand(checkCmd)
	cmd.AddCommand(diffCmd)
	cmd.AddCommand(hookCmd)
	cmd.AddCommand(serveCmd)
	cmd.AddCommand(auditCmd)

	return cmd
}

// newLogger returns a text logger on w. --verbose lowers the level to debug.
func newLogger(opts *rootOptions, w io.Writer, level slog.Level) *slog.Logger {
	if opts.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config named by --config. A missing file at the
// default location means built-in defaults; an explicit path must exist.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	if opts.configPath == "" || opts.configPath == config.DefaultFilename {
		return config.LoadOrDefault(config.DefaultFilename)
	}
	return config.Load(opts.configPath)
}

// defaultAuditDir returns ~/.variantguard/audit, or ./audit without a home.
func defaultAuditDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".variantguard", "audit")
	}
	return "audit"
}

type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func (e exitCodeError) ExitCode() int {
	if e.code < 1 {
		return 1
	}
	return e.code
}
