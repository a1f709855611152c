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
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/peg/variantguard/internal/audit"
	"github.com/peg/variantguard/internal/config"
	"github.com/peg/variantguard/internal/guard"
	"github.com/peg/variantguard/internal/metrics"
	"github.com/peg/variantguard/internal/notify"
	"github.com/peg/variantguard/internal/proxy"
	"github.com/spf13/cobra"
)

const defaultServeAddr = "127.0.0.1:8719"

type serveDeps struct {
	newWatcher    func() (*fsnotify.Watcher, error)
	notifyContext func(context.Context, ...os.Signal) (context.Context, context.CancelFunc)
	listen        func(network, addr string) (net.Listener, error)
}

func defaultServeDeps() serveDeps {
	return serveDeps{
		newWatcher:    fsnotify.NewWatcher,
		notifyContext: signal.NotifyContext,
		listen:        net.Listen,
	}
}

func newServeCmd(opts *rootOptions, deps *serveDeps) *cobra.Command {
	var auditDir string
	var mode string
	var addr string
	var enableMetrics bool

	resolvedDeps := defaultServeDeps()
	if deps != nil {
		if deps.newWatcher != nil {
			resolvedDeps.newWatcher = deps.newWatcher
		}
		if deps.notifyContext != nil {
			resolvedDeps.notifyContext = deps.notifyContext
		}
		if deps.listen != nil {
			resolvedDeps.listen = deps.listen
		}
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the guard over HTTP and reload on config changes",
		Long: `Starts an HTTP API that agent runtimes call before each tool call:

  POST /v1/tool-call  {"tool","args","agent","session"} -> 200 allow, 403 deny
  POST /v1/preflight  same body, always 200, no notification or audit
  GET  /healthz
  GET  /metrics       with --metrics

Set VARIANTGUARD_TOKEN to require a bearer token on /v1 routes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mode != "enforce" && mode != "monitor" {
				return fmt.Errorf("serve: invalid mode %q (must be enforce or monitor)", mode)
			}

			logger := newLogger(opts, cmd.ErrOrStderr(), slog.LevelInfo)

			cfg, err := loadConfig(opts)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			sink, err := audit.NewJSONLSink(auditDir, audit.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("serve: create audit sink: %w", err)
			}
			defer func() {
				_ = sink.Close()
			}()

			r := &guardReloader{
				configPath: opts.configPath,
				logger:     logger,
				sink:       sink,
			}

			var srvOpts []proxy.Option
			srvOpts = append(srvOpts, proxy.WithMode(mode), proxy.WithLogger(logger), proxy.WithMetrics(enableMetrics))
			if token := os.Getenv("VARIANTGUARD_TOKEN"); token != "" {
				srvOpts = append(srvOpts, proxy.WithToken(token))
			}
			srv := proxy.New(r.build(cfg), srvOpts...)
			r.server = srv

			watcher, err := resolvedDeps.newWatcher()
			if err != nil {
				return fmt.Errorf("serve: create file watcher: %w", err)
			}
			defer func() {
				_ = watcher.Close()
			}()

			// Watch the directory so editors that replace the file by
			// rename are still picked up.
			configAbs, err := filepath.Abs(opts.configPath)
			if err != nil {
				return fmt.Errorf("serve: resolve config path %s: %w", opts.configPath, err)
			}
			if err := watcher.Add(filepath.Dir(configAbs)); err != nil {
				return fmt.Errorf("serve: watch config dir: %w", err)
			}

			listener, err := resolvedDeps.listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("serve: listen on %s: %w", addr, err)
			}

			logger.Info("serve: started",
				"mode", mode,
				"addr", listener.Addr().String(),
				"config", configAbs,
				"audit_dir", auditDir,
				"metrics", enableMetrics,
			)

			srvErrCh := make(chan error, 1)
			go func() {
				srvErrCh <- srv.Serve(listener)
			}()

			sigCtx, stop := resolvedDeps.notifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lastReload := time.Time{}
			for {
				select {
				case <-sigCtx.Done():
					logger.Info("serve: shutting down...")
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					if err := srv.Shutdown(shutdownCtx); err != nil {
						logger.Error("serve: shutdown failed", "error", err)
					}
					cancel()
					return nil
				case err := <-srvErrCh:
					if err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("serve: server failed: %w", err)
					}
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if !isWriteEvent(event) || !samePath(configAbs, event.Name) {
						continue
					}
					now := time.Now()
					if !lastReload.IsZero() && now.Sub(lastReload) < 500*time.Millisecond {
						continue
					}
					// Writes fire on truncation before the new content lands.
					time.Sleep(100 * time.Millisecond)
					if err := r.reload(); errors.Is(err, errConfigEmpty) {
						// Still truncated; the next write must not be debounced.
						continue
					}
					lastReload = now
				case err, ok := <-watcher.Errors:
					if !ok {
						continue
					}
					logger.Error("serve: watcher error", "error", err)
				}
			}
		},
	}

	cmd.Flags().StringVar(&auditDir, "audit-dir", defaultAuditDir(), "Directory for audit logs")
	cmd.Flags().StringVar(&mode, "mode", "enforce", "Mode: enforce | monitor")
	cmd.Flags().StringVar(&addr, "addr", defaultServeAddr, "Listen address")
	cmd.Flags().BoolVar(&enableMetrics, "metrics", false, "Enable Prometheus metrics endpoint on /metrics")

	return cmd
}

// guardReloader rebuilds the guard from the config file and swaps it into
// the server. The running guard is never mutated.
type guardReloader struct {
	configPath string
	logger     *slog.Logger
	sink       guard.AuditSink
	server     *proxy.Server
}

func (r *guardReloader) build(cfg *config.Config) *guard.Guard {
	gopts := []guard.Option{guard.WithLogger(r.logger)}
	if r.sink != nil {
		gopts = append(gopts, guard.WithAuditSink(r.sink))
	}
	if cfg.NotifyEnabled() {
		gopts = append(gopts, guard.WithNotifier(notify.NewNotifier(cfg.Notify.URL, cfg.Notify.Platform)))
	}
	return guard.New(cfg, gopts...)
}

// errConfigEmpty reports a zero-length config file seen mid-write.
var errConfigEmpty = errors.New("config file is empty")

// reload keeps the previous guard when the new config fails to load or the
// file is still empty.
func (r *guardReloader) reload() error {
	if info, err := os.Stat(r.configPath); err == nil && info.Size() == 0 {
		r.logger.Debug("serve: config file empty, waiting for content", "path", r.configPath)
		return errConfigEmpty
	}

	cfg, err := config.Load(r.configPath)
	if err != nil {
		metrics.RecordReload(false)
		r.logger.Error("serve: reload failed, keeping previous config", "error", err)
		return err
	}

	r.server.SetGuard(r.build(cfg))
	metrics.RecordReload(true)
	r.logger.Info("serve: config reloaded", "path", r.configPath)
	return nil
}

func isWriteEvent(event fsnotify.Event) bool {
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func samePath(a, b string) bool {
	return filepath.Clean(strings.TrimSpace(a)) == filepath.Clean(strings.TrimSpace(b))
}
