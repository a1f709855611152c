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
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/peg/variantguard/internal/config"
	"github.com/peg/variantguard/internal/proxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWriteEvent(t *testing.T) {
	tests := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{"write", fsnotify.Write, true},
		{"create", fsnotify.Create, true},
		{"remove", fsnotify.Remove, false},
		{"rename", fsnotify.Rename, false},
		{"chmod", fsnotify.Chmod, false},
		{"write+create", fsnotify.Write | fsnotify.Create, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := fsnotify.Event{Name: "variantguard.yaml", Op: tt.op}
			assert.Equal(t, tt.want, isWriteEvent(e))
		})
	}
}

func TestSamePath(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"/foo/bar", "/foo/bar", true},
		{"/foo/bar/", "/foo/bar", true},
		{"/foo//bar", "/foo/bar", true},
		{"/foo/bar", "/foo/baz", false},
		{" /foo/bar ", "/foo/bar", true},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, samePath(tt.a, tt.b))
		})
	}
}

func TestGuardReloader(t *testing.T) {
	configPath := writeConfig(t, "version: \"1\"\n")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := &guardReloader{configPath: configPath, logger: logger}
	srv := proxy.New(r.build(config.Default()), proxy.WithLogger(logger))
	r.server = srv

	ts := newTestHTTPServer(t, srv)
	body := `{"tool":"write","args":{"filePath":"plan_draft.md"}}`
	assert.Equal(t, http.StatusOK, postJSON(t, ts+"/v1/tool-call", body))

	require.NoError(t, os.WriteFile(configPath, []byte("variants:\n  extra_tokens: [draft]\n"), 0o644))
	require.NoError(t, r.reload())
	assert.Equal(t, http.StatusForbidden, postJSON(t, ts+"/v1/tool-call", body))

	require.NoError(t, os.WriteFile(configPath, nil, 0o644))
	require.ErrorIs(t, r.reload(), errConfigEmpty)
	assert.Equal(t, http.StatusForbidden, postJSON(t, ts+"/v1/tool-call", body), "truncated config keeps previous guard")

	require.NoError(t, os.WriteFile(configPath, []byte("version: \"9\"\n"), 0o644))
	require.Error(t, r.reload())
	assert.Equal(t, http.StatusForbidden, postJSON(t, ts+"/v1/tool-call", body), "bad config keeps previous guard")
}

func TestServeCommand(t *testing.T) {
	configPath := writeConfig(t, "version: \"1\"\n")

	addrCh := make(chan string, 1)
	deps := &serveDeps{
		listen: func(network, _ string) (net.Listener, error) {
			l, err := net.Listen(network, "127.0.0.1:0")
			if err == nil {
				addrCh <- l.Addr().String()
			}
			return l, err
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newServeCmd(&rootOptions{configPath: configPath}, deps)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--audit-dir", t.TempDir(), "--metrics"})

	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not start")
	}
	base := "http://" + addr

	assert.Equal(t, http.StatusForbidden, postJSON(t, base+"/v1/tool-call", `{"tool":"write","args":{"filePath":"x_v2.go"}}`))
	assert.Equal(t, http.StatusOK, postJSON(t, base+"/v1/tool-call", `{"tool":"write","args":{"filePath":"x.go"}}`))

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "variantguard_decisions_total"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestServeCommand_InvalidMode(t *testing.T) {
	_, _, err := runCLI(t, "serve", "--mode", "disabled")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
}

func newTestHTTPServer(t *testing.T, srv *proxy.Server) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return "http://" + l.Addr().String()
}

func postJSON(t *testing.T, url, body string) int {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}
