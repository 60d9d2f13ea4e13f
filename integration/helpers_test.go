//go:build integration

package integration

import (
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/meigma/safearchive"
	"github.com/meigma/safearchive/config"
	archivehttp "github.com/meigma/safearchive/http"
	"github.com/meigma/safearchive/metrics"
)

// stack is a running server built the same way the command builds one.
type stack struct {
	archives map[string]*safearchive.Archive
	server   *httptest.Server
	registry *prometheus.Registry
}

// startStack parses yamlConfig, indexes every archive and serves them.
func startStack(tb testing.TB, yamlConfig string) *stack {
	tb.Helper()

	cfg, err := config.Parse([]byte(yamlConfig))
	require.NoError(tb, err)

	reg := prometheus.NewRegistry()
	prom, err := metrics.NewProm("", reg)
	require.NoError(tb, err)

	s := &stack{archives: make(map[string]*safearchive.Archive), registry: reg}
	mux := http.NewServeMux()
	for _, ac := range cfg.Archives {
		a, err := safearchive.New(tb.Context(), ac.Root, append(ac.Options(), safearchive.WithMetrics(prom))...)
		require.NoError(tb, err)
		tb.Cleanup(func() { _ = a.Close() })
		s.archives[a.URLName()] = a
		archivehttp.NewHandler(a).Mount(mux)
	}
	mux.Handle("/metrics", metrics.Handler(reg))

	s.server = httptest.NewServer(mux)
	tb.Cleanup(s.server.Close)
	return s
}

// get fetches path without following redirects.
func (s *stack) get(tb testing.TB, path string) (int, []byte) {
	tb.Helper()
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(s.server.URL + path)
	require.NoError(tb, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(tb, err)
	return resp.StatusCode, body
}

// writeRandomTree creates count files of size bytes spread over dirs
// subdirectories and returns their relative paths.
func writeRandomTree(tb testing.TB, root string, count, dirs, size int) []string {
	tb.Helper()
	paths := make([]string, 0, count)
	for i := range count {
		rel := fmt.Sprintf("d%02d/sub/file%04d.bin", i%dirs, i)
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(tb, os.MkdirAll(filepath.Dir(full), 0o750))
		data := make([]byte, size)
		_, _ = rand.Read(data)
		require.NoError(tb, os.WriteFile(full, data, 0o600))
		paths = append(paths, rel)
	}
	return paths
}
