package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/safearchive"
	archivetest "github.com/meigma/safearchive/internal/testutil"
)

var _ safearchive.Metrics = (*Prom)(nil)

func TestPromObserve(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	p, err := NewProm("test", reg)
	require.NoError(t, err)

	p.ObserveIndex("reports", 3, 2, 1500*time.Millisecond)
	p.ObserveResolve("reports", "serve", "verified", 2*time.Millisecond)
	p.ObserveResolve("reports", "serve", "verified", time.Millisecond)
	p.ObserveResolve("reports", "forbidden", "mismatch", time.Millisecond)
	p.ObserveResolve("reports", "not_found", "unindexed", 0)

	assert.InDelta(t, 3, testutil.ToFloat64(p.indexedFiles.WithLabelValues("reports", "fingerprinted")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(p.indexedFiles.WithLabelValues("reports", "safe")), 0)
	assert.InDelta(t, 1.5, testutil.ToFloat64(p.indexDuration.WithLabelValues("reports")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(p.indexRuns.WithLabelValues("reports")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(p.resolves.WithLabelValues("reports", "serve", "verified")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.resolves.WithLabelValues("reports", "forbidden", "mismatch")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.resolves.WithLabelValues("reports", "not_found", "unindexed")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(p.verifyDuration))
}

func TestPromDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewProm("", reg)
	require.NoError(t, err)
	_, err = NewProm("", reg)
	assert.Error(t, err)
}

func TestPromWithArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivetest.WriteTree(t, dir, archivetest.Tree{"data.bin": "x", "index.html": "<p/>"})

	reg := prometheus.NewRegistry()
	p, err := NewProm("", reg)
	require.NoError(t, err)

	a, err := safearchive.New(context.Background(), dir,
		safearchive.WithURLName("reports"),
		safearchive.WithSafeExtensions("html"),
		safearchive.WithMetrics(p))
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Resolve("/data.bin")
	require.NoError(t, err)
	require.NoError(t, res.File.Close())

	assert.InDelta(t, 1, testutil.ToFloat64(p.indexedFiles.WithLabelValues("reports", "fingerprinted")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.resolves.WithLabelValues("reports", "serve", "verified")), 0)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `safearchive_resolves_total{archive="reports",outcome="serve",reason="verified"} 1`))
}
