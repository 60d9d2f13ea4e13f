package http_test

import (
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/safearchive"
	archivehttp "github.com/meigma/safearchive/http"
	"github.com/meigma/safearchive/internal/testutil"
)

func newServer(t *testing.T, dir string, opts ...safearchive.Option) *httptest.Server {
	t.Helper()
	opts = append([]safearchive.Option{
		safearchive.WithURLName("reports"),
		safearchive.WithIndexFile("index.html"),
		safearchive.WithSafeExtensions("html"),
	}, opts...)
	a, err := safearchive.New(context.Background(), dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	mux := nethttp.NewServeMux()
	archivehttp.NewHandler(a).Mount(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func noRedirectClient() *nethttp.Client {
	return &nethttp.Client{
		CheckRedirect: func(*nethttp.Request, []*nethttp.Request) error {
			return nethttp.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, url string) (*nethttp.Response, string) {
	t.Helper()
	resp, err := noRedirectClient().Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHandlerServeAndTamper(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, testutil.Tree{
		"report.html": "<html>report</html>",
		"data.bin":    "original",
	})
	srv := newServer(t, dir)

	resp, body := get(t, srv.URL+"/reports/report.html")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>report</html>", body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Empty(t, resp.Header.Get("Content-Security-Policy"))

	resp, body = get(t, srv.URL+"/reports/data.bin")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "original", body)
	assert.Equal(t, "8", resp.Header.Get("Content-Length"))
	assert.Equal(t, `inline; filename=data.bin`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
	lm, err := nethttp.ParseTime(resp.Header.Get("Last-Modified"))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), lm, time.Hour)
	assert.Empty(t, resp.Header.Get("Accept-Ranges"))

	testutil.Tamper(t, dir, "data.bin", "tampered")
	resp, _ = get(t, srv.URL+"/reports/data.bin")
	assert.Equal(t, nethttp.StatusForbidden, resp.StatusCode)
}

func TestHandlerTraversal(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	testutil.WriteTree(t, parent, testutil.Tree{
		"etc/passwd":         "root:x:0:0",
		"archive/data.bin":   "x",
		"archive/index.html": "<p/>",
	})
	a, err := safearchive.New(context.Background(), filepath.Join(parent, "archive"),
		safearchive.WithURLName("reports"))
	require.NoError(t, err)
	defer a.Close()

	// Call the handler directly so ServeMux path cleaning does not interfere.
	h := archivehttp.NewHandler(a)
	for _, p := range []string{
		"/reports/../../etc/passwd",
		"/reports/../etc/passwd",
		"/reports/%2e%2e/etc/passwd",
		"/reports/a/../../etc/passwd",
	} {
		req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
		req.URL.Path = p
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, nethttp.StatusNotFound, rec.Code, p)
	}
}

func TestHandlerNotFoundIndistinguishable(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	testutil.WriteTree(t, parent, testutil.Tree{
		"outside.bin":      "outside",
		"archive/data.bin": "inside",
	})
	a, err := safearchive.New(context.Background(), filepath.Join(parent, "archive"),
		safearchive.WithURLName("reports"))
	require.NoError(t, err)
	defer a.Close()
	testutil.WriteFile(t, filepath.Join(parent, "archive"), "secret.conf", "late")

	h := archivehttp.NewHandler(a)
	bodies := map[string]string{}
	for _, p := range []string{"/reports/../outside.bin", "/reports/missing.bin", "/reports/secret.conf"} {
		req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
		req.URL.Path = p
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, nethttp.StatusNotFound, rec.Code, p)
		bodies[p] = rec.Body.String()
	}
	assert.Equal(t, bodies["/reports/missing.bin"], bodies["/reports/../outside.bin"])
	assert.Equal(t, bodies["/reports/missing.bin"], bodies["/reports/secret.conf"])
}

func TestHandlerRedirect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "index.html", "<html>index</html>")
	srv := newServer(t, dir)

	resp, _ := get(t, srv.URL+"/reports/")
	assert.Equal(t, nethttp.StatusFound, resp.StatusCode)
	assert.Equal(t, "/reports/index.html", resp.Header.Get("Location"))

	// Following redirects ends at the index document.
	full, err := nethttp.Get(srv.URL + "/reports")
	require.NoError(t, err)
	defer full.Body.Close()
	body, err := io.ReadAll(full.Body)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, full.StatusCode)
	assert.Equal(t, "<html>index</html>", string(body))
}

func TestHandlerUnindexed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "data.bin", "x")
	srv := newServer(t, dir)

	testutil.WriteFile(t, dir, "secret.conf", "added later")
	resp, _ := get(t, srv.URL+"/reports/secret.conf")
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
}

func TestHandlerHead(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "data.bin", "0123456789")
	srv := newServer(t, dir)

	resp, err := nethttp.Head(srv.URL + "/reports/data.bin")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(10), resp.ContentLength)
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "data.bin", "x")
	srv := newServer(t, dir)

	resp, err := nethttp.Post(srv.URL+"/reports/data.bin", "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, nethttp.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, HEAD", resp.Header.Get("Allow"))
}

func TestHandlerOutsidePrefix(t *testing.T) {
	t.Parallel()

	a := fakeResolver{}
	h := archivehttp.NewHandler(a)
	assert.Equal(t, "/fake", h.Prefix())

	req := httptest.NewRequest(nethttp.MethodGet, "/fakeother/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)
}

func TestHandlerInternalError(t *testing.T) {
	t.Parallel()

	h := archivehttp.NewHandler(fakeResolver{err: safearchive.ErrAlgorithmUnavailable})
	req := httptest.NewRequest(nethttp.MethodGet, "/fake/data.bin", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, nethttp.StatusInternalServerError, rec.Code)
}

func TestHandlerCustomPrefix(t *testing.T) {
	t.Parallel()

	var seen []string
	h := archivehttp.NewHandler(fakeResolver{seen: &seen}, archivehttp.WithPrefix("/job/42/reports/"))
	assert.Equal(t, "/job/42/reports", h.Prefix())

	for _, p := range []string{"/job/42/reports", "/job/42/reports/", "/job/42/reports/a/b.bin"} {
		req := httptest.NewRequest(nethttp.MethodGet, p, nil)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, []string{"", "/", "/a/b.bin"}, seen)
}

type fakeResolver struct {
	err  error
	seen *[]string
}

func (f fakeResolver) Resolve(p string) (safearchive.Result, error) {
	if f.seen != nil {
		*f.seen = append(*f.seen, p)
	}
	if f.err != nil {
		return safearchive.Result{}, f.err
	}
	return safearchive.Result{Outcome: safearchive.OutcomeNotFound}, nil
}

func (fakeResolver) URLName() string { return "fake" }
