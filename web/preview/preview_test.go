package preview

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func testArchive(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"README.md":                   "# Home Page\n\nAll Categories:\n* [Plaza](http://localhost/archive/plaza/plaza)\n",
		"plaza/plaza.md":              "# Plaza\n\nAll Locations:\n",
		"plaza/11.html":               "<p>grand hall</p>",
		"plaza/11/111.html":           "<p>a thread</p>",
		"plaza/media/image.png":       "png",
		"rooms/rooms.md":              "# Rooms\n",
		"rooms/rooms.html":            "<p>rendered rooms</p>",
		"rooms/21.html":               "<p>room one</p>",
		"rooms/nested/index.html":     "<p>nested index</p>",
		"rooms/nested/other.html":     "<p>other</p>",
		"rooms/nested/README.md":      "# ignored\n",
		"rooms/readme-only/README.md": "# Readme only\n",
	}

	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

type response struct {
	Code   int
	Body   string
	Header http.Header
}

// get requests path from a test server running h. Redirects are not followed.
func get(t *testing.T, h http.Handler, path string) response {
	t.Helper()

	srv := httptest.NewServer(h)
	defer srv.Close()

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return response{Code: resp.StatusCode, Body: string(b), Header: resp.Header}
}

func TestServer(t *testing.T) {
	s := &Server{Root: testArchive(t), Prefix: "archive", Log: zap.NewNop().Sugar()}
	h := s.Handler()

	testCases := []struct {
		name     string
		path     string
		code     int
		contains string
		location string
	}{
		{"root redirects to prefix", "/", http.StatusFound, "", "/archive/"},
		{"prefix without slash", "/archive", http.StatusMovedPermanently, "", "/archive/"},
		{"home index is rendered", "/archive/", http.StatusOK, "Home Page", ""},
		{"category index without extension", "/archive/plaza/plaza", http.StatusOK, "<title>Plaza</title>", ""},
		{"rendered category index is preferred", "/archive/rooms/rooms", http.StatusOK, "rendered rooms", ""},
		{"channel page", "/archive/plaza/11.html", http.StatusOK, "grand hall", ""},
		{"thread page", "/archive/plaza/11/111.html", http.StatusOK, "a thread", ""},
		{"media", "/archive/plaza/media/image.png", http.StatusOK, "png", ""},
		{"markdown file", "/archive/plaza/plaza.md", http.StatusOK, "<title>Plaza</title>", ""},
		{"directory index.html", "/archive/rooms/nested/", http.StatusOK, "nested index", ""},
		{"directory readme", "/archive/rooms/readme-only/", http.StatusOK, "Readme only", ""},
		{"html extension is optional", "/archive/rooms/nested/other", http.StatusOK, "other", ""},
		{"missing", "/archive/plaza/12.html", http.StatusNotFound, "", ""},
		{"outside of prefix", "/other/README.md", http.StatusNotFound, "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(t, h, tc.path)
			assert.Equal(t, tc.code, w.Code)
			if tc.contains != "" {
				assert.Contains(t, w.Body, tc.contains)
			}
			if tc.location != "" {
				assert.Equal(t, tc.location, w.Header.Get("Location"))
			}
		})
	}
}

func TestServerNoPrefix(t *testing.T) {
	s := &Server{Root: testArchive(t), Log: zap.NewNop().Sugar()}
	h := s.Handler()

	w := get(t, h, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body, "Home Page")

	w = get(t, h, "/plaza/plaza")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body, "Plaza")
}

func TestServerTraversal(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "archive")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.html"), []byte("secret"), 0o644))

	s := &Server{Root: root, Log: zap.NewNop().Sugar()}

	w := get(t, s.Handler(), "/../secret.html")
	assert.NotContains(t, w.Body, "secret")

	w = get(t, s.Handler(), "/%2e%2e/secret.html")
	assert.NotContains(t, w.Body, "secret")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Season 2 - Plaza", title("# Season 2 - Plaza\n\nAll Locations:\n"))
	assert.Equal(t, "Home Page", title("intro\n# Home Page\n"))
	assert.Equal(t, "Archive", title("no heading"))
}

func TestListenAndServeShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := &Server{Root: testArchive(t), Prefix: "archive", Log: zap.NewNop().Sugar()}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe(ctx, "127.0.0.1:0")
	}()

	cancel()
	require.NoError(t, <-errCh)
}
