package zxing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overrideJarURLs points every jar at the given base URL for the
// duration of the test.
func overrideJarURLs(t *testing.T, base string) {
	t.Helper()

	saved := jarURLs
	jarURLs = make(map[string]string, len(saved))
	for name := range saved {
		jarURLs[name] = base + "/" + name
	}
	t.Cleanup(func() { jarURLs = saved })
}

func TestEnsureJarsSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	writeFakeJars(t, dir)

	// An unreachable URL proves nothing is fetched when files exist.
	overrideJarURLs(t, "http://127.0.0.1:1")

	require.NoError(t, EnsureJars(context.Background(), dir))
}

func TestEnsureJarsDownloadsMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jar-bytes:" + filepath.Base(r.URL.Path)))
	}))
	defer server.Close()
	overrideJarURLs(t, server.URL)

	dir := t.TempDir()
	require.NoError(t, EnsureJars(context.Background(), dir))

	for _, name := range jarNames() {
		data, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // G304: Reading test-controlled path
		require.NoError(t, err)
		assert.Equal(t, "jar-bytes:"+name, string(data))
	}

	// No staged temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(jarNames()))
}

func TestEnsureJarsPartialSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("downloaded"))
	}))
	defer server.Close()
	overrideJarURLs(t, server.URL)

	dir := t.TempDir()
	existing := filepath.Join(dir, coreJar)
	require.NoError(t, os.WriteFile(existing, []byte("local"), 0o600))

	require.NoError(t, EnsureJars(context.Background(), dir))

	// The pre-existing jar is trusted, not re-fetched.
	data, err := os.ReadFile(existing) //nolint:gosec // G304: Reading test-controlled path
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))

	data, err = os.ReadFile(filepath.Join(dir, javaseJar)) //nolint:gosec // G304: Reading test-controlled path
	require.NoError(t, err)
	assert.Equal(t, "downloaded", string(data))
}

func TestEnsureJarsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()
	overrideJarURLs(t, server.URL)

	err := EnsureJars(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestEnsureJarsCanceledContext(t *testing.T) {
	overrideJarURLs(t, "http://127.0.0.1:1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := EnsureJars(ctx, t.TempDir())
	require.Error(t, err)
}
