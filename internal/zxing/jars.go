package zxing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// The CLI needs three jars on its classpath. Versions are pinned; the
// parser depends on the 3.5.0 output format.
const (
	javaseJar     = "javase-3.5.0.jar"
	coreJar       = "core-3.5.0.jar"
	jcommanderJar = "jcommander-1.82.jar"
)

var jarURLs = map[string]string{
	javaseJar:     "https://repo1.maven.org/maven2/com/google/zxing/javase/3.5.0/javase-3.5.0.jar",
	coreJar:       "https://repo1.maven.org/maven2/com/google/zxing/core/3.5.0/core-3.5.0.jar",
	jcommanderJar: "https://repo1.maven.org/maven2/com/beust/jcommander/1.82/jcommander-1.82.jar",
}

func jarNames() []string {
	return []string{javaseJar, coreJar, jcommanderJar}
}

// EnsureJars downloads the CLI jars into dir when absent. Present files
// are trusted as-is, so a broken partial download has to be deleted by
// hand; downloads are staged through a temp file to keep that window
// small.
func EnsureJars(ctx context.Context, dir string) error {
	for _, name := range jarNames() {
		dest := filepath.Join(dir, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		if err := downloadFile(ctx, jarURLs[name], dest); err != nil {
			return fmt.Errorf("downloading %s: %w", name, err)
		}
	}
	return nil
}

func downloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), dest)
}
