package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// GetProjectRoot returns the repository root by walking up from this
// file until a go.mod is found.
func GetProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	dir := filepath.Dir(filename)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find go.mod starting from %s", filepath.Dir(filename))
}

// GetTestDataDir returns the path to the testdata directory.
func GetTestDataDir(t *testing.T) string {
	t.Helper()

	root, err := GetProjectRoot()
	require.NoError(t, err, "Failed to find project root")

	return filepath.Join(root, "testdata")
}

// GetTestImageDir returns the path to a test image category directory,
// e.g. "clean", "degraded" or "rotated".
func GetTestImageDir(t *testing.T, category string) string {
	t.Helper()

	return filepath.Join(GetTestDataDir(t), "images", category)
}

// GetFixturesDir returns the path to the decode fixtures directory.
func GetFixturesDir(t *testing.T) string {
	t.Helper()

	return filepath.Join(GetTestDataDir(t), "fixtures")
}

// GetTestImagePath returns the path of a file under testdata/images.
func GetTestImagePath(t *testing.T, filename string) string {
	t.Helper()

	return filepath.Join(GetTestDataDir(t), "images", filename)
}

// CreateTempDir creates a temporary directory for testing.
func CreateTempDir(t *testing.T) string {
	t.Helper()

	return t.TempDir()
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// DirExists checks if a directory exists.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return !os.IsNotExist(err) && info.IsDir()
}
