package zxing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bargo/internal/barcode"
)

// writeFakeTool creates a shell script standing in for the container
// binary, so the runner is tested without docker or network access.
func writeFakeTool(t *testing.T, dir, stdout string, exitCode int) string {
	t.Helper()

	script := fmt.Sprintf("#!/bin/sh\ncat <<'FAKE_EOF'\n%sFAKE_EOF\nexit %d\n", stdout, exitCode)
	path := filepath.Join(dir, "fake-zxing")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755)) //nolint:gosec // G306: Test script must be executable
	return path
}

func writeFakeJars(t *testing.T, dir string) {
	t.Helper()

	for _, name := range jarNames() {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("jar"), 0o600))
	}
}

func TestRunnerDecodeParsesToolOutput(t *testing.T) {
	workdir := t.TempDir()
	writeFakeJars(t, workdir)
	tool := writeFakeTool(t, workdir, qrOutput, 0)

	imagePath := filepath.Join(workdir, "img.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("not really a png"), 0o600))

	runner := &Runner{ContainerTool: tool, Image: DefaultImage, Workdir: workdir}
	results, err := runner.Decode(context.Background(), imagePath, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/item/42", results[0].Payload)
	assert.Equal(t, Engine, results[0].Engine)
}

func TestRunnerDecodeStagesOutsideImage(t *testing.T) {
	workdir := t.TempDir()
	writeFakeJars(t, workdir)
	tool := writeFakeTool(t, workdir, qrOutput, 0)

	otherDir := t.TempDir()
	imagePath := filepath.Join(otherDir, "elsewhere.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("bytes"), 0o600))

	runner := &Runner{ContainerTool: tool, Workdir: workdir}
	_, err := runner.Decode(context.Background(), imagePath, Options{})
	require.NoError(t, err)

	// The staged copy is cleaned up after the run.
	entries, err := os.ReadDir(workdir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), "zxing-", "staged temp file left behind")
	}
}

// Every way the external path can fail must come back as the same
// error type; callers are not supposed to tell a broken tool from a
// clean "nothing found".
func TestRunnerFailuresConflate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(t *testing.T, workdir string) *Runner
	}{
		{
			name: "tool reports no barcode",
			setup: func(t *testing.T, workdir string) *Runner {
				t.Helper()
				tool := writeFakeTool(t, workdir, "file:/app/img.png: No barcode found\n", 0)
				return &Runner{ContainerTool: tool, Workdir: workdir}
			},
		},
		{
			name: "tool exits non-zero",
			setup: func(t *testing.T, workdir string) *Runner {
				t.Helper()
				tool := writeFakeTool(t, workdir, "", 125)
				return &Runner{ContainerTool: tool, Workdir: workdir}
			},
		},
		{
			name: "tool binary missing",
			setup: func(t *testing.T, workdir string) *Runner {
				t.Helper()
				return &Runner{ContainerTool: filepath.Join(workdir, "no-such-tool"), Workdir: workdir}
			},
		},
		{
			name: "tool prints garbage",
			setup: func(t *testing.T, workdir string) *Runner {
				t.Helper()
				tool := writeFakeTool(t, workdir, "Unable to find image 'openjdk:17' locally\n", 0)
				return &Runner{ContainerTool: tool, Workdir: workdir}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workdir := t.TempDir()
			writeFakeJars(t, workdir)
			runner := tt.setup(t, workdir)

			imagePath := filepath.Join(workdir, "img.png")
			require.NoError(t, os.WriteFile(imagePath, []byte("bytes"), 0o600))

			results, err := runner.Decode(ctx, imagePath, Options{})
			assert.Nil(t, results)
			require.Error(t, err)

			var toolErr *ToolError
			require.ErrorAs(t, err, &toolErr)
			assert.True(t, IsToolError(err))
		})
	}
}

func TestRunnerDecodeCanceledContext(t *testing.T) {
	workdir := t.TempDir()
	writeFakeJars(t, workdir)
	tool := writeFakeTool(t, workdir, qrOutput, 0)

	imagePath := filepath.Join(workdir, "img.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("bytes"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &Runner{ContainerTool: tool, Workdir: workdir}
	_, err := runner.Decode(ctx, imagePath, Options{})
	require.Error(t, err)
	assert.True(t, IsToolError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCommandArgs(t *testing.T) {
	runner := NewRunner()

	args := runner.commandArgs("/work", "code.png", Options{
		TryHarder:   true,
		PureBarcode: true,
		Formats:     []barcode.Format{barcode.FormatPDF417, barcode.FormatMaxiCode},
	})

	want := []string{
		"run", "--rm",
		"-v", "/work:/app",
		"openjdk:17",
		"java", "-cp",
		"/app/javase-3.5.0.jar:/app/core-3.5.0.jar:/app/jcommander-1.82.jar",
		"com.google.zxing.client.j2se.CommandLineRunner",
		"--try_harder",
		"--pure_barcode",
		"--possible_formats=PDF_417",
		"--possible_formats=MAXICODE",
		"/app/code.png",
	}
	assert.Equal(t, want, args)
}

func TestCommandArgsMinimal(t *testing.T) {
	runner := &Runner{}

	args := runner.commandArgs("/work", "img.png", Options{})
	assert.Equal(t, "run", args[0])
	assert.Contains(t, args, DefaultImage)
	assert.NotContains(t, args, "--try_harder")
	assert.NotContains(t, args, "--pure_barcode")
	assert.Equal(t, "/app/img.png", args[len(args)-1])
}

func TestStageInput(t *testing.T) {
	workdir := t.TempDir()

	t.Run("file already in workdir", func(t *testing.T) {
		imagePath := filepath.Join(workdir, "native.png")
		require.NoError(t, os.WriteFile(imagePath, []byte("bytes"), 0o600))

		base, cleanup, err := stageInput(imagePath, workdir)
		require.NoError(t, err)
		assert.Equal(t, "native.png", base)

		cleanup()
		assert.FileExists(t, imagePath, "in-place input must survive cleanup")
	})

	t.Run("file copied in and removed", func(t *testing.T) {
		otherDir := t.TempDir()
		imagePath := filepath.Join(otherDir, "outside.png")
		require.NoError(t, os.WriteFile(imagePath, []byte("bytes"), 0o600))

		base, cleanup, err := stageInput(imagePath, workdir)
		require.NoError(t, err)
		staged := filepath.Join(workdir, base)
		assert.FileExists(t, staged)

		data, err := os.ReadFile(staged) //nolint:gosec // G304: Reading test-controlled path
		require.NoError(t, err)
		assert.Equal(t, []byte("bytes"), data)

		cleanup()
		assert.NoFileExists(t, staged)
	})

	t.Run("missing source", func(t *testing.T) {
		_, _, err := stageInput(filepath.Join(t.TempDir(), "gone.png"), workdir)
		require.Error(t, err)
	})
}

func TestZXingFormatNames(t *testing.T) {
	name, ok := zxingFormatName(barcode.FormatPDF417)
	require.True(t, ok)
	assert.Equal(t, "PDF_417", name)

	_, ok = zxingFormatName(barcode.FormatUnknown)
	assert.False(t, ok)

	// Every decodable symbology must map to a CLI name.
	for _, f := range barcode.AllFormats() {
		_, ok := zxingFormatName(f)
		assert.True(t, ok, "missing CLI name for %s", f)
	}
}

func TestIsToolError(t *testing.T) {
	assert.True(t, IsToolError(&ToolError{Msg: "x"}))
	assert.True(t, IsToolError(fmt.Errorf("wrapped: %w", &ToolError{Msg: "x"})))
	assert.False(t, IsToolError(os.ErrNotExist))
	assert.False(t, IsToolError(nil))
}

func TestToolErrorMessages(t *testing.T) {
	assert.Equal(t, "zxing tool failed", (&ToolError{}).Error())
	assert.Equal(t, "zxing tool: no barcode found", (&ToolError{Msg: "no barcode found"}).Error())
	assert.Contains(t, (&ToolError{Msg: "pull failed", Err: os.ErrPermission}).Error(), "pull failed")
}
