// Package zxing invokes the upstream ZXing Java CLI inside a container.
//
// This is the fallback decode engine for symbologies the library port
// cannot handle, MaxiCode in particular. The CLI is a text protocol: the
// runner stages the input image into a mounted work directory, runs
// com.google.zxing.client.j2se.CommandLineRunner and parses its stdout.
package zxing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/bargo/internal/barcode"
)

// Engine names the external decode engine in results and attempt trails.
const Engine = "zxing"

const (
	// DefaultContainerTool runs the CLI without a local Java install.
	DefaultContainerTool = "docker"
	// DefaultImage is the Java runtime image the jars are executed in.
	DefaultImage = "openjdk:17"

	mountPoint  = "/app"
	runnerClass = "com.google.zxing.client.j2se.CommandLineRunner"
)

// ToolError is the single failure type of the external engine. A missing
// container runtime, a failed image pull, a non-zero exit, unreadable
// output and a plain "no barcode found" all surface as this one type;
// callers cannot tell them apart. That matches the CLI contract, which
// reports every failure the same way on stdout.
type ToolError struct {
	Msg string
	Err error
}

func (e *ToolError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("zxing tool: %s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return "zxing tool: " + e.Msg
	case e.Err != nil:
		return fmt.Sprintf("zxing tool: %v", e.Err)
	}
	return "zxing tool failed"
}

func (e *ToolError) Unwrap() error { return e.Err }

// Options controls a single CLI invocation.
type Options struct {
	TryHarder   bool
	PureBarcode bool
	Formats     []barcode.Format // restricts decoding via --possible_formats
}

// DefaultOptions mirrors how the CLI has always been driven here: spend
// the extra time and assume the input is a prepared barcode image, not
// a photo.
func DefaultOptions() Options {
	return Options{TryHarder: true, PureBarcode: true}
}

// Runner invokes the ZXing CLI in a container.
type Runner struct {
	ContainerTool string        // container binary, default "docker"
	Image         string        // Java runtime image, default "openjdk:17"
	Workdir       string        // host dir mounted at /app, default CWD; jars and inputs live here
	Timeout       time.Duration // per-invocation limit, 0 means none
}

// NewRunner returns a Runner with the standard container setup.
func NewRunner() *Runner {
	return &Runner{
		ContainerTool: DefaultContainerTool,
		Image:         DefaultImage,
	}
}

// Decode runs the CLI against the image file and returns the decoded
// symbols. Any failure, including "no barcode in this image", comes back
// as a *ToolError.
func (r *Runner) Decode(ctx context.Context, imagePath string, opts Options) ([]barcode.Result, error) {
	workdir, err := r.resolveWorkdir()
	if err != nil {
		return nil, &ToolError{Msg: "resolving work directory", Err: err}
	}

	if err := EnsureJars(ctx, workdir); err != nil {
		return nil, &ToolError{Msg: "fetching zxing jars", Err: err}
	}

	baseName, cleanup, err := stageInput(imagePath, workdir)
	if err != nil {
		return nil, &ToolError{Msg: "staging input image", Err: err}
	}
	defer cleanup()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	tool := r.ContainerTool
	if tool == "" {
		tool = DefaultContainerTool
	}

	//nolint:gosec // G204: Container tool and image are operator configuration.
	cmd := exec.CommandContext(ctx, tool, r.commandArgs(workdir, baseName, opts)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ToolError{Msg: truncate(strings.TrimSpace(stderr.String()), 300), Err: err}
	}

	return parseOutput(stdout.String())
}

// Name identifies the engine in attempt trails.
func (r *Runner) Name() string { return Engine }

func (r *Runner) resolveWorkdir() (string, error) {
	workdir := r.Workdir
	if workdir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		workdir = wd
	}
	return filepath.Abs(workdir)
}

// commandArgs builds the docker invocation. The work directory is
// mounted at /app, so jar and image paths inside the container are
// fixed.
func (r *Runner) commandArgs(workdir, baseName string, opts Options) []string {
	image := r.Image
	if image == "" {
		image = DefaultImage
	}
	classpath := strings.Join([]string{
		path.Join(mountPoint, javaseJar),
		path.Join(mountPoint, coreJar),
		path.Join(mountPoint, jcommanderJar),
	}, ":")

	args := []string{
		"run", "--rm",
		"-v", workdir + ":" + mountPoint,
		image,
		"java", "-cp", classpath, runnerClass,
	}
	if opts.TryHarder {
		args = append(args, "--try_harder")
	}
	if opts.PureBarcode {
		args = append(args, "--pure_barcode")
	}
	for _, f := range opts.Formats {
		if name, ok := zxingFormatName(f); ok {
			args = append(args, "--possible_formats="+name)
		}
	}
	return append(args, path.Join(mountPoint, baseName))
}

// stageInput makes the image visible under the mount. Files already in
// the work directory are used in place; everything else is copied in
// under a temporary name and removed by the returned cleanup.
func stageInput(imagePath, workdir string) (string, func(), error) {
	absImage, err := filepath.Abs(imagePath)
	if err != nil {
		return "", nil, err
	}
	if filepath.Dir(absImage) == workdir {
		return filepath.Base(absImage), func() {}, nil
	}

	src, err := os.Open(absImage) //nolint:gosec // G304: Opening user-provided image file is expected
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.CreateTemp(workdir, "zxing-*"+filepath.Ext(absImage))
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", nil, err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", nil, err
	}

	staged := dst.Name()
	return filepath.Base(staged), func() { _ = os.Remove(staged) }, nil
}

// zxingFormatName maps a symbology to the upstream BarcodeFormat enum
// name the CLI expects.
func zxingFormatName(f barcode.Format) (string, bool) {
	switch f {
	case barcode.FormatQR:
		return "QR_CODE", true
	case barcode.FormatDataMatrix:
		return "DATA_MATRIX", true
	case barcode.FormatAztec:
		return "AZTEC", true
	case barcode.FormatPDF417:
		return "PDF_417", true
	case barcode.FormatMaxiCode:
		return "MAXICODE", true
	case barcode.FormatCode128:
		return "CODE_128", true
	case barcode.FormatCode39:
		return "CODE_39", true
	case barcode.FormatEAN8:
		return "EAN_8", true
	case barcode.FormatEAN13:
		return "EAN_13", true
	case barcode.FormatUPCA:
		return "UPC_A", true
	case barcode.FormatUPCE:
		return "UPC_E", true
	case barcode.FormatITF:
		return "ITF", true
	case barcode.FormatCodabar:
		return "CODABAR", true
	case barcode.FormatUnknown:
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// IsToolError reports whether err is the external engine's conflated
// failure. The pipeline treats these as "this variant found nothing"
// and moves on.
func IsToolError(err error) bool {
	var te *ToolError
	return errors.As(err, &te)
}
