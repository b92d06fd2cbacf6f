package cli_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/bargo/internal/testutil"
	"github.com/MeKo-Tech/bargo/test/integration/cli/support"
)

// InitializeScenario wires the step definitions. godog calls this for
// every scenario, so each one gets a fresh context and temp dir.
func InitializeScenario(sc *godog.ScenarioContext) {
	testCtx, err := support.NewTestContext()
	if err != nil {
		panic(fmt.Sprintf("failed to create test context: %v", err))
	}

	support.RegisterCommonSteps(sc, testCtx)
	support.RegisterDecodeSteps(sc, testCtx)
	support.RegisterErrorSteps(sc, testCtx)
	support.RegisterServerSteps(sc, testCtx)
	support.RegisterPDFSteps(sc, testCtx)

	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if cleanupErr := testCtx.Cleanup(); cleanupErr != nil {
			fmt.Fprintf(os.Stderr, "Cleanup error: %v\n", cleanupErr)
		}
		return ctx, nil
	})
}

// TestFeatures runs each feature file as its own subtest.
func TestFeatures(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "pretty"
	}
	tags := os.Getenv("GODOG_TAGS")

	entries, err := os.ReadDir("features")
	if err != nil {
		t.Fatalf("failed to read features directory: %v", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".feature" {
			continue
		}

		featurePath := filepath.Join("features", entry.Name())
		t.Run(entry.Name(), func(t *testing.T) {
			suite := godog.TestSuite{
				ScenarioInitializer: InitializeScenario,
				Options: &godog.Options{
					Format:   format,
					Tags:     tags,
					Paths:    []string{featurePath},
					TestingT: t,
					Strict:   true,
				},
			}

			if suite.Run() != 0 {
				t.Fatalf("feature %s failed", entry.Name())
			}
		})
	}
}

// TestMain builds the CLI binary once so scenarios can exec it.
func TestMain(m *testing.M) {
	root, err := testutil.GetProjectRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to locate project root: %v\n", err)
		os.Exit(1)
	}

	binName := "bargo"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	binPath := filepath.Join(root, "bin", binName)

	if _, err := os.Stat(binPath); os.IsNotExist(err) {
		fmt.Printf("Building CLI binary at %s...\n", binPath)

		build := exec.Command("go", "build", "-o", binPath, "./cmd/bargo")
		build.Dir = root
		build.Stdout = os.Stdout
		build.Stderr = os.Stderr

		if err := build.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build CLI binary: %v\n", err)
			os.Exit(1)
		}
	}

	if err := os.Setenv("BARGO_BIN", binPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set BARGO_BIN: %v\n", err)
		os.Exit(1)
	}
	if err := os.Setenv("PATH", filepath.Dir(binPath)+string(os.PathListSeparator)+os.Getenv("PATH")); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to extend PATH: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}
