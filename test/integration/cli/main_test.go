package cli_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"

	"github.com/dhjs0000/QERC/internal/testutil"
	"github.com/dhjs0000/QERC/test/integration/cli/support"
)

// featureOpts is filled from -godog.* flags, e.g.
// go test ./test/integration/cli -godog.tags=@server -godog.format=progress
var featureOpts = godog.Options{
	Format: "pretty",
	Strict: true,
}

func init() {
	godog.BindCommandLineFlags("godog.", &featureOpts)
}

// initializeScenario gives every scenario its own working directory and
// server state, torn down when the scenario ends.
func initializeScenario(sc *godog.ScenarioContext) {
	tc, err := support.NewTestContext()
	if err != nil {
		panic(fmt.Sprintf("create scenario context: %v", err))
	}

	tc.RegisterCommonSteps(sc)
	tc.RegisterImageSteps(sc)
	tc.RegisterPDFSteps(sc)
	tc.RegisterServerSteps(sc)
	tc.RegisterErrorSteps(sc)

	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if err := tc.Cleanup(); err != nil {
			fmt.Fprintf(os.Stderr, "scenario cleanup: %v\n", err)
		}
		return ctx, nil
	})
}

func TestFeatures(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the qerc binary end to end")
	}

	features, err := filepath.Glob(filepath.Join("features", "*.feature"))
	if err != nil {
		t.Fatal(err)
	}
	if len(features) == 0 {
		t.Fatal("no feature files under features/")
	}

	for _, path := range features {
		t.Run(filepath.Base(path), func(t *testing.T) {
			opts := featureOpts
			opts.Paths = []string{path}
			opts.TestingT = t

			status := godog.TestSuite{
				Name:                filepath.Base(path),
				ScenarioInitializer: initializeScenario,
				Options:             &opts,
			}.Run()
			if status != 0 {
				t.Fatalf("%s: godog exit status %d", path, status)
			}
		})
	}
}

// TestMain compiles qerc into a scratch directory so scenarios never run a
// stale binary. QERC_BIN points at a prebuilt binary instead.
func TestMain(m *testing.M) {
	flag.Parse()

	bin := os.Getenv("QERC_BIN")
	scratch := ""
	if bin == "" {
		var err error
		scratch, err = os.MkdirTemp("", "qerc-bin-*")
		if err != nil {
			fmt.Fprintf(os.Stderr, "create bin dir: %v\n", err)
			os.Exit(1)
		}
		bin = filepath.Join(scratch, "qerc")
		if err := buildQERC(bin); err != nil {
			fmt.Fprintln(os.Stderr, err)
			_ = os.RemoveAll(scratch)
			os.Exit(1)
		}
		_ = os.Setenv("QERC_BIN", bin)
	}
	_ = os.Setenv("PATH", filepath.Dir(bin)+string(os.PathListSeparator)+os.Getenv("PATH"))

	code := m.Run()
	if scratch != "" {
		_ = os.RemoveAll(scratch)
	}
	os.Exit(code)
}

func buildQERC(out string) error {
	root, err := testutil.GetProjectRootValidated()
	if err != nil {
		return fmt.Errorf("locate project root: %w", err)
	}
	cmd := exec.CommandContext(context.Background(), "go", "build", "-o", out, "./cmd/qerc")
	cmd.Dir = root
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("build qerc: %w\n%s", err, output)
	}
	return nil
}
