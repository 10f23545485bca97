package support

import (
	"fmt"
	"os"

	"github.com/cucumber/godog"
)

func (testCtx *TestContext) aCorruptImage(name string) error {
	p, err := testCtx.ensureParent(name)
	if err != nil {
		return err
	}
	// PNG signature followed by garbage.
	data := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("not really a png")...)
	return os.WriteFile(p, data, 0o600)
}

func (testCtx *TestContext) aConfigFileContaining(name string, body *godog.DocString) error {
	p, err := testCtx.ensureParent(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, []byte(body.Content), 0o600)
}

func (testCtx *TestContext) theExitCodeShouldBe(code int) error {
	if testCtx.LastExitCode != code {
		return fmt.Errorf("exit code is %d, want %d\nStderr: %s", testCtx.LastExitCode, code, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) stdoutShouldBeEmpty() error {
	if testCtx.LastOutput != "" {
		return fmt.Errorf("stdout is not empty: %s", testCtx.LastOutput)
	}
	return nil
}

// RegisterErrorSteps registers steps for failing inputs and exit codes.
func (testCtx *TestContext) RegisterErrorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImage)
	sc.Step(`^a config file "([^"]*)" containing:$`, testCtx.aConfigFileContaining)
	sc.Step(`^the exit code should be (\d+)$`, testCtx.theExitCodeShouldBe)
	sc.Step(`^stdout should be empty$`, testCtx.stdoutShouldBeEmpty)
}
