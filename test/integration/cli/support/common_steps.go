package support

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// commandTimeout bounds every CLI invocation.
const commandTimeout = 60 * time.Second

// qercBinary returns the binary built by TestMain, falling back to PATH.
func qercBinary() string {
	if bin := os.Getenv("QERC_BIN"); bin != "" {
		return bin
	}
	return "qerc"
}

// commandArgs splits a step command into argv, resolving "qerc" to the
// built binary.
func commandArgs(command string) ([]string, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New("empty command")
	}
	if parts[0] == "qerc" {
		parts[0] = qercBinary()
	}
	return parts, nil
}

// iRunCommand executes a command and stores stdout, stderr and exit code.
func (testCtx *TestContext) iRunCommand(command string) error {
	parts, err := commandArgs(command)
	if err != nil {
		return err
	}

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()

	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	testCtx.LastExitCode = 0
	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	}
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nStdout: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) stderrShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastStderr, expectedText) {
		return fmt.Errorf("stderr does not contain '%s'\nActual stderr: %s", expectedText, testCtx.LastStderr)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies stdout is exactly one JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(testCtx.LastOutput)), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBeValidCSV verifies stdout parses as CSV with a header row.
func (testCtx *TestContext) theOutputShouldBeValidCSV() error {
	records, err := csv.NewReader(strings.NewReader(testCtx.LastOutput)).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not valid CSV: %w", err)
	}
	if len(records) == 0 {
		return errors.New("CSV output is empty")
	}
	return nil
}

// theCSVShouldHaveHeader checks the first CSV row.
func (testCtx *TestContext) theCSVShouldHaveHeader(header string) error {
	records, err := csv.NewReader(strings.NewReader(testCtx.LastOutput)).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not valid CSV: %w", err)
	}
	if len(records) == 0 {
		return errors.New("CSV output is empty")
	}
	if got := strings.Join(records[0], ","); got != header {
		return fmt.Errorf("CSV header is %q, want %q", got, header)
	}
	return nil
}

// theCSVShouldHaveRows counts data rows below the header.
func (testCtx *TestContext) theCSVShouldHaveRows(n int) error {
	records, err := csv.NewReader(strings.NewReader(testCtx.LastOutput)).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not valid CSV: %w", err)
	}
	if got := len(records) - 1; got != n {
		return fmt.Errorf("CSV has %d data rows, want %d\nOutput: %s", got, n, testCtx.LastOutput)
	}
	return nil
}

// theErrorShouldMention checks stderr and the exit error, case-insensitively.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil && testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}

	fullErrorText := testCtx.LastStderr + " " + testCtx.LastOutput
	if testCtx.LastError != nil {
		fullErrorText += " " + testCtx.LastError.Error()
	}
	if !strings.Contains(strings.ToLower(fullErrorText), strings.ToLower(errorText)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", errorText, fullErrorText)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(filename string) error {
	if _, err := os.Stat(testCtx.path(filename)); err != nil {
		return fmt.Errorf("file %s does not exist: %w", filename, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(filename string) error {
	if _, err := os.Stat(testCtx.path(filename)); err == nil {
		return fmt.Errorf("file %s exists but should not", filename)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(filename, expectedContent string) error {
	data, err := os.ReadFile(testCtx.path(filename))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if !strings.Contains(string(data), expectedContent) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", filename, expectedContent, data)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFinishWithin(seconds int) error {
	if limit := time.Duration(seconds) * time.Second; testCtx.LastDuration > limit {
		return fmt.Errorf("command took %s, limit %s", testCtx.LastDuration, limit)
	}
	return nil
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, value)
	return nil
}

func (testCtx *TestContext) registerCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the command should finish within (\d+) seconds$`, testCtx.theCommandShouldFinishWithin)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
}

func (testCtx *TestContext) registerOutputSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^stderr should contain "([^"]*)"$`, testCtx.stderrShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should be valid CSV$`, testCtx.theOutputShouldBeValidCSV)
	sc.Step(`^the CSV header should be "([^"]*)"$`, testCtx.theCSVShouldHaveHeader)
	sc.Step(`^the CSV should have (\d+) data rows?$`, testCtx.theCSVShouldHaveRows)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
}

func (testCtx *TestContext) registerFileSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
}

// RegisterCommonSteps registers all common step definitions.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	testCtx.registerCommandSteps(sc)
	testCtx.registerOutputSteps(sc)
	testCtx.registerFileSteps(sc)
}
