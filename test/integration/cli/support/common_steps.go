package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// BinaryEnv names the variable holding the path of the built CLI.
const BinaryEnv = "LABELKIT_BIN"

// substituteCommandVariables expands {tmp} and {port} placeholders.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	command = strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
	if testCtx.ServerPort != 0 {
		command = strings.ReplaceAll(command, "{port}", fmt.Sprint(testCtx.ServerPort))
	}
	return command
}

// commandParts splits a command and resolves a bare "labelkit" to the
// binary built for the suite.
func (testCtx *TestContext) commandParts(command string) ([]string, error) {
	parts := strings.Fields(testCtx.substituteCommandVariables(command))
	if len(parts) == 0 {
		return nil, errors.New("empty command")
	}
	if parts[0] == "labelkit" {
		if bin := os.Getenv(BinaryEnv); bin != "" {
			parts[0] = bin
		}
	}
	return parts, nil
}

// iRunCommand executes command in the scenario's temp directory.
func (testCtx *TestContext) iRunCommand(command string) error {
	parts, err := testCtx.commandParts(command)
	if err != nil {
		return err
	}
	testCtx.LastCommand = strings.Join(parts, " ")
	testCtx.LastStartTime = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	output, err := cmd.CombinedOutput()
	testCtx.LastOutput = string(output)
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
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
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

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies the whole output is one JSON value.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(testCtx.LastOutput)), &v); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theErrorShouldMention verifies the failed command's output names text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("expected an error mentioning '%s', but the command succeeded", errorText)
	}
	if !strings.Contains(strings.ToLower(testCtx.LastOutput), strings.ToLower(errorText)) {
		return fmt.Errorf("error output does not mention '%s'\nActual output: %s", errorText, testCtx.LastOutput)
	}
	return nil
}

// theFileShouldExist verifies a file exists in the temp directory.
func (testCtx *TestContext) theFileShouldExist(filename string) error {
	if _, err := os.Stat(testCtx.TempPath(filename)); err != nil {
		return fmt.Errorf("expected file %s: %w", filename, err)
	}
	return nil
}

// theFileShouldNotExist verifies nothing was written to filename.
func (testCtx *TestContext) theFileShouldNotExist(filename string) error {
	if _, err := os.Stat(testCtx.TempPath(filename)); !os.IsNotExist(err) {
		return fmt.Errorf("file %s should not exist (stat error: %v)", filename, err)
	}
	return nil
}

// aFileContainingLines writes a values file, one value per table row.
func (testCtx *TestContext) aFileContainingLines(filename string, table *godog.Table) error {
	var lines []string
	for _, row := range table.Rows {
		if len(row.Cells) > 0 {
			lines = append(lines, row.Cells[0].Value)
		}
	}
	return os.WriteFile(testCtx.TempPath(filename), []byte(strings.Join(lines, "\n")+"\n"), 0o600)
}

func (testCtx *TestContext) registerCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
}

func (testCtx *TestContext) registerOutputSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
}

func (testCtx *TestContext) registerFileSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a file "([^"]*)" containing:$`, testCtx.aFileContainingLines)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
}

// RegisterCommonSteps registers command, output and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	testCtx.registerCommandSteps(sc)
	testCtx.registerOutputSteps(sc)
	testCtx.registerFileSteps(sc)
}
