package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/morpho/cmd/morpho/cmd"
	"github.com/cucumber/godog"
)

// aMorphFixture writes the scenario's input images and pairs file.
func (testCtx *TestContext) aMorphFixture() error {
	fx, err := writeFixture(testCtx.Path("input"))
	if err != nil {
		return fmt.Errorf("failed to write fixture: %w", err)
	}
	testCtx.Fixture = fx
	return nil
}

// aJobDirectory writes a complete job directory under the temp dir.
func (testCtx *TestContext) aJobDirectory(name string) error {
	_, err := writeFixture(testCtx.Path(filepath.Join("jobs", name)))
	return err
}

// aFileWithContent writes a doc string to a file in the temp dir.
func (testCtx *TestContext) aFileWithContent(name string, content *godog.DocString) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	body := testCtx.substituteCommandVariables(content.Content)
	return os.WriteFile(path, []byte(body), 0o600)
}

// iRunCommand executes a morpho command line in-process.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "morpho" {
		parts = parts[1:]
	}

	root := cmd.GetRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(parts)

	err := root.Execute()
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s\nStderr: %s",
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

// theOutputShouldContain verifies stdout contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substituteCommandVariables(expectedText)
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theErrorShouldMention verifies the command error mentions some text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil {
		return errors.New("expected an error, but the command succeeded")
	}
	if !strings.Contains(testCtx.LastError.Error(), errorText) {
		return fmt.Errorf("error does not mention '%s'\nActual error: %v", errorText, testCtx.LastError)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies stdout is a JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(strings.TrimSpace(testCtx.LastOutput))) {
		return fmt.Errorf("output is not valid JSON:\n%s", testCtx.LastOutput)
	}
	return nil
}

// theJSONFieldShouldEqual checks a dotted path in the JSON output.
func (testCtx *TestContext) theJSONFieldShouldEqual(field, expected string) error {
	var data any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &data); err != nil {
		return fmt.Errorf("failed to parse JSON output: %w", err)
	}
	got, err := lookupJSON(data, field)
	if err != nil {
		return err
	}
	if actual := fmt.Sprint(got); actual != expected {
		return fmt.Errorf("field %s is %s, expected %s", field, actual, expected)
	}
	return nil
}

// lookupJSON follows a dotted path such as "jobs.0.name".
func lookupJSON(data any, path string) (any, error) {
	current := data
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", part, path)
			}
			current = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %s", part, path)
			}
			current = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %s at %q", path, part)
		}
	}
	return current, nil
}

// filesShouldExistIn counts files matching a glob in a temp-dir folder.
func (testCtx *TestContext) filesShouldExistIn(count int, pattern, dir string) error {
	matches, err := filepath.Glob(filepath.Join(testCtx.Path(dir), pattern))
	if err != nil {
		return err
	}
	if len(matches) != count {
		return fmt.Errorf("expected %d files matching %s in %s, found %d", count, pattern, dir, len(matches))
	}
	return nil
}

// theFileShouldExist checks a file in the temp dir.
func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(testCtx.Path(name)); err != nil {
		return fmt.Errorf("file %s does not exist: %w", name, err)
	}
	return nil
}

// theFileShouldContain checks a file's content.
func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'\nActual content: %s", name, expected, string(data))
	}
	return nil
}

// theFileShouldStartWith checks a file's leading bytes.
func (testCtx *TestContext) theFileShouldStartWith(name, prefix string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if !bytes.HasPrefix(data, []byte(prefix)) {
		return fmt.Errorf("file %s does not start with %q", name, prefix)
	}
	return nil
}

// RegisterCommonSteps registers command, output and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a morph fixture$`, testCtx.aMorphFixture)
	sc.Step(`^a job directory "([^"]*)"$`, testCtx.aJobDirectory)
	sc.Step(`^a file "([^"]*)" with:$`, testCtx.aFileWithContent)

	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should equal "([^"]*)"$`, testCtx.theJSONFieldShouldEqual)

	sc.Step(`^(\d+) files matching "([^"]*)" should exist in "([^"]*)"$`, testCtx.filesShouldExistIn)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the file "([^"]*)" should start with "([^"]*)"$`, testCtx.theFileShouldStartWith)
}
