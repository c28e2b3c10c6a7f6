package functional

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

func aCleanCrosspackPrefix(ctx context.Context) (context.Context, error) {
	return ctx, nil
}

// aRegistrySourceIsAdded registers the fixture registry as a named
// filesystem source without syncing it (its cache stays empty until an
// explicit "update" step runs).
func aRegistrySourceIsAdded(ctx context.Context, name string) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}
	return runCrosspack(ctx, fmt.Sprintf(
		`registry add %s %s --kind filesystem --fingerprint %s`,
		name, state.registryDir, state.fixture.publicKeyFingerprint,
	))
}

// aRegistrySourceIsConfigured adds the fixture registry as a named
// filesystem source and syncs it, so its packages are immediately
// queryable (a configured-but-never-updated source has an empty cache).
func aRegistrySourceIsConfigured(ctx context.Context, name string) (context.Context, error) {
	state := getState(ctx)
	ctx, err := aRegistrySourceIsAdded(ctx, name)
	if err != nil {
		return ctx, err
	}
	if state.exitCode != 0 {
		return ctx, fmt.Errorf("registry add failed: %s", state.stderr)
	}
	ctx, err = runCrosspack(ctx, "update "+name)
	if err != nil {
		return ctx, err
	}
	if state.exitCode != 0 {
		return ctx, fmt.Errorf("registry update failed: %s", state.stderr)
	}
	return ctx, nil
}

// iRun executes a command line against the crosspack test binary,
// replacing a leading "crosspack" token with the resolved binary path.
func iRun(ctx context.Context, command string) (context.Context, error) {
	return runCrosspack(ctx, command)
}

func runCrosspack(ctx context.Context, command string) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	args := strings.Fields(command)
	if len(args) == 0 {
		return ctx, fmt.Errorf("empty command")
	}
	bin := state.binPath
	if args[0] == "crosspack" {
		args = args[1:]
	}

	cmd := exec.Command(bin, args...)
	cmd.Env = append(os.Environ(),
		"CROSSPACK_HOME="+state.homeDir,
	)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	state.stdout = stdout.String()
	state.stderr = stderr.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			state.exitCode = exitErr.ExitCode()
		} else {
			return ctx, fmt.Errorf("command execution failed: %w", err)
		}
	} else {
		state.exitCode = 0
	}
	return ctx, nil
}

func theExitCodeIs(ctx context.Context, expected int) error {
	state := getState(ctx)
	if state.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s",
			expected, state.exitCode, state.stdout, state.stderr)
	}
	return nil
}

func theExitCodeIsNot(ctx context.Context, notExpected int) error {
	state := getState(ctx)
	if state.exitCode == notExpected {
		return fmt.Errorf("expected exit code to not be %d\nstdout: %s\nstderr: %s",
			notExpected, state.stdout, state.stderr)
	}
	return nil
}

func theOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theOutputDoesNotContain(ctx context.Context, text string) error {
	state := getState(ctx)
	if strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout not to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theErrorOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stderr, text) {
		return fmt.Errorf("expected stderr to contain %q, got:\n%s", text, state.stderr)
	}
	return nil
}

func theFileExists(ctx context.Context, relPath string) error {
	state := getState(ctx)
	fullPath := state.homeDir + string(os.PathSeparator) + relPath
	if _, err := os.Lstat(fullPath); os.IsNotExist(err) {
		return fmt.Errorf("expected file %q to exist", fullPath)
	}
	return nil
}

func theFileDoesNotExist(ctx context.Context, relPath string) error {
	state := getState(ctx)
	fullPath := state.homeDir + string(os.PathSeparator) + relPath
	if _, err := os.Lstat(fullPath); err == nil {
		return fmt.Errorf("expected file %q not to exist", fullPath)
	}
	return nil
}
