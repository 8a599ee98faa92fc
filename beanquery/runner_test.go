package beanquery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeMarker(dir string) error {
	return os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644)
}

// =============================================================================
// PROCESS EXECUTION
// =============================================================================

func TestRun_CapturesStreamsAndExitCode(t *testing.T) {
	// GIVEN: A command writing to both streams and exiting non-zero
	// WHEN: Running it
	// THEN: Both streams and the exit code come back, without an error

	result, err := Run(context.Background(), Invocation{
		Executable: "sh",
		Args:       []string{"-c", "echo out; echo err 1>&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", result.ExitCode)
	}
	if result.Stdout != "out\n" {
		t.Errorf("expected stdout %q, got %q", "out\n", result.Stdout)
	}
	if result.Stderr != "err\n" {
		t.Errorf("expected stderr %q, got %q", "err\n", result.Stderr)
	}
	if result.TimedOut {
		t.Error("fast command should not be marked timed out")
	}
}

func TestRun_Timeout_KillsProcess(t *testing.T) {
	// GIVEN: A command that would run for seconds
	// WHEN: Running it with a 100ms timeout
	// THEN: It is killed promptly and reported as timed out

	start := time.Now()
	result, err := Run(context.Background(), Invocation{
		Executable: "sh",
		Args:       []string{"-c", "sleep 5"},
		Timeout:    100 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !errors.Is(err, ErrQueryTimeout) {
		t.Errorf("expected ErrQueryTimeout, got %v", err)
	}
	if !result.TimedOut {
		t.Error("execution should be marked timed out")
	}
	if result.ExitCode != -1 {
		t.Errorf("expected exit code -1 after kill, got %d", result.ExitCode)
	}
	if elapsed > 3*time.Second {
		t.Errorf("process was not killed promptly, took %v", elapsed)
	}
}

func TestRun_MissingExecutable(t *testing.T) {
	result, err := Run(context.Background(), Invocation{
		Executable: "definitely-not-installed-anywhere-7f3a",
	})
	if err == nil {
		t.Fatal("expected a start error")
	}
	if result.TimedOut {
		t.Error("start failure should not be a timeout")
	}
	if result.ExitCode != -1 {
		t.Errorf("expected exit code -1, got %d", result.ExitCode)
	}
}

func TestRun_EnvOverrides(t *testing.T) {
	t.Setenv("RUNNER_PROBE", "parent")

	result, err := Run(context.Background(), Invocation{
		Executable: "sh",
		Args:       []string{"-c", `printf "%s/%s" "$RUNNER_PROBE" "$RUNNER_EXTRA"`},
		Env: map[string]string{
			"RUNNER_PROBE": "override",
			"RUNNER_EXTRA": "added",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stdout != "override/added" {
		t.Errorf("expected env overrides to apply, got stdout %q", result.Stdout)
	}
}

func TestRun_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := writeMarker(dir); err != nil {
		t.Fatalf("preparing marker: %v", err)
	}

	result, err := Run(context.Background(), Invocation{
		Executable: "sh",
		Args:       []string{"-c", "ls"},
		Dir:        dir,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Stdout, "marker.txt") {
		t.Errorf("expected ls in %s to list marker.txt, got %q", dir, result.Stdout)
	}
}

func TestRun_OutputIsBounded(t *testing.T) {
	// A runaway tool cannot make the runner buffer unbounded output.
	result, err := Run(context.Background(), Invocation{
		Executable: "sh",
		Args:       []string{"-c", `head -c 9000000 /dev/zero | tr '\0' 'x'`},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Stdout) != MaxCapturedOutput {
		t.Errorf("expected stdout capped at %d bytes, got %d", MaxCapturedOutput, len(result.Stdout))
	}
	if !result.Truncated {
		t.Error("capped output should be flagged truncated")
	}
}

func TestMergeEnv_OverridesReplaceNotDuplicate(t *testing.T) {
	merged := mergeEnv([]string{"A=1", "B=2"}, map[string]string{"B": "3", "C": "4"})

	want := map[string]string{"A": "1", "B": "3", "C": "4"}
	if len(merged) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), merged)
	}
	for _, kv := range merged {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			t.Fatalf("malformed entry %q", kv)
		}
		if want[kv[:i]] != kv[i+1:] {
			t.Errorf("unexpected entry %q", kv)
		}
	}
}
