/*
runner.go - External process execution

PURPOSE:
  Runs one external command per call with a hard timeout, capturing stdout,
  stderr, and the exit code. Nothing here knows about query syntax; this is
  the lowest layer of the evaluator stack.

GUARANTEES:
  - A process that exceeds its timeout is killed, never left detached.
  - Captured output is size-bounded so a runaway tool cannot exhaust memory.
  - The exit code is reported even for non-zero exits; only failures to
    start the process at all surface as errors.

SEE ALSO:
  - session.go: builds invocations for the detected evaluator
*/
package beanquery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds one evaluator invocation.
const DefaultTimeout = 30 * time.Second

// MaxCapturedOutput bounds each of stdout and stderr.
const MaxCapturedOutput = 8 << 20 // 8 MiB

// Invocation describes one external command to run.
type Invocation struct {
	Executable string
	Args       []string
	Dir        string
	Timeout    time.Duration     // <= 0 means DefaultTimeout
	Env        map[string]string // overrides merged onto the parent environment
}

// Execution is the captured outcome of one invocation.
type Execution struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	TimedOut  bool
	Truncated bool
	Duration  time.Duration
}

// Run executes the invocation and captures its outcome. A non-zero exit is
// not an error here; callers interpret exit codes. The returned error is
// non-nil only when the process could not be started or was killed by the
// timeout.
func Run(ctx context.Context, inv Invocation) (Execution, error) {
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...)
	if inv.Dir != "" {
		cmd.Dir = inv.Dir
	}
	if len(inv.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), inv.Env)
	}

	var stdout, stderr bytes.Buffer
	outLimited := &limitedWriter{w: &stdout, limit: MaxCapturedOutput}
	errLimited := &limitedWriter{w: &stderr, limit: MaxCapturedOutput}
	cmd.Stdout = outLimited
	cmd.Stderr = errLimited

	start := time.Now()
	err := cmd.Run()

	result := Execution{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: outLimited.truncated || errLimited.truncated,
		Duration:  time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, fmt.Errorf("%s killed after %s: %w", inv.Executable, timeout, ErrQueryTimeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("running %s: %w", inv.Executable, err)
	}
	return result, nil
}

// mergeEnv overlays overrides onto a base KEY=VALUE environment.
func mergeEnv(base []string, overrides map[string]string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if _, replaced := overrides[key]; !replaced {
			merged = append(merged, kv)
		}
	}
	for k, v := range overrides {
		merged = append(merged, k+"="+v)
	}
	return merged
}

// =============================================================================
// LIMITED WRITER
// =============================================================================

// limitedWriter discards bytes past its limit, remembering that it did.
type limitedWriter struct {
	w         io.Writer
	limit     int
	written   int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.written >= lw.limit {
		lw.truncated = true
		return len(p), nil
	}
	remaining := lw.limit - lw.written
	if len(p) > remaining {
		p = p[:remaining]
		lw.truncated = true
	}
	n, err := lw.w.Write(p)
	lw.written += n
	if err != nil {
		return n, err
	}
	return len(p), nil
}
