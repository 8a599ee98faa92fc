/*
detect.go - Evaluator discovery and path translation

PURPOSE:
  Finds a working query evaluator command for the current machine. Each
  candidate is probed with `--version` under a short timeout; the first one
  whose output carries a plausible version number wins. On a Windows host
  the evaluator may only exist inside the Linux compatibility layer, in
  which case every ledger path handed to it must be rewritten from drive
  syntax to the layer's mount convention:

    C:\Users\a\b.ledger  ->  /mnt/c/Users/a/b.ledger

  Paths that are already POSIX pass through untouched.

FAILURE SEMANTICS:
  A candidate that cannot be started, exits non-zero, or prints something
  without a version number is rejected and probing continues. Only when
  every candidate fails does detection return ErrEvaluatorNotFound.

SEE ALSO:
  - runner.go: executes the probes
  - session.go: holds the detected environment for its lifetime
*/
package beanquery

import (
	"context"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// ProbeTimeout bounds one `--version` probe.
const ProbeTimeout = 5 * time.Second

// versionPattern accepts anything that looks like a release number, e.g.
// "bean-query (beancount) 2.3.6".
var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// Environment is a detected, working evaluator invocation.
type Environment struct {
	Command []string // argv prefix, e.g. ["bean-query"] or ["wsl", "bean-query"]
	Version string   // version number reported by the probe
	Compat  bool     // evaluator runs inside the Linux compatibility layer
}

// DefaultCandidates returns the evaluator commands to probe, most direct
// first. On Windows the compatibility-layer fallback is appended so a
// WSL-only beancount install still works.
func DefaultCandidates() [][]string {
	candidates := [][]string{{"bean-query"}}
	if runtime.GOOS == "windows" {
		candidates = append(candidates,
			[]string{"bean-query.exe"},
			[]string{"wsl", "bean-query"},
		)
	}
	return candidates
}

// Detect probes candidates in order and returns the first working
// environment. An empty candidate list falls back to DefaultCandidates.
func Detect(ctx context.Context, candidates [][]string) (Environment, error) {
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}

	probed := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		if len(cand) == 0 {
			continue
		}
		probed = append(probed, strings.Join(cand, " "))

		version, ok := probe(ctx, cand)
		if !ok {
			continue
		}
		return Environment{
			Command: cand,
			Version: version,
			Compat:  isCompat(cand),
		}, nil
	}
	return Environment{}, &DetectError{Candidates: probed}
}

// probe runs `<candidate> --version` and extracts the version number. Some
// tools print the version to stderr, so both streams are checked.
func probe(ctx context.Context, cand []string) (string, bool) {
	result, err := Run(ctx, Invocation{
		Executable: cand[0],
		Args:       append(append([]string{}, cand[1:]...), "--version"),
		Timeout:    ProbeTimeout,
	})
	if err != nil || result.ExitCode != 0 {
		return "", false
	}
	version := versionPattern.FindString(result.Stdout)
	if version == "" {
		version = versionPattern.FindString(result.Stderr)
	}
	if version == "" {
		return "", false
	}
	return version, true
}

// isCompat reports whether the command routes through the Linux
// compatibility layer and therefore needs path translation.
func isCompat(cand []string) bool {
	return len(cand) > 0 && strings.EqualFold(cand[0], "wsl")
}

// =============================================================================
// PATH TRANSLATION
// =============================================================================

// drivePattern matches Windows drive syntax like `C:\...` or `C:/...`.
var drivePattern = regexp.MustCompile(`^([A-Za-z]):[\\/]`)

// TranslatePath rewrites a host path for the compatibility layer. Outside
// compatibility mode, and for paths that are already POSIX, the input is
// returned unchanged.
func TranslatePath(path string, compat bool) string {
	if !compat || path == "" || path[0] == '/' {
		return path
	}
	m := drivePattern.FindStringSubmatch(path)
	if m == nil {
		return path
	}
	rest := strings.ReplaceAll(path[len(m[0]):], `\`, "/")
	return "/mnt/" + strings.ToLower(m[1]) + "/" + rest
}

// CommandCandidates parses a configured evaluator command string into the
// candidate list. An explicit command replaces autodetection entirely; an
// empty string keeps the defaults.
func CommandCandidates(command string) [][]string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return [][]string{fields}
}
