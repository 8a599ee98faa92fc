/*
session.go - Evaluator session lifecycle

PURPOSE:
  Owns one detected evaluator environment from Start to Stop. The session
  is an explicit object handed to whoever needs to run queries; there is no
  package-level "current evaluator" to reach for. Start probes, Health
  re-probes, Stop makes further use fail fast.

  The evaluator itself is invoked per query (it has no server mode), so the
  session holds no child process; it holds the knowledge of how to invoke
  the tool and which ledger path to hand it.

SEE ALSO:
  - detect.go: the probing Start delegates to
  - query.go: the engine that drives a session
*/
package beanquery

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config describes how to start an evaluator session.
type Config struct {
	// LedgerPath is the host path of the ledger file queries run against.
	LedgerPath string

	// Command overrides autodetection with an explicit evaluator command
	// (whitespace-separated argv). Empty means probe DefaultCandidates.
	Command string

	// Timeout bounds one query invocation. <= 0 means DefaultTimeout.
	Timeout time.Duration

	// Env is merged onto the evaluator's environment. Color and paging are
	// always disabled on top of these.
	Env map[string]string
}

// Session is a started evaluator environment.
type Session struct {
	cfg Config
	env Environment

	mu      sync.RWMutex
	stopped bool
	checked time.Time // last successful probe
}

// Start detects a working evaluator and returns a live session. Detection
// failure is fatal for query functionality; callers decide whether to run
// degraded or abort.
func Start(ctx context.Context, cfg Config) (*Session, error) {
	env, err := Detect(ctx, CommandCandidates(cfg.Command))
	if err != nil {
		return nil, err
	}
	return &Session{cfg: cfg, env: env, checked: time.Now()}, nil
}

// Version reports the evaluator version found at Start.
func (s *Session) Version() string {
	return s.env.Version
}

// Command reports the detected evaluator argv prefix.
func (s *Session) Command() []string {
	out := make([]string, len(s.env.Command))
	copy(out, s.env.Command)
	return out
}

// Compat reports whether the session runs through the compatibility layer.
func (s *Session) Compat() bool {
	return s.env.Compat
}

// LedgerArg is the ledger path as the evaluator must see it, translated
// for the compatibility layer when active.
func (s *Session) LedgerArg() string {
	return TranslatePath(s.cfg.LedgerPath, s.env.Compat)
}

// LastChecked reports when the evaluator last answered a probe.
func (s *Session) LastChecked() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checked
}

// Health re-probes the evaluator. It does not re-detect: a session is
// pinned to the command found at Start, and a vanished tool reports
// ErrEvaluatorNotFound so the operator knows the environment changed.
func (s *Session) Health(ctx context.Context) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrSessionStopped
	}

	if _, ok := probe(ctx, s.env.Command); !ok {
		return fmt.Errorf("evaluator %q stopped answering: %w", s.env.Command[0], ErrEvaluatorNotFound)
	}
	s.mu.Lock()
	s.checked = time.Now()
	s.mu.Unlock()
	return nil
}

// Stop ends the session. Queries after Stop fail with ErrSessionStopped.
// Stop is idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// RunQuery executes one query string against the session's ledger and
// returns the captured execution. The evaluator is asked for
// comma-delimited output; interactive behavior is disabled through the
// environment.
func (s *Session) RunQuery(ctx context.Context, query string) (Execution, error) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return Execution{}, ErrSessionStopped
	}

	env := map[string]string{
		"NO_COLOR": "1",
		"TERM":     "dumb",
	}
	for k, v := range s.cfg.Env {
		env[k] = v
	}

	args := append([]string{}, s.env.Command[1:]...)
	args = append(args, "-f", "csv", s.LedgerArg(), query)

	return Run(ctx, Invocation{
		Executable: s.env.Command[0],
		Args:       args,
		Timeout:    s.cfg.Timeout,
		Env:        env,
	})
}
