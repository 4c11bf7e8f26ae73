package runtimeexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nereus-labs/nautilus-go/internal/domain"
)

const (
	defaultMaxDiagnostics = 8 << 10
	waitDelay             = 2 * time.Second
)

// ResourceLimits are per-process rlimits. Zero fields are not applied.
type ResourceLimits struct {
	MemoryBytes uint64
	CPUSeconds  uint64
}

func (l ResourceLimits) IsZero() bool {
	return l.MemoryBytes == 0 && l.CPUSeconds == 0
}

type Config struct {
	Interpreters Interpreters
	// WorkDir is the parent of per-execution scratch directories.
	// Empty means os.TempDir().
	WorkDir string
	// Timeout bounds one interpreter run. Zero disables the deadline.
	Timeout time.Duration
	// MaxOutputBytes caps each captured stream. Zero disables the cap.
	MaxOutputBytes int64
	// MaxConcurrent bounds simultaneous interpreter processes. Zero means
	// unbounded.
	MaxConcurrent int64
	Limits        ResourceLimits
	Logger        *slog.Logger
}

// Output is what one interpreter run produced.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// ProcessExecutor runs each harness in a fresh interpreter process.
// It is safe for concurrent use.
type ProcessExecutor struct {
	cfg    Config
	sem    *semaphore.Weighted
	logger *slog.Logger
}

func NewProcessExecutor(cfg Config) (*ProcessExecutor, error) {
	if cfg.Interpreters == nil {
		cfg.Interpreters = DefaultInterpreters()
	}
	if err := cfg.Interpreters.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("execution timeout must be non-negative")
	}
	if cfg.MaxOutputBytes < 0 {
		return nil, errors.New("max output bytes must be non-negative")
	}
	if cfg.MaxConcurrent < 0 {
		return nil, errors.New("max concurrent executions must be non-negative")
	}
	if strings.TrimSpace(cfg.WorkDir) == "" {
		cfg.WorkDir = os.TempDir()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &ProcessExecutor{cfg: cfg, logger: logger}
	if cfg.MaxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return e, nil
}

func (e *ProcessExecutor) Kind() string {
	return "process"
}

// Execute builds the harness for lang, runs it with payload as the argument
// and decodes the single JSON value the program produced.
func (e *ProcessExecutor) Execute(ctx context.Context, lang domain.Language, source string, payload json.RawMessage) (json.RawMessage, error) {
	h, err := BuildHarness(lang, source)
	if err != nil {
		return nil, err
	}
	arg := bytes.TrimSpace(payload)
	if len(arg) == 0 {
		arg = []byte("null")
	}
	out, err := e.Run(ctx, h, arg)
	if err != nil {
		return nil, err
	}
	result, err := DecodeOutput(out.Stdout)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			de = de.WithEngine(lang.Family())
			de.Diagnostics = tail(stripDiagnostics(out.Stderr), defaultMaxDiagnostics)
			return nil, de
		}
		return nil, err
	}
	return result, nil
}

// Run launches the interpreter for h with arg as its single argument and
// waits for it. A non-nil Output is returned only when the process exited 0.
func (e *ProcessExecutor) Run(ctx context.Context, h Harness, arg []byte) (Output, error) {
	family := h.Language.Family()
	interp, ok := e.cfg.Interpreters[family]
	if !ok {
		return Output{}, domain.Errorf(domain.KindInvalidRequest, "no interpreter for language %q", h.Language)
	}

	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return Output{}, contextError(ctx, family, "waiting for an execution slot")
		}
		defer e.sem.Release(1)
	}

	dir, err := os.MkdirTemp(e.cfg.WorkDir, "run-")
	if err != nil {
		return Output{}, domain.NewError(domain.KindLaunch, "create scratch directory", err).WithEngine(family)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("scratch cleanup failed", "dir", dir, "error", err)
		}
	}()

	args := append([]string{}, interp.Args...)
	if h.Inline {
		flag := interp.InlineFlag
		if flag == "" {
			flag = "-c"
		}
		args = append(args, flag, h.Script)
	} else {
		path := filepath.Join(dir, "harness_"+uuid.NewString()+h.Extension)
		if err := os.WriteFile(path, []byte(h.Script), 0o600); err != nil {
			return Output{}, domain.NewError(domain.KindLaunch, "write harness script", err).WithEngine(family)
		}
		args = append(args, path)
	}
	args = append(args, string(arg))

	return e.runCommand(ctx, family, interp, dir, args)
}

func (e *ProcessExecutor) runCommand(ctx context.Context, family domain.Family, interp Interpreter, dir string, args []string) (Output, error) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if e.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, interp.Command, args...)
	cmd.Dir = dir
	cmd.Env = childEnv(dir, interp.Env)
	cmd.WaitDelay = waitDelay
	prepareCommand(cmd)

	stdout := newCappedBuffer(e.cfg.MaxOutputBytes, cancel)
	stderr := newCappedBuffer(e.cfg.MaxOutputBytes, cancel)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Output{}, domain.NewError(domain.KindLaunch, fmt.Sprintf("start %s", interp.Command), err).WithEngine(family)
	}
	if !e.cfg.Limits.IsZero() {
		if err := applyLimits(cmd.Process.Pid, e.cfg.Limits); err != nil {
			e.logger.Warn("resource limits not applied", "engine", string(family), "error", err)
		}
	}
	waitErr := cmd.Wait()
	reapGroup(cmd)

	out := Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	e.logger.Debug("interpreter exited",
		"engine", string(family),
		"exit_code", out.ExitCode,
		"duration_ms", out.Duration.Milliseconds(),
		"stdout_bytes", len(out.Stdout),
		"stderr_bytes", len(out.Stderr),
	)

	switch {
	case stdout.Overflowed() || stderr.Overflowed():
		de := domain.Errorf(domain.KindOutputLimitExceeded, "output exceeded %d bytes", e.cfg.MaxOutputBytes).WithEngine(family)
		de.Diagnostics = tail(stripDiagnostics(out.Stderr), defaultMaxDiagnostics)
		return Output{}, de
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		de := domain.Errorf(domain.KindExecutionTimeout, "execution exceeded %s", e.timeoutLabel(ctx)).WithEngine(family)
		de.Diagnostics = tail(stripDiagnostics(out.Stderr), defaultMaxDiagnostics)
		return Output{}, de
	case ctx.Err() != nil:
		return Output{}, contextError(ctx, family, "execution canceled")
	case waitErr != nil:
		return Output{}, exitError(family, out, waitErr)
	}
	return out, nil
}

func (e *ProcessExecutor) timeoutLabel(ctx context.Context) string {
	if e.cfg.Timeout > 0 {
		return e.cfg.Timeout.String()
	}
	if deadline, ok := ctx.Deadline(); ok {
		return "deadline " + deadline.UTC().Format(time.RFC3339)
	}
	return "deadline"
}

func exitError(family domain.Family, out Output, waitErr error) error {
	var exitErr *exec.ExitError
	message := fmt.Sprintf("interpreter failed: %v", waitErr)
	if errors.As(waitErr, &exitErr) {
		message = fmt.Sprintf("interpreter exited with status %d", out.ExitCode)
	}
	de := domain.NewError(domain.KindExecution, message, waitErr).WithEngine(family)
	if diag, ok := ParseDiagnostic(out.Stderr); ok {
		de.Message = diag.Message
		de.Cause = diag.Kind
	} else if line, ok := syntaxErrorLine(out.Stderr); ok {
		de.Message = line
		de.Cause = DiagnosticSyntaxError
	}
	de.Diagnostics = tail(stripDiagnostics(out.Stderr), defaultMaxDiagnostics)
	return de
}

func contextError(ctx context.Context, family domain.Family, message string) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindExecutionTimeout, message, err).WithEngine(family)
	}
	return domain.NewError(domain.KindExecution, message, err).WithEngine(family)
}

// childEnv is the minimal environment handed to interpreters. Host secrets
// are not inherited.
func childEnv(dir string, extra map[string]string) []string {
	env := map[string]string{
		"PATH":   os.Getenv("PATH"),
		"HOME":   dir,
		"TMPDIR": dir,
		"LANG":   "C.UTF-8",
	}
	if env["PATH"] == "" {
		env["PATH"] = "/usr/local/bin:/usr/bin:/bin"
	}
	for k, v := range extra {
		env[k] = v
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
