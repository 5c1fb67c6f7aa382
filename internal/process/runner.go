package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// maxLineSize is the scanner buffer limit for a single output line.
const maxLineSize = 64 * 1024

// Config holds configuration for a supervised subprocess.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// GracefulTimeout is how long to wait for graceful shutdown before SIGKILL.
	GracefulTimeout time.Duration

	// Output receives each captured stdout/stderr line. May be nil.
	Output func(stream, line string)

	// OnExit is called once when the process exits, with the exit code and
	// whether the exit was requested via Stop. Called from the monitor
	// goroutine; it must not call back into the Runner's Start or Stop.
	OnExit func(exitCode int, requested bool)
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Runner manages a single subprocess: spawn, output capture, exit
// monitoring, and kill by PID.
//
// A Runner may be reused: after the process exits, Start may be called
// again. Start and Stop must not be called concurrently; the supervisor
// serialises them.
type Runner struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	running       bool
	startTime     time.Time
	stopRequested bool

	// done is closed by the monitor goroutine when the process has exited.
	done chan struct{}
}

// NewRunner creates a new runner with the given configuration.
func NewRunner(cfg Config) *Runner {
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	return &Runner{
		config: cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// Start launches the subprocess and begins monitoring it. The context only
// gates the launch itself; it does not bound the process lifetime.
func (r *Runner) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("process %s is already running", r.config.Name)
	}
	r.stopRequested = false
	r.mu.Unlock()

	r.logger.Info("starting process",
		"name", r.config.Name,
		"binary", r.config.Binary,
		"args", r.config.Args,
	)

	// Deliberately not CommandContext: the process must outlive the caller's
	// context (often an HTTP request). Stop owns termination.
	cmd := exec.Command(r.config.Binary, r.config.Args...) //nolint:gosec // Binary path comes from validated launch config

	// New process group so Stop can signal the server and any children it forks.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if r.config.Env != nil {
		cmd.Env = append(os.Environ(), r.config.Env...)
	}
	if r.config.WorkDir != "" {
		cmd.Dir = r.config.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", r.config.Name, err)
	}

	done := make(chan struct{})

	r.mu.Lock()
	r.cmd = cmd
	r.running = true
	r.startTime = time.Now()
	r.done = done
	r.mu.Unlock()

	go r.captureOutput("stdout", stdout)
	go r.captureOutput("stderr", stderr)
	go r.monitor(cmd, done)

	r.logger.Info("process started",
		"name", r.config.Name,
		"pid", cmd.Process.Pid,
	)

	return nil
}

// captureOutput reads lines from the given stream and forwards them to the
// configured output sink.
func (r *Runner) captureOutput(stream string, rd io.Reader) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		r.logger.Debug("process output",
			"name", r.config.Name,
			"stream", stream,
			"line", line,
		)
		if r.config.Output != nil {
			r.config.Output(stream, line)
		}
	}
	// Scanner errors here are almost always the pipe closing on exit.
	if err := scanner.Err(); err != nil {
		r.logger.Debug("output stream closed",
			"name", r.config.Name,
			"stream", stream,
			"error", err,
		)
	}
}

// monitor waits for the process to exit, records the result, and notifies
// the exit callback.
func (r *Runner) monitor(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	r.mu.Lock()
	requested := r.stopRequested
	r.running = false
	r.mu.Unlock()

	close(done)

	if requested {
		r.logger.Info("process stopped as requested", "name", r.config.Name)
	} else {
		r.logger.Warn("process exited unexpectedly",
			"name", r.config.Name,
			"exit_code", exitCode,
			"error", err,
		)
	}

	if r.config.OnExit != nil {
		r.config.OnExit(exitCode, requested)
	}
}

// Stop terminates the subprocess by PID.
//
// It sends SIGTERM to the process group and waits for graceful shutdown up
// to GracefulTimeout, then escalates to SIGKILL. Returns nil if the process
// is not running. The context bounds the final wait after SIGKILL.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.stopRequested = true
	cmd := r.cmd
	done := r.done
	r.mu.Unlock()

	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}

	pid := cmd.Process.Pid
	r.logger.Info("stopping process", "name", r.config.Name, "pid", pid)

	// Negative PID signals the whole process group created via Setpgid.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		// ESRCH means the process is already gone.
		if !errors.Is(err, syscall.ESRCH) {
			r.logger.Warn("failed to send SIGTERM to process group",
				"name", r.config.Name,
				"pid", pid,
				"error", err,
			)
		}
	}

	select {
	case <-done:
		r.logger.Info("process stopped gracefully", "name", r.config.Name)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s to stop: %w", r.config.Name, ctx.Err())
	case <-time.After(r.config.GracefulTimeout):
		r.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", r.config.Name,
			"timeout", r.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing process group %d: %w", pid, err)
		}
	}

	select {
	case <-done:
		r.logger.Info("process killed", "name", r.config.Name)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s to die: %w", r.config.Name, ctx.Err())
	}
}

// Alive reports whether the process is currently running.
func (r *Runner) Alive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// PID returns the process ID, or 0 if never started.
func (r *Runner) PID() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cmd != nil && r.cmd.Process != nil {
		return r.cmd.Process.Pid
	}
	return 0
}

// StartTime returns when the process was last started.
// Zero if never started.
func (r *Runner) StartTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.startTime
}

// Signal sends a signal to the process group.
func (r *Runner) Signal(sig syscall.Signal) error {
	r.mu.RLock()
	cmd := r.cmd
	running := r.running
	r.mu.RUnlock()

	if !running || cmd == nil || cmd.Process == nil {
		return fmt.Errorf("process %s is not running", r.config.Name)
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil {
		return fmt.Errorf("signalling %s: %w", r.config.Name, err)
	}
	return nil
}

// Wait blocks until the process exits or the context is cancelled.
// Returns immediately if the process is not running.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.RLock()
	done := r.done
	running := r.running
	r.mu.RUnlock()

	if !running || done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
