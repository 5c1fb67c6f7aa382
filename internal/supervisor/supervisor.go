package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dzpanel/dzpanel/internal/console"
	"github.com/dzpanel/dzpanel/internal/dayz"
	"github.com/dzpanel/dzpanel/internal/events"
	"github.com/dzpanel/dzpanel/internal/process"
)

// Default timing policy, overridable via Config.
const (
	DefaultGracePeriod     = 10 * time.Second
	DefaultGracefulTimeout = 30 * time.Second
	DefaultSettleDelay     = 5 * time.Second
)

// EventRecorder persists lifecycle events. Satisfied by events.SQLiteRepository.
type EventRecorder interface {
	Record(ctx context.Context, event *events.Event) error
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds configuration for the supervisor.
type Config struct {
	// InstallDir is the DayZ server installation directory.
	InstallDir string

	// Executable is the server binary name, relative to InstallDir.
	Executable string

	// GracePeriod is how long a freshly spawned process must survive
	// before the supervisor reports the server as running.
	GracePeriod time.Duration

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// RestartInterval schedules an automatic restart this long after each
	// start. Zero or negative disables scheduled restarts.
	RestartInterval time.Duration

	// SettleDelay is the pause between stop and start during a scheduled
	// restart, giving the OS time to release the game port.
	SettleDelay time.Duration

	// Launch is the initial launch configuration. Zero value means defaults.
	Launch dayz.Config

	// Mods is the initial ordered mod list.
	Mods []string

	// Recorder persists lifecycle events. May be nil.
	Recorder EventRecorder

	// Console receives captured server output. Created if nil.
	Console *console.Buffer

	// OnTransition is invoked with a fresh status snapshot after every
	// state or configuration change. Called outside all locks. May be nil.
	OnTransition func(Status)

	// OnConsoleLine is invoked for every captured output line, after it is
	// appended to the console buffer. Called from capture goroutines and
	// must not block. May be nil.
	OnConsoleLine func(stream, text string)
}

// Status is a point-in-time snapshot of the supervised server.
type Status struct {
	Running   bool
	PID       int
	Players   int
	Uptime    string
	StartedAt time.Time
	RestartAt time.Time
	Config    dayz.Config
	Mods      []string
}

// Supervisor manages the lifecycle of the single DayZ server process.
type Supervisor struct {
	installDir      string
	executable      string
	gracePeriod     time.Duration
	gracefulTimeout time.Duration
	restartInterval time.Duration
	settleDelay     time.Duration

	logger        Logger
	recorder      EventRecorder
	console       *console.Buffer
	onTransition  func(Status)
	onConsoleLine func(stream, text string)

	// opMu serialises Start, Stop, restart cycles, and config updates.
	opMu sync.Mutex

	// stateMu guards the snapshot fields below.
	stateMu      sync.RWMutex
	running      bool
	starting     bool
	startExited  bool
	stopping     bool
	runner       *process.Runner
	pid          int
	players      int
	startedAt    time.Time
	restartAt    time.Time
	restartTimer *time.Timer
	launch       dayz.Config
	mods         []string

	shutdownOnce sync.Once
}

// New creates a supervisor. The server is not started.
func New(cfg Config) *Supervisor {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = DefaultGracefulTimeout
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.Launch.Port == 0 {
		cfg.Launch = dayz.DefaultConfig()
	}
	if cfg.Console == nil {
		cfg.Console = console.NewBuffer(0)
	}

	return &Supervisor{
		installDir:      cfg.InstallDir,
		executable:      cfg.Executable,
		gracePeriod:     cfg.GracePeriod,
		gracefulTimeout: cfg.GracefulTimeout,
		restartInterval: cfg.RestartInterval,
		settleDelay:     cfg.SettleDelay,
		logger:          noopLogger{},
		recorder:        cfg.Recorder,
		console:         cfg.Console,
		onTransition:    cfg.OnTransition,
		onConsoleLine:   cfg.OnConsoleLine,
		launch:          cfg.Launch,
		mods:            append([]string(nil), cfg.Mods...),
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Console returns the server output buffer.
func (s *Supervisor) Console() *console.Buffer {
	return s.console
}

// Start launches the server process.
//
// It creates the profile and BattlEye directories if missing, spawns the
// binary, and waits out the grace period. Only a process that survives the
// grace period transitions the supervisor to running; an earlier death is
// reported as a SpawnError.
func (s *Supervisor) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.start(ctx)
}

func (s *Supervisor) start(ctx context.Context) error {
	s.stateMu.Lock()
	if s.running {
		s.stateMu.Unlock()
		return ErrAlreadyRunning
	}
	launch := s.launch
	mods := append([]string(nil), s.mods...)
	s.starting = true
	s.startExited = false
	s.stateMu.Unlock()

	finishStarting := func() {
		s.stateMu.Lock()
		s.starting = false
		s.stateMu.Unlock()
	}

	for _, dir := range []string{launch.ProfilesDir, launch.BEPath} {
		if dir == "" {
			continue
		}
		full := filepath.Join(s.installDir, dir)
		if err := os.MkdirAll(full, 0o755); err != nil {
			finishStarting()
			return &DirectoryCreationError{Dir: full, Err: err}
		}
	}

	binary := filepath.Join(s.installDir, s.executable)
	runner := process.NewRunner(process.Config{
		Name:            "dayz-server",
		Binary:          binary,
		Args:            launch.BuildArgs(mods),
		WorkDir:         s.installDir,
		GracefulTimeout: s.gracefulTimeout,
		Output:          s.consoleLine,
		OnExit:          s.handleExit,
	})
	runner.SetLogger(s.logger)

	if err := runner.Start(ctx); err != nil {
		finishStarting()
		return &SpawnError{Path: binary, Err: err}
	}

	pid := runner.PID()
	s.logger.Info("server spawned, waiting out grace period",
		"pid", pid,
		"grace_period", s.gracePeriod,
	)

	graceTimer := time.NewTimer(s.gracePeriod)
	defer graceTimer.Stop()
	select {
	case <-graceTimer.C:
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), s.gracefulTimeout+5*time.Second)
		defer cancel()
		_ = runner.Stop(stopCtx)
		finishStarting()
		return ctx.Err()
	}

	now := time.Now()
	s.stateMu.Lock()
	s.starting = false
	if s.startExited || !runner.Alive() {
		s.stateMu.Unlock()
		return &SpawnError{
			Path: binary,
			Err:  fmt.Errorf("process died within %s of launch", s.gracePeriod),
		}
	}
	s.running = true
	s.runner = runner
	s.pid = pid
	s.players = 0
	s.startedAt = runner.StartTime()
	if s.restartInterval > 0 {
		s.restartAt = now.Add(s.restartInterval)
		s.restartTimer = time.AfterFunc(s.restartInterval, s.restartCycle)
	}
	s.stateMu.Unlock()

	s.logger.Info("server running", "pid", pid, "port", launch.Port)
	s.record(events.TypeStarted, fmt.Sprintf("server started on port %d", launch.Port), pid, nil)
	s.notify()
	return nil
}

// Stop terminates the server process.
//
// The scheduled restart timer is cancelled once termination is confirmed;
// a timer that fires mid-stop queues behind opMu and aborts when it finds
// the server stopped, so an operator stop is never followed by a surprise
// restart. If termination fails the timer stays armed, matching the still
// running state.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stop(ctx)
}

func (s *Supervisor) stop(ctx context.Context) error {
	s.stateMu.Lock()
	if !s.running {
		s.stateMu.Unlock()
		return ErrNotRunning
	}
	runner := s.runner
	pid := s.pid
	s.stopping = true
	s.stateMu.Unlock()

	err := runner.Stop(ctx)

	s.stateMu.Lock()
	s.stopping = false
	if err != nil && runner.Alive() {
		// The process is still alive. Keep the running snapshot and the
		// scheduled restart intact so a retried stop sees true state.
		s.stateMu.Unlock()
		return &TerminationError{PID: pid, Err: err}
	}
	s.clearLocked()
	s.stateMu.Unlock()

	s.logger.Info("server stopped", "pid", pid)
	s.record(events.TypeStopped, "server stopped", pid, nil)
	s.notify()
	return nil
}

// restartCycle runs when the scheduled restart timer fires: stop, settle,
// start. The timer is one-shot; a successful start arms the next one.
func (s *Supervisor) restartCycle() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.RLock()
	running := s.running
	pid := s.pid
	s.stateMu.RUnlock()
	if !running {
		// The operator stopped the server between the timer firing and
		// this goroutine acquiring the lock.
		return
	}

	s.logger.Info("scheduled restart", "pid", pid, "interval", s.restartInterval)
	s.record(events.TypeRestart, "scheduled restart", pid, nil)

	stopCtx, cancel := context.WithTimeout(context.Background(), s.gracefulTimeout+30*time.Second)
	defer cancel()
	if err := s.stop(stopCtx); err != nil {
		if errors.Is(err, ErrNotRunning) {
			return
		}
		s.logger.Error("scheduled restart: stop failed", "error", err)
		return
	}

	time.Sleep(s.settleDelay)

	startCtx, cancel2 := context.WithTimeout(context.Background(), s.gracePeriod+30*time.Second)
	defer cancel2()
	if err := s.start(startCtx); err != nil {
		s.logger.Error("scheduled restart: start failed", "error", err)
	}
}

// handleExit runs on the runner's monitor goroutine whenever the process
// exits. Requested exits are owned by Stop; everything else is a crash.
func (s *Supervisor) handleExit(exitCode int, requested bool) {
	if requested {
		return
	}

	s.stateMu.Lock()
	if s.starting {
		// Death during the grace period. Start observes startExited and
		// reports the SpawnError itself.
		s.startExited = true
		s.stateMu.Unlock()
		return
	}
	if !s.running {
		s.stateMu.Unlock()
		return
	}
	if s.stopping {
		// The process died in the instant before the operator's stop
		// signal landed. Stop owns the cleanup and the event; an exit
		// during a requested stop is not a crash.
		s.stateMu.Unlock()
		return
	}
	pid := s.pid
	s.clearLocked()
	s.stateMu.Unlock()

	s.logger.Error("server crashed", "pid", pid, "exit_code", exitCode)
	code := exitCode
	s.record(events.TypeCrashed, "server exited unexpectedly", pid, &code)
	s.notify()
}

// consoleLine appends a captured output line and forwards it to the
// optional console hook.
func (s *Supervisor) consoleLine(stream, text string) {
	s.console.Append(stream, text)
	if s.onConsoleLine != nil {
		s.onConsoleLine(stream, text)
	}
}

// clearLocked resets the running snapshot. Caller holds stateMu.
func (s *Supervisor) clearLocked() {
	s.running = false
	s.runner = nil
	s.pid = 0
	s.players = 0
	s.startedAt = time.Time{}
	s.restartAt = time.Time{}
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
}

// Status returns a snapshot of the supervised server. It never blocks on
// an in-flight Start or Stop.
func (s *Supervisor) Status() Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	st := Status{
		Running:   s.running,
		PID:       s.pid,
		Players:   s.players,
		StartedAt: s.startedAt,
		RestartAt: s.restartAt,
		Config:    s.launch,
		Mods:      append([]string{}, s.mods...),
	}
	if s.running {
		st.Uptime = FormatUptime(time.Since(s.startedAt))
	} else {
		st.Uptime = FormatUptime(0)
	}
	return st
}

// Running reports whether the server is currently running.
func (s *Supervisor) Running() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.running
}

// UpdateConfig replaces the launch configuration. Rejected with ErrRunning
// while the server is live; a changed restart interval or port only ever
// applies to the next start.
func (s *Supervisor) UpdateConfig(cfg dayz.Config) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.Running() {
		return ErrRunning
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.stateMu.Lock()
	s.launch = cfg
	s.stateMu.Unlock()

	s.logger.Info("launch config updated", "port", cfg.Port, "limit", cfg.Limit)
	s.record(events.TypeConfigUpdated, "launch configuration updated", 0, nil)
	s.notify()
	return nil
}

// UpdateMods replaces the ordered mod list. Rejected with ErrRunning while
// the server is live.
func (s *Supervisor) UpdateMods(mods []string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.Running() {
		return ErrRunning
	}
	if err := dayz.ValidateMods(mods); err != nil {
		return err
	}

	s.stateMu.Lock()
	s.mods = append([]string(nil), mods...)
	s.stateMu.Unlock()

	s.logger.Info("mod list updated", "count", len(mods))
	s.record(events.TypeModsUpdated, fmt.Sprintf("mod list updated (%d mods)", len(mods)), 0, nil)
	s.notify()
	return nil
}

// SetPlayers records the last known player count. Ignored while stopped.
func (s *Supervisor) SetPlayers(n int) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.running && n >= 0 {
		s.players = n
	}
}

// Shutdown stops the server if it is running. Safe to call multiple times;
// only the first call acts.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.shutdownOnce.Do(func() {
		s.logger.Info("supervisor shutting down")
		if err := s.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
			s.logger.Error("shutdown: failed to stop server", "error", err)
		}
	})
}

// record persists a lifecycle event, logging rather than failing on error.
func (s *Supervisor) record(eventType, message string, pid int, exitCode *int) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	evt := &events.Event{
		Type:     eventType,
		Message:  message,
		PID:      pid,
		ExitCode: exitCode,
	}
	if err := s.recorder.Record(ctx, evt); err != nil {
		s.logger.Warn("failed to record event", "type", eventType, "error", err)
	}
}

func (s *Supervisor) notify() {
	if s.onTransition != nil {
		s.onTransition(s.Status())
	}
}

// FormatUptime renders a duration as H:MM:SS, e.g. 3725s as "1:02:05".
// Hours are not zero-padded and keep growing past 24.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
