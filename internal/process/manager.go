package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// Config holds configuration for a managed process.
type Config struct {
	// Name identifies the process in logs.
	Name string

	Binary string
	Args   []string

	// RestartOnFailure restarts the process when it exits on its own.
	RestartOnFailure bool

	// RestartDelay is the first backoff step; each further attempt doubles
	// it up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// MaxRestartAttempts limits consecutive restarts. 0 means unlimited.
	MaxRestartAttempts int

	// StableThreshold is how long a run must last before the consecutive
	// attempt counter resets.
	StableThreshold time.Duration

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// HealthCheckFunc is polled while the process runs. After
	// HealthCheckFailures consecutive failures the process is killed and
	// treated as crashed. Nil disables polling.
	HealthCheckFunc     func(ctx context.Context) error
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	HealthCheckFailures int

	OnStart   func()
	OnStop    func(err error)
	OnRestart func(attempt int)
}

// DefaultConfig returns a Config that restarts on failure.
func DefaultConfig(name, binary string, args []string) Config {
	return Config{
		Name:                name,
		Binary:              binary,
		Args:                args,
		RestartOnFailure:    true,
		RestartDelay:        5 * time.Second,
		MaxRestartDelay:     5 * time.Minute,
		MaxRestartAttempts:  10,
		StableThreshold:     2 * time.Minute,
		GracefulTimeout:     10 * time.Second,
		HealthCheckInterval: 30 * time.Second,
		HealthCheckTimeout:  5 * time.Second,
		HealthCheckFailures: 3,
	}
}

// Logger defines the logging interface for the process manager.
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

// Manager runs one child process and keeps it alive.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	attempts      int
	restartCount  int
	lastError     error
	startTime     time.Time
	stopRequested bool
	stopCh        chan struct{}
	done          chan struct{}
}

// NewManager fills zero durations from DefaultConfig.
func NewManager(cfg Config) *Manager {
	defaults := DefaultConfig(cfg.Name, cfg.Binary, cfg.Args)
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaults.RestartDelay
	}
	if cfg.MaxRestartDelay <= 0 {
		cfg.MaxRestartDelay = defaults.MaxRestartDelay
	}
	if cfg.StableThreshold <= 0 {
		cfg.StableThreshold = defaults.StableThreshold
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaults.GracefulTimeout
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = defaults.HealthCheckTimeout
	}
	if cfg.HealthCheckFailures <= 0 {
		cfg.HealthCheckFailures = defaults.HealthCheckFailures
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger. Call before Start.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start launches the process and the goroutine that supervises it. A
// launch failure is returned directly and nothing is retried.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.attempts = 0
	stopCh := make(chan struct{})
	done := make(chan struct{})
	m.stopCh = stopCh
	m.done = done
	m.mu.Unlock()

	cmd, err := m.launch(ctx)
	if err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		m.mu.Unlock()
		close(done)
		return err
	}

	go m.monitor(ctx, cmd, stopCh, done)
	return nil
}

// launch starts the binary in its own process group. It refuses once Stop
// has been requested so a restart cannot slip past a shutdown.
func (m *Manager) launch(ctx context.Context) (*exec.Cmd, error) {
	m.logger.Info("starting process",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"args", m.config.Args,
	)

	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...) //nolint:gosec // binary comes from operator config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = m.config.GracefulTimeout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	m.mu.Lock()
	if m.stopRequested {
		m.mu.Unlock()
		return nil, ErrStopRequested
	}
	if err := cmd.Start(); err != nil {
		m.mu.Unlock()
		return nil, &launchError{name: m.config.Name, err: err}
	}
	m.cmd = cmd
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()

	go m.logLines("stdout", stdout)
	go m.logLines("stderr", stderr)

	m.logger.Info("process started", "name", m.config.Name, "pid", cmd.Process.Pid)

	if m.config.OnStart != nil {
		m.config.OnStart()
	}
	return cmd, nil
}

// logLines forwards the child's output to the logger one line at a time.
// stderr goes out at Info so gateway diagnostics survive the default level.
func (m *Manager) logLines(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if stream == "stderr" {
			m.logger.Info("process output", "name", m.config.Name, "stream", stream, "line", line)
		} else {
			m.logger.Debug("process output", "name", m.config.Name, "stream", stream, "line", line)
		}
	}
}

// wait blocks until cmd exits. While it runs, the health function is
// polled and a process that fails it repeatedly is killed.
func (m *Manager) wait(ctx context.Context, cmd *exec.Cmd) error {
	exitCh := make(chan error, 1)
	go func() {
		exitCh <- cmd.Wait()
	}()

	if m.config.HealthCheckFunc == nil {
		return <-exitCh
	}

	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case err := <-exitCh:
			return err

		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, m.config.HealthCheckTimeout)
			err := m.config.HealthCheckFunc(checkCtx)
			cancel()

			if err == nil {
				if failures > 0 {
					m.logger.Info("health check recovered", "name", m.config.Name, "previous_failures", failures)
				}
				failures = 0
				continue
			}

			failures++
			m.logger.Warn("health check failed",
				"name", m.config.Name,
				"error", err,
				"consecutive_failures", failures,
			)
			if failures < m.config.HealthCheckFailures {
				continue
			}

			m.logger.Error("process unresponsive, killing", "name", m.config.Name, "failures", failures)
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			<-exitCh
			return fmt.Errorf("killed after %d failed health checks: %w", failures, err)
		}
	}
}

func (m *Manager) monitor(ctx context.Context, cmd *exec.Cmd, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for cmd != nil {
		err := m.wait(ctx, cmd)

		m.mu.Lock()
		stopping := m.stopRequested || ctx.Err() != nil
		ran := time.Since(m.startTime)
		if stopping {
			m.status = StatusStopped
		} else {
			m.status = StatusFailed
			m.lastError = err
		}
		m.mu.Unlock()

		if stopping {
			m.logger.Info("process stopped", "name", m.config.Name)
			if m.config.OnStop != nil {
				m.config.OnStop(nil)
			}
			return
		}

		m.logger.Warn("process exited unexpectedly", "name", m.config.Name, "error", err, "ran", ran)
		if m.config.OnStop != nil {
			m.config.OnStop(err)
		}

		cmd = m.restart(ctx, stopCh, err, ran)
	}

	m.mu.Lock()
	if m.stopRequested {
		m.status = StatusStopped
	}
	m.mu.Unlock()
}

// restart relaunches the process with backoff. It returns nil when it
// gives up or a stop arrives.
func (m *Manager) restart(ctx context.Context, stopCh <-chan struct{}, exitErr error, ran time.Duration) *exec.Cmd {
	if !m.config.RestartOnFailure {
		m.logger.Info("restart disabled, not restarting", "name", m.config.Name)
		return nil
	}
	if !IsRecoverable(exitErr) {
		m.logger.Error("process failed permanently", "name", m.config.Name, "error", exitErr)
		return nil
	}

	m.mu.Lock()
	if ran >= m.config.StableThreshold {
		m.attempts = 0
	}
	m.mu.Unlock()

	for {
		m.mu.Lock()
		m.attempts++
		attempt := m.attempts
		m.mu.Unlock()

		if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
			m.logger.Error("max restart attempts reached", "name", m.config.Name, "attempts", attempt-1)
			return nil
		}

		delay := m.calculateBackoffDelay(attempt)
		m.logger.Info("restarting process", "name", m.config.Name, "attempt", attempt, "delay", delay)
		if m.config.OnRestart != nil {
			m.config.OnRestart(attempt)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-stopCh:
			return nil
		case <-time.After(delay):
		}

		cmd, err := m.launch(ctx)
		if err == nil {
			m.mu.Lock()
			m.restartCount++
			m.mu.Unlock()
			return cmd
		}
		if errors.Is(err, ErrStopRequested) {
			return nil
		}

		m.logger.Error("failed to restart process", "name", m.config.Name, "error", err)
		m.mu.Lock()
		m.lastError = err
		m.mu.Unlock()
		if !IsRecoverable(err) {
			return nil
		}
	}
}

// calculateBackoffDelay doubles RestartDelay per attempt, capped at
// MaxRestartDelay.
func (m *Manager) calculateBackoffDelay(attempt int) time.Duration {
	delay := m.config.RestartDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.config.MaxRestartDelay {
			return m.config.MaxRestartDelay
		}
	}
	return delay
}

// Stop sends SIGTERM to the process group, escalates to SIGKILL after
// GracefulTimeout and waits for the supervisor to finish. A pending
// restart is cancelled.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.stopCh == nil || m.stopRequested {
		m.mu.Unlock()
		return nil
	}
	m.stopRequested = true
	close(m.stopCh)
	cmd := m.cmd
	running := m.status == StatusRunning
	done := m.done
	m.mu.Unlock()

	if !running || cmd == nil || cmd.Process == nil {
		<-done
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping process", "name", m.config.Name, "pid", pid)

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("SIGTERM failed", "name", m.config.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("graceful shutdown timeout, sending SIGKILL", "name", m.config.Name)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
	}
	<-done
	return nil
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning reports whether the process is up.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// LastError returns the error from the last unexpected exit or failed
// restart.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// RestartCount returns the number of successful restarts.
func (m *Manager) RestartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restartCount
}

// PID returns the process ID while running, otherwise 0.
func (m *Manager) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == StatusRunning && m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Pid
	}
	return 0
}
