package browser

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"pkt.systems/pslog"

	"pkt.systems/checkin/internal/logx"
	"pkt.systems/checkin/internal/pidfile"
	"pkt.systems/checkin/schema"
)

// Config controls the managed browser process.
type Config struct {
	Binary       string
	UserDataDir  string
	ExtraArgs    []string
	Host         string
	Port         int
	ProbeTimeout time.Duration
	PollInterval time.Duration
	PollAttempts int
	KillSettle   time.Duration
}

// Supervisor owns the lifecycle of the one browser process associated with
// this tool. Termination is always scoped to a specific identified process,
// never to every process running the same binary.
type Supervisor struct {
	cfg      Config
	registry *pidfile.Registry
	locators []Locator

	// Seams replaced by tests.
	kill  func(pid int) error
	start func(ctx context.Context) (int, error)
	probe func(ctx context.Context) bool
}

// New constructs a supervisor. When no locators are given, the registry
// locator and the port-scan locator are installed in that order.
func New(cfg Config, registry *pidfile.Registry, locators ...Locator) *Supervisor {
	if cfg.Binary == "" {
		cfg.Binary = "google-chrome"
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 9222
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 500 * time.Millisecond
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 10
	}
	if cfg.KillSettle <= 0 {
		cfg.KillSettle = 2 * time.Second
	}
	if len(locators) == 0 {
		locators = []Locator{NewRegistryLocator(registry), NewPortLocator(cfg.Port)}
	}
	s := &Supervisor{cfg: cfg, registry: registry, locators: locators}
	s.kill = func(pid int) error { return unix.Kill(pid, unix.SIGKILL) }
	s.start = s.spawn
	s.probe = func(ctx context.Context) bool {
		d := net.Dialer{Timeout: s.cfg.ProbeTimeout}
		conn, err := d.DialContext(ctx, "tcp", s.addr())
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
	return s
}

// EndpointLive reports whether the control endpoint accepts TCP connections.
// Pure observation, no side effects.
func (s *Supervisor) EndpointLive(ctx context.Context) bool {
	return s.probe(ctx)
}

// TerminateOwned resolves the owned process and force-kills it. Locators are
// tried in order; a kill failure on a non-final locator falls through to the
// next one, and only a kill failure on the final locator is reported. Finding
// no candidate anywhere is success, so the call is idempotent.
func (s *Supervisor) TerminateOwned(ctx context.Context) error {
	log := pslog.Ctx(ctx)
	killed := false
	for i, loc := range s.locators {
		proc, ok := loc.Locate(ctx)
		if !ok {
			continue
		}
		plog := log
		if plog != nil {
			plog = logx.WithProcess(plog, proc)
		}
		if proc.Via == schema.DiscoveredViaPortScan {
			// Keep the discovery for future runs even if the kill fails.
			if err := s.registry.Save(proc.PID); err != nil && plog != nil {
				plog.Warn("pid save failed", "err", err)
			}
		}
		if plog != nil {
			plog.Info("terminating owned browser")
		}
		if err := s.kill(proc.PID); err != nil {
			if i == len(s.locators)-1 {
				if plog != nil {
					plog.Error("kill failed", "err", err)
				}
				return fmt.Errorf("%w: pid %d: %v", schema.ErrTerminateFailed, proc.PID, err)
			}
			if plog != nil {
				plog.Warn("kill failed; trying next discovery strategy", "err", err)
			}
			continue
		}
		killed = true
		break
	}
	if killed {
		// Let the OS finish socket teardown before any relaunch.
		_ = s.wait(ctx, s.cfg.KillSettle)
	} else if log != nil {
		log.Debug("no owned browser process to terminate")
	}
	return nil
}

// Launch starts the browser with remote debugging on the control port and an
// isolated profile directory, then waits for the endpoint to come live. The
// child PID is persisted immediately after the spawn so an interrupted run
// can still find the process it started.
func (s *Supervisor) Launch(ctx context.Context) error {
	log := pslog.Ctx(ctx)
	pid, err := s.start(ctx)
	if err != nil {
		if log != nil {
			log.Error("browser start failed", "binary", s.cfg.Binary, "err", err)
		}
		return fmt.Errorf("%w: %v", schema.ErrStartFailed, err)
	}
	if err := s.registry.Save(pid); err != nil && log != nil {
		log.Warn("pid save failed", "pid", pid, "err", err)
	}
	if log != nil {
		log.Info("browser started", "pid", pid, "port", s.cfg.Port)
	}
	for attempt := 1; attempt <= s.cfg.PollAttempts; attempt++ {
		if s.EndpointLive(ctx) {
			if log != nil {
				log.Info("control endpoint live", "addr", s.addr(), "attempts", attempt)
			}
			return nil
		}
		if err := s.wait(ctx, s.cfg.PollInterval); err != nil {
			return fmt.Errorf("%w: %v", schema.ErrStartFailed, err)
		}
	}
	if log != nil {
		log.Error("control endpoint never came live", "addr", s.addr(), "attempts", s.cfg.PollAttempts)
	}
	return schema.ErrStartFailed
}

// Reconcile brings the browser process in line with the run intent. This is
// the single authoritative decision point for process lifecycle per run.
func (s *Supervisor) Reconcile(ctx context.Context, intent schema.RunIntent) error {
	log := pslog.Ctx(ctx)
	if !intent.ReuseIfPossible {
		if log != nil {
			log.Info("restart requested; terminating owned browser first")
		}
		if err := s.TerminateOwned(ctx); err != nil {
			return err
		}
		return s.Launch(ctx)
	}
	if s.EndpointLive(ctx) {
		if log != nil {
			log.Info("reusing live control endpoint", "addr", s.addr())
		}
		return nil
	}
	if log != nil {
		log.Info("control endpoint not live; launching browser", "addr", s.addr())
	}
	return s.Launch(ctx)
}

// Shutdown closes the browser, preferring the graceful protocol close and
// falling back to terminating the owned process. Best effort; logs failures
// and never returns them.
func (s *Supervisor) Shutdown(ctx context.Context, graceful func(context.Context) error) {
	log := pslog.Ctx(ctx)
	if graceful != nil {
		if err := graceful(ctx); err == nil {
			if log != nil {
				log.Info("browser closed via control protocol")
			}
			return
		} else if log != nil {
			log.Warn("protocol close failed; falling back to kill", "err", err)
		}
	}
	if err := s.TerminateOwned(ctx); err != nil && log != nil {
		log.Warn("fallback terminate failed", "err", err)
	}
}

func (s *Supervisor) spawn(_ context.Context) (int, error) {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", s.cfg.Port),
		fmt.Sprintf("--user-data-dir=%s", s.cfg.UserDataDir),
		"--no-first-run",
		"--no-default-browser-check",
	}
	args = append(args, s.cfg.ExtraArgs...)
	// Plain Command, not CommandContext: the browser must outlive this run
	// unless a stop is requested explicitly. Setsid detaches it from this
	// process group so our signals never reach it.
	cmd := exec.Command(s.cfg.Binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

func (s *Supervisor) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}
