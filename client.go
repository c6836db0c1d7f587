package checkin

import (
	"context"
	"fmt"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/checkin/internal/appconfig"
	"pkt.systems/checkin/internal/browser"
	"pkt.systems/checkin/internal/cdp"
	"pkt.systems/checkin/internal/claim"
	"pkt.systems/checkin/internal/logx"
	"pkt.systems/checkin/internal/pidfile"
	"pkt.systems/checkin/schema"
)

// Supervisor owns the browser process lifecycle.
type Supervisor interface {
	Reconcile(ctx context.Context, intent schema.RunIntent) error
	Shutdown(ctx context.Context, graceful func(context.Context) error)
}

// Session is an attached remote browser session.
type Session interface {
	claim.Session
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	CloseBrowser(ctx context.Context) error
	Close() error
}

// AttachFunc connects a session to the control endpoint.
type AttachFunc func(ctx context.Context, cfg cdp.Config) (Session, error)

// Client drives one claim run end to end: reconcile the browser process with
// the run intent, attach over the control endpoint, navigate to the target,
// and walk the claim dialog to a terminal outcome.
type Client struct {
	cfg        appconfig.Config
	supervisor Supervisor
	attach     AttachFunc
}

// Option overrides a client dependency.
type Option func(*Client)

// WithSupervisor replaces the browser supervisor.
func WithSupervisor(s Supervisor) Option {
	return func(c *Client) { c.supervisor = s }
}

// WithAttach replaces the session attach function.
func WithAttach(fn AttachFunc) Option {
	return func(c *Client) { c.attach = fn }
}

// New constructs a client from the application configuration.
func New(cfg appconfig.Config, opts ...Option) (*Client, error) {
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.supervisor == nil {
		registry, err := pidfile.New(cfg.Browser.PidFile)
		if err != nil {
			return nil, fmt.Errorf("pid registry: %w", err)
		}
		c.supervisor = browser.New(supervisorConfig(cfg), registry)
	}
	if c.attach == nil {
		c.attach = func(ctx context.Context, sc cdp.Config) (Session, error) {
			return cdp.Attach(ctx, sc)
		}
	}
	return c, nil
}

// Run performs one claim attempt. Terminal workflow outcomes come back in
// the report with a nil error; a non-nil error means the page could not be
// reached at all. Cleanup always runs, even when the caller's context has
// expired by the time the run ends.
func (c *Client) Run(ctx context.Context, intent schema.RunIntent) (schema.RunReport, error) {
	log := pslog.Ctx(ctx)
	if log != nil {
		log = logx.WithTarget(ctx, c.cfg.Target.URL)
	}

	// Cleanup runs on every exit path: a stop request applies even when
	// reconcile or attach fails, since a failed launch can already have
	// spawned and registered a process.
	var session Session
	stop := intent.StopOnExit
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if stop {
			var graceful func(context.Context) error
			if session != nil {
				graceful = session.CloseBrowser
			}
			c.supervisor.Shutdown(cleanupCtx, graceful)
		}
		if session != nil {
			if err := session.Close(); err != nil && log != nil {
				log.Warn("session release failed", "err", err)
			}
		}
	}()

	if err := c.supervisor.Reconcile(ctx, intent); err != nil {
		return schema.RunReport{Outcome: schema.OutcomeError, Detail: err.Error()}, err
	}

	session, err := c.attach(ctx, sessionConfig(c.cfg))
	if err != nil {
		return schema.RunReport{Outcome: schema.OutcomeError, Detail: err.Error()}, err
	}

	if err := session.Navigate(ctx, c.cfg.Target.URL, seconds(c.cfg.Timeouts.NavigateSeconds)); err != nil {
		return schema.RunReport{Outcome: schema.OutcomeError, Detail: err.Error()}, err
	}

	report := claim.New(workflowConfig(c.cfg), session).Run(ctx, intent.ReuseIfPossible)
	if report.Outcome == schema.OutcomeLoginRequired && stop {
		stop = false
		if log != nil {
			log.Info("leaving browser running for manual sign-in")
		}
	}
	if log != nil {
		logx.WithReport(log, report).Info("claim run complete")
	}
	return report, nil
}

func supervisorConfig(cfg appconfig.Config) browser.Config {
	return browser.Config{
		Binary:       cfg.Browser.Binary,
		UserDataDir:  cfg.Browser.UserDataDir,
		ExtraArgs:    cfg.Browser.ExtraArgs,
		Host:         cfg.Endpoint.Host,
		Port:         cfg.Endpoint.Port,
		ProbeTimeout: millis(cfg.Timeouts.EndpointProbeMS),
		PollInterval: seconds(cfg.Timeouts.LaunchPollSeconds),
		PollAttempts: cfg.Timeouts.LaunchPollAttempts,
		KillSettle:   seconds(cfg.Timeouts.KillSettleSeconds),
	}
}

func sessionConfig(cfg appconfig.Config) cdp.Config {
	return cdp.Config{
		Host: cfg.Endpoint.Host,
		Port: cfg.Endpoint.Port,
	}
}

func workflowConfig(cfg appconfig.Config) claim.Config {
	return claim.Config{
		Selectors: claim.Selectors{
			Login:         cfg.Selectors.Login,
			Dialog:        cfg.Selectors.Dialog,
			TriggerRegion: cfg.Selectors.TriggerRegion,
			Trigger:       cfg.Selectors.Trigger,
			Message:       cfg.Selectors.Message,
			ClaimButton:   cfg.Selectors.ClaimButton,
		},
		Budgets: claim.Budgets{
			LoginProbe:      seconds(cfg.Timeouts.LoginProbeSeconds),
			DialogProbe:     seconds(cfg.Timeouts.DialogProbeSeconds),
			TriggerWait:     seconds(cfg.Timeouts.TriggerWaitSeconds),
			HoverPause:      millis(cfg.Timeouts.HoverPauseMS),
			DialogOpen:      seconds(cfg.Timeouts.DialogOpenSeconds),
			DialogOpenReuse: seconds(cfg.Timeouts.DialogOpenReuseSeconds),
			Message:         seconds(cfg.Timeouts.MessageSeconds),
			ClaimClick:      seconds(cfg.Timeouts.ClaimClickSeconds),
		},
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
