package claim

import (
	"context"
	"errors"
	"strings"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/checkin/schema"
)

// Session is the slice of the remote browser session the workflow drives.
// *cdp.Session satisfies it; tests use a fake.
type Session interface {
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	Text(ctx context.Context, sel string, timeout time.Duration) (string, error)
	HoverClick(ctx context.Context, sel string, pause, timeout time.Duration) error
	ClickScript(ctx context.Context, sel string, timeout time.Duration) error
	OuterHTML(ctx context.Context, sel string, timeout time.Duration) (string, error)
}

// Selectors locates the page elements the claim sequence touches.
type Selectors struct {
	Login         string
	Dialog        string
	TriggerRegion string
	Trigger       string
	Message       string
	ClaimButton   string
}

// Budgets holds the wait budget for each step of the sequence.
type Budgets struct {
	LoginProbe      time.Duration
	DialogProbe     time.Duration
	TriggerWait     time.Duration
	HoverPause      time.Duration
	DialogOpen      time.Duration
	DialogOpenReuse time.Duration
	Message         time.Duration
	ClaimClick      time.Duration
}

// Config carries the selectors and budgets for one claim attempt.
type Config struct {
	Selectors Selectors
	Budgets   Budgets
}

const (
	regionSnippetLen = 1000
	pageSnippetLen   = 2000
)

// Workflow drives the claim dialog to a terminal outcome. Driver faults
// surface as outcomes in the report, never as returned errors.
type Workflow struct {
	cfg     Config
	session Session
}

// New returns a workflow over the given session.
func New(cfg Config, session Session) *Workflow {
	return &Workflow{cfg: cfg, session: session}
}

// Run executes the claim sequence and always produces a terminal report.
// The reused flag selects the longer dialog-open budget a reused browser
// needs compared to a fresh launch.
func (w *Workflow) Run(ctx context.Context, reused bool) schema.RunReport {
	log := pslog.Ctx(ctx)

	if w.visible(ctx, w.cfg.Selectors.Login, w.cfg.Budgets.LoginProbe) {
		if log != nil {
			log.Info("login button present; manual sign-in required")
		}
		return schema.RunReport{Outcome: schema.OutcomeLoginRequired}
	}

	if w.visible(ctx, w.cfg.Selectors.Dialog, w.cfg.Budgets.DialogProbe) {
		// A dialog left open by an earlier run must not be re-triggered.
		if log != nil {
			log.Info("claim dialog already open")
		}
	} else {
		if report, ok := w.openDialog(ctx, reused); !ok {
			return report
		}
	}

	message := w.dialogMessage(ctx)

	if at, onCooldown := ParseCooldown(message); onCooldown {
		if log != nil {
			if at.IsZero() {
				log.Warn("reward on cooldown; next availability did not parse", "message", message)
			} else {
				log.Info("reward on cooldown", "next_available_at", at.Format(time.RFC3339))
			}
		}
		return schema.RunReport{Outcome: schema.OutcomeCooldown, Message: message, NextAvailableAt: at}
	}

	if err := w.session.ClickScript(ctx, w.cfg.Selectors.ClaimButton, w.cfg.Budgets.ClaimClick); err != nil {
		if log != nil {
			log.Error("claim button click failed", "err", err)
		}
		return schema.RunReport{Outcome: schema.OutcomeError, Message: message, Detail: err.Error()}
	}
	if log != nil {
		log.Info("claim button clicked", "message", message)
	}
	return schema.RunReport{Outcome: schema.OutcomeClaimed, Message: message}
}

// openDialog hovers and clicks the trigger, then waits for the dialog.
// ok is false when Run should return the report as-is.
func (w *Workflow) openDialog(ctx context.Context, reused bool) (schema.RunReport, bool) {
	log := pslog.Ctx(ctx)
	sels, budgets := w.cfg.Selectors, w.cfg.Budgets

	if err := w.session.WaitVisible(ctx, sels.TriggerRegion, budgets.TriggerWait); err != nil {
		if !errors.Is(err, schema.ErrElementNotFound) {
			return w.fail(ctx, "trigger region wait failed", err), false
		}
		if log != nil {
			log.Warn("trigger region not found", "err", err)
		}
		return schema.RunReport{Outcome: schema.OutcomeDialogNotFound, Detail: err.Error()}, false
	}

	if err := w.session.HoverClick(ctx, sels.Trigger, budgets.HoverPause, budgets.TriggerWait); err != nil {
		if !errors.Is(err, schema.ErrElementNotFound) {
			return w.fail(ctx, "trigger interaction failed", err), false
		}
		if log != nil {
			log.Warn("trigger not found", "err", err, "region_html", w.snippet(ctx, sels.TriggerRegion, regionSnippetLen))
		}
		return schema.RunReport{Outcome: schema.OutcomeDialogNotFound, Detail: err.Error()}, false
	}

	wait := budgets.DialogOpen
	if reused {
		wait = budgets.DialogOpenReuse
	}
	if err := w.session.WaitVisible(ctx, sels.Dialog, wait); err != nil {
		if !errors.Is(err, schema.ErrElementNotFound) {
			return w.fail(ctx, "dialog wait failed", err), false
		}
		if log != nil {
			log.Warn("claim dialog did not open", "waited", wait.String())
			log.Debug("page state after trigger click", "page_html", w.snippet(ctx, "html", pageSnippetLen))
		}
		return schema.RunReport{Outcome: schema.OutcomeDialogNotFound, Detail: err.Error()}, false
	}
	if log != nil {
		log.Info("claim dialog open")
	}
	return schema.RunReport{}, true
}

func (w *Workflow) fail(ctx context.Context, what string, err error) schema.RunReport {
	if log := pslog.Ctx(ctx); log != nil {
		log.Error(what, "err", err)
	}
	return schema.RunReport{Outcome: schema.OutcomeError, Detail: what + ": " + err.Error()}
}

func (w *Workflow) visible(ctx context.Context, sel string, budget time.Duration) bool {
	return w.session.WaitVisible(ctx, sel, budget) == nil
}

// dialogMessage reads the dialog text. A dialog without a message element
// yields an empty message, not a failure.
func (w *Workflow) dialogMessage(ctx context.Context) string {
	text, err := w.session.Text(ctx, w.cfg.Selectors.Message, w.cfg.Budgets.Message)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func (w *Workflow) snippet(ctx context.Context, sel string, max int) string {
	html, err := w.session.OuterHTML(ctx, sel, w.cfg.Budgets.Message)
	if err != nil {
		return ""
	}
	if len(html) > max {
		html = html[:max]
	}
	return html
}
