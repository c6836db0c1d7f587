package checkin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/checkin/internal/appconfig"
	"pkt.systems/checkin/internal/cdp"
	"pkt.systems/checkin/schema"
)

type fakeSupervisor struct {
	reconcileErr error
	intents      []schema.RunIntent
	shutdowns    int
	gracefulNil  bool
	gracefulErr  error
	events       *[]string
}

func (f *fakeSupervisor) Reconcile(_ context.Context, intent schema.RunIntent) error {
	f.intents = append(f.intents, intent)
	return f.reconcileErr
}

func (f *fakeSupervisor) Shutdown(ctx context.Context, graceful func(context.Context) error) {
	f.shutdowns++
	f.gracefulNil = graceful == nil
	if f.events != nil {
		*f.events = append(*f.events, "shutdown")
	}
	if graceful != nil {
		f.gracefulErr = graceful(ctx)
	}
}

type fakeRunSession struct {
	sels appconfig.SelectorsConfig

	loginVisible  bool
	dialogVisible bool
	message       string
	navErr        error
	claimErr      error
	closeErr      error

	navigated     []string
	dialogWaits   []time.Duration
	triggerClicks int
	claimClicks   int
	browserClosed bool
	closed        bool
	events        *[]string
}

func (f *fakeRunSession) Navigate(_ context.Context, url string, _ time.Duration) error {
	f.navigated = append(f.navigated, url)
	return f.navErr
}

func (f *fakeRunSession) WaitVisible(_ context.Context, sel string, timeout time.Duration) error {
	visible := false
	switch sel {
	case f.sels.Login:
		visible = f.loginVisible
	case f.sels.Dialog:
		f.dialogWaits = append(f.dialogWaits, timeout)
		visible = f.dialogVisible
	case f.sels.TriggerRegion:
		visible = true
	}
	if visible {
		return nil
	}
	return fmt.Errorf("%w: %s", schema.ErrElementNotFound, sel)
}

func (f *fakeRunSession) Text(_ context.Context, _ string, _ time.Duration) (string, error) {
	return f.message, nil
}

func (f *fakeRunSession) HoverClick(_ context.Context, _ string, _, _ time.Duration) error {
	f.triggerClicks++
	f.dialogVisible = true
	return nil
}

func (f *fakeRunSession) ClickScript(_ context.Context, _ string, _ time.Duration) error {
	f.claimClicks++
	return f.claimErr
}

func (f *fakeRunSession) OuterHTML(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "<html></html>", nil
}

func (f *fakeRunSession) CloseBrowser(_ context.Context) error {
	f.browserClosed = true
	return nil
}

func (f *fakeRunSession) Close() error {
	f.closed = true
	if f.events != nil {
		*f.events = append(*f.events, "close")
	}
	return f.closeErr
}

func testClient(t *testing.T, sup *fakeSupervisor, session *fakeRunSession) *Client {
	t.Helper()
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	session.sels = cfg.Selectors
	client, err := New(cfg,
		WithSupervisor(sup),
		WithAttach(func(_ context.Context, _ cdp.Config) (Session, error) {
			return session, nil
		}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestRunClaimsAndStopsOnExit(t *testing.T) {
	sup := &fakeSupervisor{}
	session := &fakeRunSession{message: "Congrats!"}
	client := testClient(t, sup, session)

	intent := schema.RunIntent{ReuseIfPossible: true, StopOnExit: true}
	report, err := client.Run(context.Background(), intent)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Outcome != schema.OutcomeClaimed {
		t.Fatalf("outcome = %v, want %v", report.Outcome, schema.OutcomeClaimed)
	}
	if len(sup.intents) != 1 || sup.intents[0] != intent {
		t.Fatalf("reconcile intents = %+v", sup.intents)
	}
	if len(session.navigated) != 1 {
		t.Fatalf("navigated = %v", session.navigated)
	}
	if sup.shutdowns != 1 {
		t.Fatalf("shutdowns = %d, want 1", sup.shutdowns)
	}
	if !session.browserClosed {
		t.Fatalf("graceful close was not attempted")
	}
	if !session.closed {
		t.Fatalf("session was not released")
	}
}

func TestRunClaimsWithEmptyDialogMessage(t *testing.T) {
	sup := &fakeSupervisor{}
	session := &fakeRunSession{}
	client := testClient(t, sup, session)

	report, err := client.Run(context.Background(), schema.RunIntent{ReuseIfPossible: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Outcome != schema.OutcomeClaimed {
		t.Fatalf("outcome = %v, want %v", report.Outcome, schema.OutcomeClaimed)
	}
	if report.Message != "" {
		t.Fatalf("message = %q, want empty", report.Message)
	}
	if session.claimClicks != 1 {
		t.Fatalf("claim clicks = %d, want 1", session.claimClicks)
	}
}

func TestRunKeepsBrowserWithoutStopFlag(t *testing.T) {
	sup := &fakeSupervisor{}
	session := &fakeRunSession{message: "Congrats!"}
	client := testClient(t, sup, session)

	if _, err := client.Run(context.Background(), schema.RunIntent{ReuseIfPossible: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sup.shutdowns != 0 {
		t.Fatalf("shutdowns = %d, want 0", sup.shutdowns)
	}
	if !session.closed {
		t.Fatalf("session was not released")
	}
}

func TestRunLoginRequiredOverridesStop(t *testing.T) {
	sup := &fakeSupervisor{}
	session := &fakeRunSession{loginVisible: true}
	client := testClient(t, sup, session)

	report, err := client.Run(context.Background(), schema.RunIntent{StopOnExit: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Outcome != schema.OutcomeLoginRequired {
		t.Fatalf("outcome = %v, want %v", report.Outcome, schema.OutcomeLoginRequired)
	}
	if sup.shutdowns != 0 {
		t.Fatalf("browser stopped despite pending manual sign-in")
	}
	if !session.closed {
		t.Fatalf("session was not released")
	}
}

func TestRunReconcileFailure(t *testing.T) {
	sup := &fakeSupervisor{reconcileErr: fmt.Errorf("%w: exec: not found", schema.ErrStartFailed)}
	attached := 0
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	client, err := New(cfg,
		WithSupervisor(sup),
		WithAttach(func(_ context.Context, _ cdp.Config) (Session, error) {
			attached++
			return nil, errors.New("unreachable")
		}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	report, err := client.Run(context.Background(), schema.RunIntent{})
	if !errors.Is(err, schema.ErrStartFailed) {
		t.Fatalf("err = %v, want %v", err, schema.ErrStartFailed)
	}
	if report.Outcome != schema.OutcomeError {
		t.Fatalf("outcome = %v, want %v", report.Outcome, schema.OutcomeError)
	}
	if attached != 0 {
		t.Fatalf("attach ran after reconcile failure")
	}
}

func TestRunReconcileFailureWithStopStillShutsDown(t *testing.T) {
	sup := &fakeSupervisor{reconcileErr: fmt.Errorf("%w: endpoint never came live", schema.ErrStartFailed)}
	session := &fakeRunSession{}
	client := testClient(t, sup, session)

	// A failed launch can already have spawned and registered a process, so
	// a stop request applies even when reconcile reports failure.
	report, err := client.Run(context.Background(), schema.RunIntent{StopOnExit: true})
	if !errors.Is(err, schema.ErrStartFailed) {
		t.Fatalf("err = %v, want %v", err, schema.ErrStartFailed)
	}
	if report.Outcome != schema.OutcomeError {
		t.Fatalf("outcome = %v, want %v", report.Outcome, schema.OutcomeError)
	}
	if sup.shutdowns != 1 {
		t.Fatalf("shutdowns = %d, want 1", sup.shutdowns)
	}
	if !sup.gracefulNil {
		t.Fatalf("expected shutdown without a graceful close")
	}
	if session.closed {
		t.Fatalf("released a session that was never attached")
	}
}

func TestRunAttachFailureStopsLaunchedBrowser(t *testing.T) {
	sup := &fakeSupervisor{}
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	client, err := New(cfg,
		WithSupervisor(sup),
		WithAttach(func(_ context.Context, _ cdp.Config) (Session, error) {
			return nil, errors.New("connection refused")
		}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	// Reconcile may have just launched the browser, so a stop request still
	// applies after a failed attach; there is no session for a graceful close.
	report, err := client.Run(context.Background(), schema.RunIntent{StopOnExit: true})
	if err == nil {
		t.Fatalf("expected attach error")
	}
	if report.Outcome != schema.OutcomeError {
		t.Fatalf("outcome = %v, want %v", report.Outcome, schema.OutcomeError)
	}
	if sup.shutdowns != 1 {
		t.Fatalf("shutdowns = %d, want 1", sup.shutdowns)
	}
	if !sup.gracefulNil {
		t.Fatalf("expected shutdown without a graceful close")
	}
}

func TestRunAttachFailureWithoutStopLeavesBrowser(t *testing.T) {
	sup := &fakeSupervisor{}
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	client, err := New(cfg,
		WithSupervisor(sup),
		WithAttach(func(_ context.Context, _ cdp.Config) (Session, error) {
			return nil, errors.New("connection refused")
		}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.Run(context.Background(), schema.RunIntent{}); err == nil {
		t.Fatalf("expected attach error")
	}
	if sup.shutdowns != 0 {
		t.Fatalf("shutdowns = %d, want 0", sup.shutdowns)
	}
}

func TestRunNavigateFailureStillCleansUp(t *testing.T) {
	sup := &fakeSupervisor{}
	session := &fakeRunSession{navErr: errors.New("net::ERR_CONNECTION_REFUSED")}
	client := testClient(t, sup, session)

	report, err := client.Run(context.Background(), schema.RunIntent{StopOnExit: true})
	if err == nil {
		t.Fatalf("expected navigate error")
	}
	if report.Outcome != schema.OutcomeError {
		t.Fatalf("outcome = %v, want %v", report.Outcome, schema.OutcomeError)
	}
	if sup.shutdowns != 1 {
		t.Fatalf("shutdowns = %d, want 1", sup.shutdowns)
	}
	if !session.closed {
		t.Fatalf("session was not released")
	}
}

func TestRunCooldownScenario(t *testing.T) {
	sup := &fakeSupervisor{}
	session := &fakeRunSession{message: "02/01/2031 08:00 come back tomorrow"}
	client := testClient(t, sup, session)

	report, err := client.Run(context.Background(), schema.RunIntent{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Outcome != schema.OutcomeCooldown {
		t.Fatalf("outcome = %v, want %v", report.Outcome, schema.OutcomeCooldown)
	}
	want := time.Date(2031, time.February, 1, 8, 0, 0, 0, time.Local)
	if !report.NextAvailableAt.Equal(want) {
		t.Fatalf("next available = %v, want %v", report.NextAvailableAt, want)
	}
	if session.claimClicks != 0 {
		t.Fatalf("claim clicks = %d, want 0", session.claimClicks)
	}
}

func TestRunWorkflowFaultIsReportedNotReturned(t *testing.T) {
	sup := &fakeSupervisor{}
	session := &fakeRunSession{message: "Congrats!", claimErr: errors.New("node detached")}
	client := testClient(t, sup, session)

	report, err := client.Run(context.Background(), schema.RunIntent{})
	if err != nil {
		t.Fatalf("workflow fault should not surface as run error, got %v", err)
	}
	if report.Outcome != schema.OutcomeError {
		t.Fatalf("outcome = %v, want %v", report.Outcome, schema.OutcomeError)
	}
}

func TestRunPassesReuseFlagToDialogWait(t *testing.T) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	for _, tt := range []struct {
		reuse bool
		want  time.Duration
	}{
		{reuse: false, want: seconds(cfg.Timeouts.DialogOpenSeconds)},
		{reuse: true, want: seconds(cfg.Timeouts.DialogOpenReuseSeconds)},
	} {
		sup := &fakeSupervisor{}
		session := &fakeRunSession{message: "Congrats!"}
		client := testClient(t, sup, session)
		if _, err := client.Run(context.Background(), schema.RunIntent{ReuseIfPossible: tt.reuse}); err != nil {
			t.Fatalf("run: %v", err)
		}
		if len(session.dialogWaits) != 2 {
			t.Fatalf("dialog waits = %v", session.dialogWaits)
		}
		if session.dialogWaits[1] != tt.want {
			t.Fatalf("reuse=%v: dialog wait = %v, want %v", tt.reuse, session.dialogWaits[1], tt.want)
		}
	}
}

func TestRunLogsSessionReleaseFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := pslog.NewWithOptions(&buf, pslog.Options{Mode: pslog.ModeStructured, NoColor: true, MinLevel: pslog.InfoLevel})
	ctx := pslog.ContextWithLogger(context.Background(), logger)

	sup := &fakeSupervisor{}
	session := &fakeRunSession{message: "Congrats!", closeErr: errors.New("websocket already closed")}
	client := testClient(t, sup, session)

	report, err := client.Run(ctx, schema.RunIntent{})
	if err != nil {
		t.Fatalf("release failure should not surface as run error, got %v", err)
	}
	if report.Outcome != schema.OutcomeClaimed {
		t.Fatalf("outcome = %v, want %v", report.Outcome, schema.OutcomeClaimed)
	}
	if !session.closed {
		t.Fatalf("session was not released")
	}
	if !strings.Contains(buf.String(), "session release failed") {
		t.Fatalf("release failure was not logged:\n%s", buf.String())
	}
}

func TestRunCleanupOrder(t *testing.T) {
	events := []string{}
	sup := &fakeSupervisor{events: &events}
	session := &fakeRunSession{message: "Congrats!", events: &events}
	client := testClient(t, sup, session)

	if _, err := client.Run(context.Background(), schema.RunIntent{StopOnExit: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(events) != 2 || events[0] != "shutdown" || events[1] != "close" {
		t.Fatalf("cleanup order = %v, want [shutdown close]", events)
	}
}
