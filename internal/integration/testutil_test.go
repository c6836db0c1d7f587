package integration_test

import (
	"context"
	"net"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"pkt.systems/checkin/internal/appconfig"
	"pkt.systems/checkin/internal/browser"
	"pkt.systems/checkin/internal/mocksite"
	"pkt.systems/checkin/internal/pidfile"
)

var browserCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
}

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func requireBrowser(t *testing.T) string {
	t.Helper()
	for _, candidate := range browserCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path
		}
	}
	t.Skip("no chrome binary available")
	return ""
}

func newSiteServer(t *testing.T, scenario mocksite.Scenario) (*mocksite.Site, *httptest.Server) {
	t.Helper()
	site, err := mocksite.New(scenario)
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(site.Handler())
	t.Cleanup(server.Close)
	return site, server
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port
}

// testConfig points a default config at the mock site and a scratch browser
// profile, with waits trimmed so failing paths do not stall the suite.
func testConfig(t *testing.T, target, binary string) appconfig.Config {
	t.Helper()
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	profile := t.TempDir()
	cfg.Target.URL = target
	cfg.Browser.Binary = binary
	cfg.Browser.UserDataDir = profile
	cfg.Browser.PidFile = filepath.Join(profile, "chrome.pid")
	cfg.Browser.ExtraArgs = []string{"--headless", "--disable-gpu", "--no-sandbox", "--disable-dev-shm-usage"}
	cfg.Endpoint.Port = freePort(t)
	cfg.Timeouts.LaunchPollAttempts = 30
	cfg.Timeouts.KillSettleSeconds = 1
	cfg.Timeouts.NavigateSeconds = 20
	cfg.Timeouts.LoginProbeSeconds = 2
	cfg.Timeouts.DialogProbeSeconds = 1
	cfg.Timeouts.TriggerWaitSeconds = 5
	cfg.Timeouts.HoverPauseMS = 100
	cfg.Timeouts.DialogOpenSeconds = 3
	cfg.Timeouts.DialogOpenReuseSeconds = 5
	cfg.Timeouts.MessageSeconds = 2
	cfg.Timeouts.ClaimClickSeconds = 3
	return cfg
}

// ensureBrowserStopped kills any browser the test leaves behind, whatever
// state the run ended in.
func ensureBrowserStopped(t *testing.T, cfg appconfig.Config) {
	t.Helper()
	t.Cleanup(func() {
		registry, err := pidfile.New(cfg.Browser.PidFile)
		if err != nil {
			return
		}
		sup := browser.New(browser.Config{
			Host:       cfg.Endpoint.Host,
			Port:       cfg.Endpoint.Port,
			KillSettle: 100 * time.Millisecond,
		}, registry)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = sup.TerminateOwned(ctx)
	})
}

func runContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	t.Cleanup(cancel)
	return ctx
}
