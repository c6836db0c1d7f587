package main

import (
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/checkin/internal/appconfig"
	"pkt.systems/checkin/internal/browser"
	"pkt.systems/checkin/internal/cdp"
	"pkt.systems/checkin/internal/logx"
	"pkt.systems/checkin/internal/pidfile"
	"pkt.systems/pslog"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	var attachTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run checkin diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			configPath := cfgPath
			if strings.TrimSpace(configPath) == "" {
				path, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			logger.Info("doctor start", "config", configPath)

			if path, err := exec.LookPath(cfg.Browser.Binary); err != nil {
				logger.Warn("doctor browser binary not found", "binary", cfg.Browser.Binary, "err", err)
			} else {
				logger.Info("doctor browser binary ok", "path", path)
			}

			registry, err := pidfile.New(cfg.Browser.PidFile)
			if err != nil {
				return err
			}
			if proc, ok := browser.NewRegistryLocator(registry).Locate(ctx); ok {
				logx.WithProcess(logger, proc).Info("doctor pid file ok")
			} else {
				logger.Info("doctor pid file has no live process", "path", registry.Path())
			}
			if proc, ok := browser.NewPortLocator(cfg.Endpoint.Port).Locate(ctx); ok {
				logx.WithProcess(logger, proc).Info("doctor control port owner found")
			} else {
				logger.Info("doctor control port has no listener", "port", cfg.Endpoint.Port)
			}

			sup := browser.New(browser.Config{
				Host:         cfg.Endpoint.Host,
				Port:         cfg.Endpoint.Port,
				ProbeTimeout: time.Duration(cfg.Timeouts.EndpointProbeMS) * time.Millisecond,
			}, registry)
			if !sup.EndpointLive(ctx) {
				logger.Info("doctor control endpoint not live", "host", cfg.Endpoint.Host, "port", cfg.Endpoint.Port)
				logger.Info("doctor complete")
				return nil
			}
			logger.Info("doctor control endpoint ok", "host", cfg.Endpoint.Host, "port", cfg.Endpoint.Port)

			session, err := cdp.Attach(ctx, cdp.Config{
				Host:          cfg.Endpoint.Host,
				Port:          cfg.Endpoint.Port,
				AttachTimeout: attachTimeout,
			})
			if err != nil {
				logger.Warn("doctor attach failed", "err", err)
				logger.Info("doctor complete")
				return nil
			}
			defer func() { _ = session.Close() }()
			product, err := session.BrowserVersion(ctx)
			if err != nil {
				logger.Warn("doctor browser version check failed", "err", err)
				logger.Info("doctor complete")
				return nil
			}
			logger.Info("doctor attach ok", "browser", product)
			logger.Info("doctor complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().DurationVar(&attachTimeout, "attach-timeout", 10*time.Second, "timeout for the control endpoint attach check")
	return cmd
}
