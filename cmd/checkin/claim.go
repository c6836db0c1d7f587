package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/checkin"
	"pkt.systems/checkin/internal/appconfig"
	"pkt.systems/checkin/internal/logx"
	"pkt.systems/checkin/schema"
)

func newClaimCmd() *cobra.Command {
	var (
		configPath string
		reuse      bool
		stopOnExit bool
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Run one claim attempt against the target page",
		Long: `Claim reconciles the owned Chrome process with the requested reuse mode,
attaches to its control endpoint, walks the claim dialog on the target page
and reports one outcome. The outcome is printed on stdout; dialog-level
outcomes such as cooldown or login-required exit zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(configPath)
			if err != nil {
				return err
			}
			client, err := checkin.New(cfg)
			if err != nil {
				return err
			}

			log := logx.WithTarget(cmd.Context(), cfg.Target.URL)
			ctx := logx.ContextWithTargetLogger(cmd.Context(), log, cfg.Target.URL)
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			log.Info("claim run start", "reuse", reuse, "stop_on_exit", stopOnExit)
			report, err := client.Run(ctx, schema.RunIntent{
				ReuseIfPossible: reuse,
				StopOnExit:      stopOnExit,
			})
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the config file (defaults to ~/.checkin/config.yaml)")
	cmd.Flags().BoolVar(&reuse, "reuse", false, "reuse a running browser when its control endpoint answers")
	cmd.Flags().BoolVar(&stopOnExit, "stop-on-exit", false, "terminate the owned browser when the run ends")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall run deadline (0 means no deadline)")
	return cmd
}

func printReport(cmd *cobra.Command, report schema.RunReport) {
	out := cmd.OutOrStdout()
	switch {
	case report.Outcome == schema.OutcomeCooldown && !report.NextAvailableAt.IsZero():
		_, _ = fmt.Fprintf(out, "%s until %s\n", report.Outcome, report.NextAvailableAt.Format(time.RFC3339))
	case report.Outcome == schema.OutcomeError && report.Detail != "":
		_, _ = fmt.Fprintf(out, "%s: %s\n", report.Outcome, report.Detail)
	default:
		_, _ = fmt.Fprintln(out, report.Outcome)
	}
}
