package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pkt.systems/checkin/internal/mocksite"
	"pkt.systems/pslog"
)

func newMockSiteCmd() *cobra.Command {
	var addr string
	var scenario string
	cmd := &cobra.Command{
		Use:   "mock-site",
		Short: "Serve a local stand-in for the reward page",
		Long: `Mock-site serves a page with the same selector structure as the real
reward page, so a claim run can be exercised end to end against localhost.
The scenario flag picks the page state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := mocksite.New(mocksite.Scenario(scenario))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			pslog.Ctx(ctx).Info("mock site listening", "addr", addr, "scenario", scenario)
			return mocksite.ListenAndServe(ctx, addr, site.Handler())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8077", "listen address")
	cmd.Flags().StringVar(&scenario, "scenario", string(mocksite.ScenarioClaim),
		fmt.Sprintf("page scenario, one of: %s", strings.Join(scenarioNames(), ", ")))
	return cmd
}

func scenarioNames() []string {
	all := mocksite.Scenarios()
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, string(s))
	}
	return names
}
