package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"election_board/pkg/display"
	"election_board/pkg/election"
	"election_board/pkg/poller"
	"election_board/pkg/settings"
)

func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fetch the results endpoint once and summarise the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}

			store := settings.NewStore(&cfg.Settings, zap.NewNop())
			if err := store.Load(); err != nil {
				return err
			}

			endpoint := cfg.Poller.Endpoint
			if !cfg.Poller.PinEndpoint {
				endpoint = store.Endpoint(endpoint)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Poller.Timeout)
			defer cancel()

			data, err := poller.NewHTTPFetcher(&cfg.Poller).Fetch(ctx, endpoint)
			if err != nil {
				return fmt.Errorf("%s: %w", endpoint, err)
			}

			summarize(cmd.OutOrStdout(), endpoint, data)
			return nil
		},
	}
}

func summarize(w io.Writer, endpoint string, data *election.ElectionData) {
	fmt.Fprintf(w, "endpoint: %s\n", endpoint)
	fmt.Fprintf(w, "mode:     %s\n", data.DisplayMode)
	fmt.Fprintf(w, "ticker:   %s\n", data.TickerText)

	switch data.DisplayMode {
	case election.ModePresidential:
		r := data.Presidential
		fmt.Fprintf(w, "counted:  %s / %s\n", display.FormatGrouped(r.CountedVotes()), display.FormatGrouped(r.TotalVotes))
		for i, c := range r.Candidates {
			fmt.Fprintf(w, "  %d. %s %s 票 (%s%%)\n", i+1, c.Name, display.FormatVotes(c.Votes), display.FormatPercent(c.Percentage))
		}
	case election.ModeLegislative:
		for _, area := range data.Legislative.Areas {
			fmt.Fprintf(w, "%s: %s / %s\n", area.Area, display.FormatGrouped(area.CountedVotes()), display.FormatGrouped(area.TotalVotes))
		}
	case election.ModeProportional:
		r := data.Proportional
		fmt.Fprintf(w, "seats:    %d / %d\n", r.AllocatedSeats(), r.TotalSeats)
		for _, p := range r.Seats {
			fmt.Fprintf(w, "  %s %d 席 (%s%%)\n", p.Party, p.Seats, display.FormatPercent(p.Percentage))
		}
	}
}
