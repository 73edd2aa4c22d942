package main

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/gymdesk/gymdesk/internal/app"
	"github.com/gymdesk/gymdesk/internal/platform/db"
)

func parseSweepDate(raw string) (*civil.Date, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return &d, nil
}

func sweepCommand() *cobra.Command {
	var rawDate string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark eligible members with no record absent for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseSweepDate(rawDate)
			if err != nil {
				return err
			}
			cfg := configFrom(cmd)
			logger := loggerFor(cfg)
			pool, err := db.New(cmd.Context(), cfg.PGDSN, cfg.FacilityTimezone)
			if err != nil {
				return err
			}
			defer pool.Close()

			services, err := app.NewServices(cfg, pool, nil, nil, logger)
			if err != nil {
				return err
			}
			res := services.Sweeper.Run(cmd.Context(), date)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: eligible=%d already_marked=%d marked=%d\n",
				res.Date, res.Eligible, res.AlreadyMarked, res.Marked)
			return res.Err
		},
	}
	cmd.Flags().StringVar(&rawDate, "date", "", "day to sweep (YYYY-MM-DD), defaults to today in the facility timezone")
	return cmd
}
