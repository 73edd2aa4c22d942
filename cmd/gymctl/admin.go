package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gymdesk/gymdesk/internal/platform/db"
	"github.com/gymdesk/gymdesk/internal/staff"
)

const adminPasswordEnv = "GYMDESK_ADMIN_PASSWORD"

func bootstrapAdminCommand() *cobra.Command {
	var in staff.BootstrapInput
	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first administrator if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Password = os.Getenv(adminPasswordEnv)
			if in.Password == "" {
				return errors.New(adminPasswordEnv + " must be set")
			}
			cfg := configFrom(cmd)
			logger := loggerFor(cfg)
			pool, err := db.New(cmd.Context(), cfg.PGDSN, cfg.FacilityTimezone)
			if err != nil {
				return err
			}
			defer pool.Close()

			acc, created, err := staff.Bootstrap(cmd.Context(), staff.NewRepository(pool), in, logger)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", acc.Email, acc.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "admin already exists: %s (id %d)\n", acc.Email, acc.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
