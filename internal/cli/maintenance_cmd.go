package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/griotdb/griot/internal/db"
	"github.com/griotdb/griot/store/postgres"
)

func newMigrateCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending audit schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := resolveDSN(*dsn)
			if err != nil {
				return err
			}
			if err := db.RunMigrations(cmd.Context(), resolved); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newPartitionsCmd(dsn *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partitions",
		Short: "Manage monthly history partitions",
	}
	cmd.AddCommand(newPartitionsEnsureCmd(dsn))
	cmd.AddCommand(newPartitionsListCmd(dsn))
	return cmd
}

func newPartitionsEnsureCmd(dsn *string) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create any missing partitions for a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if year == 0 {
				year = time.Now().UTC().Year()
			}
			return withStore(cmd.Context(), *dsn, func(st *postgres.Store) error {
				maint := postgres.NewMaintenance(st.Pool(), postgres.MaintenanceOptions{})
				created, err := maint.EnsurePartitions(cmd.Context(), year)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "year %d: %d partitions created\n", year, created)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Year to provision (default: current UTC year)")

	return cmd
}

func newPartitionsListCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List existing partitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), *dsn, func(st *postgres.Store) error {
				maint := postgres.NewMaintenance(st.Pool(), postgres.MaintenanceOptions{})
				partitions, err := maint.ListPartitions(cmd.Context())
				if err != nil {
					return err
				}
				for _, p := range partitions {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			})
		},
	}
}

func newIndexesCmd(dsn *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexes",
		Short: "Manage partition indexes",
	}
	cmd.AddCommand(newIndexesProvisionCmd(dsn))
	return cmd
}

func newIndexesProvisionCmd(dsn *string) *cobra.Command {
	var (
		hotKeys  []string
		timeZone string
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create any missing indexes on existing partitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), *dsn, func(st *postgres.Store) error {
				maint := postgres.NewMaintenance(st.Pool(), postgres.MaintenanceOptions{
					HotKeys:       hotKeys,
					IndexTimeZone: timeZone,
				})
				created, err := maint.ProvisionIndexes(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d indexes created\n", created)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&hotKeys, "hot-keys", nil, "row_image keys to index on every partition")
	cmd.Flags().StringVar(&timeZone, "timezone", "UTC", "Zone for the calendar-date index expression")

	return cmd
}
