package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/griotdb/griot"
	"github.com/griotdb/griot/internal/enable"
	"github.com/griotdb/griot/store/postgres"
)

func newEnableCmd(dsn *string) *cobra.Command {
	var (
		keys   []string
		ignore []string
		noRows bool
		noText bool
	)

	cmd := &cobra.Command{
		Use:   "enable <schema.table>",
		Short: "Enable change capture for a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, table := splitTable(args[0])

			cfg := griot.DefaultTableConfig()
			cfg.CaptureRows = !noRows
			cfg.CaptureStatementText = !noText
			cfg.IgnoredColumns = ignore
			cfg.KeyColumns = keys

			return withStore(cmd.Context(), *dsn, func(st *postgres.Store) error {
				svc := enable.NewService(st.Registry(), st.Introspector())
				tbl, err := svc.Enable(cmd.Context(), schema, table, cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enabled %s (relation %d, keys: %s)\n",
					tbl.Qualified(), tbl.RelationID, strings.Join(tbl.Config.KeyColumns, ","))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&keys, "keys", nil, "Key columns for pairing update rows (default: primary key)")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "Columns to exclude from row images and diffs")
	cmd.Flags().BoolVar(&noRows, "no-rows", false, "Capture at statement level only")
	cmd.Flags().BoolVar(&noText, "no-text", false, "Do not keep statement text on records")

	return cmd
}

func newDisableCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <schema.table>",
		Short: "Remove a table's capture wiring (history stays)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, table := splitTable(args[0])
			return withStore(cmd.Context(), *dsn, func(st *postgres.Store) error {
				svc := enable.NewService(st.Registry(), st.Introspector())
				if err := svc.Disable(cmd.Context(), schema, table); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "disabled %s.%s\n", schema, table)
				return nil
			})
		},
	}
}

func newToggleCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <schema.table> <on|off>",
		Short: "Pause or resume capture without losing configuration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, table := splitTable(args[0])
			var active bool
			switch args[1] {
			case "on":
				active = true
			case "off":
				active = false
			default:
				return fmt.Errorf("state must be on or off, got %q", args[1])
			}
			return withStore(cmd.Context(), *dsn, func(st *postgres.Store) error {
				svc := enable.NewService(st.Registry(), st.Introspector())
				if err := svc.SetActive(cmd.Context(), schema, table, active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s.%s capture %s\n", schema, table, args[1])
				return nil
			})
		},
	}
}

func newBulkEnableCmd(dsn *string) *cobra.Command {
	var (
		schema string
		ignore []string
		noRows bool
		noText bool
	)

	cmd := &cobra.Command{
		Use:   "bulk-enable <pattern>",
		Short: "Enable capture for every table matching a SQL LIKE pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := griot.DefaultTableConfig()
			cfg.CaptureRows = !noRows
			cfg.CaptureStatementText = !noText
			cfg.IgnoredColumns = ignore

			return withStore(cmd.Context(), *dsn, func(st *postgres.Store) error {
				svc := enable.NewService(st.Registry(), st.Introspector())
				tables, err := svc.BulkEnable(cmd.Context(), schema, args[0], cfg)
				if err != nil {
					return err
				}
				for _, tbl := range tables {
					fmt.Fprintf(cmd.OutOrStdout(), "enabled %s (keys: %s)\n",
						tbl.Qualified(), strings.Join(tbl.Config.KeyColumns, ","))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&schema, "schema", "public", "Schema to match tables in")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "Columns to exclude from row images and diffs")
	cmd.Flags().BoolVar(&noRows, "no-rows", false, "Capture at statement level only")
	cmd.Flags().BoolVar(&noText, "no-text", false, "Do not keep statement text on records")

	return cmd
}
