package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/griotdb/griot/store/postgres"
)

func newTablesCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables wired for capture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), *dsn, func(st *postgres.Store) error {
				tables, err := st.Registry().List(cmd.Context())
				if err != nil {
					return err
				}
				if len(tables) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no tables enabled")
					return nil
				}
				for _, tbl := range tables {
					state := "active"
					if !tbl.Active {
						state = "paused"
					}
					mode := "rows"
					if !tbl.Config.CaptureRows {
						mode = "statement"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-40s %-8s %-10s keys=%s\n",
						tbl.Qualified(), state, mode, strings.Join(tbl.Config.KeyColumns, ","))
				}
				return nil
			})
		},
	}
}

func newTailCmd(dsn *string) *cobra.Command {
	var (
		since   time.Duration
		limit   int
		asJSON  bool
		eventID int64
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent history records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), *dsn, func(st *postgres.Store) error {
				if eventID != 0 {
					rec, err := st.Records().GetByEventID(cmd.Context(), eventID)
					if err != nil {
						return err
					}
					return json.NewEncoder(cmd.OutOrStdout()).Encode(rec)
				}

				now := time.Now().UTC()
				records, err := st.Records().ListByTimeRange(cmd.Context(), now.Add(-since), now, limit)
				if err != nil {
					return err
				}
				for _, rec := range records {
					if asJSON {
						if err := json.NewEncoder(cmd.OutOrStdout()).Encode(rec); err != nil {
							return err
						}
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d  %s  %-10s %-30s %s\n",
						rec.EventID, rec.StatementTime.Format(time.RFC3339), rec.Action,
						rec.Qualified(), rec.Actor)
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&since, "since", time.Hour, "How far back to read")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum records to show (0 = unlimited)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit one JSON object per record")
	cmd.Flags().Int64Var(&eventID, "event-id", 0, "Show a single record by event id")

	return cmd
}
