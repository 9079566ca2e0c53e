// Package cli implements the griotctl commands. Every command talks straight
// to the database; there is no control-plane API to go through.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/griotdb/griot/internal/config"
	"github.com/griotdb/griot/store/postgres"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var dsn string

	rootCmd := &cobra.Command{
		Use:           "griotctl",
		Short:         "Administer griot change capture",
		Long:          "Enable tables for capture, provision partitions and indexes, and inspect history.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string (default: GRIOT_DB_* environment)")

	rootCmd.AddCommand(newMigrateCmd(&dsn))
	rootCmd.AddCommand(newEnableCmd(&dsn))
	rootCmd.AddCommand(newDisableCmd(&dsn))
	rootCmd.AddCommand(newToggleCmd(&dsn))
	rootCmd.AddCommand(newBulkEnableCmd(&dsn))
	rootCmd.AddCommand(newTablesCmd(&dsn))
	rootCmd.AddCommand(newPartitionsCmd(&dsn))
	rootCmd.AddCommand(newIndexesCmd(&dsn))
	rootCmd.AddCommand(newTailCmd(&dsn))

	return rootCmd
}

// resolveDSN prefers the --dsn flag, falling back to GRIOT_DB_* environment
// configuration.
func resolveDSN(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.Database.DSN(), nil
}

// withStore opens a small pool for the duration of one command.
func withStore(ctx context.Context, dsnFlag string, fn func(*postgres.Store) error) error {
	dsn, err := resolveDSN(dsnFlag)
	if err != nil {
		return err
	}
	st, err := postgres.New(ctx, dsn, 4)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

// splitTable parses a "schema.table" or bare "table" argument.
func splitTable(arg string) (schema, table string) {
	if i := strings.IndexByte(arg, '.'); i >= 0 {
		return arg[:i], arg[i+1:]
	}
	return "public", arg
}
