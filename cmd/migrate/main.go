package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"customsdesk/internal/config"
)

var (
	sourceURL string
	m         *migrate.Migrate
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply declaration session schema migrations",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			m, err = migrate.New(sourceURL, cfg.DB.DSN())
			if err != nil {
				return fmt.Errorf("failed to create migrate instance: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			srcErr, dbErr := m.Close()
			if srcErr != nil {
				return srcErr
			}
			return dbErr
		},
	}

	root.PersistentFlags().StringVar(&sourceURL, "source", "file://db/migrations", "migration source URL")
	root.AddCommand(upCmd(), downCmd(), stepsCmd(), versionCmd())
	return root
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration up failed: %w", err)
			}
			log.Println("migrations applied successfully")
			return nil
		},
	}
}

func downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Revert all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration down failed: %w", err)
			}
			log.Println("migrations reverted successfully")
			return nil
		},
	}
}

func stepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations (negative to revert)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid steps argument: %w", err)
			}
			if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration steps failed: %w", err)
			}
			log.Printf("applied %d migration steps", n)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			version, dirty, err := m.Version()
			if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
				return fmt.Errorf("failed to get version: %w", err)
			}
			fmt.Printf("version: %d, dirty: %v\n", version, dirty)
			return nil
		},
	}
}
