package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"autonet/pkg/config"
	"autonet/pkg/state"
)

func openStore(cfg *config.Config) (state.Store, error) {
	return state.Open(state.StoreConfig{
		Backend:      cfg.State.Backend,
		DatabasePath: cfg.State.DatabasePath,
	})
}

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and maintain the run history",
	}
	cmd.AddCommand(newStateEventsCmd(), newStateGenerationsCmd(), newStatePruneCmd(), newStateExportCmd())
	return cmd
}

func withStore(fn func(cmd *cobra.Command, cfg *config.Config, store state.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd, cfg, store)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStateEventsCmd() *cobra.Command {
	var since time.Duration
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent observability events",
		RunE: withStore(func(cmd *cobra.Command, cfg *config.Config, store state.Store) error {
			events, err := store.Events(time.Now().Add(-since), time.Time{}, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, events)
		}),
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "look-back window")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum events to show")
	return cmd
}

func newStateGenerationsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "generations",
		Short: "Show recent generation runs",
		RunE: withStore(func(cmd *cobra.Command, cfg *config.Config, store state.Store) error {
			records, err := store.Generations(limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, records)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to show")
	return cmd
}

func newStatePruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Apply the configured retention policy",
		RunE: withStore(func(cmd *cobra.Command, cfg *config.Config, store state.Store) error {
			retention := time.Duration(cfg.State.RetentionDays) * 24 * time.Hour
			if err := store.Prune(retention, cfg.State.MaxGenerations); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned events older than %s, kept %d generations\n",
				retention, cfg.State.MaxGenerations)
			return nil
		}),
	}
}

func newStateExportCmd() *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the run history as JSON",
		RunE: withStore(func(cmd *cobra.Command, cfg *config.Config, store state.Store) error {
			return store.ExportJSON(cmd.OutOrStdout(), time.Now().Add(-since))
		}),
	}
	cmd.Flags().DurationVar(&since, "since", 30*24*time.Hour, "export window")
	return cmd
}
