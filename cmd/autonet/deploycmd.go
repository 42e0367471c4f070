package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autonet/pkg/config"
	"autonet/pkg/deploy"
	"autonet/pkg/errdefs"
	"autonet/pkg/model"
	"autonet/pkg/validate"
)

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Stage, validate, and push configurations to the fleet",
	}
	cmd.AddCommand(newDeployCheckCmd(), newDeployPushCmd(), newDeployStatusCmd())
	return cmd
}

func newLock(cfg *config.Config, log *zap.Logger) (deploy.StagingLock, error) {
	if cfg.Deploy.Lock == "consul" {
		return deploy.NewConsulLock(cfg.Deploy.ConsulAddr, cfg.Deploy.ConsulLockKey, log)
	}
	return deploy.NewFlockLock(cfg.StageDir), nil
}

func printValidation(cmd *cobra.Command, results []model.ValidationResult) {
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		target := r.Router
		if target == "" {
			target = "(run)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-4s %-12s %s\n", status, r.Stage, target)
		for _, e := range r.Errors {
			fmt.Fprintf(cmd.OutOrStdout(), "     error: %s\n", e)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(cmd.OutOrStdout(), "     warning: %s\n", w)
		}
	}
}

func newDeployCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Generate, stage, and validate without touching any router",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			p, err := newPipeline(cfg, log)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, cancel := p.runContext(context.Background())
			defer cancel()

			out, err := p.generate(ctx)
			if err != nil {
				return err
			}
			if err := deploy.WriteTrees(out.Configs, cfg.StageDir); err != nil {
				return err
			}

			validator := validate.New(p.registry, log)
			results, ok := validator.ValidateAll(cfg, out.Configs, cfg.StageDir)
			printValidation(cmd, results)
			if !ok {
				return fmt.Errorf("pre-deployment checks failed: %w", errdefs.ErrValidation)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all routers validated")
			return nil
		},
	}
}

func newDeployPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Run the full deployment: stage, validate, upload, activate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			p, err := newPipeline(cfg, log)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, cancel := p.runContext(context.Background())
			defer cancel()

			out, err := p.generate(ctx)
			if err != nil {
				return err
			}

			lock, err := newLock(cfg, log)
			if err != nil {
				return err
			}
			if cfg.Deploy.SSHKeyPath != "" {
				session, err := deploy.StartSession(cfg.Deploy.SSHKeyPath, log)
				if err != nil {
					return err
				}
				defer session.Close()
			}

			transport := deploy.NewRsyncSSH(cfg.Deploy.SSHUser, cfg.Deploy.RemoteDir, cfg.Deploy.SSHTimeout)
			validator := validate.New(p.registry, log)
			orch := deploy.NewOrchestrator(transport, lock, validator, log)
			orch.MaxParallel = cfg.Deploy.MaxParallel
			orch.Observer = func(ev model.Event) {
				if err := p.store.AppendEvent(ev); err != nil {
					log.Warn("state store append failed", zap.Error(err))
				}
			}

			report := orch.Run(ctx, p.runID, cfg, cfg.Routers(), out.Configs, cfg.StageDir)
			for _, rec := range report.Records {
				if err := p.store.TrackDeployment(rec); err != nil {
					log.Warn("state store deployment record failed", zap.Error(err))
				}
			}

			printValidation(cmd, report.Validation)
			for _, rec := range report.Records {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-24s %s\n", rec.Router, rec.Outcome, rec.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s finished: %s\n", report.RunID, report.State)
			return report.Err()
		},
	}
}

func newDeployStatusCmd() *cobra.Command {
	var router string
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent deployment outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			records, err := store.Deployments(router, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
	cmd.Flags().StringVar(&router, "router", "", "filter by router name")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to show")
	return cmd
}
