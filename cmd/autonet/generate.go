package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autonet/pkg/deploy"
)

func newGenerateCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate prefix filters and router configurations",
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

			dir := outDir
			if dir == "" {
				dir = cfg.BuildDir
			}
			if err := deploy.WriteTrees(out.Configs, dir); err != nil {
				return err
			}
			log.Info("build trees written",
				zap.String("dir", dir),
				zap.Int("routers", len(out.Configs)),
				zap.Int("peers", len(out.Peers)))
			fmt.Fprintf(cmd.OutOrStdout(), "generated %d router configurations (%d peers) into %s\n",
				len(out.Configs), len(out.Peers), dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (defaults to builddir)")
	return cmd
}
