package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autonet/pkg/peerconf"
	"autonet/pkg/vendors"
)

func newPeerConfigCmd() *cobra.Command {
	var req peerconf.SinglePeerRequest
	var output string
	cmd := &cobra.Command{
		Use:   "peer-config",
		Short: "Render the configuration for a single peer session",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			registry := vendors.DefaultRegistry(log)
			blob, err := peerconf.GenerateSingle(registry, req)
			if err != nil {
				return err
			}
			if output != "" {
				if err := os.WriteFile(output, []byte(blob), 0o644); err != nil {
					return err
				}
				log.Info("peer configuration written", zap.String("path", output))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), blob)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.ASN, "asn", "", "peer ASN, e.g. AS64512")
	cmd.Flags().StringVar(&req.Vendor, "vendor", "bird", "target vendor")
	cmd.Flags().StringVar(&req.NeighborIP, "neighbor", "", "neighbor session address")
	cmd.Flags().StringSliceVar(&req.ASSets, "as-set", nil, "AS-SET(s) to filter on")
	cmd.Flags().StringVar(&req.PeerType, "type", "peer", "relationship: upstream|peer|downstream")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "max-prefix limit")
	cmd.Flags().StringVar(&req.IXP, "ixp", "", "exchange name")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	_ = cmd.MarkFlagRequired("asn")
	_ = cmd.MarkFlagRequired("neighbor")

	cmd.AddCommand(&cobra.Command{
		Use:   "list-vendors",
		Short: "List registered vendor plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			for _, name := range vendors.DefaultRegistry(log).Vendors() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})
	return cmd
}
