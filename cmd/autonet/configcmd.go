package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"autonet/pkg/config"
	"autonet/pkg/errdefs"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate the governing document and manage secrets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Run the schema validation stage against the document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			res := cfg.Validate()
			if !res.Passed {
				for _, e := range res.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", e)
				}
				return fmt.Errorf("document is invalid: %w", errdefs.ErrConfiguration)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "generate-key",
		Short: "Generate a new encryption key for config secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := config.GenerateEncryptionKey()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export %s=%s\n", config.EncryptionKeyEnv, key)
			return nil
		},
	})

	var value string
	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a secret for embedding in the document",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := config.EncryptValue(value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.EncryptedPrefix+enc)
			return nil
		},
	}
	encrypt.Flags().StringVar(&value, "value", "", "plaintext to encrypt")
	_ = encrypt.MarkFlagRequired("value")
	cmd.AddCommand(encrypt)

	return cmd
}
