package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tcmartin/flowstudio/pkg/storage"
)

// newMigrateCmd initializes the configured storage backend, creating
// PostgreSQL tables or checking Redis connectivity
func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Prepare the configured storage backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := storage.NewProvider(opts.cfg.Storage.ProviderConfig())
			if err != nil {
				return fmt.Errorf("failed to connect to %s storage: %w", opts.cfg.Storage.Type, err)
			}
			defer provider.Close()

			if err := provider.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize %s storage: %w", opts.cfg.Storage.Type, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Storage %s is ready\n", opts.cfg.Storage.Type)
			return nil
		},
	}
}
