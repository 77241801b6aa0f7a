package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/landrecords/internal/config"
)

func newInitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration file and the local store",
		Long: "Write a default config.yaml into the configuration directory unless one\n" +
			"exists, then create the local store tables. Running init twice is safe.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dataDir, err := e.resolveDataDir()
			if err != nil {
				return fmt.Errorf("resolving data dir: %w", err)
			}
			written, err := config.WriteDefault(e.configDir, dataDir)
			if err != nil {
				return err
			}
			local, err := e.openLocal()
			if err != nil {
				return err
			}
			if err := local.Detach(); err != nil {
				return fmt.Errorf("finalizing local store: %w", err)
			}

			out := cmd.OutOrStdout()
			if written {
				fmt.Fprintf(out, "Wrote %s/config.yaml\n", e.configDir)
			}
			fmt.Fprintf(out, "Local store ready in %s\n", dataDir)
			return nil
		},
	}
}
