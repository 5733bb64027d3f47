package cli

import (
	"fmt"

	"github.com/harun/eva/internal/config"
	"github.com/harun/eva/internal/container"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalog",
	Long: `Print the catalog of tools available on the configured device, as it is
offered to the reasoning model.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	c, err := container.New(cmd.Context(), cfg, container.Options{Logger: zerolog.Nop()})
	if err != nil {
		return err
	}
	defer c.Close()

	reg, err := c.Registry()
	if err != nil {
		return err
	}
	catalog, err := reg.CatalogJSON()
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), catalog)
	return nil
}
