package commands

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/foodscan/matcher/config"
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

// NewRootCmd creates the foodmatch root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foodmatch",
		Short: "Match food text to a nutrition catalog",
		Long: `foodmatch matches free-form food text against a catalog of reference foods
using embedding similarity.

Seed the catalog, build embeddings, then query:
  foodmatch catalog import foods.json
  foodmatch index
  foodmatch match "김치찌개"

Configuration is read from config.yaml, FOODMATCH_* environment variables
and a .env file in the working directory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			switch outputFormat {
			case "auto", "table", "json":
			default:
				return fmt.Errorf("--format must be auto, table or json, got %q", outputFormat)
			}
			if quiet {
				log.SetOutput(io.Discard)
			} else {
				log.SetOutput(os.Stderr)
			}
			return config.LoadEnvFile()
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging of match scores")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress logs and summaries")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, table or json")

	cmd.AddCommand(NewIndexCmd())
	cmd.AddCommand(NewMatchCmd())
	cmd.AddCommand(NewCatalogCmd())
	cmd.AddCommand(NewMCPCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads configuration and applies global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Matching.EnableDebugLogging = true
	}
	return cfg, nil
}
