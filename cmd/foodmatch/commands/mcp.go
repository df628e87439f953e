package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/foodscan/matcher/internal/app"
	foodmcp "github.com/foodscan/matcher/internal/delivery/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs foodmatch as an MCP (Model Context Protocol) server on stdio, exposing
the match_food tool so LLM agents can resolve dish names to catalog foods.
The index is loaded once at startup.`,
		Args: cobra.NoArgs,
		RunE: runMCP,
		Example: `  # Configure in an MCP client:
  # {
  #   "mcpServers": {
  #     "foodmatch": {
  #       "command": "foodmatch",
  #       "args": ["mcp", "--quiet"]
  #     }
  #   }
  # }`,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	if _, err := application.Matcher.Reload(ctx); err != nil {
		return fmt.Errorf("loading index: %w", err)
	}

	server := mcpserver.NewMCPServer("foodmatch", "1.0.0")
	foodmcp.RegisterTools(server, foodmcp.NewHandlers(application.Matcher, foodmcp.Defaults{
		Limit:     cfg.Matching.DefaultLimit,
		Threshold: cfg.Matching.DefaultThreshold,
	}))

	log.Println("foodmatch MCP server starting on stdio...")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}
