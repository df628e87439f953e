package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foodscan/matcher/internal/app"
	"github.com/foodscan/matcher/internal/domain"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"
)

var (
	indexRetries uint64
	indexBackoff time.Duration
)

// NewIndexCmd creates the index command
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed every catalog item and store the vectors",
		Long: `Embed every catalog item and upsert the vectors into the store.

Runs are idempotent: re-running replaces each item's vector. A failed run
leaves the chunks it already wrote in place. Provider failures can be retried
with --retries, which re-runs the whole index with Fibonacci backoff.`,
		Args: cobra.NoArgs,
		RunE: runIndex,
		Example: `  foodmatch index
  foodmatch index --retries 3`,
	}

	cmd.Flags().Uint64Var(&indexRetries, "retries", 0, "Retry the whole run this many times on provider failure")
	cmd.Flags().DurationVar(&indexBackoff, "backoff", time.Second, "Initial retry backoff")

	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	start := time.Now()
	count, err := reindexWithRetry(ctx, indexRetries, indexBackoff, application.Indexer.Reindex)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if outputFormat == "json" {
		fmt.Fprintf(cmd.OutOrStdout(), "{\"indexed\":%d}\n", count)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d\n", count)
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Indexed %d catalog items in %s\n", count, time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// reindexWithRetry runs reindex, retrying provider failures up to retries
// times. Store failures and cancellation are not retried.
func reindexWithRetry(ctx context.Context, retries uint64, backoff time.Duration, reindex func(context.Context) (int, error)) (int, error) {
	if backoff <= 0 {
		backoff = time.Second
	}
	b := retry.WithMaxRetries(retries, retry.NewFibonacci(backoff))

	var count int
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		n, err := reindex(ctx)
		if err == nil {
			count = n
			return nil
		}
		if errors.Is(err, domain.ErrProviderFailure) {
			log.Printf("[INDEX] Attempt %d failed: %v", attempt, err)
			return retry.RetryableError(err)
		}
		return err
	})
	return count, err
}
