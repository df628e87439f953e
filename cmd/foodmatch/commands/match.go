package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/foodscan/matcher/internal/app"
	"github.com/foodscan/matcher/internal/domain"
	"github.com/spf13/cobra"
)

var (
	matchLimit     int
	matchThreshold float64
)

// NewMatchCmd creates the match command
func NewMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <query>",
		Short: "Match food text against the indexed catalog",
		Long: `Load the vector index from the store and print the catalog items most
similar to the query, best first.

Limit and threshold default to the matching section of the configuration.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMatch,
		Example: `  foodmatch match "김치찌개"
  foodmatch match --limit 3 --threshold 0.5 "chicken breast"
  foodmatch match --format json "비빔밥"`,
	}

	cmd.Flags().IntVar(&matchLimit, "limit", 0, "Maximum matches to return (default from config)")
	cmd.Flags().Float64Var(&matchThreshold, "threshold", 0, "Minimum similarity between 0 and 1 (default from config)")

	return cmd
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	limit := cfg.Matching.DefaultLimit
	if cmd.Flags().Changed("limit") {
		limit = matchLimit
	}
	threshold := cfg.Matching.DefaultThreshold
	if cmd.Flags().Changed("threshold") {
		threshold = matchThreshold
	}

	ctx := cmd.Context()
	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	if _, err := application.Matcher.Reload(ctx); err != nil {
		return fmt.Errorf("loading index: %w", err)
	}

	query := strings.Join(args, " ")
	matches, err := application.Matcher.Match(ctx, query, limit, threshold)
	if err != nil {
		return err
	}

	return printMatches(cmd.OutOrStdout(), query, matches)
}

func printMatches(out io.Writer, query string, matches []domain.MatchResult) error {
	if outputFormat == "json" {
		if matches == nil {
			matches = []domain.MatchResult{}
		}
		jsonData, err := json.MarshalIndent(domain.MatchResponse{Matches: matches}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", jsonData)
		return nil
	}

	if len(matches) == 0 {
		if !quiet {
			fmt.Fprintf(out, "No matches found for query: %s\n", query)
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tID\tCODE\tNAME\tSERVING\tKCAL\n")
	fmt.Fprintf(w, "-----\t--\t----\t----\t-------\t----\n")
	for _, m := range matches {
		kcal := "-"
		if v, ok := m.Item.Nutrients[domain.NutrientEnergy]; ok {
			kcal = fmt.Sprintf("%.0f", v)
		}
		fmt.Fprintf(w, "%.3f\t%d\t%s\t%s\t%s\t%s\n",
			m.Score,
			m.Item.ID,
			m.Item.Code,
			truncate(displayName(m.Item), 40),
			m.Item.ServingSize,
			kcal)
	}
	w.Flush()

	if !quiet {
		fmt.Fprintf(out, "\nFound %d match(es)\n", len(matches))
	}
	return nil
}

func displayName(item domain.CatalogItem) string {
	if item.CommonName != "" && item.CommonName != item.Name {
		return item.Name + " (" + item.CommonName + ")"
	}
	return item.Name
}

// truncate shortens a string to maxLen runes, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
