package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/foodscan/matcher/internal/app"
	"github.com/foodscan/matcher/internal/domain"
	"github.com/foodscan/matcher/internal/infrastructure/sqlite"
	"github.com/spf13/cobra"
)

// NewCatalogCmd creates the catalog command group
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the food catalog",
	}

	cmd.AddCommand(newCatalogImportCmd())

	return cmd
}

func newCatalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import catalog items from a JSON file",
		Long: `Import catalog items from a JSON array. Items are upserted by code, so
re-importing a file updates existing rows instead of duplicating them.

Each item looks like:
  {"code": "D101-004", "name": "김치찌개", "commonName": "김치찌개",
   "servingSize": "1인분 (400g)", "nutrients": {"energy_kcal": 180}}

Run "foodmatch index" afterwards to embed the new items.`,
		Args: cobra.ExactArgs(1),
		RunE: runCatalogImport,
	}
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening catalog file: %w", err)
	}
	defer f.Close()

	items, err := decodeCatalog(f)
	if err != nil {
		return err
	}

	db, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlite.NewCatalogStore(db).UpsertItems(cmd.Context(), items); err != nil {
		return fmt.Errorf("importing catalog: %w", err)
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d catalog items into %s\n", len(items), cfg.Store.Path)
	}
	return nil
}

// decodeCatalog reads a JSON array of catalog items. Codes and names are
// required; unknown nutrient keys are rejected.
func decodeCatalog(r io.Reader) ([]domain.CatalogItem, error) {
	var items []domain.CatalogItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding catalog file: %w", err)
	}

	seen := make(map[string]bool, len(items))
	for i := range items {
		item := &items[i]
		item.ID = 0
		item.Code = strings.TrimSpace(item.Code)
		item.Name = strings.TrimSpace(item.Name)

		if item.Code == "" {
			return nil, fmt.Errorf("item %d: code is required", i)
		}
		if item.Name == "" {
			return nil, fmt.Errorf("item %d (%s): name is required", i, item.Code)
		}
		if seen[item.Code] {
			return nil, fmt.Errorf("item %d: duplicate code %s", i, item.Code)
		}
		seen[item.Code] = true

		for key := range item.Nutrients {
			if !domain.IsNutrientKey(key) {
				return nil, fmt.Errorf("item %d (%s): unknown nutrient %q", i, item.Code, key)
			}
		}
	}

	return items, nil
}
