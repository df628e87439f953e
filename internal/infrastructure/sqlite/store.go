package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/foodscan/matcher/internal/domain"
)

// nutrientColumns are the foods columns backing CatalogItem.Nutrients. Column
// names equal the nutrient keys.
var nutrientColumns = strings.Join(domain.NutrientKeys, ", ")

// CatalogStore implements domain.CatalogRepository on the foods and
// food_embeddings tables
type CatalogStore struct {
	db *DB
}

// NewCatalogStore creates a new CatalogStore
func NewCatalogStore(db *DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// ListItems returns every catalog item ordered by id
func (s *CatalogStore) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, food_code, food_name, common_name, serving_size, `+nutrientColumns+`
		FROM foods
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.CatalogItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpsertItems inserts or updates catalog items keyed by food_code in one transaction
func (s *CatalogStore) UpsertItems(ctx context.Context, items []domain.CatalogItem) error {
	if len(items) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 5+len(domain.NutrientKeys)+1), ", ")
	updates := []string{
		"food_name = excluded.food_name",
		"common_name = excluded.common_name",
		"serving_size = excluded.serving_size",
		"updated_at = excluded.updated_at",
	}
	for _, key := range domain.NutrientKeys {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", key, key))
	}
	query := `INSERT INTO foods (id, food_code, food_name, common_name, serving_size, ` + nutrientColumns + `, updated_at)
		VALUES (` + placeholders + `)
		ON CONFLICT(food_code) DO UPDATE SET ` + strings.Join(updates, ", ")

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		now := time.Now().UTC().Format(time.RFC3339Nano)
		for _, item := range items {
			if item.Code == "" {
				return fmt.Errorf("item %q has no code", item.Name)
			}
			args := []interface{}{
				nullID(item.ID),
				item.Code,
				item.Name,
				nullString(item.CommonName),
				nullString(item.ServingSize),
			}
			for _, key := range domain.NutrientKeys {
				if v, ok := item.Nutrients[key]; ok {
					args = append(args, v)
				} else {
					args = append(args, nil)
				}
			}
			args = append(args, now)

			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("upserting food %s: %w", item.Code, err)
			}
		}
		return nil
	})
}

// UpsertEmbeddings writes a batch of embeddings in a single transaction.
// created_at is kept on conflict so only updated_at changes on re-runs.
func (s *CatalogStore) UpsertEmbeddings(ctx context.Context, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO food_embeddings (food_id, dimension, embedding, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(food_id) DO UPDATE SET
				dimension = excluded.dimension,
				embedding = excluded.embedding,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for _, rec := range records {
			vecJSON, err := json.Marshal(rec.Vector)
			if err != nil {
				return err
			}
			_, err = stmt.ExecContext(ctx,
				rec.ItemID,
				rec.Dimension,
				string(vecJSON),
				rec.CreatedAt.UTC().Format(time.RFC3339Nano),
				rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
			)
			if err != nil {
				return fmt.Errorf("upserting embedding for food %d: %w", rec.ItemID, err)
			}
		}
		return nil
	})
}

// ListIndexed returns every embedding joined with its food, ordered by id.
// Embeddings without a food row are excluded by the join.
func (s *CatalogStore) ListIndexed(ctx context.Context) ([]domain.IndexedItem, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT f.id, f.food_code, f.food_name, f.common_name, f.serving_size, `+prefixed("f.", domain.NutrientKeys)+`,
		       fe.dimension, fe.embedding
		FROM food_embeddings fe
		JOIN foods f ON f.id = fe.food_id
		ORDER BY f.id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []domain.IndexedItem
	for rows.Next() {
		var (
			row       domain.IndexedItem
			vecJSON   string
			dimension int
		)
		item, err := scanItem(rows, &dimension, &vecJSON)
		if err != nil {
			return nil, err
		}

		var vector []float32
		if err := json.Unmarshal([]byte(vecJSON), &vector); err != nil {
			return nil, fmt.Errorf("%w: food %d: %v", domain.ErrCorruptIndex, item.ID, err)
		}

		row.Item = item
		row.Dimension = dimension
		row.Vector = vector
		result = append(result, row)
	}
	return result, rows.Err()
}

// GetEmbedding retrieves the embedding for a food, or nil when none is stored
func (s *CatalogStore) GetEmbedding(ctx context.Context, itemID int64) (*domain.EmbeddingRecord, error) {
	var (
		rec       domain.EmbeddingRecord
		vecJSON   string
		createdAt string
		updatedAt string
	)

	err := s.db.conn.QueryRowContext(ctx, `
		SELECT food_id, dimension, embedding, created_at, updated_at
		FROM food_embeddings
		WHERE food_id = ?
	`, itemID).Scan(&rec.ItemID, &rec.Dimension, &vecJSON, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(vecJSON), &rec.Vector); err != nil {
		return nil, fmt.Errorf("%w: food %d: %v", domain.ErrCorruptIndex, itemID, err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &rec, nil
}

// CountEmbeddings returns the number of stored embeddings
func (s *CatalogStore) CountEmbeddings(ctx context.Context) (int, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM food_embeddings`).Scan(&n)
	return n, err
}

// inTx runs fn inside a transaction, committing only when fn succeeds
func (s *CatalogStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// scanItem scans the food columns of the current row, plus any extra trailing columns
func scanItem(rows *sql.Rows, extra ...interface{}) (domain.CatalogItem, error) {
	var (
		item        domain.CatalogItem
		commonName  sql.NullString
		servingSize sql.NullString
		nutrients   = make([]sql.NullFloat64, len(domain.NutrientKeys))
	)

	dest := []interface{}{&item.ID, &item.Code, &item.Name, &commonName, &servingSize}
	for i := range nutrients {
		dest = append(dest, &nutrients[i])
	}
	dest = append(dest, extra...)

	if err := rows.Scan(dest...); err != nil {
		return item, err
	}

	item.CommonName = commonName.String
	item.ServingSize = servingSize.String
	item.Nutrients = make(map[string]float64)
	for i, key := range domain.NutrientKeys {
		if nutrients[i].Valid {
			item.Nutrients[key] = nutrients[i].Float64
		}
	}
	return item, nil
}

func prefixed(prefix string, columns []string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}
