package usecase

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/foodscan/matcher/internal/domain"
)

// oversampleFactor sets how many ranked candidates are kept per requested
// result before threshold filtering
const oversampleFactor = 2

// VectorIndex is an immutable snapshot of catalog vectors. Rows are ordered by
// ascending item id and stored contiguously, row i at data[i*dim:(i+1)*dim].
type VectorIndex struct {
	items    []domain.CatalogItem
	data     []float32
	dim      int
	loadedAt time.Time
}

// LoadIndex reads every stored embedding joined with its catalog item and
// builds a new snapshot from them.
func LoadIndex(ctx context.Context, store domain.CatalogRepository) (*VectorIndex, error) {
	rows, err := store.ListIndexed(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading embeddings: %w", domain.ErrStoreFailure, err)
	}
	return BuildIndex(rows)
}

// BuildIndex builds a snapshot from joined rows. A row whose vector length
// disagrees with its recorded dimension, or with the first row's dimension,
// fails the whole build.
func BuildIndex(rows []domain.IndexedItem) (*VectorIndex, error) {
	if len(rows) == 0 {
		return nil, domain.ErrEmptyCatalog
	}

	ordered := make([]domain.IndexedItem, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Item.ID < ordered[j].Item.ID
	})

	dim := ordered[0].Dimension
	if dim <= 0 {
		return nil, fmt.Errorf("%w: item %d has dimension %d", domain.ErrCorruptIndex, ordered[0].Item.ID, dim)
	}

	idx := &VectorIndex{
		items:    make([]domain.CatalogItem, len(ordered)),
		data:     make([]float32, 0, len(ordered)*dim),
		dim:      dim,
		loadedAt: time.Now(),
	}

	for i, row := range ordered {
		if row.Dimension != dim {
			return nil, fmt.Errorf("%w: item %d has dimension %d, index dimension is %d",
				domain.ErrCorruptIndex, row.Item.ID, row.Dimension, dim)
		}
		if len(row.Vector) != row.Dimension {
			return nil, fmt.Errorf("%w: item %d stores %d components for dimension %d",
				domain.ErrCorruptIndex, row.Item.ID, len(row.Vector), row.Dimension)
		}
		if i > 0 && row.Item.ID == ordered[i-1].Item.ID {
			return nil, fmt.Errorf("%w: item %d has more than one embedding", domain.ErrCorruptIndex, row.Item.ID)
		}
		idx.items[i] = copyItem(row.Item)
		idx.data = append(idx.data, row.Vector...)
	}

	return idx, nil
}

// Len returns the number of indexed items
func (idx *VectorIndex) Len() int {
	return len(idx.items)
}

// Dimension returns the vector width of the index
func (idx *VectorIndex) Dimension() int {
	return idx.dim
}

// LoadedAt returns when the snapshot was built
func (idx *VectorIndex) LoadedAt() time.Time {
	return idx.loadedAt
}

// Search ranks every indexed vector by its dot product with query (score desc,
// id asc), keeps the top 2×limit candidates, drops those scoring below
// threshold and returns at most limit results. The query is expected to be
// unit length already.
func (idx *VectorIndex) Search(query []float32, limit int, threshold float64) ([]domain.MatchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrInvalidInput, limit)
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: query dimension %d does not match index dimension %d",
			domain.ErrInvalidInput, len(query), idx.dim)
	}

	window := min(limit*oversampleFactor, len(idx.items))
	top := make(candidateHeap, 0, window+1)

	for i := range idx.items {
		c := candidate{row: i, score: dot(idx.data[i*idx.dim:(i+1)*idx.dim], query)}
		if len(top) < window {
			heap.Push(&top, c)
			continue
		}
		if c.ranksAbove(top[0]) {
			top[0] = c
			heap.Fix(&top, 0)
		}
	}

	ranked := []candidate(top)
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].ranksAbove(ranked[j])
	})

	results := make([]domain.MatchResult, 0, limit)
	for _, c := range ranked {
		// written so that NaN scores never pass
		if !(c.score >= threshold) {
			continue
		}
		results = append(results, domain.MatchResult{
			Score: c.score,
			Item:  copyItem(idx.items[c.row]),
		})
		if len(results) >= limit {
			break
		}
	}

	return results, nil
}

// copyItem returns item with its own Nutrients map. The snapshot never shares
// a map with its inputs or its results.
func copyItem(item domain.CatalogItem) domain.CatalogItem {
	if item.Nutrients != nil {
		nutrients := make(map[string]float64, len(item.Nutrients))
		for k, v := range item.Nutrients {
			nutrients[k] = v
		}
		item.Nutrients = nutrients
	}
	return item
}

// candidate is a scored index row. Rows are in ascending id order, so the row
// number doubles as the id tie-break.
type candidate struct {
	row   int
	score float64
}

// ranksAbove orders by score descending, then by row ascending
func (c candidate) ranksAbove(other candidate) bool {
	if c.score != other.score {
		return c.score > other.score
	}
	return c.row < other.row
}

// candidateHeap is a min-heap on rank: the root is the weakest kept candidate
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[j].ranksAbove(h[i]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
