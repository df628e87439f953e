package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultHashDimension is the vector width of the hash embedder
const DefaultHashDimension = 256

// HashEmbedder produces deterministic feature-hashed embeddings without a
// model. Each word and each character bigram of a word adds a signed unit to
// one bucket, so texts sharing words or syllables score higher. Blank text
// yields the zero vector.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hash embedder with the given vector width
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultHashDimension
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Model identifies the embedder for cache keys and logs
func (e *HashEmbedder) Model() string {
	return fmt.Sprintf("hash-%d", e.dimensions)
}

// Dimension returns the vector width
func (e *HashEmbedder) Dimension() int {
	return e.dimensions
}

// Embed returns one unit-length vector per text
func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embedOne(text)
	}
	return vectors, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	vector := make([]float32, e.dimensions)

	for _, word := range strings.Fields(strings.ToLower(text)) {
		e.addFeature(vector, "w:"+word, 1.0)

		runes := []rune(word)
		for i := 0; i+1 < len(runes); i++ {
			e.addFeature(vector, "b:"+string(runes[i:i+2]), 0.5)
		}
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return vector
	}

	magnitude := math.Sqrt(sumSquares)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
	return vector
}

// addFeature hashes feature into a bucket; one hash bit picks the sign
func (e *HashEmbedder) addFeature(vector []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	value := h.Sum64()

	bucket := int(value % uint64(e.dimensions))
	if value&(1<<63) != 0 {
		weight = -weight
	}
	vector[bucket] += weight
}
