package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(cosine(v, v))
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults and model name", func(t *testing.T) {
		e := NewHashEmbedder(0)
		assert.Equal(t, DefaultHashDimension, e.Dimension())
		assert.Equal(t, "hash-256", e.Model())
		assert.Equal(t, "hash-64", NewHashEmbedder(64).Model())
	})

	t.Run("one unit vector per text in order", func(t *testing.T) {
		e := NewHashEmbedder(128)
		vectors, err := e.Embed(ctx, []string{"김치찌개", "soy milk"})
		require.NoError(t, err)
		require.Len(t, vectors, 2)
		for _, v := range vectors {
			assert.Len(t, v, 128)
			assert.InDelta(t, 1.0, norm(v), 1e-5)
		}

		again, err := e.Embed(ctx, []string{"soy milk"})
		require.NoError(t, err)
		assert.Equal(t, vectors[1], again[0])
	})

	t.Run("case insensitive", func(t *testing.T) {
		e := NewHashEmbedder(128)
		vectors, err := e.Embed(ctx, []string{"Soy Milk", "soy milk"})
		require.NoError(t, err)
		assert.Equal(t, vectors[0], vectors[1])
	})

	t.Run("blank text is the zero vector", func(t *testing.T) {
		e := NewHashEmbedder(32)
		vectors, err := e.Embed(ctx, []string{"", "   "})
		require.NoError(t, err)
		for _, v := range vectors {
			assert.Equal(t, make([]float32, 32), v)
		}
	})

	t.Run("shared words score higher than unrelated text", func(t *testing.T) {
		e := NewHashEmbedder(512)
		vectors, err := e.Embed(ctx, []string{"김치찌개 기준량 1인분", "김치찌개", "chocolate cake"})
		require.NoError(t, err)
		assert.Greater(t, cosine(vectors[0], vectors[1]), cosine(vectors[0], vectors[2]))
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewHashEmbedder(8).Embed(canceled, []string{"x"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
