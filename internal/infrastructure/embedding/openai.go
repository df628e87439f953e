package embedding

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// DefaultOpenAIModel is the default embedding model
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// modelDimensions are the native output widths of known models, used to size
// zero vectors for blank texts without calling the API
var modelDimensions = map[string]int{
	string(openai.SmallEmbedding3): 1536,
	string(openai.LargeEmbedding3): 3072,
	string(openai.AdaEmbeddingV2):  1536,
}

// OpenAIConfig holds configuration for the OpenAI embedder
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Dimensions        int
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint. It does not retry; the
// caller owns retry policy.
type OpenAIEmbedder struct {
	client      *openai.Client
	model       string
	dimensions  int
	timeout     time.Duration
	rateLimiter *rate.Limiter
}

// NewOpenAIEmbedder creates a new OpenAI embedding client
func NewOpenAIEmbedder(config OpenAIConfig) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}

	model := config.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 5
	}

	return &OpenAIEmbedder{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		dimensions:  config.Dimensions,
		timeout:     timeout,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// Model returns the embedding model name, including a non-default width
func (e *OpenAIEmbedder) Model() string {
	if e.dimensions > 0 {
		return fmt.Sprintf("%s@%d", e.model, e.dimensions)
	}
	return e.model
}

// Embed returns one vector per text in input order. Blank texts are not sent
// to the API (it rejects them) and get a zero vector instead.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	inputs := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		inputs = append(inputs, text)
		positions = append(positions, i)
	}

	width := e.dimensions
	if width == 0 {
		width = modelDimensions[e.model]
	}

	if len(inputs) > 0 {
		embedded, err := e.create(ctx, inputs)
		if err != nil {
			return nil, err
		}
		for j, vector := range embedded {
			vectors[positions[j]] = vector
		}
		width = len(embedded[0])
	}

	if width == 0 {
		return nil, fmt.Errorf("cannot size zero vectors for unknown model %q", e.model)
	}
	for i := range vectors {
		if vectors[i] == nil {
			vectors[i] = make([]float32, width)
		}
	}

	return vectors, nil
}

// create performs one rate-limited embeddings request
func (e *OpenAIEmbedder) create(ctx context.Context, inputs []string) ([][]float32, error) {
	if err := e.rateLimiter.Wait(ctx); err != nil {
		log.Printf("[EMBED] Rate limiter error: %v", err)
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      inputs,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		log.Printf("[EMBED] Request for %d texts failed after %s: %v", len(inputs), time.Since(start), err)
		return nil, fmt.Errorf("creating embeddings: %w", err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data))
	}

	vectors := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(inputs) || vectors[d.Index] != nil {
			return nil, fmt.Errorf("unexpected embedding index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	return vectors, nil
}
