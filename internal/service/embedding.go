package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// DefaultEmbeddingBatchSize bounds how many texts go to the provider per
// request.
const DefaultEmbeddingBatchSize = 64

// EmbeddingService turns chunk texts into vectors in provider-sized batches.
// It implements ChunkEmbedder.
type EmbeddingService struct {
	client    EmbeddingClient
	batchSize int
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient) *EmbeddingService {
	return &EmbeddingService{client: client, batchSize: DefaultEmbeddingBatchSize}
}

// NewEmbeddingServiceWithBatchSize creates an EmbeddingService with a custom batch size
func NewEmbeddingServiceWithBatchSize(client EmbeddingClient, batchSize int) *EmbeddingService {
	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}
	return &EmbeddingService{client: client, batchSize: batchSize}
}

// EmbedTexts embeds every text and returns vectors aligned with the input.
// When the provider rejects a batch as invalid input, the batch is retried
// one text at a time so only the offending texts are dropped; their slots
// stay nil. Rate limits and transport failures abort the whole call.
func (s *EmbeddingService) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := s.client.GenerateEmbeddings(ctx, batch)
		if err == nil {
			if len(vectors) != len(batch) {
				return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(vectors), len(batch))
			}
			copy(out[start:end], vectors)
			continue
		}
		if !errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}

		for i, text := range batch {
			vecs, err := s.client.GenerateEmbeddings(ctx, []string{text})
			if err != nil {
				if errors.Is(err, domain.ErrInvalidInput) {
					continue
				}
				return nil, err
			}
			out[start+i] = vecs[0]
		}
	}
	return out, nil
}

// EmbedText embeds a single text.
func (s *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.client.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
