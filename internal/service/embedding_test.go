package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-ai/lodestone/internal/domain"
)

// MockEmbeddingClient mocks the OpenAI client
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func testVector(seed float32) []float32 {
	v := make([]float32, 4)
	for i := range v {
		v[i] = seed + float32(i)*0.1
	}
	return v
}

func TestEmbeddingService_EmbedTexts_Success(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	svc := NewEmbeddingService(mockClient)

	ctx := context.Background()
	texts := []string{"first", "second"}
	vectors := [][]float32{testVector(1), testVector(2)}

	mockClient.On("GenerateEmbeddings", ctx, texts).Return(vectors, nil)

	out, err := svc.EmbedTexts(ctx, texts)

	require.NoError(t, err)
	assert.Equal(t, vectors, out)
	mockClient.AssertExpectations(t)
}

func TestEmbeddingService_EmbedTexts_Empty(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	svc := NewEmbeddingService(mockClient)

	out, err := svc.EmbedTexts(context.Background(), nil)

	assert.NoError(t, err)
	assert.Nil(t, out)
	mockClient.AssertNotCalled(t, "GenerateEmbeddings")
}

func TestEmbeddingService_EmbedTexts_BatchesBySize(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	svc := NewEmbeddingServiceWithBatchSize(mockClient, 2)

	ctx := context.Background()
	texts := []string{"a", "b", "c"}

	mockClient.On("GenerateEmbeddings", ctx, []string{"a", "b"}).
		Return([][]float32{testVector(1), testVector(2)}, nil)
	mockClient.On("GenerateEmbeddings", ctx, []string{"c"}).
		Return([][]float32{testVector(3)}, nil)

	out, err := svc.EmbedTexts(ctx, texts)

	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, testVector(3), out[2])
	mockClient.AssertExpectations(t)
}

func TestEmbeddingService_EmbedTexts_InvalidInputIsolatesText(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	svc := NewEmbeddingServiceWithBatchSize(mockClient, 2)

	ctx := context.Background()
	texts := []string{"good", "bad"}

	// The batch fails as invalid input, then each text is retried alone and
	// only the offending one is dropped.
	mockClient.On("GenerateEmbeddings", ctx, []string{"good", "bad"}).
		Return(nil, fmt.Errorf("batch rejected: %w", domain.ErrInvalidInput))
	mockClient.On("GenerateEmbeddings", ctx, []string{"good"}).
		Return([][]float32{testVector(1)}, nil)
	mockClient.On("GenerateEmbeddings", ctx, []string{"bad"}).
		Return(nil, fmt.Errorf("text rejected: %w", domain.ErrInvalidInput))

	out, err := svc.EmbedTexts(ctx, texts)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, testVector(1), out[0])
	assert.Nil(t, out[1])
	mockClient.AssertExpectations(t)
}

func TestEmbeddingService_EmbedTexts_RateLimitAborts(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	svc := NewEmbeddingService(mockClient)

	ctx := context.Background()
	mockClient.On("GenerateEmbeddings", ctx, mock.Anything).
		Return(nil, fmt.Errorf("provider: %w", domain.ErrRateLimited))

	out, err := svc.EmbedTexts(ctx, []string{"a", "b"})

	assert.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Nil(t, out)
	mockClient.AssertExpectations(t)
}

func TestEmbeddingService_EmbedTexts_TransportErrorAborts(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	svc := NewEmbeddingService(mockClient)

	ctx := context.Background()
	transport := errors.New("connection reset")
	mockClient.On("GenerateEmbeddings", ctx, mock.Anything).Return(nil, transport)

	out, err := svc.EmbedTexts(ctx, []string{"a"})

	assert.ErrorIs(t, err, transport)
	assert.Nil(t, out)
}

func TestEmbeddingService_EmbedTexts_VectorCountMismatch(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	svc := NewEmbeddingService(mockClient)

	ctx := context.Background()
	mockClient.On("GenerateEmbeddings", ctx, []string{"a", "b"}).
		Return([][]float32{testVector(1)}, nil)

	out, err := svc.EmbedTexts(ctx, []string{"a", "b"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "returned 1 vectors for 2 texts")
	assert.Nil(t, out)
}

func TestEmbeddingService_EmbedText(t *testing.T) {
	mockClient := new(MockEmbeddingClient)
	svc := NewEmbeddingService(mockClient)

	ctx := context.Background()
	mockClient.On("GenerateEmbeddings", ctx, []string{"query"}).
		Return([][]float32{testVector(7)}, nil)

	vec, err := svc.EmbedText(ctx, "query")

	require.NoError(t, err)
	assert.Equal(t, testVector(7), vec)
}
