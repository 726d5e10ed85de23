// Package embedding turns text into unit-length vectors so that a dot
// product between two of them is their cosine similarity.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownModel is returned by New for a model identifier it cannot serve.
var ErrUnknownModel = errors.New("unknown embedding model")

// Embedder maps text to unit-normalized vectors of a fixed dimension.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EncodeBatch returns one vector per text, in input order.
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// New builds the embedder for a model identifier. Identifiers with the
// "local-hash" prefix select the offline HashEmbedder; everything else is
// treated as an OpenAI embedding model.
func New(model string) (Embedder, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if strings.HasPrefix(model, LocalHashModel) {
		return NewHashEmbedder(LocalHashDimension), nil
	}

	dim, ok := openAIDimensions[model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	client, err := NewClient()
	if err != nil {
		return nil, err
	}
	return NewOpenAIEmbedder(client, model, dim, 0), nil
}

// l2normalize scales v to unit length in place. Zero vectors are left as is.
func l2normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Dot returns the dot product of two vectors of equal length.
func Dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
