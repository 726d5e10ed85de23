package embedding

import (
	"context"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
)

const (
	// LocalHashModel selects the offline feature-hashing embedder.
	LocalHashModel = "local-hash"

	// LocalHashDimension matches the width of common small sentence models.
	LocalHashDimension = 384
)

var tokenPattern = regexp.MustCompile(`[a-z0-9_]+`)

// HashEmbedder is a deterministic, dependency-free embedder. Each text is
// reduced to word tokens and character trigrams, and every feature is hashed
// into a signed bucket. It needs no network access and is used for tests,
// CLI runs without credentials, and air-gapped deployments.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hashing embedder with dimension buckets.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = LocalHashDimension
	}
	return &HashEmbedder{dimension: dimension}
}

func (h *HashEmbedder) Dimension() int { return h.dimension }

func (h *HashEmbedder) Model() string { return LocalHashModel + "-" + strconv.Itoa(h.dimension) }

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.vector(text), nil
}

func (h *HashEmbedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dimension)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		h.add(v, "w:"+tok, 1.0)
		padded := "^" + tok + "$"
		for i := 0; i+3 <= len(padded); i++ {
			h.add(v, "t:"+padded[i:i+3], 0.5)
		}
	}
	return l2normalize(v)
}

func (h *HashEmbedder) add(v []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	bucket := int(sum % uint64(h.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[bucket] += weight
}
