package storage

import "github.com/bull/code-explainer/internal/knowledge"

// CollectionName is the Qdrant collection that mirrors the knowledge base.
const CollectionName = "code_examples"

// VectorName is the named vector holding each example's embedding.
const VectorName = "example"

// upsertBatchSize bounds the number of points per upsert request.
const upsertBatchSize = 100

// ScoredExample is a knowledge base example returned by a mirror search.
type ScoredExample struct {
	Entry knowledge.CorpusEntry
	Score float64
}
