// Package vectorindex holds the knowledge base in memory together with one
// embedding per entry and answers nearest-neighbour queries over it.
//
// Writers are serialized; readers work on an immutable snapshot so they
// never see entries without their embeddings.
package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/bull/code-explainer/internal/embedding"
	"github.com/bull/code-explainer/internal/knowledge"
)

// Mirror receives every published corpus, e.g. an external vector store.
type Mirror interface {
	ReplaceCorpus(ctx context.Context, entries []knowledge.CorpusEntry, vectors [][]float32) error
}

type snapshot struct {
	entries []knowledge.CorpusEntry
	vectors [][]float32
}

// Index is a persisted corpus plus its embedding matrix.
type Index struct {
	path     string
	embedder embedding.Embedder
	mirror   Mirror
	logger   *slog.Logger

	mu       sync.Mutex // serializes Load, Insert and InsertMany
	diverged bool
	current  atomic.Pointer[snapshot]
}

// Option configures an Index.
type Option func(*Index)

// WithMirror pushes every published snapshot to m. Mirror failures are logged only.
func WithMirror(m Mirror) Option {
	return func(idx *Index) { idx.mirror = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(idx *Index) { idx.logger = l }
}

// New creates an empty index backed by the document at path.
func New(path string, embedder embedding.Embedder, opts ...Option) *Index {
	idx := &Index{
		path:     path,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.current.Store(&snapshot{})
	return idx
}

// Path returns the location of the persisted document.
func (idx *Index) Path() string { return idx.path }

// Dimension returns the embedding width.
func (idx *Index) Dimension() int { return idx.embedder.Dimension() }

// Model returns the embedder's model identifier.
func (idx *Index) Model() string { return idx.embedder.Model() }

// Len returns the number of entries in the current snapshot.
func (idx *Index) Len() int { return len(idx.current.Load().entries) }

// Entries returns a copy of the current corpus in insertion order.
func (idx *Index) Entries() []knowledge.CorpusEntry {
	return slices.Clone(idx.current.Load().entries)
}

// Load reads the document and embeds every entry. A missing document yields
// knowledge.ErrNotFound and an undecodable one knowledge.ErrMalformedData.
func (idx *Index) Load(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entries, err := knowledge.ReadFile(idx.path)
	if err != nil {
		return err
	}

	vectors, err := idx.encode(ctx, entries)
	if err != nil {
		return fmt.Errorf("embed knowledge base: %w", err)
	}

	idx.diverged = false
	idx.publish(ctx, &snapshot{entries: entries, vectors: vectors})
	idx.logger.Info("knowledge base loaded",
		"path", idx.path,
		"entries", len(entries),
		"model", idx.embedder.Model())
	return nil
}

// Search returns up to topK entries ordered by descending similarity to
// query. Equal scores keep corpus order. An empty corpus returns an empty
// result without embedding the query.
func (idx *Index) Search(ctx context.Context, query string, topK int) ([]knowledge.ScoredEntry, error) {
	snap := idx.current.Load()
	if len(snap.entries) == 0 || topK <= 0 {
		return []knowledge.ScoredEntry{}, nil
	}

	q, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results := make([]knowledge.ScoredEntry, len(snap.entries))
	for i, row := range snap.vectors {
		if len(row) != len(q) {
			return nil, fmt.Errorf("%w: query %d, entry %d", ErrDimensionMismatch, len(q), len(row))
		}
		e := snap.entries[i]
		e.Tags = slices.Clone(e.Tags)
		results[i] = knowledge.ScoredEntry{CorpusEntry: e, Score: embedding.Dot(q, row)}
	}

	slices.SortStableFunc(results, func(a, b knowledge.ScoredEntry) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Insert appends entry, persists the whole corpus and re-embeds it. The
// stored entry (with its assigned id) is returned.
//
// When persisting fails the index is unchanged. When persisting succeeds but
// re-embedding fails the returned error wraps ErrDiverged.
func (idx *Index) Insert(ctx context.Context, entry knowledge.CorpusEntry) (knowledge.CorpusEntry, error) {
	stored, err := idx.InsertMany(ctx, []knowledge.CorpusEntry{entry})
	if err != nil {
		return knowledge.CorpusEntry{}, err
	}
	return stored[0], nil
}

// InsertMany is Insert for a batch: one persist and one re-embedding.
func (idx *Index) InsertMany(ctx context.Context, batch []knowledge.CorpusEntry) ([]knowledge.CorpusEntry, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.diverged {
		return nil, fmt.Errorf("%w: reload required", ErrDiverged)
	}
	if len(batch) == 0 {
		return []knowledge.CorpusEntry{}, nil
	}

	// Once the file is written the re-embedding must finish, even when the
	// caller has gone away.
	ctx = context.WithoutCancel(ctx)

	cur := idx.current.Load()
	entries := make([]knowledge.CorpusEntry, len(cur.entries), len(cur.entries)+len(batch))
	copy(entries, cur.entries)

	stored := make([]knowledge.CorpusEntry, 0, len(batch))
	for _, e := range batch {
		if e.Tags == nil {
			e.Tags = []string{}
		}
		e = knowledge.AssignID(e, len(entries)+1)
		entries = append(entries, e)
		stored = append(stored, e)
	}

	if err := knowledge.WriteFile(idx.path, entries); err != nil {
		return nil, fmt.Errorf("persist knowledge base: %w", err)
	}

	vectors, err := idx.encode(ctx, entries)
	if err != nil {
		idx.diverged = true
		idx.logger.Error("re-embedding failed after persist",
			"path", idx.path,
			"entries", len(entries),
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrDiverged, err)
	}

	idx.publish(ctx, &snapshot{entries: entries, vectors: vectors})
	idx.logger.Info("knowledge base updated", "added", len(batch), "entries", len(entries))
	return stored, nil
}

func (idx *Index) encode(ctx context.Context, entries []knowledge.CorpusEntry) ([][]float32, error) {
	if len(entries) == 0 {
		return [][]float32{}, nil
	}
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = knowledge.EntryText(e)
	}
	vectors, err := idx.embedder.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(entries) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d entries", len(vectors), len(entries))
	}
	return vectors, nil
}

func (idx *Index) publish(ctx context.Context, snap *snapshot) {
	idx.current.Store(snap)
	if idx.mirror == nil {
		return
	}
	if err := idx.mirror.ReplaceCorpus(ctx, snap.entries, snap.vectors); err != nil {
		idx.logger.Warn("mirror update failed", "entries", len(snap.entries), "error", err)
	}
}
