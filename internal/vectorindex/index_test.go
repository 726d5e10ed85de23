package vectorindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/code-explainer/internal/embedding"
	"github.com/bull/code-explainer/internal/knowledge"
)

// countingEmbedder wraps the hashing embedder and can be told to fail.
type countingEmbedder struct {
	*embedding.HashEmbedder
	embedCalls atomic.Int32
	failBatch  atomic.Bool
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{HashEmbedder: embedding.NewHashEmbedder(embedding.LocalHashDimension)}
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls.Add(1)
	return c.HashEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.failBatch.Load() {
		return nil, errors.New("embedding service unavailable")
	}
	return c.HashEmbedder.EncodeBatch(ctx, texts)
}

type recordingMirror struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (m *recordingMirror) ReplaceCorpus(_ context.Context, entries []knowledge.CorpusEntry, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, len(entries))
	return m.err
}

var sampleEntries = []knowledge.CorpusEntry{
	{Language: "python", Title: "Recursive Fibonacci", CodeFragment: "def fibonacci(n):\n    if n <= 1:\n        return n\n    return fibonacci(n-1) + fibonacci(n-2)", Explanation: "Computes Fibonacci numbers recursively.", Tags: []string{"recursion", "fibonacci"}, ID: "python-1"},
	{Language: "c", Title: "Hello world", CodeFragment: "#include <stdio.h>\nint main() { printf(\"hi\"); return 0; }", Explanation: "Prints a greeting.", Tags: []string{"io"}, ID: "c-2"},
	{Language: "c++", Title: "Stack class", CodeFragment: "class Stack { public: void push(int v); int pop(); };", Explanation: "A LIFO stack.", Tags: []string{"stack"}, ID: "c++-3"},
}

func writeCorpus(t *testing.T, entries []knowledge.CorpusEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "code_samples.json")
	require.NoError(t, knowledge.WriteFile(path, entries))
	return path
}

func loadedIndex(t *testing.T, entries []knowledge.CorpusEntry, opts ...Option) (*Index, *countingEmbedder) {
	t.Helper()
	emb := newCountingEmbedder()
	idx := New(writeCorpus(t, entries), emb, opts...)
	require.NoError(t, idx.Load(context.Background()))
	return idx, emb
}

func TestLoad_MissingDocument(t *testing.T) {
	idx := New(filepath.Join(t.TempDir(), "missing.json"), newCountingEmbedder())
	err := idx.Load(context.Background())
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestLoad_MalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	err := New(path, newCountingEmbedder()).Load(context.Background())
	assert.ErrorIs(t, err, knowledge.ErrMalformedData)
}

func TestSearch_EmptyCorpusSkipsEmbedding(t *testing.T) {
	idx, emb := loadedIndex(t, []knowledge.CorpusEntry{})

	results, err := idx.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, int32(0), emb.embedCalls.Load())
}

func TestSearch_SortedDescending(t *testing.T) {
	idx, _ := loadedIndex(t, sampleEntries)

	results, err := idx.Search(context.Background(), "python programming: fibonacci recursion", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.Equal(t, "python-1", results[0].ID)
}

func TestSearch_TopKAtLeastLenReturnsEverything(t *testing.T) {
	idx, _ := loadedIndex(t, sampleEntries)

	results, err := idx.Search(context.Background(), "stack", 10)
	require.NoError(t, err)
	require.Len(t, results, len(sampleEntries))

	seen := map[string]bool{}
	for _, r := range results {
		seen[r.ID] = true
	}
	assert.Len(t, seen, len(sampleEntries))
}

func TestSearch_NonPositiveTopK(t *testing.T) {
	idx, _ := loadedIndex(t, sampleEntries)

	results, err := idx.Search(context.Background(), "stack", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_TiesKeepCorpusOrder(t *testing.T) {
	dup := []knowledge.CorpusEntry{
		{Language: "c", Title: "Same", CodeFragment: "x", Explanation: "y", ID: "first"},
		{Language: "c", Title: "Same", CodeFragment: "x", Explanation: "y", ID: "second"},
	}
	idx, _ := loadedIndex(t, dup)

	results, err := idx.Search(context.Background(), "c Same x y", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, "first", results[0].ID)
	assert.Equal(t, "second", results[1].ID)
}

func TestInsert_RoundTrip(t *testing.T) {
	idx, _ := loadedIndex(t, sampleEntries)
	ctx := context.Background()

	stored, err := idx.Insert(ctx, knowledge.CorpusEntry{
		Language:     "c",
		Title:        "Swap two integers",
		CodeFragment: "void swap(int *a, int *b) { int t = *a; *a = *b; *b = t; }",
		Explanation:  "Exchanges two values through pointers.",
	})
	require.NoError(t, err)
	assert.Equal(t, "c-4", stored.ID)
	assert.Equal(t, []string{}, stored.Tags)
	assert.Equal(t, 4, idx.Len())

	results, err := idx.Search(ctx, knowledge.EntryText(stored), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c-4", results[0].ID)

	onDisk, err := knowledge.ReadFile(idx.Path())
	require.NoError(t, err)
	require.Len(t, onDisk, 4)
	assert.Equal(t, stored, onDisk[3])
}

func TestInsert_KeepsExistingID(t *testing.T) {
	idx, _ := loadedIndex(t, sampleEntries)

	stored, err := idx.Insert(context.Background(), knowledge.CorpusEntry{Language: "c", Title: "t", ID: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", stored.ID)
}

func TestInsertMany_AssignsSequentialIDs(t *testing.T) {
	idx, _ := loadedIndex(t, sampleEntries)

	stored, err := idx.InsertMany(context.Background(), []knowledge.CorpusEntry{
		{Language: "python", Title: "a"},
		{Language: "c", Title: "b"},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "python-4", stored[0].ID)
	assert.Equal(t, "c-5", stored[1].ID)
	assert.Equal(t, 5, idx.Len())
}

func TestInsert_PersistFailureLeavesIndexUnchanged(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// the parent of the document path is a regular file, so persisting fails
	idx := New(filepath.Join(blocker, "kb.json"), newCountingEmbedder())

	_, err := idx.Insert(context.Background(), knowledge.CorpusEntry{Language: "c", Title: "t"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDiverged)
	assert.Equal(t, 0, idx.Len())
}

func TestInsert_RecomputeFailureDiverges(t *testing.T) {
	idx, emb := loadedIndex(t, sampleEntries)
	ctx := context.Background()

	emb.failBatch.Store(true)
	_, err := idx.Insert(ctx, knowledge.CorpusEntry{Language: "c", Title: "t"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDiverged)

	// readers keep the last consistent snapshot
	assert.Equal(t, 3, idx.Len())
	onDisk, err := knowledge.ReadFile(idx.Path())
	require.NoError(t, err)
	assert.Len(t, onDisk, 4)

	emb.failBatch.Store(false)
	_, err = idx.Insert(ctx, knowledge.CorpusEntry{Language: "c", Title: "u"})
	assert.ErrorIs(t, err, ErrDiverged)

	require.NoError(t, idx.Load(ctx))
	assert.Equal(t, 4, idx.Len())
	_, err = idx.Insert(ctx, knowledge.CorpusEntry{Language: "c", Title: "u"})
	assert.NoError(t, err)
}

func TestMirror_ReceivesPublishedSnapshots(t *testing.T) {
	m := &recordingMirror{err: errors.New("mirror down")}
	idx, _ := loadedIndex(t, sampleEntries, WithMirror(m))

	_, err := idx.Insert(context.Background(), knowledge.CorpusEntry{Language: "c", Title: "t"})
	require.NoError(t, err, "mirror failures are not returned")
	assert.Equal(t, []int{3, 4}, m.calls)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	idx, _ := loadedIndex(t, sampleEntries)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := idx.Insert(ctx, knowledge.CorpusEntry{Language: "c", Title: "concurrent"})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				results, err := idx.Search(ctx, "stack", 100)
				assert.NoError(t, err)
				assert.GreaterOrEqual(t, len(results), 3)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 7, idx.Len())

	ids := map[string]bool{}
	for _, e := range idx.Entries() {
		ids[e.ID] = true
	}
	assert.Len(t, ids, 7)
}

func TestInsert_CancelledContextCompletes(t *testing.T) {
	path := writeCorpus(t, sampleEntries)
	idx := New(path, embedding.NewHashEmbedder(embedding.LocalHashDimension))
	require.NoError(t, idx.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stored, err := idx.Insert(ctx, knowledge.CorpusEntry{Language: "c", Title: "swap", CodeFragment: "int t = *a;"})
	require.NoError(t, err)
	assert.Equal(t, "c-4", stored.ID)

	_, err = idx.Insert(context.Background(), knowledge.CorpusEntry{Language: "python", Title: "hi", CodeFragment: "print(1)"})
	require.NoError(t, err)
	assert.Equal(t, 5, idx.Len())
}
