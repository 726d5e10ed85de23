package explain

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/code-explainer/internal/embedding"
	"github.com/bull/code-explainer/internal/knowledge"
	"github.com/bull/code-explainer/internal/vectorindex"
)

const fibonacciSnippet = "def fibonacci(n):\n    if n <= 1:\n        return n\n    return fibonacci(n-1) + fibonacci(n-2)"

var testCorpus = []knowledge.CorpusEntry{
	{Language: "python", Title: "Recursive Fibonacci", CodeFragment: "def fib(n):\n    if n < 2:\n        return n\n    return fib(n-1) + fib(n-2)", Explanation: "Computes Fibonacci numbers recursively.", Tags: []string{"recursion"}, ID: "python-1"},
	{Language: "c", Title: "Hello world", CodeFragment: "#include <stdio.h>\nint main() {\n    printf(\"Hello\\n\");\n    return 0;\n}", Explanation: "Prints a greeting and exits.", Tags: []string{"io"}, ID: "c-2"},
	{Language: "c++", Title: "Stack class", CodeFragment: "class Stack {\npublic:\n    void push(int v);\n    int pop();\n};", Explanation: "A LIFO stack.", Tags: []string{"stack"}, ID: "c++-3"},
	{Language: "python", Title: "Binary search", CodeFragment: "def binary_search(items, target):\n    lo, hi = 0, len(items) - 1", Explanation: "Halves the search range each step.", Tags: []string{"search"}, ID: "python-4"},
	{Language: "c++", Title: "Vector sum", CodeFragment: "std::vector<int> v;\nint total = std::accumulate(v.begin(), v.end(), 0);", Explanation: "Sums a vector with the standard library.", Tags: []string{"stl"}, ID: "c++-5"},
}

func newTestEngine(t *testing.T, corpus []knowledge.CorpusEntry) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "code_samples.json")
	require.NoError(t, knowledge.WriteFile(path, corpus))

	idx := vectorindex.New(path, embedding.NewHashEmbedder(embedding.LocalHashDimension))
	engine := NewEngine(idx, nil)
	require.NoError(t, engine.Load(context.Background()))
	return engine
}

func TestExplain_FibonacciScenario(t *testing.T) {
	engine := newTestEngine(t, testCorpus)

	result := engine.Explain(context.Background(), fibonacciSnippet, "")

	assert.Equal(t, "python", result.Language)
	assert.Contains(t, result.Summary, "Fibonacci")
	require.Len(t, result.LineByLine, 4)
	assert.Contains(t, strings.ToLower(result.LineByLine[1].Explanation), "base case")
	assert.Contains(t, result.LineByLine[2].Explanation, "0 or 1")
	assert.Contains(t, result.LineByLine[3].Explanation, "Fibonacci")

	require.NotEmpty(t, result.References)
	assert.LessOrEqual(t, len(result.References), 3)
	assert.Equal(t, "python-1", result.References[0].ID)
	assert.Contains(t, result.Reasoning, "Detected language: python")
	assert.Contains(t, result.Reasoning, "Retrieved 5 reference snippet(s) from knowledge base")
	assert.Contains(t, result.Reasoning[len(result.Reasoning)-3], "Identified primary purpose: a recursive Fibonacci")
}

func TestExplain_IngestedSwapIsReferenced(t *testing.T) {
	engine := newTestEngine(t, testCorpus)
	ctx := context.Background()

	total, err := engine.Ingest(ctx, IngestRequest{
		Language:     "c",
		Title:        "swap",
		CodeFragment: "void swap(int*a,int*b){int t=*a;*a=*b;*b=t;}",
		Explanation:  "swaps two ints via pointers",
		Tags:         []string{"pointers"},
	})
	require.NoError(t, err)
	assert.Equal(t, len(testCorpus)+1, total)

	result := engine.Explain(ctx, "void swap(int *x, int *y) {\n    int tmp = *x;\n    *x = *y;\n    *y = tmp;\n}", "")

	assert.Equal(t, "c", result.Language)
	var ids []string
	for _, ref := range result.References {
		ids = append(ids, ref.ID)
	}
	assert.Contains(t, ids, "c-6")
	assert.Contains(t, result.Summary, "value swapping")
}

func TestExplain_LanguageHintWins(t *testing.T) {
	engine := newTestEngine(t, testCorpus)

	result := engine.Explain(context.Background(), "int main() { return 0; }", "  C++ ")
	assert.Equal(t, "c++", result.Language)
}

func TestExplain_EmptyCorpusFallsBack(t *testing.T) {
	engine := newTestEngine(t, []knowledge.CorpusEntry{})

	result := engine.Explain(context.Background(), fibonacciSnippet, "")

	assert.Empty(t, result.References)
	assert.NotNil(t, result.References)
	assert.Equal(t, "No close references found, using heuristic analysis.", result.Reasoning[len(result.Reasoning)-1])
	assert.True(t, strings.HasPrefix(result.Summary, "This python code implements a recursive Fibonacci"))
	assert.Contains(t, result.Summary, "The implementation uses function definition, conditional logic, return statement.")
	assert.Len(t, result.LineByLine, 4)
}

type failingIndex struct{ Index }

func (failingIndex) Search(context.Context, string, int) ([]knowledge.ScoredEntry, error) {
	return nil, errors.New("embedder offline")
}

func TestExplain_RetrievalErrorDegradesToFallback(t *testing.T) {
	engine := NewEngine(failingIndex{}, nil)

	result := engine.Explain(context.Background(), "x = 1", "python")

	assert.Equal(t, "python", result.Language)
	assert.Empty(t, result.References)
	assert.Contains(t, result.Reasoning, "Retrieved 0 reference snippet(s) from knowledge base")
	assert.Contains(t, result.Summary, "core algorithmic logic")
}

func TestExplain_LineCountMatchesPhysicalLines(t *testing.T) {
	engine := newTestEngine(t, testCorpus)

	inputs := []string{
		"x = 1",
		"a = 1\n\nb = 2\n",
		"\n\n\n",
		"#include <stdio.h>\r\nint main() {\r\n    return 0;\r\n}\r\n",
		fibonacciSnippet + "\n\n",
	}
	for _, in := range inputs {
		result := engine.Explain(context.Background(), in, "")
		lines := strings.Split(in, "\n")
		require.Len(t, result.LineByLine, len(lines), "input %q", in)
		for i, ann := range result.LineByLine {
			assert.Equal(t, i+1, ann.LineNumber)
			assert.Equal(t, lines[i], ann.Code)
			if strings.TrimSpace(lines[i]) != "" {
				assert.True(t, strings.HasSuffix(ann.Explanation, "."), "explanation %q", ann.Explanation)
			}
		}
	}
}

func TestHealthAndStats(t *testing.T) {
	empty := newTestEngine(t, []knowledge.CorpusEntry{})
	assert.Equal(t, Health{Status: "ok", Loaded: false}, empty.Health())

	engine := newTestEngine(t, testCorpus)
	assert.Equal(t, Health{Status: "ok", Loaded: true}, engine.Health())

	stats := engine.Stats()
	assert.Equal(t, 5, stats.TotalExamples)
	assert.Equal(t, map[string]int{"python": 2, "c": 1, "c++": 2}, stats.Languages)
	assert.Equal(t, "local-hash-384", stats.Model)
}

func TestDetailedSummary_TrimsInsightsToTwo(t *testing.T) {
	refs := []knowledge.ScoredEntry{
		{CorpusEntry: knowledge.CorpusEntry{Explanation: "First."}},
		{CorpusEntry: knowledge.CorpusEntry{Explanation: ""}},
		{CorpusEntry: knowledge.CorpusEntry{Explanation: "Second"}},
		{CorpusEntry: knowledge.CorpusEntry{Explanation: "Third"}},
	}

	summary, steps := detailedSummary("x = 1", "python", refs)

	assert.Equal(t, "This python code implements core algorithmic logic with specific computational steps. "+
		"Standard implementation pattern. Similar patterns in the knowledge base suggest: First; Second.", summary)
	assert.Equal(t, []string{
		"Identified primary purpose: core algorithmic logic with specific computational steps",
		"Code structure analysis: basic structure",
		"Pattern recognition: Standard implementation pattern",
	}, steps)
}
