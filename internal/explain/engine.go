// Package explain turns a raw code snippet into a structured explanation:
// a summary, a reasoning trace, one annotation per line and the most
// similar examples from the knowledge base.
package explain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/code-explainer/internal/detect"
	"github.com/bull/code-explainer/internal/knowledge"
)

const (
	retrievalTopK = 5
	maxReferences = 3
	maxInsights   = 2
	queryCodeLen  = 300
)

// Index is the knowledge base the engine retrieves context from.
type Index interface {
	Load(ctx context.Context) error
	Search(ctx context.Context, query string, topK int) ([]knowledge.ScoredEntry, error)
	Insert(ctx context.Context, entry knowledge.CorpusEntry) (knowledge.CorpusEntry, error)
	Len() int
	Entries() []knowledge.CorpusEntry
	Model() string
}

// Result is the explanation of one snippet.
type Result struct {
	Language   string                  `json:"language"`
	Summary    string                  `json:"summary"`
	Reasoning  []string                `json:"reasoning"`
	LineByLine []LineAnnotation        `json:"line_by_line"`
	References []knowledge.ScoredEntry `json:"references"`
}

// IngestRequest is a labeled example submitted for the knowledge base.
type IngestRequest struct {
	Language     string   `json:"language"`
	Title        string   `json:"title"`
	CodeFragment string   `json:"code_fragment"`
	Explanation  string   `json:"explanation"`
	Tags         []string `json:"tags"`
}

// Health reports whether the knowledge base holds any examples.
type Health struct {
	Status string `json:"status"`
	Loaded bool   `json:"loaded"`
}

// Stats describes the knowledge base contents.
type Stats struct {
	TotalExamples int            `json:"total_examples"`
	Loaded        bool           `json:"loaded"`
	Languages     map[string]int `json:"languages"`
	Model         string         `json:"embedding_model"`
}

// Engine explains snippets using heuristics and retrieved examples.
type Engine struct {
	index  Index
	logger *slog.Logger
}

// NewEngine creates an engine over index.
func NewEngine(index Index, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{index: index, logger: logger}
}

// Load reads and embeds the knowledge base.
func (e *Engine) Load(ctx context.Context) error {
	return e.index.Load(ctx)
}

// Explain always returns a complete result. Retrieval failures are logged
// and the snippet is explained without knowledge-base context.
func (e *Engine) Explain(ctx context.Context, code, languageHint string) *Result {
	language := strings.ToLower(strings.TrimSpace(languageHint))
	if language == "" {
		language = detect.Detect(code)
	}

	query := fmt.Sprintf("%s programming: %s %s", language, extractKeywords(code), truncateRunes(code, queryCodeLen))
	refs, err := e.index.Search(ctx, query, retrievalTopK)
	if err != nil {
		e.logger.Warn("retrieval failed, explaining without context", "language", language, "error", err)
		refs = nil
	}

	reasoning := []string{
		"Detected language: " + language,
		"Analyzed code structure: " + analyzeStructure(code),
		fmt.Sprintf("Retrieved %d reference snippet(s) from knowledge base", len(refs)),
	}
	lines := annotateLines(code, language)

	if len(refs) == 0 {
		return &Result{
			Language:   language,
			Summary:    fallbackSummary(code, language),
			Reasoning:  append(reasoning, "No close references found, using heuristic analysis."),
			LineByLine: lines,
			References: []knowledge.ScoredEntry{},
		}
	}

	summary, steps := detailedSummary(code, language, refs)
	return &Result{
		Language:   language,
		Summary:    summary,
		Reasoning:  append(reasoning, steps...),
		LineByLine: lines,
		References: refs[:min(maxReferences, len(refs))],
	}
}

// Ingest adds an example to the knowledge base and returns the new total.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (int, error) {
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	stored, err := e.index.Insert(ctx, knowledge.CorpusEntry{
		Language:     req.Language,
		Title:        req.Title,
		CodeFragment: req.CodeFragment,
		Explanation:  req.Explanation,
		Tags:         tags,
	})
	if err != nil {
		return 0, fmt.Errorf("ingest example: %w", err)
	}
	e.logger.Info("example ingested", "id", stored.ID, "language", stored.Language, "title", stored.Title)
	return e.index.Len(), nil
}

// Health reports the engine status.
func (e *Engine) Health() Health {
	return Health{Status: "ok", Loaded: e.index.Len() > 0}
}

// Stats summarizes the knowledge base by language.
func (e *Engine) Stats() Stats {
	entries := e.index.Entries()
	languages := make(map[string]int)
	for _, entry := range entries {
		languages[entry.Language]++
	}
	return Stats{
		TotalExamples: len(entries),
		Loaded:        len(entries) > 0,
		Languages:     languages,
		Model:         e.index.Model(),
	}
}

func fallbackSummary(code, language string) string {
	return fmt.Sprintf("This %s code implements %s. ", language, inferIntent(code)) +
		fmt.Sprintf("The implementation uses %s. ", analyzeStructure(code)) +
		fmt.Sprintf("While no exact matches were found in the knowledge base, the code follows standard %s ", language) +
		"conventions and demonstrates common programming patterns. " +
		"Key aspects include proper function definition, control flow management, and algorithmic logic."
}

// detailedSummary combines intent, structure and patterns with up to two
// explanations from the best matching examples. It also returns the
// analysis steps for the reasoning trace.
func detailedSummary(code, language string, refs []knowledge.ScoredEntry) (string, []string) {
	intent := inferIntent(code)
	structure := describeStructure(code)
	patterns := identifyPatterns(code, language)

	var insights []string
	for _, c := range refs[:min(maxReferences, len(refs))] {
		if text := strings.TrimRight(strings.TrimSpace(c.Explanation), "."); text != "" {
			insights = append(insights, text)
		}
	}

	parts := []string{fmt.Sprintf("This %s code implements %s.", language, intent)}
	if structure != "" {
		parts = append(parts, structure)
	}
	parts = append(parts, patterns+".")
	if len(insights) > 0 {
		parts = append(parts, fmt.Sprintf("Similar patterns in the knowledge base suggest: %s.",
			strings.Join(insights[:min(maxInsights, len(insights))], "; ")))
	}

	steps := []string{
		"Identified primary purpose: " + intent,
		"Code structure analysis: " + analyzeStructure(code),
		"Pattern recognition: " + patterns,
	}
	return strings.Join(parts, " "), steps
}
