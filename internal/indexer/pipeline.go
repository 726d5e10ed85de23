// Package indexer imports curated markdown examples into the knowledge base.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bull/code-explainer/internal/knowledge"
	"github.com/bull/code-explainer/internal/markdown"
	"github.com/bull/code-explainer/internal/metadata"
)

// Index is the knowledge base the pipeline writes to.
type Index interface {
	Entries() []knowledge.CorpusEntry
	InsertMany(ctx context.Context, batch []knowledge.CorpusEntry) ([]knowledge.CorpusEntry, error)
}

// Describer fills in missing explanations and tags. Optional.
type Describer interface {
	DescribeExample(ctx context.Context, language, title, code string) (*metadata.ExampleMetadata, error)
}

// ImportResult contains statistics about an import.
type ImportResult struct {
	Source         string
	Revision       string
	TotalDocs      int
	SuccessfulDocs int
	TotalExamples  int
	Duplicates     int
	Imported       []knowledge.CorpusEntry
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// FailedDoc represents a document that could not be read or parsed.
type FailedDoc struct {
	Path   string
	Reason string
}

// Pipeline moves examples from a Source into an Index.
type Pipeline struct {
	source    Source
	parser    *markdown.Parser
	describer Describer
	index     Index
	logger    *slog.Logger
}

// NewPipeline creates an import pipeline. describer may be nil.
func NewPipeline(source Source, parser *markdown.Parser, describer Describer, index Index, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if parser == nil {
		parser = markdown.NewParser()
	}
	return &Pipeline{
		source:    source,
		parser:    parser,
		describer: describer,
		index:     index,
		logger:    logger,
	}
}

// ImportAll parses every document of the source and inserts the examples that
// are not in the index yet as one batch. Examples match when language and
// title agree, case-insensitively. Unreadable documents are recorded in
// FailedDocs and skipped.
func (p *Pipeline) ImportAll(ctx context.Context) (*ImportResult, error) {
	start := time.Now()
	result := &ImportResult{Source: p.source.Name()}

	if rev, ok := p.source.(Revisioner); ok {
		sha, err := rev.LatestCommitSHA(ctx)
		if err != nil {
			p.logger.Warn("Could not resolve source revision", "source", result.Source, "error", err)
		} else {
			result.Revision = sha
			p.logger.Info("Starting import", "source", result.Source, "revision", sha)
		}
	}

	paths, err := p.source.ListDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list docs: %w", err)
	}
	result.TotalDocs = len(paths)
	p.logger.Info("Found documents", "source", result.Source, "count", len(paths))

	seen := make(map[string]bool)
	for _, e := range p.index.Entries() {
		seen[dedupKey(e)] = true
	}

	var batch []knowledge.CorpusEntry
	for _, path := range paths {
		examples, err := p.processDocument(ctx, path)
		if err != nil {
			p.logger.Warn("Failed to process document", "path", path, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{Path: path, Reason: err.Error()})
			continue
		}
		result.SuccessfulDocs++
		result.TotalExamples += len(examples)

		for _, e := range examples {
			key := dedupKey(e)
			if seen[key] {
				result.Duplicates++
				continue
			}
			seen[key] = true
			batch = append(batch, p.describe(ctx, e))
		}
	}

	if len(batch) > 0 {
		inserted, err := p.index.InsertMany(ctx, batch)
		if err != nil {
			return result, fmt.Errorf("insert examples: %w", err)
		}
		result.Imported = inserted
	}

	result.Duration = time.Since(start)
	p.logger.Info("Import complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"imported", len(result.Imported),
		"duplicates", result.Duplicates,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) processDocument(ctx context.Context, path string) ([]knowledge.CorpusEntry, error) {
	content, err := p.source.ReadDoc(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	examples, err := p.parser.ParseExamples(content)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	p.logger.Debug("Parsed document", "path", path, "examples", len(examples))
	return examples, nil
}

// describe asks the describer for an explanation when the example has none.
// Failures keep the example as parsed.
func (p *Pipeline) describe(ctx context.Context, e knowledge.CorpusEntry) knowledge.CorpusEntry {
	if p.describer == nil || e.Explanation != "" {
		return e
	}

	meta, err := p.describer.DescribeExample(ctx, e.Language, e.Title, e.CodeFragment)
	if err != nil {
		p.logger.Warn("Description failed, importing without explanation", "title", e.Title, "error", err)
		return e
	}

	e.Explanation = meta.Explanation
	if len(e.Tags) == 0 {
		e.Tags = meta.Tags
	}
	return e
}

func dedupKey(e knowledge.CorpusEntry) string {
	return strings.ToLower(e.Language) + "\x00" + strings.ToLower(strings.TrimSpace(e.Title))
}
