package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/code-explainer/internal/explain"
	"github.com/bull/code-explainer/internal/knowledge"
)

const (
	defaultMaxResults = 5
	maxMaxResults     = 20
)

var errEmptyCode = errors.New("code snippet cannot be empty")

func makeExplainHandler(engine Engine) func(
	context.Context, *mcp.CallToolRequest, ExplainCodeInput,
) (*mcp.CallToolResult, ExplainCodeOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ExplainCodeInput) (
		*mcp.CallToolResult, ExplainCodeOutput, error,
	) {
		if strings.TrimSpace(input.Code) == "" {
			return nil, ExplainCodeOutput{}, errEmptyCode
		}

		result := engine.Explain(ctx, input.Code, input.Language)

		lines := make([]LineExplained, len(result.LineByLine))
		for i, l := range result.LineByLine {
			lines[i] = LineExplained{LineNumber: l.LineNumber, Code: l.Code, Explanation: l.Explanation}
		}
		return nil, ExplainCodeOutput{
			Language:   result.Language,
			Summary:    result.Summary,
			Reasoning:  result.Reasoning,
			LineByLine: lines,
			References: summarize(result.References),
		}, nil
	}
}

func makeIngestHandler(engine Engine) func(
	context.Context, *mcp.CallToolRequest, IngestExampleInput,
) (*mcp.CallToolResult, IngestExampleOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestExampleInput) (
		*mcp.CallToolResult, IngestExampleOutput, error,
	) {
		total, err := engine.Ingest(ctx, explain.IngestRequest{
			Language:     input.Language,
			Title:        input.Title,
			CodeFragment: input.CodeFragment,
			Explanation:  input.Explanation,
			Tags:         input.Tags,
		})
		if err != nil {
			return nil, IngestExampleOutput{}, fmt.Errorf("failed to ingest example: %w", err)
		}
		return nil, IngestExampleOutput{Status: "ingested", TotalExamples: total}, nil
	}
}

// makeSearchHandler applies defaults, clamps max_results and drops hits
// below min_score.
func makeSearchHandler(searcher Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchExamplesInput,
) (*mcp.CallToolResult, SearchExamplesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchExamplesInput) (
		*mcp.CallToolResult, SearchExamplesOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}
		maxResults = min(maxResults, maxMaxResults)

		hits, err := searcher.Search(ctx, input.Query, maxResults)
		if err != nil {
			return nil, SearchExamplesOutput{}, fmt.Errorf("search failed: %w", err)
		}

		kept := make([]knowledge.ScoredEntry, 0, len(hits))
		for _, h := range hits {
			if h.Score >= input.MinScore {
				kept = append(kept, h)
			}
		}

		if len(kept) == 0 {
			return nil, SearchExamplesOutput{
				Results: []ExampleSummary{},
				Message: "No matching examples found. Try broader search terms.",
			}, nil
		}
		return nil, SearchExamplesOutput{Results: summarize(kept)}, nil
	}
}

func makeStatusHandler(engine Engine, mirror HealthChecker) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		stats := engine.Stats()
		return nil, StatusOutput{
			TotalExamples:  stats.TotalExamples,
			Loaded:         stats.Loaded,
			Languages:      stats.Languages,
			EmbeddingModel: stats.Model,
			Mirror:         mirrorStatus(ctx, mirror),
		}, nil
	}
}

func summarize(entries []knowledge.ScoredEntry) []ExampleSummary {
	out := make([]ExampleSummary, len(entries))
	for i, e := range entries {
		tags := e.Tags
		if tags == nil {
			tags = []string{}
		}
		out[i] = ExampleSummary{
			ID:          e.ID,
			Language:    e.Language,
			Title:       e.Title,
			Explanation: e.Explanation,
			Tags:        tags,
			Score:       e.Score,
		}
	}
	return out
}
