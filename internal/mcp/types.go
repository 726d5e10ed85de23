// Package mcp exposes the code explainer as Model Context Protocol tools.
package mcp

// ExplainCodeInput defines the input parameters for the explain_code tool.
type ExplainCodeInput struct {
	Code     string `json:"code" jsonschema:"The source code snippet to explain"`
	Language string `json:"language,omitempty" jsonschema:"Optional language hint: python, c or c++. Detected when omitted"`
}

// ExplainCodeOutput mirrors the HTTP explain response.
type ExplainCodeOutput struct {
	Language   string           `json:"language"`
	Summary    string           `json:"summary"`
	Reasoning  []string         `json:"reasoning"`
	LineByLine []LineExplained  `json:"line_by_line"`
	References []ExampleSummary `json:"references"`
}

// LineExplained is one annotated line of the snippet.
type LineExplained struct {
	LineNumber  int    `json:"line_number"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// ExampleSummary is a knowledge base example returned from retrieval.
type ExampleSummary struct {
	ID          string   `json:"id"`
	Language    string   `json:"language"`
	Title       string   `json:"title"`
	Explanation string   `json:"explanation"`
	Tags        []string `json:"tags"`
	Score       float64  `json:"score"`
}

// IngestExampleInput defines the input parameters for the ingest_example tool.
type IngestExampleInput struct {
	Language     string   `json:"language" jsonschema:"Language label of the example"`
	Title        string   `json:"title" jsonschema:"Short title of the example"`
	CodeFragment string   `json:"code_fragment" jsonschema:"The example source code"`
	Explanation  string   `json:"explanation" jsonschema:"What the example does"`
	Tags         []string `json:"tags,omitempty" jsonschema:"Optional tags"`
}

// IngestExampleOutput reports the knowledge base size after ingestion.
type IngestExampleOutput struct {
	Status        string `json:"status"`
	TotalExamples int    `json:"total_examples"`
}

// SearchExamplesInput defines the input parameters for the search_examples tool.
type SearchExamplesInput struct {
	Query      string  `json:"query" jsonschema:"Free text or code to search the knowledge base for"`
	MaxResults int     `json:"max_results,omitempty" jsonschema:"Maximum number of examples to return (default 5, max 20)"`
	MinScore   float64 `json:"min_score,omitempty" jsonschema:"Minimum similarity score between -1 and 1"`
}

// SearchExamplesOutput contains the matching examples.
type SearchExamplesOutput struct {
	Results []ExampleSummary `json:"results"`
	Message string           `json:"message,omitempty"`
}

// StatusInput takes no parameters.
type StatusInput struct{}

// StatusOutput describes the knowledge base.
type StatusOutput struct {
	TotalExamples  int            `json:"total_examples"`
	Loaded         bool           `json:"loaded"`
	Languages      map[string]int `json:"languages"`
	EmbeddingModel string         `json:"embedding_model"`
	Mirror         string         `json:"mirror"`
}
