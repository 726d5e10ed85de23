// Package main provides kb, the command line tool for the code explainer
// knowledge base.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/code-explainer/internal/config"
	"github.com/bull/code-explainer/internal/embedding"
	"github.com/bull/code-explainer/internal/explain"
	ghclient "github.com/bull/code-explainer/internal/github"
	"github.com/bull/code-explainer/internal/indexer"
	"github.com/bull/code-explainer/internal/markdown"
	"github.com/bull/code-explainer/internal/metadata"
	"github.com/bull/code-explainer/internal/storage"
	"github.com/bull/code-explainer/internal/vectorindex"
)

var rootCmd = &cobra.Command{
	Use:   "kb",
	Short: "Code explainer knowledge base tool",
	Long: `Explain snippets and manage the code explainer knowledge base.

Environment variables:
  CODE_EXPLAINER_CONFIG    YAML config file (optional)
  CODE_EXPLAINER_DATA      Knowledge base JSON file (default: data/code_samples.json)
  CODE_EXPLAINER_EMBEDDER  Embedding model, or local-hash for offline use
  OPENAI_API_KEY           Required for OpenAI embeddings and --describe
  QDRANT_HOST, QDRANT_PORT Qdrant mirror location (sync)
  GITHUB_TOKEN             GitHub token for higher rate limits (optional)`,
	SilenceUsage: true,
}

var (
	explainLanguage string
	explainFile     string

	ingestLanguage    string
	ingestTitle       string
	ingestCode        string
	ingestExplanation string
	ingestTags        []string

	searchTopK     int
	searchMirror   bool
	searchLanguage string

	importDir      string
	importOwner    string
	importRepo     string
	importBasePath string
	importDescribe bool
)

var explainCmd = &cobra.Command{
	Use:   "explain [code]",
	Short: "Explain a snippet and print the result as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExplain,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Add one example to the knowledge base",
	RunE:  runIngest,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Similarity search over the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import curated markdown examples from a directory or GitHub",
	Long: `Parses markdown documents where every H2 section with a fenced code block
is one example, and appends the examples not yet in the knowledge base.

Use --dir for a local directory, or --owner and --repo for GitHub.`,
	RunE: runImport,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebuild the Qdrant mirror from the knowledge base file",
	RunE:  runSync,
}

func init() {
	explainCmd.Flags().StringVarP(&explainLanguage, "language", "l", "", "language hint (python, c, c++)")
	explainCmd.Flags().StringVarP(&explainFile, "file", "f", "", "read the snippet from a file (- for stdin)")

	ingestCmd.Flags().StringVar(&ingestLanguage, "language", "", "example language")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "example title")
	ingestCmd.Flags().StringVar(&ingestCode, "code", "", "example code, or @path to read it from a file")
	ingestCmd.Flags().StringVar(&ingestExplanation, "explanation", "", "what the example does")
	ingestCmd.Flags().StringSliceVar(&ingestTags, "tags", nil, "comma separated tags")
	for _, name := range []string{"language", "title", "code", "explanation"} {
		_ = ingestCmd.MarkFlagRequired(name)
	}

	searchCmd.Flags().IntVarP(&searchTopK, "top", "k", 5, "number of results")
	searchCmd.Flags().BoolVar(&searchMirror, "mirror", false, "query the Qdrant mirror instead of the local file")
	searchCmd.Flags().StringVar(&searchLanguage, "language", "", "restrict mirror results to one language")

	importCmd.Flags().StringVar(&importDir, "dir", "", "local directory of markdown files")
	importCmd.Flags().StringVar(&importOwner, "owner", "", "GitHub repository owner")
	importCmd.Flags().StringVar(&importRepo, "repo", "", "GitHub repository name")
	importCmd.Flags().StringVar(&importBasePath, "path", ghclient.DefaultBasePath, "directory inside the GitHub repository")
	importCmd.Flags().BoolVar(&importDescribe, "describe", false, "generate missing explanations with OpenAI")
	importCmd.MarkFlagsMutuallyExclusive("dir", "owner")
	importCmd.MarkFlagsRequiredTogether("owner", "repo")

	rootCmd.AddCommand(explainCmd, ingestCmd, searchCmd, importCmd, syncCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openIndex loads the configured knowledge base. opts are applied after the logger.
func openIndex(ctx context.Context, opts ...vectorindex.Option) (*config.Config, *vectorindex.Index, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	embedder, err := embedding.New(cfg.EmbedderModel)
	if err != nil {
		return nil, nil, fmt.Errorf("create embedder: %w", err)
	}

	opts = append([]vectorindex.Option{vectorindex.WithLogger(cfg.NewLogger())}, opts...)
	index := vectorindex.New(cfg.DataPath, embedder, opts...)
	if err := index.Load(ctx); err != nil {
		return nil, nil, fmt.Errorf("load knowledge base: %w", err)
	}
	return cfg, index, nil
}

func runExplain(cmd *cobra.Command, args []string) error {
	code, err := snippet(cmd, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("code snippet cannot be empty")
	}

	cfg, index, err := openIndex(cmd.Context())
	if err != nil {
		return err
	}
	engine := explain.NewEngine(index, cfg.NewLogger())
	return printJSON(cmd, engine.Explain(cmd.Context(), code, explainLanguage))
}

func snippet(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case explainFile == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	case explainFile != "":
		data, err := os.ReadFile(explainFile)
		return string(data), err
	case len(args) == 1:
		return args[0], nil
	}
	return "", fmt.Errorf("pass the snippet as an argument or with --file")
}

func runIngest(cmd *cobra.Command, args []string) error {
	code := ingestCode
	if path, ok := strings.CutPrefix(code, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		code = string(data)
	}

	cfg, index, err := openIndex(cmd.Context())
	if err != nil {
		return err
	}
	engine := explain.NewEngine(index, cfg.NewLogger())

	total, err := engine.Ingest(cmd.Context(), explain.IngestRequest{
		Language:     ingestLanguage,
		Title:        ingestTitle,
		CodeFragment: code,
		Explanation:  ingestExplanation,
		Tags:         ingestTags,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Example added. Knowledge base now has %d examples.\n", total)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	if searchMirror {
		return searchQdrant(cmd, query)
	}

	_, index, err := openIndex(cmd.Context())
	if err != nil {
		return err
	}

	hits, err := index.Search(cmd.Context(), query, searchTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintln(out, "No examples found.")
		return nil
	}
	for i, hit := range hits {
		fmt.Fprintf(out, "%d. [%.3f] %s (%s, %s)\n", i+1, hit.Score, hit.Title, hit.Language, hit.ID)
	}
	return nil
}

// searchQdrant embeds the query with the configured model and searches the mirror.
func searchQdrant(cmd *cobra.Command, query string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.MirrorEnabled() {
		return fmt.Errorf("QDRANT_HOST is not set")
	}

	embedder, err := embedding.New(cfg.EmbedderModel)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	vector, err := embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	store, err := storage.NewQdrantStorage(cfg.Qdrant.Host, cfg.Qdrant.Port)
	if err != nil {
		return fmt.Errorf("connect to Qdrant: %w", err)
	}
	defer store.Close()

	hits, err := store.Search(ctx, vector, searchTopK, searchLanguage)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintln(out, "No examples found.")
		return nil
	}
	for i, hit := range hits {
		fmt.Fprintf(out, "%d. [%.3f] %s (%s, %s)\n", i+1, hit.Score, hit.Entry.Title, hit.Entry.Language, hit.Entry.ID)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	var source indexer.Source
	switch {
	case importDir != "":
		source = indexer.NewDirSource(importDir)
	case importOwner != "":
		client, err := ghclient.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create GitHub client: %w", err)
		}
		source = ghclient.NewFetcher(client, importOwner, importRepo, importBasePath)
	default:
		return fmt.Errorf("either --dir or --owner/--repo is required")
	}

	cfg, index, err := openIndex(ctx)
	if err != nil {
		return err
	}

	var describer indexer.Describer
	if importDescribe {
		client, err := embedding.NewClient()
		if err != nil {
			return fmt.Errorf("create OpenAI client: %w", err)
		}
		describer = metadata.NewGenerator(client.Client())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Importing from %s...\n", source.Name())

	pipeline := indexer.NewPipeline(source, markdown.NewParser(), describer, index, cfg.NewLogger())
	result, err := pipeline.ImportAll(ctx)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Import complete!")
	if result.Revision != "" {
		fmt.Fprintf(out, "  Revision: %s\n", result.Revision)
	}
	fmt.Fprintf(out, "  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Fprintf(out, "  Examples found: %d\n", result.TotalExamples)
	fmt.Fprintf(out, "  Imported: %d\n", len(result.Imported))
	fmt.Fprintf(out, "  Already present: %d\n", result.Duplicates)
	fmt.Fprintf(out, "  Knowledge base size: %d\n", index.Len())

	if len(result.FailedDocs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Fprintf(out, "  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	fmt.Fprintf(out, "\nTotal time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.MirrorEnabled() {
		return fmt.Errorf("QDRANT_HOST is not set")
	}

	fmt.Fprintf(out, "Connecting to Qdrant at %s:%d...\n", cfg.Qdrant.Host, cfg.Qdrant.Port)
	store, err := storage.NewQdrantStorage(cfg.Qdrant.Host, cfg.Qdrant.Port)
	if err != nil {
		return fmt.Errorf("connect to Qdrant: %w", err)
	}
	defer store.Close()

	// Loading publishes the first snapshot, which replaces the mirror contents.
	_, index, err := openIndex(ctx, vectorindex.WithMirror(store))
	if err != nil {
		return err
	}

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count points: %w", err)
	}
	if count != uint64(index.Len()) {
		return fmt.Errorf("mirror holds %d points, expected %d", count, index.Len())
	}
	fmt.Fprintf(out, "Sync complete: %d examples in file, %d points in %s\n", index.Len(), count, storage.CollectionName)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
