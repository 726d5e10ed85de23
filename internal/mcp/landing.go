package mcp

import "net/http"

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Code Explainer</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #111827; color: #e5e7eb; display: flex; justify-content: center; padding: 3rem 1rem; }
  main { max-width: 640px; width: 100%; }
  h1 { font-size: 1.6rem; margin-bottom: 0.25rem; }
  p.lead { color: #9ca3af; margin-top: 0; }
  h2 { font-size: 0.8rem; text-transform: uppercase; letter-spacing: 0.08em; color: #6b7280; margin-top: 2rem; }
  pre { background: #030712; border: 1px solid #374151; border-radius: 6px; padding: 0.9rem; overflow-x: auto; font-size: 0.85rem; }
  code, .endpoint { font-family: Menlo, "Fira Code", monospace; }
  .endpoint { color: #93c5fd; }
  li { margin: 0.35rem 0; }
</style>
</head>
<body>
<main>
  <h1>Code Explainer</h1>
  <p class="lead">Line-by-line explanations of Python, C and C++ snippets, grounded in a curated knowledge base of annotated examples.</p>

  <h2>HTTP API</h2>
  <ul>
    <li><span class="endpoint">GET /health</span> knowledge base status</li>
    <li><span class="endpoint">POST /explain</span> explain a snippet</li>
    <li><span class="endpoint">POST /ingest</span> add a labeled example</li>
    <li><span class="endpoint">POST /mcp</span> MCP Streamable HTTP (explain_code, ingest_example, search_examples, knowledge_status)</li>
  </ul>

  <h2>Example</h2>
  <pre><code>curl -s localhost:8000/explain \
  -H 'Content-Type: application/json' \
  -d '{"code": "def fibonacci(n):\n    if n &lt;= 1:\n        return n\n    return fibonacci(n-1) + fibonacci(n-2)"}'</code></pre>
</main>
</body>
</html>`

// NewLandingHandler serves the landing page at / and 404s everything else.
func NewLandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(landingHTML))
	}
}
