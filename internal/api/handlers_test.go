package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/code-explainer/internal/embedding"
	"github.com/bull/code-explainer/internal/explain"
	"github.com/bull/code-explainer/internal/knowledge"
	"github.com/bull/code-explainer/internal/vectorindex"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubEngine records calls and returns canned results.
type stubEngine struct {
	explainCalls int
	ingested     []explain.IngestRequest
	ingestErr    error
	delay        time.Duration
}

func (s *stubEngine) Explain(_ context.Context, code, hint string) *explain.Result {
	s.explainCalls++
	time.Sleep(s.delay)
	return &explain.Result{Language: hint, Summary: "summary of " + code}
}

func (s *stubEngine) Ingest(_ context.Context, req explain.IngestRequest) (int, error) {
	if s.ingestErr != nil {
		return 0, s.ingestErr
	}
	s.ingested = append(s.ingested, req)
	return len(s.ingested), nil
}

func (s *stubEngine) Health() explain.Health {
	return explain.Health{Status: "ok", Loaded: len(s.ingested) > 0}
}

func newTestHandler(engine Engine) http.Handler {
	return NewServer(engine, Options{AllowedOrigins: []string{"*"}, Logger: testLogger()}).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Detail
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestHandler(&stubEngine{}), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","loaded":false}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestExplain_BlankCodeRejectedBeforeEngine(t *testing.T) {
	engine := &stubEngine{}
	h := newTestHandler(engine)

	for _, body := range []string{`{"code":""}`, `{"code":"   \n\t  "}`, `{"code":"            "}`} {
		rec := do(t, h, http.MethodPost, "/explain", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Code snippet cannot be empty", detail(t, rec))
	}
	assert.Zero(t, engine.explainCalls)
}

func TestExplain_Validation(t *testing.T) {
	engine := &stubEngine{}
	h := newTestHandler(engine)

	assert.Equal(t, http.StatusUnprocessableEntity, do(t, h, http.MethodPost, "/explain", `{"code":"x=1"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, h, http.MethodPost, "/explain", `{"language":"c"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/explain", `{"code":`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/explain", "").Code)
	assert.Zero(t, engine.explainCalls)
}

func TestExplain_PassesHint(t *testing.T) {
	engine := &stubEngine{}
	rec := do(t, newTestHandler(engine), http.MethodPost, "/explain", `{"code":"int main() {}","language":"c"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var result explain.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "c", result.Language)
	assert.Equal(t, "summary of int main() {}", result.Summary)
}

func TestIngest(t *testing.T) {
	engine := &stubEngine{}
	h := newTestHandler(engine)

	rec := do(t, h, http.MethodPost, "/ingest", `{"language":"c","title":"","code_fragment":"","explanation":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ingested","total_examples":1}`, rec.Body.String())
	require.Len(t, engine.ingested, 1)
	assert.Equal(t, []string{}, engine.ingested[0].Tags)

	rec = do(t, h, http.MethodPost, "/ingest", `{"language":"c","title":"t"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "field required: code_fragment, explanation", detail(t, rec))
}

func TestIngest_EngineError(t *testing.T) {
	engine := &stubEngine{ingestErr: fmt.Errorf("ingest example: %w", vectorindex.ErrDiverged)}
	rec := do(t, newTestHandler(engine), http.MethodPost, "/ingest",
		`{"language":"c","title":"t","code_fragment":"x","explanation":"y","tags":["a"]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, detail(t, rec), "diverged")
}

func TestRequestTimeout(t *testing.T) {
	engine := &stubEngine{delay: 200 * time.Millisecond}
	h := NewServer(engine, Options{RequestTimeout: 20 * time.Millisecond, Logger: testLogger()}).Handler()

	rec := do(t, h, http.MethodPost, "/explain", `{"code":"int main() { return 0; }"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "request timed out")
}

func TestCORS(t *testing.T) {
	h := NewServer(&stubEngine{}, Options{AllowedOrigins: []string{"https://app.example"}, Logger: testLogger()}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/explain", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	newTestHandler(&stubEngine{}).ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	s := NewServer(&stubEngine{}, Options{Logger: testLogger()})
	s.Handle("GET /boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))

	rec := do(t, s.Handler(), http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEndToEnd_IngestThenExplain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, knowledge.WriteFile(path, []knowledge.CorpusEntry{}))
	engine := explain.NewEngine(vectorindex.New(path, embedding.NewHashEmbedder(64)), testLogger())
	require.NoError(t, engine.Load(context.Background()))
	h := newTestHandler(engine)

	assert.JSONEq(t, `{"status":"ok","loaded":false}`, do(t, h, http.MethodGet, "/health", "").Body.String())

	rec := do(t, h, http.MethodPost, "/ingest",
		`{"language":"c","title":"swap","code_fragment":"void swap(int*a,int*b){}","explanation":"swaps two ints via pointers","tags":["pointers"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/explain", `{"code":"void swap(int *x, int *y) { }"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var result explain.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "c", result.Language)
	require.Len(t, result.References, 1)
	assert.Equal(t, "c-1", result.References[0].ID)
	assert.JSONEq(t, `{"status":"ok","loaded":true}`, do(t, h, http.MethodGet, "/health", "").Body.String())
}

// slowEmbedder delays every batch and gives up when its context is cancelled.
type slowEmbedder struct {
	*embedding.HashEmbedder
	delay time.Duration
}

func (s *slowEmbedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.HashEmbedder.EncodeBatch(ctx, texts)
}

func TestIngest_TimedOutRequestStillCompletes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, knowledge.WriteFile(path, []knowledge.CorpusEntry{}))
	index := vectorindex.New(path, &slowEmbedder{HashEmbedder: embedding.NewHashEmbedder(64), delay: 100 * time.Millisecond})
	engine := explain.NewEngine(index, testLogger())
	require.NoError(t, engine.Load(context.Background()))
	h := NewServer(engine, Options{RequestTimeout: 20 * time.Millisecond, Logger: testLogger()}).Handler()

	rec := do(t, h, http.MethodPost, "/ingest",
		`{"language":"c","title":"swap","code_fragment":"void swap(int*a,int*b){}","explanation":"swaps two ints"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Waits on the writer lock until the abandoned insert has finished.
	total, err := engine.Ingest(context.Background(), explain.IngestRequest{
		Language: "python", Title: "hello", CodeFragment: "print('hi')", Explanation: "greets", Tags: []string{},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	persisted, err := knowledge.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}
