package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/bull/code-explainer/internal/explain"
	"github.com/bull/code-explainer/internal/vectorindex"
)

const (
	minCodeLength = 10
	maxBodyBytes  = 1 << 20
)

// Engine is the explanation backend served over HTTP.
type Engine interface {
	Explain(ctx context.Context, code, languageHint string) *explain.Result
	Ingest(ctx context.Context, req explain.IngestRequest) (int, error)
	Health() explain.Health
}

// ExplainRequest is the body of POST /explain.
type ExplainRequest struct {
	Code     *string `json:"code"`
	Language *string `json:"language"`
}

// IngestRequest is the body of POST /ingest. Pointer fields distinguish a
// missing field from an empty string.
type IngestRequest struct {
	Language     *string  `json:"language"`
	Title        *string  `json:"title"`
	CodeFragment *string  `json:"code_fragment"`
	Explanation  *string  `json:"explanation"`
	Tags         []string `json:"tags"`
}

// IngestResponse is returned by POST /ingest.
type IngestResponse struct {
	Status        string `json:"status"`
	TotalExamples int    `json:"total_examples"`
}

type handlers struct {
	engine Engine
	logger *slog.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Health())
}

func (h *handlers) explain(w http.ResponseWriter, r *http.Request) {
	var req ExplainRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Code == nil {
		writeError(w, http.StatusUnprocessableEntity, errors.New("field required: code"))
		return
	}
	code := *req.Code
	if strings.TrimSpace(code) == "" {
		writeError(w, http.StatusBadRequest, ErrEmptyInput)
		return
	}
	if utf8.RuneCountInString(code) < minCodeLength {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Errorf("code must be at least %d characters", minCodeLength))
		return
	}

	hint := ""
	if req.Language != nil {
		hint = *req.Language
	}
	writeJSON(w, http.StatusOK, h.engine.Explain(r.Context(), code, hint))
}

func (h *handlers) ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if missing := req.missingFields(); len(missing) > 0 {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Errorf("field required: %s", strings.Join(missing, ", ")))
		return
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	total, err := h.engine.Ingest(r.Context(), explain.IngestRequest{
		Language:     *req.Language,
		Title:        *req.Title,
		CodeFragment: *req.CodeFragment,
		Explanation:  *req.Explanation,
		Tags:         tags,
	})
	if err != nil {
		if errors.Is(err, vectorindex.ErrDiverged) {
			h.logger.Error("knowledge base diverged, reload required", "error", err)
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{Status: "ingested", TotalExamples: total})
}

func (req IngestRequest) missingFields() []string {
	var missing []string
	if req.Language == nil {
		missing = append(missing, "language")
	}
	if req.Title == nil {
		missing = append(missing, "title")
	}
	if req.CodeFragment == nil {
		missing = append(missing, "code_fragment")
	}
	if req.Explanation == nil {
		missing = append(missing, "explanation")
	}
	return missing
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
