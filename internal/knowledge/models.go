// Package knowledge defines the labeled code examples that make up the
// knowledge base and the JSON document they are persisted in.
package knowledge

import (
	"fmt"
	"strings"
)

// CorpusEntry is a labeled code example.
type CorpusEntry struct {
	Language     string   `json:"language"`
	Title        string   `json:"title"`
	CodeFragment string   `json:"code_fragment"`
	Explanation  string   `json:"explanation"`
	Tags         []string `json:"tags"`
	ID           string   `json:"id,omitempty"`
}

// ScoredEntry is a search hit. Score is never persisted.
type ScoredEntry struct {
	CorpusEntry
	Score float64 `json:"score"`
}

// EntryText returns the string that represents e in embedding space:
// the non-empty fields joined by single spaces.
func EntryText(e CorpusEntry) string {
	parts := []string{e.Language, e.Title, e.CodeFragment, e.Explanation, strings.Join(e.Tags, " ")}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.TrimSpace(strings.Join(nonEmpty, " "))
}

// AssignID returns a copy of e carrying an id. An existing id is kept;
// otherwise the id is "{language}-{ordinal}".
func AssignID(e CorpusEntry, ordinal int) CorpusEntry {
	if e.ID == "" {
		e.ID = fmt.Sprintf("%s-%d", e.Language, ordinal)
	}
	return e
}

// normalized makes tags serialize as [] instead of null.
func (e CorpusEntry) normalized() CorpusEntry {
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return e
}
