package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ReadFile loads every entry of the knowledge base document at path.
// A missing file yields ErrNotFound, undecodable content ErrMalformedData.
func ReadFile(path string) ([]CorpusEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read knowledge base %s: %w", path, err)
	}

	var entries []CorpusEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedData, path, err)
	}
	for i := range entries {
		entries[i] = entries[i].normalized()
	}
	return entries, nil
}

// WriteFile rewrites the whole document: a pretty-printed UTF-8 JSON array.
// The file is replaced atomically so readers never see a partial write.
func WriteFile(path string, entries []CorpusEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create knowledge base directory: %w", err)
	}

	out := make([]CorpusEntry, len(entries))
	for i, e := range entries {
		out[i] = e.normalized()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode knowledge base: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write knowledge base: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace knowledge base: %w", err)
	}
	return nil
}
