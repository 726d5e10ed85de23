package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// Source lists and reads markdown example documents.
type Source interface {
	Name() string
	ListDocs(ctx context.Context) ([]string, error)
	ReadDoc(ctx context.Context, relativePath string) ([]byte, error)
}

// Revisioner is implemented by sources that can name the revision they read.
type Revisioner interface {
	LatestCommitSHA(ctx context.Context) (string, error)
}

// DirSource reads markdown files from a local directory tree.
type DirSource struct {
	root string
	fsys fs.FS
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir, fsys: os.DirFS(dir)}
}

// Name identifies the source in logs and import results.
func (d *DirSource) Name() string {
	return "dir:" + d.root
}

// ListDocs returns the slash separated paths of all .md files, in lexical order.
func (d *DirSource) ListDocs(ctx context.Context) ([]string, error) {
	var docs []string
	err := fs.WalkDir(d.fsys, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.IsDir() && strings.EqualFold(path.Ext(p), ".md") {
			docs = append(docs, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", d.root, err)
	}
	return docs, nil
}

// ReadDoc reads one file relative to the root.
func (d *DirSource) ReadDoc(_ context.Context, relativePath string) ([]byte, error) {
	return fs.ReadFile(d.fsys, relativePath)
}
