// Package markdown turns curated example documents into knowledge base entries.
//
// A document lists examples as H2 sections. The first fenced code block of a
// section is the example code, its paragraphs are the explanation, and a
// paragraph starting with "Tags:" lists comma separated tags. An enclosing H1
// names a category that is added as a tag.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"

	"github.com/bull/code-explainer/internal/detect"
	"github.com/bull/code-explainer/internal/knowledge"
)

const tagsPrefix = "Tags:"

// Parser extracts examples from markdown.
type Parser struct {
	md goldmark.Markdown
}

// NewParser creates a parser with auto heading IDs, which the TOC lookup relies on.
func NewParser() *Parser {
	return &Parser{
		md: goldmark.New(goldmark.WithParserOptions(parser.WithAutoHeadingID())),
	}
}

// ParseExamples returns one entry per H2 section that contains a fenced code
// block, in document order. Entries carry no id.
func (p *Parser) ParseExamples(source []byte) ([]knowledge.CorpusEntry, error) {
	doc := p.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var entries []knowledge.CorpusEntry
	p.collect(doc, source, tree.Items, "", &entries)
	return entries, nil
}

func (p *Parser) collect(doc ast.Node, source []byte, items toc.Items, category string, entries *[]knowledge.CorpusEntry) {
	for _, item := range items {
		heading := findHeadingByID(doc, string(item.ID))
		if heading == nil {
			continue
		}

		title := strings.TrimSpace(string(item.Title))
		if heading.Level == 1 {
			p.collect(doc, source, item.Items, title, entries)
			continue
		}

		if entry, ok := parseSection(heading, source, title); ok {
			if category != "" {
				entry.Tags = appendUnique(entry.Tags, strings.ToLower(category))
			}
			*entries = append(*entries, entry)
		}
	}
}

// parseSection reads the blocks between heading and the next H1/H2.
func parseSection(heading *ast.Heading, source []byte, title string) (knowledge.CorpusEntry, bool) {
	entry := knowledge.CorpusEntry{Title: title, Tags: []string{}}
	var explanation []string
	var info string
	found := false

	for n := heading.NextSibling(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level <= 2 {
			break
		}

		switch block := n.(type) {
		case *ast.FencedCodeBlock:
			if found {
				continue
			}
			found = true
			entry.CodeFragment = blockText(block.Lines(), source)
			info = string(block.Language(source))
		case *ast.Paragraph:
			para := paragraphText(block.Lines(), source)
			if strings.HasPrefix(para, tagsPrefix) {
				for _, tag := range strings.Split(strings.TrimPrefix(para, tagsPrefix), ",") {
					if tag = strings.TrimSpace(tag); tag != "" {
						entry.Tags = appendUnique(entry.Tags, tag)
					}
				}
				continue
			}
			if para != "" {
				explanation = append(explanation, para)
			}
		}
	}

	if !found {
		return knowledge.CorpusEntry{}, false
	}

	entry.Explanation = strings.Join(explanation, " ")
	switch label := detect.Normalize(info); label {
	case detect.Python, detect.C, detect.CPP:
		entry.Language = label
	default:
		entry.Language = detect.Detect(entry.CodeFragment)
	}
	return entry, true
}

// findHeadingByID locates a heading node by its auto-generated ID.
func findHeadingByID(node ast.Node, id string) *ast.Heading {
	var found *ast.Heading
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		heading := n.(*ast.Heading)
		if headingID, ok := heading.AttributeString("id"); ok {
			if b, ok := headingID.([]byte); ok && string(b) == id {
				found = heading
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

func blockText(lines *text.Segments, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return strings.TrimRight(buf.String(), "\n")
}

// paragraphText joins the raw lines of a paragraph with single spaces.
func paragraphText(lines *text.Segments, source []byte) string {
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if line := strings.TrimSpace(string(seg.Value(source))); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func appendUnique(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}
