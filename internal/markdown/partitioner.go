// Package markdown partitions Markdown financial notes into table and text elements
// without calling the external extraction service.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"

	"github.com/bull/finchat/internal/document"
)

// Partitioner splits Markdown into GFM tables, rendered as HTML, and narrative
// sections split at H1 and H2 boundaries.
type Partitioner struct {
	md goldmark.Markdown
}

// NewPartitioner creates a Partitioner with GFM table support.
func NewPartitioner() *Partitioner {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Partitioner{md: md}
}

// section accumulates narrative blocks under one header path.
type section struct {
	headerPath string
	blocks     []string
}

func (s *section) content() string {
	body := strings.TrimSpace(strings.Join(s.blocks, "\n\n"))
	if body == "" {
		return ""
	}
	if s.headerPath == "" {
		return body
	}
	return fmt.Sprintf("%s\n\n%s", s.headerPath, body)
}

// Partition returns the document's tables and text sections in document order.
// A document without H1/H2 headers yields a single text element.
func (p *Partitioner) Partition(ctx context.Context, source []byte) (*document.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := p.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}
	paths := make(map[string]string)
	collectHeaderPaths(tree.Items, nil, paths)

	out := &document.Extraction{}
	current := &section{}
	flush := func() {
		if c := current.content(); c != "" {
			out.Texts = append(out.Texts, c)
		}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch {
		case n.Kind() == extast.KindTable:
			html, err := p.renderTable(source, n)
			if err != nil {
				return nil, fmt.Errorf("render table: %w", err)
			}
			out.Tables = append(out.Tables, html)

		case n.Kind() == ast.KindHeading && n.(*ast.Heading).Level <= 2:
			flush()
			current = &section{headerPath: headerPathFor(n, paths)}

		default:
			if block := blockText(n, source); block != "" {
				current.blocks = append(current.blocks, block)
			}
		}
	}
	flush()

	return out, nil
}

func (p *Partitioner) renderTable(source []byte, n ast.Node) (string, error) {
	var buf bytes.Buffer
	if err := p.md.Renderer().Render(&buf, source, n); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// collectHeaderPaths maps heading IDs to their "# H1 > ## H2" path.
func collectHeaderPaths(items toc.Items, ancestors []string, paths map[string]string) {
	for _, item := range items {
		current := append(append([]string(nil), ancestors...), string(item.Title))
		if len(item.ID) > 0 {
			paths[string(item.ID)] = formatHeaderPath(current)
		}
		collectHeaderPaths(item.Items, current, paths)
	}
}

func headerPathFor(heading ast.Node, paths map[string]string) string {
	if id, ok := heading.AttributeString("id"); ok {
		if b, ok := id.([]byte); ok {
			if path, ok := paths[string(b)]; ok {
				return path
			}
		}
	}
	return ""
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Results", "Revenue"] -> "# Results > ## Revenue"
func formatHeaderPath(path []string) string {
	if len(path) == 0 {
		return ""
	}

	var parts []string
	for i, segment := range path {
		prefix := strings.Repeat("#", i+1)
		parts = append(parts, fmt.Sprintf("%s %s", prefix, segment))
	}

	return strings.Join(parts, " > ")
}

// blockText returns the source text of a block, skipping any nested tables.
func blockText(n ast.Node, source []byte) string {
	var lines []string
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if child.Kind() == extast.KindTable {
			return ast.WalkSkipChildren, nil
		}
		if child.Type() != ast.TypeBlock || child.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		for i := 0; i < child.Lines().Len(); i++ {
			seg := child.Lines().At(i)
			buf.Write(seg.Value(source))
		}
		if s := strings.TrimSpace(buf.String()); s != "" {
			lines = append(lines, s)
		}
		return ast.WalkSkipChildren, nil
	})
	return strings.Join(lines, "\n")
}
