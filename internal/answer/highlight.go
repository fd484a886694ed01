package answer

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var highlightParser = goldmark.New().Parser()

// Highlights returns the bold spans of a markdown answer that contain a digit,
// in order of appearance, such as the figures the span prompt asks to bold.
func Highlights(markdown string) []string {
	source := []byte(markdown)
	doc := highlightParser.Parse(text.NewReader(source))

	var out []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		em, ok := n.(*ast.Emphasis)
		if !ok || em.Level != 2 {
			return ast.WalkContinue, nil
		}
		s := strings.TrimSpace(inlineText(em, source))
		if strings.IndexFunc(s, unicode.IsDigit) >= 0 {
			out = append(out, s)
		}
		return ast.WalkSkipChildren, nil
	})
	return out
}

// inlineText concatenates the text segments below n.
func inlineText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
