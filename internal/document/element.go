// Package document defines the elements produced by partitioning a financial document.
package document

// Kind distinguishes tables from narrative text.
type Kind string

const (
	KindTable Kind = "table"
	KindText  Kind = "text"
)

// Element is one structural unit of a parsed document.
// Tables carry their HTML rendering, text elements carry plain text.
type Element struct {
	Kind    Kind   `json:"kind"`
	Content string `json:"content"`
}

// Table returns a table element.
func Table(html string) Element {
	return Element{Kind: KindTable, Content: html}
}

// Text returns a narrative text element.
func Text(text string) Element {
	return Element{Kind: KindText, Content: text}
}

// Extraction is the classified output of a partition call.
type Extraction struct {
	Tables []string
	Texts  []string
}

// Empty reports whether nothing usable was extracted.
func (e *Extraction) Empty() bool {
	return e == nil || (len(e.Tables) == 0 && len(e.Texts) == 0)
}

// Elements returns tables first, then texts.
func (e *Extraction) Elements() []Element {
	if e == nil {
		return nil
	}
	out := make([]Element, 0, len(e.Tables)+len(e.Texts))
	for _, t := range e.Tables {
		out = append(out, Table(t))
	}
	for _, t := range e.Texts {
		out = append(out, Text(t))
	}
	return out
}

// Merge appends other's elements, keeping per-kind order.
func (e *Extraction) Merge(other *Extraction) {
	if other == nil {
		return
	}
	e.Tables = append(e.Tables, other.Tables...)
	e.Texts = append(e.Texts, other.Texts...)
}
