package extraction

import (
	"strings"

	"github.com/bull/finchat/internal/document"
)

// Element types returned by the partition service that FinChat keeps.
const (
	TypeTable             = "Table"
	TypeNarrativeText     = "NarrativeText"
	TypeUncategorizedText = "UncategorizedText"
)

// RawElement is one element of the partition service response.
type RawElement struct {
	Type     string      `json:"type"`
	ID       string      `json:"element_id,omitempty"`
	Text     string      `json:"text"`
	Metadata RawMetadata `json:"metadata"`
}

// RawMetadata carries the element fields FinChat reads.
type RawMetadata struct {
	TextAsHTML string `json:"text_as_html,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

// Classify sorts raw elements into tables and narrative texts, preserving document order.
// Tables use their HTML rendering and fall back to plain text. Other element types
// (titles, headers, footers, list items, images) and blank content are dropped.
func Classify(elements []RawElement) *document.Extraction {
	out := &document.Extraction{}
	for _, el := range elements {
		switch el.Type {
		case TypeTable:
			content := el.Metadata.TextAsHTML
			if strings.TrimSpace(content) == "" {
				content = el.Text
			}
			if strings.TrimSpace(content) != "" {
				out.Tables = append(out.Tables, content)
			}
		case TypeNarrativeText, TypeUncategorizedText:
			if strings.TrimSpace(el.Text) != "" {
				out.Texts = append(out.Texts, el.Text)
			}
		}
	}
	return out
}
