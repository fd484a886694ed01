package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtraction_Elements(t *testing.T) {
	ext := &Extraction{
		Tables: []string{"<table></table>"},
		Texts:  []string{"first", "second"},
	}

	elements := ext.Elements()

	assert.Equal(t, []Element{
		Table("<table></table>"),
		Text("first"),
		Text("second"),
	}, elements)
}

func TestExtraction_Empty(t *testing.T) {
	var nilExt *Extraction
	assert.True(t, nilExt.Empty())
	assert.True(t, (&Extraction{}).Empty())
	assert.False(t, (&Extraction{Texts: []string{"x"}}).Empty())
}

func TestExtraction_Merge(t *testing.T) {
	ext := &Extraction{Tables: []string{"a"}}
	ext.Merge(&Extraction{Tables: []string{"b"}, Texts: []string{"c"}})
	ext.Merge(nil)

	assert.Equal(t, []string{"a", "b"}, ext.Tables)
	assert.Equal(t, []string{"c"}, ext.Texts)
}
