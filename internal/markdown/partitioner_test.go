package markdown

import (
	"context"
	"strings"
	"testing"
)

// TestPartition_TablesAndSections tests that GFM tables become HTML and narrative splits at H1/H2.
func TestPartition_TablesAndSections(t *testing.T) {
	input := `# Annual Report 2023

Net income rose to $73,795 thousand from $59,972 thousand.

## Income Statement

| Item       | 2022   | 2023   |
|------------|--------|--------|
| Revenue    | 410,000 | 455,000 |
| Net income | 59,972 | 73,795 |

Figures are in thousands of dollars.

## Outlook

Management expects continued growth.
`

	ext, err := NewPartitioner().Partition(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}

	if len(ext.Tables) != 1 {
		t.Fatalf("Expected 1 table, got %d", len(ext.Tables))
	}
	table := ext.Tables[0]
	if !strings.HasPrefix(table, "<table>") {
		t.Errorf("Table not rendered as HTML: %q", table)
	}
	if !strings.Contains(table, "<td>73,795</td>") {
		t.Errorf("Table missing cell value: %q", table)
	}

	if len(ext.Texts) != 3 {
		t.Fatalf("Expected 3 text sections, got %d: %q", len(ext.Texts), ext.Texts)
	}
	if !strings.HasPrefix(ext.Texts[0], "# Annual Report 2023\n\n") {
		t.Errorf("Section 0 missing header path: %q", ext.Texts[0])
	}
	expected := "# Annual Report 2023 > ## Income Statement\n\nFigures are in thousands of dollars."
	if ext.Texts[1] != expected {
		t.Errorf("Section 1: expected %q, got %q", expected, ext.Texts[1])
	}
	if strings.Contains(ext.Texts[1], "|") {
		t.Errorf("Table source leaked into text section: %q", ext.Texts[1])
	}
	if !strings.Contains(ext.Texts[2], "continued growth") {
		t.Errorf("Section 2 missing content: %q", ext.Texts[2])
	}
}

// TestPartition_NoHeaders tests that a document without headers yields one text element.
func TestPartition_NoHeaders(t *testing.T) {
	input := `Revenue increased 11% year over year.

Operating margin held steady at 24%.
`

	ext, err := NewPartitioner().Partition(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if len(ext.Tables) != 0 {
		t.Errorf("Expected no tables, got %d", len(ext.Tables))
	}
	if len(ext.Texts) != 1 {
		t.Fatalf("Expected 1 text element, got %d", len(ext.Texts))
	}
	if !strings.Contains(ext.Texts[0], "Revenue increased") || !strings.Contains(ext.Texts[0], "Operating margin") {
		t.Errorf("Text element missing content: %q", ext.Texts[0])
	}
}

// TestPartition_TableOnlySection tests that a header followed only by a table emits no empty text.
func TestPartition_TableOnlySection(t *testing.T) {
	input := `# Balance Sheet

| Assets | 2023 |
|--------|------|
| Cash   | 1,200 |
`

	ext, err := NewPartitioner().Partition(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if len(ext.Tables) != 1 {
		t.Errorf("Expected 1 table, got %d", len(ext.Tables))
	}
	if len(ext.Texts) != 0 {
		t.Errorf("Expected no text sections, got %q", ext.Texts)
	}
}

// TestPartition_H3StaysInSection tests that deeper headers do not split sections.
func TestPartition_H3StaysInSection(t *testing.T) {
	input := `# Results

## Segments

### Retail

Retail revenue was $120 million.

### Wholesale

Wholesale revenue was $80 million.
`

	ext, err := NewPartitioner().Partition(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if len(ext.Texts) != 1 {
		t.Fatalf("Expected 1 text section, got %d: %q", len(ext.Texts), ext.Texts)
	}
	got := ext.Texts[0]
	if !strings.HasPrefix(got, "# Results > ## Segments") {
		t.Errorf("Unexpected header path: %q", got)
	}
	if !strings.Contains(got, "Retail revenue") || !strings.Contains(got, "Wholesale revenue") {
		t.Errorf("H3 content missing: %q", got)
	}
}

// TestPartition_Empty tests empty input.
func TestPartition_Empty(t *testing.T) {
	ext, err := NewPartitioner().Partition(context.Background(), nil)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if !ext.Empty() {
		t.Errorf("Expected empty extraction, got %+v", ext)
	}
}

func TestFormatHeaderPath(t *testing.T) {
	got := formatHeaderPath([]string{"Results", "Revenue"})
	if got != "# Results > ## Revenue" {
		t.Errorf("formatHeaderPath: got %q", got)
	}
	if formatHeaderPath(nil) != "" {
		t.Errorf("formatHeaderPath(nil) should be empty")
	}
}
