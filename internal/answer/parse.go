package answer

import "strings"

// ParseStatus tells how much of a labeled reply was recognized.
type ParseStatus int

const (
	ParseFailed ParseStatus = iota
	ParsePartial
	ParseComplete
)

func (s ParseStatus) String() string {
	switch s {
	case ParseComplete:
		return "complete"
	case ParsePartial:
		return "partial"
	default:
		return "failed"
	}
}

// Labels expected in an arithmetic reply, in order.
const (
	LabelOperation = "Operation"
	LabelValues    = "Values"
	LabelFormula   = "Formula"
	LabelAnswer    = "Answer"
)

var labels = []string{LabelOperation, LabelValues, LabelFormula, LabelAnswer}

// Parsed is a model reply of "Label: value" lines.
type Parsed struct {
	Operation string      `json:"operation,omitempty"`
	Values    string      `json:"values,omitempty"`
	Formula   string      `json:"formula,omitempty"`
	Answer    string      `json:"answer,omitempty"`
	Status    ParseStatus `json:"status"`
	Missing   []string    `json:"missing,omitempty"`
}

// ParseLabeled splits each line on its first colon and keeps the first value of
// each known label. Labels match case-insensitively and may carry markdown
// bullets or bold markers. Unknown lines are ignored.
func ParseLabeled(text string) Parsed {
	var p Parsed
	fields := map[string]*string{
		strings.ToLower(LabelOperation): &p.Operation,
		strings.ToLower(LabelValues):    &p.Values,
		strings.ToLower(LabelFormula):   &p.Formula,
		strings.ToLower(LabelAnswer):    &p.Answer,
	}

	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.Trim(key, " \t-*•#"))
		value = strings.Trim(value, " \t*")
		dst, known := fields[key]
		if !known || *dst != "" || value == "" {
			continue
		}
		*dst = value
	}

	found := 0
	for _, label := range labels {
		if *fields[strings.ToLower(label)] == "" {
			p.Missing = append(p.Missing, label)
			continue
		}
		found++
	}
	switch found {
	case len(labels):
		p.Status = ParseComplete
	case 0:
		p.Status = ParseFailed
	default:
		p.Status = ParsePartial
	}
	return p
}
