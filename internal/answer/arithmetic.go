package answer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/bull/finchat/internal/document"
	"github.com/bull/finchat/internal/llm"
)

// Operation is an arithmetic operation computed in code.
type Operation string

const (
	OpSum           Operation = "sum"
	OpDifference    Operation = "difference"
	OpAverage       Operation = "average"
	OpProduct       Operation = "product"
	OpRatio         Operation = "ratio"
	OpPercentChange Operation = "percentage change"
	OpPercentOf     Operation = "percentage of"
	OpGrossMargin   Operation = "gross margin"
)

// Percent reports whether the result is a percentage.
func (o Operation) Percent() bool {
	return o == OpPercentChange || o == OpPercentOf || o == OpGrossMargin
}

// binary reports whether the operation takes exactly two operands.
func (o Operation) binary() bool {
	switch o {
	case OpSum, OpAverage, OpProduct:
		return false
	}
	return true
}

// Source tells where the operands came from.
type Source string

const (
	SourceQuestion Source = "question"
	SourceModel    Source = "model"
	SourceContext  Source = "context"
)

// ArithmeticResult is a structured arithmetic answer.
type ArithmeticResult struct {
	Operation Operation `json:"operation"`
	Values    []float64 `json:"values"`
	Formula   string    `json:"formula"`
	Answer    string    `json:"answer"`
	Value     float64   `json:"value"`
	// Computed is false when Answer is the model's own, unverified result.
	Computed bool   `json:"computed"`
	Parse    Parsed `json:"parse"`
	Source   Source `json:"source"`
}

// Markdown renders the result as labeled lines with the answer in bold.
func (r *ArithmeticResult) Markdown() string {
	values := make([]string, len(r.Values))
	for i, v := range r.Values {
		values[i] = formatNumber(v)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Operation:** %s\n", r.Operation)
	fmt.Fprintf(&b, "**Values:** %s\n", strings.Join(values, ", "))
	fmt.Fprintf(&b, "**Formula:** %s\n", r.Formula)
	fmt.Fprintf(&b, "**Answer:** **%s**", r.Answer)
	if !r.Computed {
		b.WriteString("\n\n_Reported by the model; could not be verified against the document._")
	}
	return b.String()
}

var operationPatterns = []struct {
	op Operation
	re *regexp.Regexp
}{
	{OpGrossMargin, regexp.MustCompile(`(?i)gross\s+(profit\s+)?margin`)},
	{OpPercentChange, regexp.MustCompile(`(?i)(percent(age)?|%)\s*(increase|decrease|change|growth|decline|rise|drop)|growth\s+rate|(increase|decrease|change|grow|grew|rise|rose|fall|fell|decline)[a-z]*\s+(by\s+)?(what|how\s+much)\s+percent`)},
	{OpPercentOf, regexp.MustCompile(`(?i)percent(age)?\s+of|as\s+a\s+percent|proportion|share\s+of`)},
	{OpAverage, regexp.MustCompile(`(?i)\baverage|\bmean\b`)},
	{OpRatio, regexp.MustCompile(`(?i)\bratio|divi(de|sion)|times\s+(larger|greater|more|higher)`)},
	{OpDifference, regexp.MustCompile(`(?i)differen|subtract|how\s+much\s+(more|less|higher|lower|did)|\bchange\b|increase|decrease|\bgrew\b|\bdeclined?\b`)},
	{OpSum, regexp.MustCompile(`(?i)\bsum\b|\btotal|combined|together|\badd(ition|ed)?\b|aggregate`)},
	{OpProduct, regexp.MustCompile(`(?i)product\s+of|multipl`)},
}

// DetectOperation picks the operation a question or model label asks for.
func DetectOperation(text string) (Operation, bool) {
	for _, p := range operationPatterns {
		if p.re.MatchString(text) {
			return p.op, true
		}
	}
	return "", false
}

var (
	fromToRe       = regexp.MustCompile(`(?i)\bfrom\s+(\S+)\s+to\s+(\S+)`)
	grossMarginRe  = regexp.MustCompile(`(?i)revenue[^\d$(]*([$(]?[\d,.]+\)?).*?(?:cogs|cost\s+of\s+(?:goods\s+sold|sales|revenue))[^\d$(]*([$(]?[\d,.]+\)?)`)
	arithmeticTmpl = `You are an assistant that parses mathematical questions about a financial document.

Given the context and question, extract:
- The mathematical operation (one of: sum, difference, average, product, ratio, percentage change, percentage of, gross margin)
- The values involved, exactly as they appear in the context
- The formula to compute the result

Context:
%s

Question: %s

Reply with exactly these four lines:
Operation: <operation>
Values: <values separated by semicolons>
Formula: <formula>
Answer: <answer>

KEEP RESPONSES CONCISE AND FOCUSED.
ONLY USE INFORMATION PROVIDED IN THE CONTEXT.`
)

// ArithmeticEngine computes arithmetic answers. The chat model only suggests the
// operation and the operands; every operand it cites must appear in the context,
// and the arithmetic itself is done here.
type ArithmeticEngine struct {
	llm    Completer
	logger *slog.Logger
}

// NewArithmeticEngine creates an ArithmeticEngine. A nil Completer disables the
// model and relies on the question and context alone.
func NewArithmeticEngine(c Completer, logger *slog.Logger) *ArithmeticEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArithmeticEngine{llm: c, logger: logger}
}

// Answer computes the answer to question from elements.
func (e *ArithmeticEngine) Answer(ctx context.Context, question string, elements []document.Element) (*ArithmeticResult, error) {
	parsed := Parsed{Status: ParseFailed, Missing: append([]string(nil), labels...)}
	var llmErr error
	if e.llm != nil {
		parsed, llmErr = e.askModel(ctx, question, elements)
		if llmErr != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("arithmetic answer: %w", ctx.Err())
			}
			e.logger.Warn("arithmetic model call failed, computing from question and context", "error", llmErr)
		} else if parsed.Status != ParseComplete {
			e.logger.Warn("arithmetic reply incomplete", "status", parsed.Status, "missing", parsed.Missing)
		}
	}

	op, ok := DetectOperation(question)
	if !ok && parsed.Operation != "" {
		op, ok = DetectOperation(parsed.Operation)
	}

	if ok {
		values, source := e.operands(op, question, parsed, elements)
		if values != nil {
			value, formula, err := compute(op, values)
			if err != nil {
				return nil, fmt.Errorf("arithmetic answer: %w", err)
			}
			return &ArithmeticResult{
				Operation: op,
				Values:    values,
				Formula:   formula,
				Answer:    formatAnswer(op, value),
				Value:     value,
				Computed:  true,
				Parse:     parsed,
				Source:    source,
			}, nil
		}
	}

	// fall back to the model's own answer, flagged as not computed
	if parsed.Answer != "" {
		res := &ArithmeticResult{
			Operation: Operation(strings.ToLower(parsed.Operation)),
			Values:    ExtractNumbers(parsed.Values),
			Formula:   parsed.Formula,
			Answer:    parsed.Answer,
			Parse:     parsed,
			Source:    SourceModel,
		}
		if nums := ExtractNumbers(parsed.Answer); len(nums) > 0 {
			res.Value = nums[0]
		}
		return res, nil
	}

	if llmErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoComputation, llmErr)
	}
	return nil, ErrNoComputation
}

func (e *ArithmeticEngine) askModel(ctx context.Context, question string, elements []document.Element) (Parsed, error) {
	out, err := e.llm.Complete(ctx, llm.Request{
		User:        fmt.Sprintf(arithmeticTmpl, formatContext(elements), question),
		Temperature: 0,
		MaxTokens:   200,
	})
	if err != nil {
		return Parsed{Status: ParseFailed, Missing: append([]string(nil), labels...)}, err
	}
	return ParseLabeled(out), nil
}

// operands chooses operand values: a fully specified question first, then
// model-cited values found in the context, then the context's own numbers.
func (e *ArithmeticEngine) operands(op Operation, question string, parsed Parsed, elements []document.Element) ([]float64, Source) {
	if values := questionOperands(op, question); values != nil {
		return values, SourceQuestion
	}

	var contextText strings.Builder
	for _, el := range elements {
		contextText.WriteString(stripTags(el.Content))
		contextText.WriteString("\n")
	}
	contextNums := extractNumbers(contextText.String())

	if parsed.Values != "" {
		var cited []float64
		for _, n := range extractNumbers(parsed.Values) {
			switch {
			case n.Year:
			case containsValue(contextNums, n.Value):
				cited = append(cited, n.Value)
			default:
				e.logger.Warn("model cited a value missing from context", "value", n.Value)
			}
		}
		if values := fit(op, cited); values != nil {
			return orient(op, question, values), SourceModel
		}
	}

	var fromContext []float64
	for _, n := range contextNums {
		if !n.Year {
			fromContext = append(fromContext, n.Value)
		}
	}
	if values := fit(op, fromContext); values != nil {
		return orient(op, question, values), SourceContext
	}
	return nil, ""
}

// orient puts the later value first for a difference over a "from A to B"
// period, such as "from 2022 to 2023". Values are taken in period order.
func orient(op Operation, question string, values []float64) []float64 {
	if op != OpDifference || !fromToRe.MatchString(question) {
		return values
	}
	return []float64{values[1], values[0]}
}

// questionOperands returns operands when the question states them itself.
func questionOperands(op Operation, question string) []float64 {
	if op == OpGrossMargin {
		if m := grossMarginRe.FindStringSubmatch(question); m != nil {
			rev, cogs := ExtractNumbers(m[1]), ExtractNumbers(m[2])
			if len(rev) > 0 && len(cogs) > 0 {
				return []float64{rev[0], cogs[0]}
			}
		}
	}

	// "from 2022 to 2023" names a period, not the operands
	if m := fromToRe.FindStringSubmatch(question); m != nil {
		from, to := extractNumbers(m[1]), extractNumbers(m[2])
		if len(from) > 0 && len(to) > 0 && !from[0].Year && !to[0].Year {
			switch op {
			case OpDifference:
				return []float64{to[0].Value, from[0].Value}
			case OpPercentChange, OpRatio, OpSum, OpAverage, OpProduct:
				return []float64{from[0].Value, to[0].Value}
			}
		}
	}

	if op == OpPercentChange || op == OpGrossMargin {
		return nil
	}
	var nums []float64
	for _, n := range extractNumbers(question) {
		if !n.Year {
			nums = append(nums, n.Value)
		}
	}
	return fit(op, nums)
}

// fit trims values to what op takes, or returns nil if there are too few.
func fit(op Operation, values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	if op.binary() {
		return values[:2:2]
	}
	return values
}

func containsValue(nums []number, v float64) bool {
	for _, n := range nums {
		if nearlyEqual(n.Value, v) || nearlyEqual(math.Abs(n.Value), math.Abs(v)) {
			return true
		}
	}
	return false
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// compute applies op to values and returns the result with its formula.
func compute(op Operation, values []float64) (float64, string, error) {
	f := make([]string, len(values))
	for i, v := range values {
		f[i] = formatNumber(v)
	}

	switch op {
	case OpSum, OpAverage:
		var sum float64
		for _, v := range values {
			sum += v
		}
		if op == OpSum {
			return sum, strings.Join(f, " + "), nil
		}
		return sum / float64(len(values)),
			fmt.Sprintf("(%s) / %d", strings.Join(f, " + "), len(values)), nil

	case OpProduct:
		p := 1.0
		for _, v := range values {
			p *= v
		}
		return p, strings.Join(f, " * "), nil

	case OpDifference:
		return values[0] - values[1], fmt.Sprintf("%s - %s", f[0], f[1]), nil

	case OpRatio:
		if values[1] == 0 {
			return 0, "", ErrDivisionByZero
		}
		return values[0] / values[1], fmt.Sprintf("%s / %s", f[0], f[1]), nil

	case OpPercentChange:
		if values[0] == 0 {
			return 0, "", ErrDivisionByZero
		}
		return (values[1] - values[0]) / values[0] * 100,
			fmt.Sprintf("(%s - %s) / %s * 100", f[1], f[0], f[0]), nil

	case OpPercentOf:
		part, whole, fp, fw := values[0], values[1], f[0], f[1]
		// the part is the smaller magnitude whichever order it was stated in
		if math.Abs(part) > math.Abs(whole) {
			part, whole, fp, fw = whole, part, fw, fp
		}
		if whole == 0 {
			return 0, "", ErrDivisionByZero
		}
		return part / whole * 100, fmt.Sprintf("%s / %s * 100", fp, fw), nil

	case OpGrossMargin:
		revenue, cogs := values[0], values[1]
		if revenue == 0 {
			return 0, "", ErrDivisionByZero
		}
		return (revenue - cogs) / revenue * 100,
			fmt.Sprintf("(%s - %s) / %s * 100", f[0], f[1], f[0]), nil
	}
	return 0, "", fmt.Errorf("%w: unknown operation %q", ErrNoComputation, op)
}

func formatAnswer(op Operation, v float64) string {
	s := fmt.Sprintf("%.2f", v)
	if s == "-0.00" {
		s = "0.00"
	}
	if op.Percent() {
		return s + "%"
	}
	return s
}
