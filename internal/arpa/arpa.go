// Package arpa reads and writes backoff language models in the ARPA text
// format. Probabilities and backoff weights are log10 values, kept as written.
package arpa

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxOrder bounds the orders Read accepts.
const MaxOrder = 6

// Entry is one n-gram line.
type Entry struct {
	Words   []string
	Prob    float32
	Backoff float32
	// HasBackoff records whether the line carried a backoff column.
	HasBackoff bool
}

// Model holds the n-grams of every order; NGrams[k] are the order k+1 lines
// in file order.
type Model struct {
	NGrams [][]Entry
}

func (m *Model) Order() int { return len(m.NGrams) }

// Counts returns the number of n-grams per order.
func (m *Model) Counts() []int {
	out := make([]int, len(m.NGrams))
	for i, ng := range m.NGrams {
		out[i] = len(ng)
	}
	return out
}

// ParseError reports malformed input with its 1-based line number.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("arpa: line %d: %s", e.Line, e.Msg)
}

type parser struct {
	sc   *bufio.Scanner
	line int
	text string
	eof  bool
}

func (p *parser) next() bool {
	for p.sc.Scan() {
		p.line++
		p.text = strings.TrimSpace(p.sc.Text())
		if p.text != "" {
			return true
		}
	}
	p.eof = true
	return false
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

// Read parses an ARPA model. Declared counts must match the lines present,
// and every order from 1 to the highest declared must appear.
func Read(r io.Reader) (*Model, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	p := &parser{sc: sc}

	for {
		if !p.next() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("arpa: %w", err)
			}
			return nil, p.errorf("missing \\data\\ header")
		}
		if p.text == `\data\` {
			break
		}
	}

	var counts []int
	for p.next() && strings.HasPrefix(p.text, "ngram ") {
		key, val, ok := strings.Cut(p.text[len("ngram "):], "=")
		if !ok {
			return nil, p.errorf("malformed count line %q", p.text)
		}
		order, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || order != len(counts)+1 {
			return nil, p.errorf("expected count for order %d, got %q", len(counts)+1, p.text)
		}
		if order > MaxOrder {
			return nil, p.errorf("order %d exceeds maximum %d", order, MaxOrder)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || n < 0 {
			return nil, p.errorf("bad count %q", val)
		}
		counts = append(counts, n)
	}
	if len(counts) == 0 {
		return nil, p.errorf("no ngram counts after \\data\\")
	}
	if counts[0] == 0 {
		return nil, p.errorf("model has no unigrams")
	}

	m := &Model{NGrams: make([][]Entry, len(counts))}
	for order := 1; order <= len(counts); order++ {
		if p.eof {
			return nil, p.errorf("missing \\%d-grams: section", order)
		}
		if want := fmt.Sprintf(`\%d-grams:`, order); p.text != want {
			return nil, p.errorf("expected %s, got %q", want, p.text)
		}
		entries := make([]Entry, 0, counts[order-1])
		seen := make(map[string]struct{}, counts[order-1])
		for p.next() && !strings.HasPrefix(p.text, `\`) {
			e, err := parseLine(p, order)
			if err != nil {
				return nil, err
			}
			key := strings.Join(e.Words, " ")
			if _, dup := seen[key]; dup {
				return nil, p.errorf("duplicate %d-gram %q", order, key)
			}
			seen[key] = struct{}{}
			entries = append(entries, e)
		}
		if len(entries) != counts[order-1] {
			return nil, p.errorf("%d-grams: header declares %d, found %d", order, counts[order-1], len(entries))
		}
		m.NGrams[order-1] = entries
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("arpa: %w", err)
	}
	if p.eof || p.text != `\end\` {
		return nil, p.errorf("missing \\end\\ marker")
	}
	return m, nil
}

func parseLine(p *parser, order int) (Entry, error) {
	fields := strings.Fields(p.text)
	if len(fields) != order+1 && len(fields) != order+2 {
		return Entry{}, p.errorf("%d-gram line has %d fields", order, len(fields))
	}
	prob, err := strconv.ParseFloat(fields[0], 32)
	if err != nil {
		return Entry{}, p.errorf("bad probability %q", fields[0])
	}
	e := Entry{
		Words: append([]string(nil), fields[1:order+1]...),
		Prob:  float32(prob),
	}
	if len(fields) == order+2 {
		bo, err := strconv.ParseFloat(fields[order+1], 32)
		if err != nil {
			return Entry{}, p.errorf("bad backoff %q", fields[order+1])
		}
		e.Backoff = float32(bo)
		e.HasBackoff = true
	}
	return e, nil
}

// Write emits m in ARPA format. Backoff columns are written for lines that
// carried one or whose weight is non-zero, except at the highest order.
func Write(w io.Writer, m *Model) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\n\\data\\\n")
	for i, ng := range m.NGrams {
		fmt.Fprintf(bw, "ngram %d=%d\n", i+1, len(ng))
	}
	for i, ng := range m.NGrams {
		top := i == len(m.NGrams)-1
		fmt.Fprintf(bw, "\n\\%d-grams:\n", i+1)
		for _, e := range ng {
			bw.WriteString(formatFloat(e.Prob))
			bw.WriteByte('\t')
			bw.WriteString(strings.Join(e.Words, " "))
			if !top && (e.HasBackoff || e.Backoff != 0) {
				bw.WriteByte('\t')
				bw.WriteString(formatFloat(e.Backoff))
			}
			bw.WriteByte('\n')
		}
	}
	fmt.Fprintf(bw, "\n\\end\\\n")
	return bw.Flush()
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
