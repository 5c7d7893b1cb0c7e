package arpa

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const sample = `some preamble the reader skips

\data\
ngram 1=4
ngram 2=2

\1-grams:
-1.0	<unk>
-99	<s>	-0.5
-0.6	the	-0.3
-0.8	</s>

\2-grams:
-0.2	<s> the
-0.4	the </s>

\end\
`

func TestReadSample(t *testing.T) {
	t.Parallel()

	m, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.Order() != 2 {
		t.Fatalf("order: got %d", m.Order())
	}
	if c := m.Counts(); c[0] != 4 || c[1] != 2 {
		t.Fatalf("counts: got %v", c)
	}
	the := m.NGrams[0][2]
	if the.Words[0] != "the" || the.Prob != -0.6 || the.Backoff != -0.3 || !the.HasBackoff {
		t.Fatalf("unigram the: %+v", the)
	}
	if m.NGrams[0][0].HasBackoff {
		t.Fatalf("<unk> should have no backoff column")
	}
	bi := m.NGrams[1][1]
	if strings.Join(bi.Words, " ") != "the </s>" || bi.Prob != -0.4 {
		t.Fatalf("bigram: %+v", bi)
	}
}

func TestReadRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		input string
		line  int
	}{
		"no data header":  {"\\1-grams:\n-1 a\n", 2},
		"count mismatch":  {strings.Replace(sample, "ngram 2=2", "ngram 2=3", 1), 17},
		"bad probability": {strings.Replace(sample, "-0.6\tthe", "x\tthe", 1), 10},
		"too many fields": {strings.Replace(sample, "-0.4\tthe </s>", "-0.4\tthe </s> a b", 1), 15},
		"missing end":     {strings.TrimSuffix(sample, "\\end\\\n"), 16},
		"duplicate":       {strings.Replace(sample, "-0.8\t</s>", "-0.8\tthe", 1), 11},
		"orders skipped":  {strings.Replace(sample, "ngram 2=2", "ngram 3=2", 1), 5},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Read(strings.NewReader(tc.input))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("got %v, want *ParseError", err)
			}
			if pe.Line != tc.line {
				t.Fatalf("line: got %d want %d (%v)", pe.Line, tc.line, err)
			}
		})
	}
}

func TestWriteThenRead(t *testing.T) {
	t.Parallel()

	m, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "-0.6\tthe\t-0.3\n") {
		t.Fatalf("unexpected unigram line in:\n%s", buf.String())
	}
	again, err := Read(&buf)
	if err != nil {
		t.Fatalf("re-read: %v\n%s", err, buf.String())
	}
	for k := range m.NGrams {
		for i, e := range m.NGrams[k] {
			g := again.NGrams[k][i]
			if strings.Join(g.Words, " ") != strings.Join(e.Words, " ") || g.Prob != e.Prob || g.Backoff != e.Backoff {
				t.Fatalf("order %d line %d: got %+v want %+v", k+1, i, g, e)
			}
		}
	}
}
