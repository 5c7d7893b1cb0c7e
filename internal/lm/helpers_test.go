package lm

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/ngramlm/internal/arpa"
	"github.com/samcharles93/ngramlm/internal/lmbuild"
	"github.com/samcharles93/ngramlm/internal/mcfstore"
	"github.com/samcharles93/ngramlm/pkg/mcf"
)

// Word IDs after building: <unk> 0, <s> 1, </s> 2, the 3, quick 4, fox 5.
const foxARPA = `
\data\
ngram 1=6
ngram 2=4
ngram 3=2

\1-grams:
-2.0	<unk>
-99	<s>	-0.5
-1.0	</s>
-0.7	the	-0.3
-0.9	quick	-0.2
-1.2	fox	-0.1

\2-grams:
-0.4	<s> the	-0.25
-0.3	the quick	-0.15
-0.6	quick fox
-0.5	fox </s>

\3-grams:
-0.1	<s> the quick
-0.2	the quick fox
\end\
`

func buildFile(t *testing.T, text string) string {
	t.Helper()

	m, err := arpa.Read(strings.NewReader(text))
	if err != nil {
		t.Fatalf("read arpa: %v", err)
	}
	path := filepath.Join(t.TempDir(), "model.mcf")
	if _, err := lmbuild.Build(context.Background(), m, path, lmbuild.DefaultOptions()); err != nil {
		t.Fatalf("build: %v", err)
	}
	return path
}

func loadFox(t *testing.T, opts ...Option) *Model {
	t.Helper()

	m, err := Load(context.Background(), buildFile(t, foxARPA), opts...)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// rewrite copies the container at src to a new file after mutate has edited
// its decoded contents. Sections are encoded directly so the result may be
// inconsistent on purpose.
func rewrite(t *testing.T, src string, mutate func(*mcfstore.Contents)) string {
	t.Helper()

	f, err := mcfstore.Open(src, mcfstore.MethodRead)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c := mcfstore.Contents{Info: f.Info, Words: f.Words, Quant: f.Quant}
	c.Info.Orders = append([]mcf.OrderInfo(nil), f.Info.Orders...)
	for _, a := range f.Arrays {
		c.Arrays = append(c.Arrays, append([]byte(nil), a...))
	}
	_ = f.Close()
	mutate(&c)

	dst := filepath.Join(t.TempDir(), "rewritten.mcf")
	out, err := os.Create(dst)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = out.Close() }()
	w, err := mcf.NewWriter(out)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	infoRaw, err := mcf.EncodeNGramInfoSection(c.Info)
	if err != nil {
		t.Fatalf("encode info: %v", err)
	}
	vocabRaw, err := mcf.EncodeVocabSection(c.Words)
	if err != nil {
		t.Fatalf("encode vocab: %v", err)
	}
	var trieRaw []byte
	for _, a := range c.Arrays {
		trieRaw = append(trieRaw, a...)
	}
	quantRaw, err := mcf.EncodeQuantSection(c.Info, c.Quant)
	if err != nil {
		t.Fatalf("encode quant: %v", err)
	}
	for _, s := range []struct {
		typ  mcf.SectionType
		data []byte
	}{
		{mcf.SectionNGramInfo, infoRaw},
		{mcf.SectionVocab, vocabRaw},
		{mcf.SectionQuant, quantRaw},
		{mcf.SectionTrie, trieRaw},
	} {
		if err := w.WriteSection(s.typ, s.typ.CurrentVersion(), s.data); err != nil {
			t.Fatalf("write %s: %v", s.typ, err)
		}
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	return dst
}

func near(a, b float32) bool {
	d := a - b
	return d < 1e-5 && d > -1e-5
}
