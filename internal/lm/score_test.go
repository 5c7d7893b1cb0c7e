package lm

import (
	"math"
	"sync"
	"testing"

	"github.com/samcharles93/ngramlm/internal/vocab"
)

func TestFullScoreBackoffTable(t *testing.T) {
	t.Parallel()

	m := loadFox(t)
	ctx := func(words ...string) State {
		s := m.NullContext()
		for _, w := range words {
			_, s = m.Score(s, w, -100)
		}
		return s
	}

	cases := []struct {
		name    string
		state   State
		word    string
		want    float32
		ngramLn int
	}{
		{"unigram from empty", m.NullContext(), "the", -0.7, 1},
		{"bigram hit", ctx("the"), "quick", -0.3, 2},
		{"trigram hit", ctx("the", "quick"), "fox", -0.2, 3},
		{"bigram after minimized state", ctx("the", "quick", "fox"), "</s>", -0.5, 2},
		// bo(quick) + p(the)
		{"back off to unigram", ctx("quick"), "the", -0.2 + -0.7, 1},
		// bo(<s> the) + bo(the) + p(fox)
		{"back off two orders", after(m, m.BeginSentence(), "the"), "fox", -0.25 + -0.3 + -1.2, 1},
		{"trigram from <s>", after(m, m.BeginSentence(), "the"), "quick", -0.1, 3},
	}
	for _, tc := range cases {
		r := m.FullScore(tc.state, m.Vocabulary().Index(tc.word))
		if !near(r.Prob, tc.want) || r.NgramLength != tc.ngramLn {
			t.Fatalf("%s: got %v (n=%d), want %v (n=%d)", tc.name, r.Prob, r.NgramLength, tc.want, tc.ngramLn)
		}
	}
}

func after(m *Model, s State, word string) State {
	_, next := m.Score(s, word, -100)
	return next
}

func TestStateMinimization(t *testing.T) {
	t.Parallel()

	m := loadFox(t)
	id := m.Vocabulary().Index

	_, s := m.ScoreID(m.NullContext(), id("the"))
	_, s = m.ScoreID(s, id("quick"))
	if got := s.Words(); len(got) != 2 || got[0] != id("the") || got[1] != id("quick") {
		t.Fatalf("state after the quick: %v", got)
	}
	// "quick fox" has no extensions and no backoff, so only "fox" is kept.
	_, s = m.ScoreID(s, id("fox"))
	if got := s.Words(); len(got) != 1 || got[0] != id("fox") {
		t.Fatalf("state after the quick fox: %v", got)
	}
	// </s> has neither extensions nor backoff.
	_, s = m.ScoreID(s, id("</s>"))
	if s != m.NullContext() || s.Len() != 0 {
		t.Fatalf("state after </s>: %v", s.Words())
	}
}

func TestEquivalentHistoriesShareState(t *testing.T) {
	t.Parallel()

	m := loadFox(t)
	id := m.Vocabulary().Index

	_, short := m.ScoreID(m.NullContext(), id("fox"))
	long := m.NullContext()
	for _, w := range []string{"the", "quick", "fox"} {
		_, long = m.ScoreID(long, id(w))
	}
	if short != long {
		t.Fatalf("states differ: %v vs %v", short.Words(), long.Words())
	}
	seen := map[State]int{short: 1}
	if seen[long] != 1 {
		t.Fatalf("equal states must be equal map keys")
	}
	for _, w := range []string{"</s>", "the", "quick", "fox", "xyzzy"} {
		a, sa := m.ScoreID(short, id(w))
		b, sb := m.ScoreID(long, id(w))
		if a != b || sa != sb {
			t.Fatalf("%q scores differ after equivalent histories: %v vs %v", w, a, b)
		}
	}
}

func TestEmptyStateScoresUnigram(t *testing.T) {
	t.Parallel()

	m := loadFox(t)
	var zero State
	if m.NullContext() != zero {
		t.Fatalf("null context is not the zero state")
	}
	for _, w := range []string{"</s>", "the", "quick", "fox"} {
		r := m.FullScore(zero, m.Vocabulary().Index(w))
		if r.NgramLength != 1 {
			t.Fatalf("%q from empty state matched order %d", w, r.NgramLength)
		}
	}
}

func TestUnknownWordScoresAsUnk(t *testing.T) {
	t.Parallel()

	m := loadFox(t)
	r := m.FullScore(m.NullContext(), vocab.NotFound)
	if !near(r.Prob, -2.0) {
		t.Fatalf("p(<unk>): got %v", r.Prob)
	}
	// Out-of-range IDs fold onto <unk> too.
	if r2 := m.FullScore(m.NullContext(), 1000); r2 != r {
		t.Fatalf("out-of-range id: got %+v want %+v", r2, r)
	}
}

func TestScoringIsDeterministic(t *testing.T) {
	t.Parallel()

	a := loadFox(t)
	b := loadFox(t, WithLoadMethod(LoadRead))
	words := []string{"the", "quick", "fox", "</s>"}
	for i := 0; i < 3; i++ {
		if x, y := a.ScoreSequence(words, -100), b.ScoreSequence(words, -100); x != y {
			t.Fatalf("run %d: %v vs %v", i, x, y)
		}
	}
}

func TestConcurrentScoring(t *testing.T) {
	t.Parallel()

	m := loadFox(t, WithStrict(false))
	words := []string{"the", "quick", "brown", "fox", "</s>"}
	want := m.TotalScore(words).Total

	var wg sync.WaitGroup
	errs := make(chan float64, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if got := m.TotalScore(words).Total; got != want {
					errs <- got
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Fatalf("concurrent score %v, want %v", got, want)
	}
}

func TestToNatural(t *testing.T) {
	t.Parallel()

	if got := ToNatural(-1); math.Abs(got+math.Ln10) > 1e-12 {
		t.Fatalf("ToNatural(-1) = %v", got)
	}
}
