package lm

import (
	"fmt"
	"strings"

	"github.com/samcharles93/ngramlm/internal/logger"
)

// BOSPolicy decides whether a sequence is scored from the <s> state or from
// the empty context.
type BOSPolicy int

const (
	// BOSNever always starts from the empty context.
	BOSNever BOSPolicy = iota
	// BOSShortSequence starts from <s> when the sequence is shorter than the
	// model order.
	BOSShortSequence
	// BOSAlways always starts from <s>.
	BOSAlways
)

func (p BOSPolicy) String() string {
	switch p {
	case BOSShortSequence:
		return "short"
	case BOSAlways:
		return "always"
	default:
		return "never"
	}
}

func ParseBOSPolicy(s string) (BOSPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "never":
		return BOSNever, nil
	case "short":
		return BOSShortSequence, nil
	case "always":
		return BOSAlways, nil
	default:
		return BOSNever, fmt.Errorf("unknown bos policy %q (want never, short or always)", s)
	}
}

// LoadMethod selects how the model file is brought into memory.
type LoadMethod int

const (
	// LoadMMap maps the file read-only, falling back to reading it.
	LoadMMap LoadMethod = iota
	// LoadRead copies the file into the heap.
	LoadRead
)

func (m LoadMethod) String() string {
	if m == LoadRead {
		return "read"
	}
	return "mmap"
}

func ParseLoadMethod(s string) (LoadMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mmap":
		return LoadMMap, nil
	case "read":
		return LoadRead, nil
	default:
		return LoadMMap, fmt.Errorf("unknown load method %q (want mmap or read)", s)
	}
}

// Policy controls sequence scoring.
type Policy struct {
	// Strict makes an unknown word short-circuit to the caller's default
	// score. Otherwise unknown words are scored as <unk>.
	Strict bool
	BOS    BOSPolicy
	// Window scores only the last Window words of a sequence; 0 scores all.
	Window int
	// EOS appends </s> in TotalScore.
	EOS bool
}

// DefaultPolicy is strict, never seeds <s>, and scores whole sequences.
func DefaultPolicy() Policy {
	return Policy{Strict: true, BOS: BOSNever}
}

type options struct {
	policy Policy
	method LoadMethod
	verify bool
	log    logger.Logger
}

type Option func(*options)

func WithStrict(strict bool) Option {
	return func(o *options) { o.policy.Strict = strict }
}

func WithBOS(p BOSPolicy) Option {
	return func(o *options) { o.policy.BOS = p }
}

// WithWindow limits sequence scoring to the last n words. n <= 0 disables it.
func WithWindow(n int) Option {
	return func(o *options) { o.policy.Window = max(n, 0) }
}

func WithEOS(eos bool) Option {
	return func(o *options) { o.policy.EOS = eos }
}

func WithLoadMethod(m LoadMethod) Option {
	return func(o *options) { o.method = m }
}

// WithVerify runs the full suffix-closure check during Load.
func WithVerify(verify bool) Option {
	return func(o *options) { o.verify = verify }
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{policy: DefaultPolicy(), method: LoadMMap, log: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
