package lm

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/samcharles93/ngramlm/internal/mcfstore"
	"github.com/samcharles93/ngramlm/internal/trie"
	"github.com/samcharles93/ngramlm/internal/vocab"
	"github.com/samcharles93/ngramlm/pkg/mcf"
	"github.com/samcharles93/ngramlm/pkg/quant"
)

// Load failure categories. Every error returned by Load matches exactly one
// of them with errors.Is. Scoring never fails.
var (
	ErrCorruptVocabulary  = errors.New("lm: corrupt vocabulary")
	ErrCorruptTrie        = errors.New("lm: corrupt trie")
	ErrUnsupportedVersion = errors.New("lm: unsupported model version")
	ErrIO                 = errors.New("lm: model unreadable")
)

// LoadError describes a failed Load. It unwraps to both the category
// sentinel and the underlying cause.
type LoadError struct {
	Path string
	Op   string
	Kind error
	Err  error
}

func (e *LoadError) Error() string {
	path := e.Path
	if path == "" {
		path = "<reader>"
	}
	return fmt.Sprintf("lm: load %s: %s: %v", path, e.Op, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func loadError(path, op string, err error) error {
	return &LoadError{Path: path, Op: op, Kind: classify(err), Err: err}
}

func classify(err error) error {
	switch {
	case errors.Is(err, mcf.ErrUnsupportedMajor), errors.Is(err, mcf.ErrUnsupportedSection):
		return ErrUnsupportedVersion
	case errors.Is(err, vocab.ErrCorrupt):
		return ErrCorruptVocabulary
	case errors.Is(err, trie.ErrCorrupt), errors.Is(err, trie.ErrMissingContext),
		errors.Is(err, quant.ErrInvalidTable):
		return ErrCorruptTrie
	}
	if sec, ok := mcfstore.SectionOf(err); ok {
		if sec == mcf.SectionVocab {
			return ErrCorruptVocabulary
		}
		return ErrCorruptTrie
	}

	var pathErr *fs.PathError
	switch {
	case errors.Is(err, mcf.ErrTruncated), errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &pathErr):
		return ErrIO
	case errors.Is(err, mcf.ErrInvalidMagic), errors.Is(err, mcf.ErrCorruptFile):
		return ErrCorruptTrie
	}
	return ErrIO
}
