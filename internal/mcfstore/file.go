package mcfstore

import (
	"errors"
	"fmt"
	"io"

	"github.com/samcharles93/ngramlm/pkg/mcf"
)

// SectionError reports which section of a container failed to decode.
type SectionError struct {
	Section mcf.SectionType
	Err     error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("mcfstore: %s section: %v", e.Section, e.Err)
}

func (e *SectionError) Unwrap() error { return e.Err }

// Method selects how a container's bytes are brought into memory.
type Method int

const (
	// MethodMap maps the file read-only, falling back to a full read if the
	// platform refuses the mapping.
	MethodMap Method = iota
	// MethodRead copies the file into the heap.
	MethodRead
)

func (m Method) String() string {
	if m == MethodRead {
		return "read"
	}
	return "mmap"
}

// File is a decoded n-gram model container. Vocabulary strings are copied
// out; the packed trie arrays alias the file data and stay valid until Close.
type File struct {
	file   *mcf.File
	Info   mcf.NGramInfo
	Words  []string
	Quant  []mcf.QuantTable
	Arrays [][]byte
}

// Open reads the container at path with the given method.
func Open(path string, method Method) (*File, error) {
	var (
		mf  *mcf.File
		err error
	)
	if method == MethodRead {
		mf, err = mcf.OpenRead(path)
	} else {
		mf, err = mcf.Open(path)
	}
	if err != nil {
		return nil, err
	}
	return decode(mf)
}

// OpenReaderAt reads a container of the given size from r.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	mf, err := mcf.OpenReaderAt(r, size)
	if err != nil {
		return nil, err
	}
	return decode(mf)
}

func decode(mf *mcf.File) (*File, error) {
	cleanup := func(err error) (*File, error) {
		_ = mf.Close()
		return nil, err
	}
	fail := func(t mcf.SectionType, err error) (*File, error) {
		return cleanup(&SectionError{Section: t, Err: err})
	}

	raw, err := mf.RequireSection(mcf.SectionNGramInfo)
	if err != nil {
		return fail(mcf.SectionNGramInfo, err)
	}
	info, err := mcf.ParseNGramInfoSection(raw)
	if err != nil {
		return fail(mcf.SectionNGramInfo, err)
	}

	raw, err = mf.RequireSection(mcf.SectionVocab)
	if err != nil {
		return fail(mcf.SectionVocab, err)
	}
	words, err := mcf.ParseVocabSection(raw)
	if err != nil {
		return fail(mcf.SectionVocab, err)
	}
	if len(words) != int(info.VocabSize) {
		return fail(mcf.SectionVocab, fmt.Errorf("%w: %d words, header declares %d",
			mcf.ErrCorruptFile, len(words), info.VocabSize))
	}

	raw, err = mf.RequireSection(mcf.SectionQuant)
	if err != nil {
		return fail(mcf.SectionQuant, err)
	}
	quant, err := mcf.ParseQuantSection(raw, info)
	if err != nil {
		return fail(mcf.SectionQuant, err)
	}

	raw, err = mf.RequireSection(mcf.SectionTrie)
	if err != nil {
		return fail(mcf.SectionTrie, err)
	}
	arrays, err := mcf.ParseTrieSection(raw, info)
	if err != nil {
		return fail(mcf.SectionTrie, err)
	}

	return &File{file: mf, Info: info, Words: words, Quant: quant, Arrays: arrays}, nil
}

// Mapped reports whether the trie arrays alias a memory mapping.
func (f *File) Mapped() bool {
	return f != nil && f.file != nil && f.file.Mapped()
}

// Header returns the container header.
func (f *File) Header() mcf.MCFHeader {
	if f == nil || f.file == nil || f.file.Header == nil {
		return mcf.MCFHeader{}
	}
	return *f.file.Header
}

// Sections returns the container's section directory.
func (f *File) Sections() []mcf.MCFSection {
	if f == nil || f.file == nil {
		return nil
	}
	return append([]mcf.MCFSection(nil), f.file.Sections...)
}

func (f *File) Close() error {
	if f == nil || f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	f.Arrays = nil
	return err
}

// SectionOf returns the section type a decode error came from, if any.
func SectionOf(err error) (mcf.SectionType, bool) {
	var se *SectionError
	if errors.As(err, &se) {
		return se.Section, true
	}
	return 0, false
}
