package mcf

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/sys/unix"
)

// File is a validated MCF container held in memory or mapped read-only.
type File struct {
	Data     []byte
	Header   *MCFHeader
	Sections []MCFSection
	mmapped  bool
}

// Open maps path read-only and validates it, falling back to reading the
// whole file when mmap fails. Close releases the mapping.
func Open(path string) (*File, error) {
	return open(path, true)
}

// OpenRead reads path into memory without mapping it.
func OpenRead(path string) (*File, error) {
	return open(path, false)
}

func open(path string, mapFile bool) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size, err := checkSize(st.Size())
	if err != nil {
		return nil, err
	}

	if mapFile {
		if data, err := mapReadOnly(f, size); err == nil {
			mf, err := parseFileData(data, true)
			if err != nil {
				_ = unix.Munmap(data)
				return nil, err
			}
			return mf, nil
		}
	}
	return readFile(f, size)
}

// OpenReaderAt reads and validates a container from r without mapping.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	n, err := checkSize(size)
	if err != nil {
		return nil, err
	}
	return readFile(r, n)
}

func checkSize(size int64) (int, error) {
	switch {
	case size < 0 || size > math.MaxInt:
		return 0, fmt.Errorf("%w: size %d", ErrCorruptFile, size)
	case size < mcfHeaderSize:
		return 0, fmt.Errorf("%w: %d bytes is shorter than the header", ErrTruncated, size)
	}
	return int(size), nil
}

// mapReadOnly maps the file PROT_READ. Trie lookups jump across the file, so
// the kernel is told not to read ahead.
func mapReadOnly(f *os.File, size int) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	_ = unix.Madvise(data, unix.MADV_RANDOM)
	return data, nil
}

func readFile(r io.ReaderAt, size int) (*File, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, int64(size)), data); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: short read of %d bytes", ErrTruncated, size)
		}
		return nil, err
	}
	return parseFileData(data, false)
}

func parseFileData(data []byte, mmapped bool) (*File, error) {
	hdr, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	sections, err := parseDirectory(data, hdr)
	if err != nil {
		return nil, err
	}
	return &File{Data: data, Header: &hdr, Sections: sections, mmapped: mmapped}, nil
}

func parseHeader(data []byte) (MCFHeader, error) {
	if len(data) < mcfHeaderSize {
		return MCFHeader{}, ErrTruncated
	}
	hdr, ok := decodeHeader(data[:mcfHeaderSize])
	switch {
	case !ok:
		return hdr, ErrCorruptFile
	case !hdr.Valid():
		return hdr, ErrInvalidMagic
	case !hdr.Compatible():
		return hdr, fmt.Errorf("%w: file is %d.%d, reader is %d.%d",
			ErrUnsupportedMajor, hdr.Major, hdr.Minor, CurrentMajor, CurrentMinor)
	case hdr.FileSize > uint64(len(data)):
		return hdr, fmt.Errorf("%w: header declares %d bytes, have %d", ErrTruncated, hdr.FileSize, len(data))
	case hdr.FileSize < uint64(len(data)):
		return hdr, fmt.Errorf("%w: %d trailing bytes", ErrCorruptFile, uint64(len(data))-hdr.FileSize)
	case hdr.HeaderSize < mcfHeaderSize || uint64(hdr.HeaderSize) > hdr.FileSize:
		return hdr, fmt.Errorf("%w: header size %d", ErrCorruptFile, hdr.HeaderSize)
	}
	return hdr, nil
}

// parseDirectory decodes the section directory and checks that every
// section is aligned, in bounds and clear of the header, the directory and
// other sections.
func parseDirectory(data []byte, hdr MCFHeader) ([]MCFSection, error) {
	dirSize, ok := mulUint64(uint64(hdr.SectionCount), mcfSectionSize)
	if !ok {
		return nil, ErrCorruptFile
	}
	dirStart := hdr.SectionDirOffset
	dirEnd, ok := addUint64(dirStart, dirSize)
	if !ok || dirStart < uint64(hdr.HeaderSize) || dirEnd > hdr.FileSize {
		return nil, fmt.Errorf("%w: section directory out of bounds", ErrCorruptFile)
	}

	sections := make([]MCFSection, hdr.SectionCount)
	for i := range sections {
		off := dirStart + uint64(i)*mcfSectionSize
		s, ok := decodeSection(data[off : off+mcfSectionSize])
		if !ok {
			return nil, ErrCorruptFile
		}

		end, ok := addUint64(s.Offset, s.Size)
		switch {
		case !ok || end > hdr.FileSize:
			return nil, fmt.Errorf("%w: %s section out of bounds", ErrCorruptFile, SectionType(s.Type))
		case s.Offset < uint64(hdr.HeaderSize):
			return nil, fmt.Errorf("%w: %s section overlaps header", ErrCorruptFile, SectionType(s.Type))
		case s.Offset%mcfAlign != 0:
			return nil, fmt.Errorf("%w: %s section not %d-byte aligned", ErrCorruptFile, SectionType(s.Type), mcfAlign)
		case rangesOverlap(s.Offset, end, dirStart, dirEnd):
			return nil, fmt.Errorf("%w: %s section overlaps directory", ErrCorruptFile, SectionType(s.Type))
		}
		for _, prev := range sections[:i] {
			if prev.Type == s.Type {
				return nil, fmt.Errorf("%w: duplicate %s section", ErrCorruptFile, SectionType(s.Type))
			}
			if s.Size > 0 && prev.Size > 0 && rangesOverlap(s.Offset, end, prev.Offset, prev.Offset+prev.Size) {
				return nil, fmt.Errorf("%w: %s and %s sections overlap", ErrCorruptFile, SectionType(prev.Type), SectionType(s.Type))
			}
		}
		sections[i] = s
	}
	return sections, nil
}

// Mapped reports whether Data is a read-only mapping.
func (f *File) Mapped() bool {
	return f != nil && f.mmapped
}

// Close unmaps the file if it was mapped. Sections returned earlier must not
// be used afterwards.
func (f *File) Close() error {
	if f == nil {
		return nil
	}
	var err error
	if f.mmapped && f.Data != nil {
		err = unix.Munmap(f.Data)
	}
	*f = File{}
	return err
}

// Section returns the directory entry for t, or nil.
func (f *File) Section(t SectionType) *MCFSection {
	for i := range f.Sections {
		if SectionType(f.Sections[i].Type) == t {
			return &f.Sections[i]
		}
	}
	return nil
}

// RequireSection returns the payload of a mandatory section, rejecting
// missing sections and payload versions newer than this reader.
func (f *File) RequireSection(t SectionType) ([]byte, error) {
	sec := f.Section(t)
	if sec == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingSection, t)
	}
	if sec.Version > t.CurrentVersion() {
		return nil, fmt.Errorf("%w: %s section is v%d, reader supports v%d",
			ErrUnsupportedSection, t, sec.Version, t.CurrentVersion())
	}
	return f.SectionData(sec), nil
}

// SectionData returns the payload of s without copying.
func (f *File) SectionData(s *MCFSection) []byte {
	if f == nil || s == nil || f.Data == nil {
		return nil
	}
	end := s.Offset + s.Size
	if end < s.Offset || end > uint64(len(f.Data)) {
		return nil
	}
	return f.Data[s.Offset:end]
}
