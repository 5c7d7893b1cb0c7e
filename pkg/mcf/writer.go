package mcf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

var (
	errWriterFinalised = errors.New("mcf: writer already finalised")
	errSectionOpen     = errors.New("mcf: section write in progress")
	errDuplicate       = errors.New("mcf: duplicate section type")
	errSectionEnded    = errors.New("mcf: section writer ended")
)

var zeroPad [mcfAlign]byte

// Writer lays out an MCF file front to back.
//
// Bytes go through a buffer and the writer tracks its own offset, so the
// target is never seeked until Finalise patches the header in place. A Writer
// is not safe for concurrent use.
type Writer struct {
	f   *os.File
	bw  *bufio.Writer
	pos int64

	sections []MCFSection
	seen     map[SectionType]bool
	open     *SectionWriter
	flags    uint64
	done     bool
}

// SectionWriter streams one section's payload. It must be ended before the
// next section starts; padding added with Align counts toward the section.
type SectionWriter struct {
	w     *Writer
	sec   MCFSection
	ended bool
}

// NewWriter truncates f and reserves the header.
func NewWriter(f *os.File) (*Writer, error) {
	if f == nil {
		return nil, errors.New("mcf: nil file")
	}
	if err := f.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	w := &Writer{
		f:    f,
		bw:   bufio.NewWriterSize(f, 1<<16),
		seen: make(map[SectionType]bool),
	}
	var hdr [mcfHeaderSize]byte
	if err := w.write(hdr[:]); err != nil {
		return nil, err
	}
	return w, w.pad(mcfAlign)
}

func (w *Writer) write(p []byte) error {
	n, err := w.bw.Write(p)
	w.pos += int64(n)
	return err
}

// pad writes zeros up to the next multiple of n (n <= 8).
func (w *Writer) pad(n int64) error {
	if n <= 1 {
		return nil
	}
	if rem := w.pos % n; rem != 0 {
		return w.write(zeroPad[:n-rem])
	}
	return nil
}

func (w *Writer) begin(typ SectionType, version uint32) (MCFSection, error) {
	switch {
	case w.done:
		return MCFSection{}, errWriterFinalised
	case w.open != nil:
		return MCFSection{}, errSectionOpen
	case w.seen[typ]:
		return MCFSection{}, fmt.Errorf("%w: %s", errDuplicate, typ)
	}
	if err := w.pad(mcfAlign); err != nil {
		return MCFSection{}, err
	}
	w.seen[typ] = true
	return MCFSection{Type: uint32(typ), Version: version, Offset: uint64(w.pos)}, nil
}

// WriteSection writes a whole section payload. Each section type may appear
// once; order is free.
func (w *Writer) WriteSection(typ SectionType, version uint32, data []byte) error {
	sec, err := w.begin(typ, version)
	if err != nil {
		return err
	}
	if err := w.write(data); err != nil {
		return err
	}
	sec.Size = uint64(len(data))
	w.sections = append(w.sections, sec)
	return nil
}

// AddFlags ORs flags into the header written by Finalise.
func (w *Writer) AddFlags(flags uint64) error {
	if w.done {
		return errWriterFinalised
	}
	w.flags |= flags
	return nil
}

// BeginSection starts a streamed section, used for the packed trie arrays.
func (w *Writer) BeginSection(typ SectionType, version uint32) (*SectionWriter, error) {
	sec, err := w.begin(typ, version)
	if err != nil {
		return nil, err
	}
	sw := &SectionWriter{w: w, sec: sec}
	w.open = sw
	return sw, nil
}

func (sw *SectionWriter) check() error {
	if sw.ended || sw.w.open != sw {
		return errSectionEnded
	}
	return nil
}

// BytesWritten returns the section length so far.
func (sw *SectionWriter) BytesWritten() (uint64, error) {
	if err := sw.check(); err != nil {
		return 0, err
	}
	return uint64(sw.w.pos) - sw.sec.Offset, nil
}

// Align pads the section to a multiple of n bytes. Section starts are 8-byte
// aligned, so any n dividing 8 also aligns the absolute offset.
func (sw *SectionWriter) Align(n int) error {
	if err := sw.check(); err != nil {
		return err
	}
	if n <= 0 || n > mcfAlign || mcfAlign%n != 0 {
		return fmt.Errorf("mcf: alignment %d does not divide %d", n, mcfAlign)
	}
	return sw.w.pad(int64(n))
}

func (sw *SectionWriter) Write(p []byte) (int, error) {
	if err := sw.check(); err != nil {
		return 0, err
	}
	start := sw.w.pos
	err := sw.w.write(p)
	return int(sw.w.pos - start), err
}

// End records the section in the directory.
func (sw *SectionWriter) End() error {
	if err := sw.check(); err != nil {
		return err
	}
	sw.sec.Size = uint64(sw.w.pos) - sw.sec.Offset
	sw.w.sections = append(sw.w.sections, sw.sec)
	sw.w.open = nil
	sw.ended = true
	return nil
}

func (sw *SectionWriter) Close() error { return sw.End() }

// Finalise appends the section directory, patches the header and syncs the
// file. The writer cannot be used afterwards.
func (w *Writer) Finalise() error {
	switch {
	case w.done:
		return errWriterFinalised
	case w.open != nil:
		return errSectionOpen
	case len(w.sections) == 0:
		return errors.New("mcf: no sections written")
	}
	w.done = true

	slices.SortFunc(w.sections, func(a, b MCFSection) int { return int(a.Type) - int(b.Type) })
	if err := w.pad(mcfAlign); err != nil {
		return err
	}
	dirOffset := w.pos

	var rec [mcfSectionSize]byte
	for _, s := range w.sections {
		if !encodeSection(rec[:], s) {
			return errors.New("mcf: encode section failed")
		}
		if err := w.write(rec[:]); err != nil {
			return err
		}
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}

	hdr := MCFHeader{
		Major:            CurrentMajor,
		Minor:            CurrentMinor,
		HeaderSize:       mcfHeaderSize,
		SectionCount:     uint32(len(w.sections)),
		SectionDirOffset: uint64(dirOffset),
		FileSize:         uint64(w.pos),
		Flags:            w.flags,
	}
	copy(hdr.Magic[:], MagicMCF)
	var raw [mcfHeaderSize]byte
	if !encodeHeader(raw[:], hdr) {
		return errors.New("mcf: encode header failed")
	}
	if _, err := w.f.WriteAt(raw[:], 0); err != nil {
		return err
	}
	return w.f.Sync()
}
