package mcf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, sections map[SectionType][]byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "model.mcf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer func() { _ = f.Close() }()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	for typ, data := range sections {
		if err := w.WriteSection(typ, typ.CurrentVersion(), data); err != nil {
			t.Fatalf("write %s: %v", typ, err)
		}
	}
	if err := w.AddFlags(FlagQuantized); err != nil {
		t.Fatalf("add flags: %v", err)
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	return path
}

func TestOpenReaderAtRoundTrip(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, map[SectionType][]byte{
		SectionVocab: []byte("vocab-bytes"),
		SectionTrie:  {1, 2, 3, 4, 5, 6},
	})

	rf, err := os.Open(path)
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer func() { _ = rf.Close() }()

	st, err := rf.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	mf, err := OpenReaderAt(rf, st.Size())
	if err != nil {
		t.Fatalf("open readerat: %v", err)
	}
	defer func() {
		if cerr := mf.Close(); cerr != nil {
			t.Fatalf("close mcf file: %v", cerr)
		}
	}()

	if mf.Mapped() {
		t.Fatalf("OpenReaderAt should not mmap")
	}
	if mf.Header.HeaderSize != mcfHeaderSize {
		t.Fatalf("header size mismatch: got %d want %d", mf.Header.HeaderSize, mcfHeaderSize)
	}
	if mf.Header.Flags&FlagQuantized == 0 {
		t.Fatalf("quantized flag lost: %#x", mf.Header.Flags)
	}

	got, err := mf.RequireSection(SectionVocab)
	if err != nil {
		t.Fatalf("require vocab: %v", err)
	}
	if !bytes.Equal(got, []byte("vocab-bytes")) {
		t.Fatalf("vocab mismatch: got %q", string(got))
	}
	if _, err := mf.RequireSection(SectionQuant); !errors.Is(err, ErrMissingSection) {
		t.Fatalf("missing quant section: got %v", err)
	}
}

func TestOpenMapsFile(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, map[SectionType][]byte{SectionTrie: {9, 9, 9}})
	mf, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = mf.Close() }()

	got := mf.SectionData(mf.Section(SectionTrie))
	if !bytes.Equal(got, []byte{9, 9, 9}) {
		t.Fatalf("trie payload mismatch: %v", got)
	}

	rf, err := OpenRead(path)
	if err != nil {
		t.Fatalf("open read: %v", err)
	}
	defer func() { _ = rf.Close() }()
	if rf.Mapped() {
		t.Fatalf("OpenRead should not mmap")
	}
}

func TestOpenRejectsDamagedFiles(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, map[SectionType][]byte{SectionVocab: []byte("abcdefgh")})
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	cases := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"truncated", func(b []byte) []byte { return b[:len(b)-5] }, ErrTruncated},
		{"shorter than header", func(b []byte) []byte { return b[:10] }, ErrTruncated},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }, ErrInvalidMagic},
		{"newer major", func(b []byte) []byte { binary.LittleEndian.PutUint16(b[4:6], CurrentMajor+1); return b }, ErrUnsupportedMajor},
		{"trailing bytes", func(b []byte) []byte { return append(b, 0, 0, 0) }, ErrCorruptFile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			data := tc.mutate(bytes.Clone(raw))
			_, err := OpenReaderAt(bytes.NewReader(data), int64(len(data)))
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRequireSectionRejectsNewerVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "future.mcf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteSection(SectionVocab, VocabVersion+1, []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	_ = f.Close()

	mf, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = mf.Close() }()
	if _, err := mf.RequireSection(SectionVocab); !errors.Is(err, ErrUnsupportedSection) {
		t.Fatalf("got %v, want ErrUnsupportedSection", err)
	}
}

func TestWriterRejectsMisuse(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "misuse.mcf"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = f.Close() }()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	sw, err := w.BeginSection(SectionTrie, TrieVersion)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := w.WriteSection(SectionVocab, VocabVersion, nil); err == nil {
		t.Fatalf("expected error writing while a section is open")
	}
	if _, err := sw.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("section write: %v", err)
	}
	if err := sw.Align(8); err != nil {
		t.Fatalf("align: %v", err)
	}
	if n, err := sw.BytesWritten(); err != nil || n != 8 {
		t.Fatalf("bytes written: got %d, %v", n, err)
	}
	if err := sw.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := sw.End(); err == nil {
		t.Fatalf("expected error ending twice")
	}
	if err := w.WriteSection(SectionTrie, TrieVersion, nil); err == nil {
		t.Fatalf("expected duplicate section error")
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	if err := w.Finalise(); err == nil {
		t.Fatalf("expected error finalising twice")
	}
}

func TestHeaderAndSectionEncodingLittleEndian(t *testing.T) {
	t.Parallel()

	h := MCFHeader{
		Magic:            [4]byte{'M', 'C', 'F', 0},
		Major:            0x1122,
		Minor:            0x3344,
		HeaderSize:       mcfHeaderSize,
		SectionCount:     7,
		SectionDirOffset: 0x0102030405060708,
		FileSize:         0x1112131415161718,
		Flags:            0x2122232425262728,
	}
	var hdrRaw [mcfHeaderSize]byte
	if !encodeHeader(hdrRaw[:], h) {
		t.Fatalf("encode header failed")
	}
	if hdrRaw[4] != 0x22 || hdrRaw[5] != 0x11 {
		t.Fatalf("major is not little-endian: %x", hdrRaw[4:6])
	}
	if hdrRaw[16] != 0x08 || hdrRaw[23] != 0x01 {
		t.Fatalf("section dir offset is not little-endian: %x", hdrRaw[16:24])
	}
	decodedH, ok := decodeHeader(hdrRaw[:])
	if !ok {
		t.Fatalf("decode header failed")
	}
	if decodedH != h {
		t.Fatalf("header round-trip mismatch: got %+v want %+v", decodedH, h)
	}

	s := MCFSection{
		Type:    0x11223344,
		Version: 0x55667788,
		Offset:  0x0102030405060708,
		Size:    0x1112131415161718,
	}
	var secRaw [mcfSectionSize]byte
	if !encodeSection(secRaw[:], s) {
		t.Fatalf("encode section failed")
	}
	if secRaw[0] != 0x44 || secRaw[3] != 0x11 {
		t.Fatalf("section type is not little-endian: %x", secRaw[0:4])
	}
	decodedS, ok := decodeSection(secRaw[:])
	if !ok {
		t.Fatalf("decode section failed")
	}
	if decodedS != s {
		t.Fatalf("section round-trip mismatch: got %+v want %+v", decodedS, s)
	}
}
