// Package mcf implements the Model Container File format.
//
// MCF is a single-file, memory-mappable container for n-gram language models.
// It describes structure and data only and never implies scoring behaviour.
// A file is a fixed header, a set of 8-byte aligned section payloads and a
// section directory. All integers are little-endian.
package mcf

// MCF global constants must never change.
const (
	// MagicMCF is the file magic for all MCF containers.
	// It is encoded as "MCF\0".
	MagicMCF = "MCF\x00"

	// CurrentMajor changes only on breaking format changes.
	CurrentMajor uint16 = 1

	// CurrentMinor may add new optional sections or fields.
	CurrentMinor uint16 = 0

	// FlagQuantized marks files whose trie stores codebook indices
	// rather than raw floats. Every file written by this package sets it.
	FlagQuantized uint64 = 1 << 0
)

type MCFHeader struct {
	Magic            [4]byte
	Major            uint16
	Minor            uint16
	HeaderSize       uint32
	SectionCount     uint32
	SectionDirOffset uint64
	FileSize         uint64
	Flags            uint64
}

type MCFSection struct {
	Type    uint32
	Version uint32
	Offset  uint64
	Size    uint64
}
