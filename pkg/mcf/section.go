package mcf

type SectionType uint32

const (
	SectionNGramInfo SectionType = 0x0001
	SectionVocab     SectionType = 0x0002
	SectionQuant     SectionType = 0x0003
	SectionTrie      SectionType = 0x0004
)

// Current payload versions written by this package. Readers reject
// sections whose version is newer than these.
const (
	NGramInfoVersion uint32 = 1
	VocabVersion     uint32 = 1
	QuantVersion     uint32 = 1
	TrieVersion      uint32 = 1
)

func (t SectionType) String() string {
	switch t {
	case SectionNGramInfo:
		return "ngraminfo"
	case SectionVocab:
		return "vocab"
	case SectionQuant:
		return "quant"
	case SectionTrie:
		return "trie"
	default:
		return "unknown"
	}
}

// CurrentVersion returns the newest payload version this package reads for t.
func (t SectionType) CurrentVersion() uint32 {
	switch t {
	case SectionNGramInfo:
		return NGramInfoVersion
	case SectionVocab:
		return VocabVersion
	case SectionQuant:
		return QuantVersion
	case SectionTrie:
		return TrieVersion
	default:
		return 0
	}
}

func (s *MCFSection) End() uint64 {
	return s.Offset + s.Size
}
