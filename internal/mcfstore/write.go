package mcfstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samcharles93/ngramlm/pkg/mcf"
)

// Contents is everything a model container holds.
type Contents struct {
	Info   mcf.NGramInfo
	Words  []string
	Quant  []mcf.QuantTable
	Arrays [][]byte
}

// Write stores c at path. The container is written to a temporary file in
// the same directory and renamed into place, so readers never observe a
// partial file.
func Write(path string, c Contents) (err error) {
	infoRaw, err := mcf.EncodeNGramInfoSection(c.Info)
	if err != nil {
		return err
	}
	vocabRaw, err := mcf.EncodeVocabSection(c.Words)
	if err != nil {
		return err
	}
	quantRaw, err := mcf.EncodeQuantSection(c.Info, c.Quant)
	if err != nil {
		return err
	}
	if len(c.Arrays) != int(c.Info.Order) {
		return fmt.Errorf("mcfstore: %d trie arrays for order %d", len(c.Arrays), c.Info.Order)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("mcfstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w, err := mcf.NewWriter(tmp)
	if err != nil {
		return err
	}
	if err = w.AddFlags(mcf.FlagQuantized); err != nil {
		return err
	}
	if err = w.WriteSection(mcf.SectionNGramInfo, mcf.NGramInfoVersion, infoRaw); err != nil {
		return err
	}
	if err = w.WriteSection(mcf.SectionVocab, mcf.VocabVersion, vocabRaw); err != nil {
		return err
	}
	if err = w.WriteSection(mcf.SectionQuant, mcf.QuantVersion, quantRaw); err != nil {
		return err
	}

	sw, err := w.BeginSection(mcf.SectionTrie, mcf.TrieVersion)
	if err != nil {
		return err
	}
	for i, a := range c.Arrays {
		want, _ := c.Info.ArrayBytes(i)
		if uint64(len(a)) != want {
			return fmt.Errorf("mcfstore: order %d array is %d bytes, shape needs %d", i+1, len(a), want)
		}
		if _, err = sw.Write(a); err != nil {
			return err
		}
	}
	if err = sw.End(); err != nil {
		return err
	}
	// Finalise syncs the data; CreateTemp leaves the file owner-only.
	if err = w.Finalise(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
