package lm

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SplitWords splits text on Unicode white space. With normalize set the text
// is first brought to NFKC form, so compatibility variants such as full-width
// letters match the vocabulary's spelling.
func SplitWords(text string, normalize bool) []string {
	if normalize {
		text = norm.NFKC.String(text)
	}
	return strings.Fields(text)
}
