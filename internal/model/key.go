package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeKey maps a company name to the key used by the artifact index.
// Unicode compatibility forms are folded, case is folded and runs of
// whitespace collapse to a single space, so "ＡＣＭＥ  Corp" and "acme corp"
// share a key. Prefix lookups on the backup directory do not use this.
func NormalizeKey(name string) string {
	s := norm.NFKC.String(name)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// FileStem is the file name (without extension) used for a company's logo.
// Names are kept verbatim so a later prefix scan for the same name matches;
// only characters that cannot appear in a file name are replaced.
func FileStem(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
}
