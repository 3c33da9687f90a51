package database

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldSearch builds the value stored in search_text columns: case folded with
// diacritics removed, so "Café" matches a search for "cafe".
func foldSearch(parts ...string) string {
	joined := strings.Join(parts, " ")

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, joined)
	if err != nil {
		stripped = joined
	}

	return cases.Fold().String(strings.Join(strings.Fields(stripped), " "))
}

// likePattern turns a user query into a LIKE pattern over folded text.
func likePattern(query string) string {
	folded := foldSearch(query)
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(folded) + "%"
}
