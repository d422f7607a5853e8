package database

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "José" -> "Jose").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName normalizes a person name for comparison (lowercase, no diacritics,
// spaces for dashes, collapsed whitespace).
func NormalizeName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// FilterByName keeps posts whose person name contains query after normalization.
// An empty query keeps everything. Order is preserved.
func FilterByName(posts []Post, query string) []Post {
	q := NormalizeName(query)
	if q == "" {
		return posts
	}
	var out []Post
	for _, p := range posts {
		if strings.Contains(NormalizeName(p.Name()), q) {
			out = append(out, p)
		}
	}
	return out
}
