// Package textsplit slices long result text into transport-sized chunks.
package textsplit

import "unicode/utf8"

// HardCutFraction is the minimum share of max a chunk must reach before a
// whitespace boundary is accepted. Below it we hard-cut instead, to avoid
// pathologically small chunks when whitespace is sparse.
const HardCutFraction = 0.7

// Split slices s into chunks of at most max bytes. Concatenating the
// chunks reproduces s exactly. Splits prefer the last ASCII whitespace
// before the limit; when none exists past HardCutFraction*max, a
// rune-aligned hard cut is used. Short input yields a single chunk and
// empty input yields no chunks (callers that require at least one delivery
// treat that as an error).
func Split(s string, max int) []string {
	if max < 1 || s == "" {
		return nil
	}
	if len(s) <= max {
		return []string{s}
	}

	var chunks []string
	rest := s
	for len(rest) > max {
		cut := boundary(rest, max)
		chunks = append(chunks, rest[:cut])
		rest = rest[cut:]
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// boundary picks the split index for the next chunk of rest, 0 < idx <= max.
func boundary(rest string, max int) int {
	minCut := int(float64(max) * HardCutFraction)
	for i := max; i > minCut; i-- {
		if isSpace(rest[i-1]) {
			return i
		}
	}
	// No acceptable whitespace: hard cut, stepping back so we never split
	// a multi-byte rune across chunks.
	cut := max
	for cut > 1 && !utf8.RuneStart(rest[cut]) {
		cut--
	}
	return cut
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\n', '\t', '\r':
		return true
	}
	return false
}
