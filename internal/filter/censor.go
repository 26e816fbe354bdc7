// Package filter implements display-time word censorship. The stored
// message is never modified; callers apply Censor per viewer.
package filter

import "strings"

// Censor masks every case-insensitive occurrence of the hidden words in
// body with asterisks of the matched span's length. Overlapping matches
// resolve leftmost-longest, so the result is deterministic regardless of
// word order. An empty word list is the identity transform.
func Censor(body string, hiddenWords []string) string {
	if body == "" || len(hiddenWords) == 0 {
		return body
	}

	words := make([]string, 0, len(hiddenWords))
	for _, w := range hiddenWords {
		w = foldASCII(strings.TrimSpace(w))
		if w != "" {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return body
	}

	// ASCII folding keeps byte offsets aligned with the original body,
	// which strings.ToLower does not guarantee for all of Unicode.
	folded := foldASCII(body)
	out := []byte(body)

	i := 0
	for i < len(folded) {
		longest := 0
		for _, w := range words {
			if len(w) > longest && strings.HasPrefix(folded[i:], w) {
				longest = len(w)
			}
		}
		if longest == 0 {
			i++
			continue
		}
		for j := i; j < i+longest; j++ {
			out[j] = '*'
		}
		i += longest
	}

	return string(out)
}

func foldASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
