// Package chunk splits long replies into pieces that fit a chat transport's
// per-message size limit.
//
// Lengths are measured in runes, which is how Discord counts its 2000
// character limit. Chunks are cut at line boundaries so code blocks and lists
// stay readable; the concatenation of all chunks always equals the input.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the Discord message character limit.
const DefaultMaxLength = 2000

// Split breaks text into ordered chunks of at most maxLen runes, cutting only
// between lines. A single line longer than maxLen is cut at rune boundaries;
// its last piece keeps accumulating with the lines that follow.
//
// Empty input yields one empty chunk. maxLen <= 0 disables splitting.
func Split(text string, maxLen int) []string {
	return split(text, maxLen, true)
}

// SplitLines is Split without the mid-line fallback: a line longer than
// maxLen is emitted unsplit as its own chunk and may exceed the limit.
func SplitLines(text string, maxLen int) []string {
	return split(text, maxLen, false)
}

func split(text string, maxLen int, hardSplit bool) []string {
	if text == "" || maxLen <= 0 {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen == 0 {
			return
		}
		chunks = append(chunks, cur.String())
		cur.Reset()
		curLen = 0
	}

	for _, line := range Lines(text) {
		n := utf8.RuneCountInString(line)
		if curLen+n > maxLen {
			flush()
		}
		if hardSplit {
			for n > maxLen {
				head, tail := cutRunes(line, maxLen)
				chunks = append(chunks, head)
				line = tail
				n -= maxLen
			}
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()

	return chunks
}

// Lines splits text after every '\n', keeping the newline with its line.
// A trailing line without a newline is returned as-is. "\r\n" stays whole.
func Lines(text string) []string {
	parts := strings.SplitAfter(text, "\n")
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}

// Len reports the length of s in runes.
func Len(s string) int { return utf8.RuneCountInString(s) }

// cutRunes returns the first n runes of s and the remainder.
func cutRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}
