package lark

import (
	"strings"
	"unicode"
)

// SplitText splits text into delivery-sized chunks of at most limit runes.
//
// Text that already fits is returned unchanged as a single chunk. Otherwise
// the splitter consumes limit-sized windows, breaking at the last newline in
// the window, else the last space, else hard-cutting at the limit. Emitted
// chunks are trailing-trimmed, the remainder is leading-trimmed, and empty
// chunks are dropped.
func SplitText(text string, limit int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}

	chunks := make([]string, 0, (len(runes)/limit)+1)
	remaining := runes
	for len(remaining) > limit {
		window := remaining[:limit]
		breakIdx := lastRuneIndex(window, '\n')
		if breakIdx <= 0 {
			breakIdx = lastRuneIndex(window, ' ')
		}
		if breakIdx <= 0 {
			breakIdx = limit
		}
		chunk := strings.TrimRightFunc(string(remaining[:breakIdx]), unicode.IsSpace)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		next := breakIdx
		if next < len(remaining) && unicode.IsSpace(remaining[next]) {
			next++
		}
		remaining = trimLeadingSpace(remaining[next:])
	}
	if len(remaining) > 0 {
		chunks = append(chunks, string(remaining))
	}
	return chunks
}

func lastRuneIndex(runes []rune, target rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

func trimLeadingSpace(runes []rune) []rune {
	start := 0
	for start < len(runes) && unicode.IsSpace(runes[start]) {
		start++
	}
	return runes[start:]
}
