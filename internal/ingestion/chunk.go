package ingestion

import "strings"

// separators are tried in order when looking for a place to end a chunk.
var separators = [][]rune{[]rune("\n\n"), []rune("\n"), []rune(" ")}

// splitText splits text into chunks of at most size runes, each starting
// overlap runes before the previous chunk ended. Chunk ends are moved back
// to the nearest paragraph, line, or word break in the second half of the
// window when one exists.
func splitText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		if end < len(runes) {
			end = breakPoint(runes, start, end)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint returns the index just past the last separator in
// runes[start+half:end], or end when there is none.
func breakPoint(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	for _, sep := range separators {
		for i := end - len(sep); i >= floor; i-- {
			if hasAt(runes, i, sep) {
				return i + len(sep)
			}
		}
	}
	return end
}

func hasAt(runes []rune, i int, sep []rune) bool {
	if i < 0 || i+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}
