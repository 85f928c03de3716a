// Package caption renders finalized and interim transcripts as a single
// fixed-width scrolling line, the way a terminal caption bar shows them.
package caption

import "strings"

// DefaultWidth is the caption line width in runes.
const DefaultWidth = 80

// Render builds the caption line for text. While the line is shorter than
// width, cached captions are prepended most-recent-first, separated by a single
// space, until the line is longer than width. The result is then cut to the
// rightmost width runes or left-padded with spaces to exactly width runes.
//
// Render does not modify cache.
func Render(text string, cache []string, width int) string {
	if width <= 0 {
		return ""
	}
	line := []rune(text)
	if len(line) < width {
		for i := len(cache) - 1; i >= 0; i-- {
			prefix := []rune(cache[i] + " ")
			line = append(prefix, line...)
			if len(line) > width {
				break
			}
		}
	}
	if len(line) > width {
		return string(line[len(line)-width:])
	}
	return strings.Repeat(" ", width-len(line)) + string(line)
}
