package caption

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Display redraws the caption line in place on a terminal. Each update writes
// a carriage return, blanks the line, returns again and prints the rendered
// caption, so nothing scrolls.
type Display struct {
	mu    sync.Mutex
	w     io.Writer
	width int
	cache *Cache
	blank string
}

// NewDisplay returns a [Display] writing to w. Cached captions from cache fill
// the space to the left of the newest text. A non-positive width means
// [DefaultWidth].
func NewDisplay(w io.Writer, width int, cache *Cache) *Display {
	if width <= 0 {
		width = DefaultWidth
	}
	if cache == nil {
		cache = NewCache()
	}
	return &Display{w: w, width: width, cache: cache, blank: strings.Repeat(" ", width)}
}

// Show redraws the line with text as the newest caption.
func (d *Display) Show(text string) error {
	line := d.cache.Render(text, d.width)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := fmt.Fprintf(d.w, "\r%s\r%s", d.blank, line); err != nil {
		return fmt.Errorf("caption: write display: %w", err)
	}
	return nil
}

// Width returns the line width in runes.
func (d *Display) Width() int { return d.width }

// Cache returns the cache the display renders from.
func (d *Display) Cache() *Cache { return d.cache }
