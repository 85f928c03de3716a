package caption

import (
	"strings"
	"sync"
)

// Cache is the append-only list of finalized captions for a session. Entries
// are never removed or modified.
//
// The segmentation loop is the only writer; the mutex lets summaries and
// broadcast handlers read while the loop runs.
type Cache struct {
	mu      sync.RWMutex
	entries []string
}

// NewCache returns an empty [Cache].
func NewCache() *Cache { return &Cache{} }

// Append adds a finalized caption.
func (c *Cache) Append(text string) {
	c.mu.Lock()
	c.entries = append(c.entries, text)
	c.mu.Unlock()
}

// Entries returns a copy of all captions in order.
func (c *Cache) Entries() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.entries...)
}

// Len returns the number of captions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Joined returns every caption joined with single spaces.
func (c *Cache) Joined() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return strings.Join(c.entries, " ")
}

// Render is [Render] over the current entries.
func (c *Cache) Render(text string, width int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Render(text, c.entries, width)
}
