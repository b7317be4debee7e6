// Package history keeps a bounded log of executed commands.
package history

import (
	"github.com/voxbotio/voxbot/internal/commands"
)

// History is a capacity-bounded append-only log of executed commands.
// Entries are deep copies taken at execution time. Once full, Add refuses
// new entries instead of evicting old ones.
type History struct {
	entries []*commands.Command
	limit   int
}

// New creates a history with the given capacity. Non-positive limits are
// clamped to 1.
func New(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{limit: limit}
}

// Add appends a deep copy of cmd and reports whether it fit.
func (h *History) Add(cmd *commands.Command) bool {
	if cmd == nil || len(h.entries) >= h.limit {
		return false
	}
	h.entries = append(h.entries, cmd.Clone())
	return true
}

// LastN returns deep copies of up to n entries, most recent first.
func (h *History) LastN(n int) []*commands.Command {
	if n <= 0 {
		return nil
	}
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]*commands.Command, 0, n)
	for i := len(h.entries) - 1; i >= len(h.entries)-n; i-- {
		out = append(out, h.entries[i].Clone())
	}
	return out
}

// RemoveAt removes the entry at index i (oldest first) and reports whether
// the index was valid.
func (h *History) RemoveAt(i int) bool {
	if i < 0 || i >= len(h.entries) {
		return false
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	return true
}

// Clear removes all entries.
func (h *History) Clear() {
	h.entries = nil
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Limit returns the configured capacity.
func (h *History) Limit() int {
	return h.limit
}
