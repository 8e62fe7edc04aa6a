package serial

// History is the per-session command history: ordered, deduplicated on
// consecutive repeats, with a 1-based cursor for keyboard navigation.
// After Add the cursor sits at the newest entry.
type History struct {
	entries []string
	index   int
}

// Add appends a command unless it repeats the last entry, and resets
// the cursor past the newest entry.
func (h *History) Add(cmd string) {
	if n := len(h.entries); n == 0 || h.entries[n-1] != cmd {
		h.entries = append(h.entries, cmd)
	}
	h.index = len(h.entries)
}

// Prev moves the cursor one entry back and returns it. The cursor
// never moves before the oldest entry.
func (h *History) Prev() string {
	if h.index > 1 {
		h.index--
	}
	return h.At(h.index)
}

// Next moves the cursor one entry forward and returns it. The cursor
// clamps at the newest entry.
func (h *History) Next() string {
	if h.index < len(h.entries) {
		h.index++
	}
	return h.At(h.index)
}

// At returns the entry at the given 1-based index, clamped to the
// valid range. An empty history returns an empty string.
func (h *History) At(index int) string {
	if len(h.entries) == 0 || index <= 0 {
		return ""
	}
	if index > len(h.entries) {
		index = len(h.entries)
	}
	return h.entries[index-1]
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the stored commands, oldest first.
func (h *History) Entries() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}
