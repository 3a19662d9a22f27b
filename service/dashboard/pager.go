package dashboard

import "math"

// Pager is the "load more" window over a filtered list. Offset advances by
// PageSize on every Next; the visible window always starts at the first
// entry.
type Pager struct {
	Offset   int
	PageSize int
}

// Limit is the number of entries the pager wants to show.
func (p Pager) Limit() int {
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return addSaturating(offset, p.PageSize)
}

// Visible returns the first min(len(entries), Offset+PageSize) entries.
func (p Pager) Visible(entries []Entry) []Entry {
	n := p.Limit()
	if n > len(entries) {
		n = len(entries)
	}
	if n < 0 {
		n = 0
	}
	return entries[:n]
}

// HasMore reports whether total filtered entries exceed what is shown.
func (p Pager) HasMore(total int) bool {
	return total > p.Limit()
}

// Next returns the pager after one "load more".
func (p Pager) Next() Pager {
	return Pager{Offset: addSaturating(p.Offset, p.PageSize), PageSize: p.PageSize}
}

// addSaturating adds two non-negative ints, clamping at math.MaxInt.
func addSaturating(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
