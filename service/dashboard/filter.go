package dashboard

import (
	"fmt"
	"strings"
	"time"
)

// Filter narrows a snapshot. Signature is a case-sensitive substring match.
// The date range is inclusive and applies only when both bounds are set.
type Filter struct {
	Signature string
	Start     string // YYYY-MM-DD
	End       string // YYYY-MM-DD
}

// ParseFilter validates date bounds.
func ParseFilter(signature, start, end string) (Filter, error) {
	f := Filter{
		Signature: strings.TrimSpace(signature),
		Start:     strings.TrimSpace(start),
		End:       strings.TrimSpace(end),
	}
	for _, d := range []string{f.Start, f.End} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d); err != nil {
			return Filter{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", d)
		}
	}
	return f, nil
}

func (f Filter) dateRange() bool {
	return f.Start != "" && f.End != ""
}

// IsZero reports whether the filter lets every entry through.
func (f Filter) IsZero() bool {
	return f.Signature == "" && !f.dateRange()
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if f.Signature != "" && !strings.Contains(e.Signature, f.Signature) {
		return false
	}
	if f.dateRange() {
		// YYYY-MM-DD orders lexically.
		if e.Date == "" || e.Date < f.Start || e.Date > f.End {
			return false
		}
	}
	return true
}

// Apply returns the entries that pass the filter, preserving order. The input
// is not modified.
func (f Filter) Apply(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
