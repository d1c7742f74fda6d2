package domain

// Page is a limit/offset window over an ordered list such as past trips.
type Page struct {
	// Limit is the maximum number of items to return.
	Limit int
	// Offset is the number of leading items to skip.
	Offset int
}

// NewPage builds a Page from optional query params.
// Nil or out-of-range values fall back to limit=20, offset=0; the limit is
// capped at 100.
func NewPage(limit, offset *int) Page {
	p := Page{Limit: 20}
	if limit != nil && *limit >= 1 {
		p.Limit = *limit
		if p.Limit > 100 {
			p.Limit = 100
		}
	}
	if offset != nil && *offset >= 0 {
		p.Offset = *offset
	}
	return p
}

// Slice returns the window of items described by p. It never returns nil.
func Slice[T any](items []T, p Page) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	end := p.Offset + p.Limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-p.Offset)
	copy(out, items[p.Offset:end])
	return out
}
