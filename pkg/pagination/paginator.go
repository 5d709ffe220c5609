package pagination

const (
	// DefaultLimit applies when no limit was given.
	DefaultLimit = 50
	// MinLimit is the smallest page size.
	MinLimit = 1
	// MaxLimit is the largest page size.
	MaxLimit = 200
)

// Request holds the raw limit and offset of a listing call.
// A zero Limit means the caller did not set one.
type Request struct {
	Limit  int
	Offset int
}

// Normalize clamps a request into a valid window.
func Normalize(req Request) (limit, offset int) {
	limit = req.Limit
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < MinLimit:
		limit = MinLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	offset = max(req.Offset, 0)
	return limit, offset
}

// Page returns items[offset:offset+limit] for the normalized request
// along with the effective limit and offset.
func Page[T any](items []T, req Request) (page []T, limit, offset int) {
	limit, offset = Normalize(req)

	if offset >= len(items) {
		return []T{}, limit, offset
	}

	end := min(offset+limit, len(items))
	page = make([]T, end-offset)
	copy(page, items[offset:end])
	return page, limit, offset
}
