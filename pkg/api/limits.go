package api

type Limits struct {
	// MaxPageSize caps the "limit" query parameter of paginated endpoints.
	MaxPageSize int
	// MaxRandomness caps the number of blocks a randomness sample may span.
	MaxRandomness int
}

const (
	defaultPageSize      = 20
	defaultMaxPageSize   = 100
	defaultRandomness    = 10
	defaultMaxRandomness = 100
)

func (lim Limits) pageSize(requested int) int {
	max := lim.MaxPageSize
	if max <= 0 {
		max = defaultMaxPageSize
	}
	if requested <= 0 {
		requested = defaultPageSize
	}
	if requested > max {
		return max
	}
	return requested
}

func (lim Limits) isRandomnessSizeAllowed(size int) bool {
	max := lim.MaxRandomness
	if max <= 0 {
		max = defaultMaxRandomness
	}
	return size > 0 && size <= max
}
