package util

const (
	DefaultPageSize = 12
	MaxPageSize     = 50
)

func Calculate(page, limit int) (offset, size int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset = (page - 1) * limit
	return offset, limit
}
