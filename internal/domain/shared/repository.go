package shared

// Filter holds paging and ordering for list queries
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// Offset returns the row offset for the filter's page
func (f Filter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}
