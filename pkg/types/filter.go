package types

// Filter represents query parameters for filtering and pagination.
type Filter struct {
	Search         string                 `json:"search,omitempty"`
	Sort           map[string]string      `json:"sort,omitempty"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
	Limit          int                    `json:"limit"`
	Offset         int                    `json:"offset"`
	Page           int                    `json:"page"`
	WithPagination bool                   `json:"with_pagination"`
}

// Pagination represents pagination metadata.
type Pagination struct {
	TotalCount uint64 `json:"total_count"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"total_pages"`
}

// NewPagination считает total_pages с округлением вверх.
func NewPagination(total uint64, page, limit int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + uint64(limit) - 1) / uint64(limit))
	}
	return Pagination{TotalCount: total, Page: page, Limit: limit, TotalPages: totalPages}
}

// http://localhost:8080/api/requests?search=кран&sort[created_at]=desc&filter[status]=Pending&filter[urgency]=high,medium&limit=10&page=1
