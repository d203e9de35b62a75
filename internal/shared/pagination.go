package shared

// Pagination contains metadata for offset based listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination derives page metadata from a skip/limit window.
func NewPagination(skip, limit, total int) Pagination {
	if limit <= 0 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	totalPages := (total + limit - 1) / limit
	return Pagination{Page: skip/limit + 1, PerPage: limit, Total: total, TotalPages: totalPages}
}
