package repository

// Pagination 分页元数据
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Pages      int   `json:"pages"`
	TotalCount int64 `json:"total_count"`
	PrevPage   *int  `json:"prev_page"`
	NextPage   *int  `json:"next_page"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewPagination 根据总数计算分页信息，page 与 perPage 需为正数
func NewPagination(page, perPage int, total int64) Pagination {
	pages := int((total + int64(perPage) - 1) / int64(perPage))

	p := Pagination{
		Page:       page,
		PerPage:    perPage,
		Pages:      pages,
		TotalCount: total,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
	if p.HasPrev {
		prev := page - 1
		p.PrevPage = &prev
	}
	if p.HasNext {
		next := page + 1
		p.NextPage = &next
	}
	return p
}

// Offset 返回当前页的起始偏移
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}
