package requests

import "line-dify-bridge/internal/domain/knowledge"

// PageQuery binds page/limit; range checks happen in the knowledge service so
// the error body matches the rest of the proxy.
type PageQuery struct {
	Page  *int `form:"page"`
	Limit *int `form:"limit"`
}

func (q PageQuery) Values() (int, int) {
	page, limit := knowledge.DefaultPage, knowledge.DefaultLimit
	if q.Page != nil {
		page = *q.Page
	}
	if q.Limit != nil {
		limit = *q.Limit
	}
	return page, limit
}

type DocumentQuery struct {
	Metadata string `form:"metadata" binding:"omitempty,oneof=all only without"`
}
