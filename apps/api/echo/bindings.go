package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/learningcloud/backend/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses `?ordering=field1,-field2`; a "-" prefix means descending.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if len(allowed) > 0 && !contains(allowed, field) {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// PaginatedResponse is the envelope of every list endpoint.
type PaginatedResponse struct {
	Count    int         `json:"count"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Results  interface{} `json:"results"`
}

func bindPagination(ctx echo.Context) core.Pagination {
	var page core.Pagination
	_ = ctx.Bind(&page)
	page.Clean()
	return page
}

func paginated(page core.Pagination, total int, results interface{}) PaginatedResponse {
	return PaginatedResponse{
		Count:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Results:  results,
	}
}
