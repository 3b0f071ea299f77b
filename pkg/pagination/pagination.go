package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds validated pagination parameters
type Params struct {
	Page  int
	Limit int
}

// Offset is the number of rows to skip for this page
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Parse reads ?page= and ?limit=. Garbage falls back to the defaults and limit is capped at MaxLimit.
func Parse(c *gin.Context) Params {
	return FromStrings(c.Query("page"), c.Query("limit"))
}

// FromStrings is Parse without a gin context, e.g. for websocket or job callers.
func FromStrings(rawPage, rawLimit string) Params {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(rawLimit)
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}
