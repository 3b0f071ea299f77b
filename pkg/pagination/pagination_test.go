package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFromStrings(t *testing.T) {
	tests := []struct {
		page, limit string
		want        Params
	}{
		{"", "", Params{Page: 1, Limit: 20}},
		{"3", "50", Params{Page: 3, Limit: 50}},
		{"0", "0", Params{Page: 1, Limit: 20}},
		{"-2", "abc", Params{Page: 1, Limit: 20}},
		{"2", "1000", Params{Page: 2, Limit: MaxLimit}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromStrings(tt.page, tt.limit), "page=%q limit=%q", tt.page, tt.limit)
	}
	assert.Equal(t, 100, Params{Page: 3, Limit: 50}.Offset())
}

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/invoices?page=4&limit=10", nil)

	p := Parse(c)
	assert.Equal(t, 4, p.Page)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, 30, p.Offset())
}
