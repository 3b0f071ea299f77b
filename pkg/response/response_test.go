package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginated(t *testing.T) {
	res := Paginated(200, []string{"a", "b"}, 2, 20, 41)
	assert.Equal(t, "success", res.Status)
	if assert.NotNil(t, res.Meta) {
		assert.Equal(t, 3, res.Meta.TotalPages)
		assert.Equal(t, 2, res.Meta.Page)
		assert.EqualValues(t, 41, res.Meta.Total)
	}

	empty := Paginated(200, []string{}, 1, 20, 0)
	assert.Equal(t, 0, empty.Meta.TotalPages)
}

func TestError(t *testing.T) {
	res := Error(404, "invoice not found")
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, 404, res.StatusCode)
	assert.Nil(t, res.Data)
	assert.Nil(t, res.Meta)
}
