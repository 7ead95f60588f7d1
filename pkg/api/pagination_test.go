package api

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func contextWithQuery(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/jobs?"+query, nil)
	return c
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query    string
		page     int64
		pageSize int64
		offset   int64
	}{
		{"", 1, 20, 0},
		{"page=3&pageSize=10", 3, 10, 20},
		{"page=0&pageSize=500", 1, 100, 0},
		{"page=x&pageSize=-1", 1, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := ParsePagination(contextWithQuery(tt.query))
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.pageSize, p.PageSize)
			assert.Equal(t, tt.offset, p.Offset())
		})
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse([]int{1, 2}, 2, 2, 5)
	assert.Equal(t, int64(3), resp.TotalPages)
	assert.True(t, resp.HasNext)
	assert.True(t, resp.HasPrev)

	empty := NewPageResponse[int](nil, 1, 20, 0)
	assert.NotNil(t, empty.Data)
	assert.Equal(t, int64(1), empty.TotalPages)
	assert.False(t, empty.HasNext)
}

func TestParseSortOrder(t *testing.T) {
	assert.Equal(t, SortAsc, ParseSortOrder(contextWithQuery("order=asc"), SortDesc))
	assert.Equal(t, SortDesc, ParseSortOrder(contextWithQuery("order=bogus"), SortDesc))
}
