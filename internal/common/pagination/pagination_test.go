package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		query       string
		page, limit int
		offset      int
	}{
		{"", 1, DefaultPerPage, 0},
		{"?page=3&per_page=10", 3, 10, 20},
		{"?page=-1&per_page=1000", 1, MaxPerPage, 0},
		{"?page=abc", 1, DefaultPerPage, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := ParseParams(httptest.NewRequest("GET", "/x"+tt.query, nil))
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.limit, p.Limit)
			assert.Equal(t, tt.offset, p.Offset)
		})
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string(nil), Params{Page: 1, PerPage: 10}, 0)
	assert.NotNil(t, resp.Results)
	assert.Equal(t, 1, resp.TotalPages)

	intResp := NewResponse([]int{1, 2}, Params{Page: 2, PerPage: 2}, 5)
	assert.Equal(t, 3, intResp.TotalPages)
	assert.Equal(t, 5, intResp.TotalResults)
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, Slice(items, 2, 0))
	assert.Equal(t, []int{4, 5}, Slice(items, 10, 3))
	assert.Equal(t, []int{2, 3, 4, 5}, Slice(items, 0, 1))
	assert.Nil(t, Slice(items, 2, 5))
}
