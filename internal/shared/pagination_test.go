package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePageRequest(t *testing.T) {
	tests := []struct {
		name        string
		page, limit string
		want        PageRequest
		wantOffset  int
	}{
		{name: "defaults", want: PageRequest{Page: 1, PerPage: 10}, wantOffset: 0},
		{name: "explicit", page: "3", limit: "5", want: PageRequest{Page: 3, PerPage: 5}, wantOffset: 10},
		{name: "garbage", page: "x", limit: "-2", want: PageRequest{Page: 1, PerPage: 10}, wantOffset: 0},
		{name: "limit capped", page: "2", limit: "5000", want: PageRequest{Page: 2, PerPage: 100}, wantOffset: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePageRequest(tt.page, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOffset, got.Offset())
		})
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 21)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 21, p.Total)

	empty := NewPagination(0, 0, 0)
	assert.Equal(t, 1, empty.Page)
	assert.Equal(t, 0, empty.TotalPages)
}
