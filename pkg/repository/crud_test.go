package repository

import "testing"

func TestPagination(t *testing.T) {
	tests := []struct {
		name       string
		p          Pagination
		wantOffset int
	}{
		{name: "first page", p: Pagination{Page: 1, PageSize: 10}, wantOffset: 0},
		{name: "third page", p: Pagination{Page: 3, PageSize: 25}, wantOffset: 50},
		{name: "page zero", p: Pagination{Page: 0, PageSize: 10}, wantOffset: 0},
		{name: "paging disabled", p: Pagination{Page: 4}, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Offset(); got != tt.wantOffset {
				t.Fatalf("offset = %d, want %d", got, tt.wantOffset)
			}
			if got := tt.p.Limit(); got != tt.p.PageSize {
				t.Fatalf("limit = %d, want %d", got, tt.p.PageSize)
			}
		})
	}
}

func TestQueryOptions_FindOptions(t *testing.T) {
	tests := []struct {
		name string
		opts QueryOptions
		want int
	}{
		{name: "empty", opts: QueryOptions{}, want: 0},
		{name: "blank sort keys ignored", opts: QueryOptions{Sort: []Sort{{}}}, want: 0},
		{name: "sort", opts: QueryOptions{Sort: []Sort{{Field: "a"}, {Field: "b", Order: SortDesc}}}, want: 1},
		{name: "sort and page", opts: QueryOptions{
			Sort:       []Sort{{Field: "a"}},
			Pagination: Pagination{Page: 2, PageSize: 5},
		}, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.opts.findOptions()); got != tt.want {
				t.Fatalf("got %d find options, want %d", got, tt.want)
			}
		})
	}
}

func TestSort_Direction(t *testing.T) {
	if got := (Sort{Field: "a", Order: SortDesc}).field(); got.Path != "a" || got.Direction >= 0 {
		t.Fatalf("descending sort = %+v", got)
	}
	if got := (Sort{Field: "a"}).field(); got.Direction <= 0 {
		t.Fatalf("default sort = %+v, want ascending", got)
	}
}
