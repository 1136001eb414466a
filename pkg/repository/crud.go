// Package repository maps typed entities onto a document collection.
package repository

import (
	"context"

	"github.com/nimburion/docstream/pkg/docstore"
	"github.com/nimburion/docstream/pkg/document"
)

// Reader is the query side of a repository.
type Reader[T any, ID comparable] interface {
	FindByID(ctx context.Context, id ID) (*T, error)
	FindAll(ctx context.Context, opts QueryOptions) ([]T, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Writer is the mutation side of a repository.
type Writer[T any, ID comparable] interface {
	Create(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id ID) error
}

// Repository is a full CRUD repository keyed by ID.
type Repository[T any, ID comparable] interface {
	Reader[T, ID]
	Writer[T, ID]
}

// Filter is a document filter; operator objects such as {"$gt": 3} are accepted.
type Filter map[string]any

// SortOrder is the direction of one sort key.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sort is one sort key. Field may be a dotted path.
type Sort struct {
	Field string
	Order SortOrder
}

func (s Sort) field() document.SortField {
	dir := document.Ascending
	if s.Order == SortDesc {
		dir = document.Descending
	}
	return document.SortField{Path: s.Field, Direction: dir}
}

// Pagination selects one page of results. Page is 1-based; a zero
// PageSize disables paging.
type Pagination struct {
	Page     int
	PageSize int
}

// Offset is the number of results before the page.
func (p Pagination) Offset() int {
	if p.Page <= 0 || p.PageSize <= 0 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Limit is the page size.
func (p Pagination) Limit() int {
	return p.PageSize
}

// QueryOptions narrows FindAll. Sort keys apply in order.
type QueryOptions struct {
	Filter     Filter
	Sort       []Sort
	Pagination Pagination
}

func (o QueryOptions) findOptions() []docstore.FindOption {
	var opts []docstore.FindOption
	if len(o.Sort) > 0 {
		fields := make([]document.SortField, 0, len(o.Sort))
		for _, s := range o.Sort {
			if s.Field != "" {
				fields = append(fields, s.field())
			}
		}
		if len(fields) > 0 {
			opts = append(opts, docstore.WithSort(fields...))
		}
	}
	if o.Pagination.PageSize > 0 {
		opts = append(opts,
			docstore.WithSkip(o.Pagination.Offset()),
			docstore.WithLimit(o.Pagination.Limit()),
		)
	}
	return opts
}
