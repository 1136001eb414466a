package docstore

import (
	"context"

	"github.com/nimburion/docstream/pkg/document"
)

// Collection is the document API of a Store.
type Collection interface {
	InsertOne(ctx context.Context, doc document.Document) (document.Document, error)
	InsertMany(ctx context.Context, docs []document.Document) (InsertManyResult, error)
	Find(ctx context.Context, filter document.Filter, opts ...FindOption) ([]document.Document, error)
	FindPage(ctx context.Context, q document.Query) (document.Result, error)
	FindOne(ctx context.Context, filter document.Filter, opts ...FindOption) (document.Document, error)
	FindByID(ctx context.Context, id string) (document.Document, error)
	UpdateOne(ctx context.Context, filter document.Filter, u document.Update) (UpdateResult, error)
	UpdateMany(ctx context.Context, filter document.Filter, u document.Update) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter document.Filter) (DeleteResult, error)
	DeleteMany(ctx context.Context, filter document.Filter) (DeleteResult, error)
	CountDocuments(ctx context.Context, filter document.Filter) (int, error)
	Exists(ctx context.Context, filter document.Filter) (bool, error)
}

var _ Collection = (*Store)(nil)
