package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nimburion/docstream/pkg/docstore"
	"github.com/nimburion/docstream/pkg/document"
)

// ErrNotFound is returned when no entity has the requested id.
var ErrNotFound = errors.New("entity not found")

// DefaultVersionField holds the version of Versioned entities.
const DefaultVersionField = "version"

// EntityMapper defines how to map between entities and documents
type EntityMapper[T any] interface {
	ToDocument(entity *T) (document.Document, error)
	FromDocument(doc document.Document) (*T, error)
	GetID(entity *T) string
	SetID(entity *T, id string)
}

// JSONMapper maps entities through their JSON encoding. The entity must
// encode its identifier under "_id"; IDOf points at that field.
type JSONMapper[T any] struct {
	IDOf func(entity *T) *string
}

// ToDocument encodes the entity. An empty identifier is dropped so the
// collection generates one.
func (m JSONMapper[T]) ToDocument(entity *T) (document.Document, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	var doc document.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("entity must encode as a JSON object: %w", err)
	}
	if id, ok := doc[document.IDField].(string); ok && id == "" {
		delete(doc, document.IDField)
	}
	return doc, nil
}

// FromDocument decodes a stored document, ignoring store-managed fields.
func (m JSONMapper[T]) FromDocument(doc document.Document) (*T, error) {
	raw, err := json.Marshal(doc.StripManaged())
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	entity := new(T)
	if err := json.Unmarshal(raw, entity); err != nil {
		return nil, fmt.Errorf("failed to decode entity: %w", err)
	}
	return entity, nil
}

// GetID returns the entity identifier
func (m JSONMapper[T]) GetID(entity *T) string {
	return *m.IDOf(entity)
}

// SetID sets the entity identifier
func (m JSONMapper[T]) SetID(entity *T, id string) {
	*m.IDOf(entity) = id
}

// DocumentRepository implements Repository over a document collection.
// Entities implementing Versioned get optimistic locking on Update.
type DocumentRepository[T any] struct {
	coll         docstore.Collection
	mapper       EntityMapper[T]
	versionField string
}

// DocumentOption customizes a DocumentRepository.
type DocumentOption func(*documentOptions)

type documentOptions struct {
	versionField string
}

// WithVersionField changes the document field holding the entity version.
func WithVersionField(field string) DocumentOption {
	return func(o *documentOptions) { o.versionField = field }
}

// NewDocumentRepository creates a repository over coll.
func NewDocumentRepository[T any](coll docstore.Collection, mapper EntityMapper[T], opts ...DocumentOption) (*DocumentRepository[T], error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if mapper == nil {
		return nil, errors.New("entity mapper is required")
	}
	o := documentOptions{versionField: DefaultVersionField}
	for _, opt := range opts {
		opt(&o)
	}
	return &DocumentRepository[T]{coll: coll, mapper: mapper, versionField: o.versionField}, nil
}

// Create inserts a new entity and stores the assigned identifier on it
func (r *DocumentRepository[T]) Create(ctx context.Context, entity *T) error {
	if entity == nil {
		return errors.New("entity cannot be nil")
	}
	if v, ok := any(entity).(Versioned); ok && v.GetVersion() == 0 {
		v.SetVersion(1)
	}
	doc, err := r.mapper.ToDocument(entity)
	if err != nil {
		return err
	}
	stored, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}
	id, _ := stored.ID()
	r.mapper.SetID(entity, id)
	return nil
}

// FindByID retrieves an entity by its ID
func (r *DocumentRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	doc, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.mapper.FromDocument(doc)
}

func (r *DocumentRepository[T]) find(ctx context.Context, id string) (document.Document, error) {
	doc, err := r.coll.FindByID(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entity: %w", err)
	}
	return doc, nil
}

// FindAll retrieves entities matching the query options. Returns an empty
// slice if no entities match.
func (r *DocumentRepository[T]) FindAll(ctx context.Context, opts QueryOptions) ([]T, error) {
	docs, err := r.coll.Find(ctx, document.Filter(opts.Filter), opts.findOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		entity, err := r.mapper.FromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *entity)
	}
	return out, nil
}

// Count returns the number of entities matching filter
func (r *DocumentRepository[T]) Count(ctx context.Context, filter Filter) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, document.Filter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return int64(n), nil
}

// Update replaces the stored entity. Fields absent from the entity are
// removed from the stored document.
func (r *DocumentRepository[T]) Update(ctx context.Context, entity *T) error {
	if entity == nil {
		return errors.New("entity cannot be nil")
	}
	id := r.mapper.GetID(entity)
	if id == "" {
		return errors.New("entity id is required")
	}
	current, err := r.find(ctx, id)
	if err != nil {
		return err
	}
	doc, err := r.mapper.ToDocument(entity)
	if err != nil {
		return err
	}

	filter := document.Filter{document.IDField: id}
	versioned, isVersioned := any(entity).(Versioned)
	var expected int64
	if isVersioned {
		expected = versioned.GetVersion()
		if actual := versionOf(current[r.versionField]); actual != expected {
			return &OptimisticLockError{ID: id, Expected: expected, Actual: actual}
		}
		filter[r.versionField] = expected
		doc[r.versionField] = expected + 1
	}

	u := replacement(current, doc)
	if u == nil {
		return nil
	}
	res, err := r.coll.UpdateOne(ctx, filter, u)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}
	if res.Matched == 0 {
		if !isVersioned {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		latest, err := r.find(ctx, id)
		if err != nil {
			return err
		}
		return &OptimisticLockError{ID: id, Expected: expected, Actual: versionOf(latest[r.versionField])}
	}
	if isVersioned {
		versioned.SetVersion(expected + 1)
	}
	return nil
}

// Delete removes an entity by its ID
func (r *DocumentRepository[T]) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, document.Filter{document.IDField: id})
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if res.Deleted == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// replacement builds the operator update turning current into doc, or nil
// when there is nothing to write.
func replacement(current, doc document.Document) document.Update {
	set := map[string]any{}
	for k, v := range doc {
		if k != document.IDField {
			set[k] = v
		}
	}
	unset := map[string]any{}
	for k := range current.StripManaged() {
		if _, keep := doc[k]; !keep && k != document.IDField {
			unset[k] = 1
		}
	}
	u := document.Update{}
	if len(set) > 0 {
		u[document.OpSet] = set
	}
	if len(unset) > 0 {
		u[document.OpUnset] = unset
	}
	if len(u) == 0 {
		return nil
	}
	return u
}
