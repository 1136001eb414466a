// Package docstore is a document store layered on a message log: every
// document is one transport message, and queries run against an in-memory
// snapshot of the whole collection that is reloaded when it goes stale.
//
// Operations issued by one caller run in program order. Concurrent writers
// are not coordinated: two overlapping updates of the same document race and
// the cache may briefly miss a change made by another process.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nimburion/docstream/pkg/document"
	"github.com/nimburion/docstream/pkg/envelope"
	"github.com/nimburion/docstream/pkg/observability/logger"
	"github.com/nimburion/docstream/pkg/observability/metrics"
	"github.com/nimburion/docstream/pkg/observability/tracing"
	"github.com/nimburion/docstream/pkg/transport"
)

// DefaultCacheTTL is the staleness threshold used when Config.CacheTTL is unset.
const DefaultCacheTTL = time.Minute

// Config configures a Store.
type Config struct {
	// Collection names the collection in logs, metrics and spans.
	Collection string
	// EncryptionKey enables payload encryption when non-empty.
	EncryptionKey string
	// CacheTTL is the snapshot staleness threshold. Negative disables caching.
	CacheTTL time.Duration
	// MaxContentLength caps serialized content in characters.
	MaxContentLength int
	// MaxDocuments caps how many log entries a reload reads. Zero reads everything.
	MaxDocuments int
}

// Option customizes a Store.
type Option func(*Store)

// WithMetrics records operations in m.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides the clock used for cache staleness.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how missing _id values are generated.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// Store is one collection.
type Store struct {
	cfg       Config
	transport transport.Transport
	cipher    *envelope.Cipher
	log       logger.Logger
	metrics   *metrics.StoreMetrics
	cache     *cache
	now       func() time.Time
	newID     func() string
}

// New creates a store over t. The cache starts empty; the first read reloads.
func New(cfg Config, t transport.Transport, log logger.Logger, opts ...Option) (*Store, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: collection is required", ErrValidation)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrValidation)
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = transport.MaxContentLength
	}
	if log == nil {
		log = logger.Nop{}
	}
	s := &Store{
		cfg:       cfg,
		transport: t,
		log:       log.With("collection", cfg.Collection),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.EncryptionKey != "" {
		c, err := envelope.NewCipher(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		s.cipher = c
	}
	s.cache = &cache{ttl: cfg.CacheTTL, now: s.now}
	return s, nil
}

// Collection returns the collection name.
func (s *Store) Collection() string {
	return s.cfg.Collection
}

// Encrypted reports whether new content is encrypted.
func (s *Store) Encrypted() bool {
	return s.cipher != nil
}

// begin starts the span and timer for op. The returned function ends both
// and maps err into the store taxonomy.
func (s *Store) begin(ctx context.Context, op string) (context.Context, func(error) error) {
	start := time.Now()
	ctx, span := tracing.StartStoreSpan(ctx, op, s.cfg.Collection)
	return ctx, func(err error) error {
		err = wrapError(op, err)
		tracing.End(span, err)
		s.metrics.ObserveOperation(s.cfg.Collection, op, time.Since(start), err)
		return err
	}
}

// Reload replaces the cache with the current content of the log. Entries that
// are not JSON objects or lack a string _id are skipped. When an _id appears
// in several messages the newest one wins; the older messages are removed
// together with it on delete.
func (s *Store) Reload(ctx context.Context) (err error) {
	ctx, done := s.begin(ctx, "reload")
	defer func() { err = done(err) }()
	_, err = s.reload(ctx)
	return err
}

func (s *Store) reload(ctx context.Context) (*snapshot, error) {
	start := time.Now()
	tctx, span := tracing.StartTransportSpan(ctx, "list_all", attribute.Int("transport.max_items", s.cfg.MaxDocuments))
	messages, err := s.transport.ListAll(tctx, s.cfg.MaxDocuments)
	tracing.End(span, err)
	if err != nil {
		s.metrics.ObserveReload(s.cfg.Collection, 0, err)
		s.log.WithContext(ctx).Error("cache reload failed", "error", err)
		return nil, err
	}

	snap := newSnapshot(s.now(), len(messages))
	skipped := 0
	// newest first from the transport; walk oldest first so newer entries overwrite
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		content := envelope.Decode(msg.Content)
		if content.Kind == envelope.KindInvalid {
			skipped++
			s.metrics.SkippedEntry(s.cfg.Collection, "invalid_json")
			s.log.Debug("skipping non-document entry", "message_id", msg.ID)
			continue
		}
		obj, err := envelope.Open(content, s.cipher)
		if err != nil {
			s.metrics.ObserveReload(s.cfg.Collection, 0, err)
			s.log.WithContext(ctx).Error("cache reload failed", "message_id", msg.ID, "error", err)
			return nil, err
		}
		doc := document.Document(obj)
		if _, ok := doc.ID(); !ok {
			skipped++
			s.metrics.SkippedEntry(s.cfg.Collection, "missing_id")
			s.log.Debug("skipping entry without _id", "message_id", msg.ID)
			continue
		}
		id, _ := doc.ID()
		if older, ok := snap.get(id); ok {
			olderID, _ := older[document.MessageIDField].(string)
			snap.shadow(id, olderID)
			s.log.Warn("duplicate _id in log, newest message wins",
				"_id", id, "message_id", msg.ID, "shadowed_message_id", olderID)
		}
		snap.put(attachManaged(doc, msg))
	}

	s.cache.replace(snap)
	s.metrics.ObserveReload(s.cfg.Collection, len(snap.docs), nil)
	s.log.WithContext(ctx).Info("cache reloaded",
		"documents", len(snap.docs),
		"messages", len(messages),
		"skipped", skipped,
		"elapsed", time.Since(start),
	)
	return snap, nil
}

// current returns a fresh snapshot, reloading when needed.
func (s *Store) current(ctx context.Context) (*snapshot, error) {
	if snap, ok := s.cache.fresh(); ok {
		return snap, nil
	}
	return s.reload(ctx)
}

func attachManaged(doc document.Document, msg transport.Message) document.Document {
	doc = doc.StripManaged()
	doc[document.MessageIDField] = msg.ID
	doc[document.CreatedAtField] = msg.Timestamp.UTC().Format(time.RFC3339Nano)
	return doc
}

// seal serializes a document for the transport and enforces the size ceiling.
func (s *Store) seal(doc document.Document) (string, error) {
	content, err := envelope.Seal(map[string]any(doc.StripManaged()), s.cipher)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if n := transport.ContentLength(content); n > s.cfg.MaxContentLength {
		id, _ := doc.ID()
		s.log.Warn("document exceeds content limit", "_id", id, "length", n, "limit", s.cfg.MaxContentLength)
		return "", fmt.Errorf("%w: %d characters, limit is %d", ErrDocumentTooLarge, n, s.cfg.MaxContentLength)
	}
	return content, nil
}

// prepareInsert normalizes a new document and assigns an _id when missing.
// generated reports whether the _id was assigned here.
func (s *Store) prepareInsert(doc document.Document) (prepared document.Document, generated bool, err error) {
	prepared, err = document.Normalize(doc.StripManaged())
	if err != nil {
		return nil, false, err
	}
	raw, present := prepared[document.IDField]
	if !present || raw == nil {
		prepared[document.IDField] = s.newID()
		return prepared, true, nil
	}
	if id, ok := raw.(string); !ok || id == "" {
		return nil, false, fmt.Errorf("%w: _id must be a non-empty string, got %v", ErrValidation, raw)
	}
	return prepared, false, nil
}

// InsertOne stores a document and returns it as cached, with its _id and the
// store-managed message fields.
func (s *Store) InsertOne(ctx context.Context, doc document.Document) (out document.Document, err error) {
	ctx, done := s.begin(ctx, "insert_one")
	defer func() { err = done(err) }()
	return s.insert(ctx, doc)
}

func (s *Store) insert(ctx context.Context, doc document.Document) (document.Document, error) {
	prepared, generated, err := s.prepareInsert(doc)
	if err != nil {
		return nil, err
	}
	id, _ := prepared.ID()
	// caller-supplied ids must be unique across the whole log
	if !generated {
		snap, err := s.current(ctx)
		if err != nil {
			return nil, err
		}
		if _, exists := snap.get(id); exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
	}
	content, err := s.seal(prepared)
	if err != nil {
		return nil, err
	}

	tctx, span := tracing.StartTransportSpan(ctx, "create")
	msg, err := s.transport.Create(tctx, content)
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}

	stored := attachManaged(prepared, msg)
	n := s.cache.update(func(snap *snapshot) *snapshot { return snap.with(stored) })
	s.metrics.SetDocuments(s.cfg.Collection, n)
	s.log.WithContext(ctx).Debug("document inserted", "_id", id, "message_id", msg.ID)
	return stored.Clone(), nil
}

// InsertManyResult reports a batch insert.
type InsertManyResult struct {
	Inserted []document.Document
	Failures []ItemError
}

// InsertedIDs returns the _id of every inserted document in input order.
func (r InsertManyResult) InsertedIDs() []string {
	ids := make([]string, 0, len(r.Inserted))
	for _, doc := range r.Inserted {
		id, _ := doc.ID()
		ids = append(ids, id)
	}
	return ids
}

// InsertMany inserts documents one at a time, continuing past failures.
func (s *Store) InsertMany(ctx context.Context, docs []document.Document) (res InsertManyResult, err error) {
	ctx, done := s.begin(ctx, "insert_many")
	defer func() { err = done(err) }()

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		stored, err := s.insert(ctx, doc)
		if err != nil {
			id, _ := doc.ID()
			res.Failures = append(res.Failures, ItemError{Index: i, ID: id, Err: err})
			s.log.WithContext(ctx).Warn("batch insert item failed", "index", i, "_id", id, "error", err)
			continue
		}
		res.Inserted = append(res.Inserted, stored)
	}
	return res, nil
}

// FindOption adjusts a find.
type FindOption func(*document.Query)

// WithSort orders results by each field in turn.
func WithSort(fields ...document.SortField) FindOption {
	return func(q *document.Query) { q.Sort = append(q.Sort, fields...) }
}

// WithSkip drops the first n results.
func WithSkip(n int) FindOption {
	return func(q *document.Query) { q.Skip = n }
}

// WithLimit keeps at most n results. Zero or less is unbounded.
func WithLimit(n int) FindOption {
	return func(q *document.Query) { q.Limit = n }
}

// WithProjection shapes each result.
func WithProjection(p document.Projection) FindOption {
	return func(q *document.Query) { q.Projection = p }
}

func buildQuery(filter document.Filter, opts []FindOption) document.Query {
	q := document.Query{Filter: filter}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// Find returns matching documents.
func (s *Store) Find(ctx context.Context, filter document.Filter, opts ...FindOption) (docs []document.Document, err error) {
	ctx, done := s.begin(ctx, "find")
	defer func() { err = done(err) }()
	res, err := s.run(ctx, buildQuery(filter, opts))
	if err != nil {
		return nil, err
	}
	return res.Documents, nil
}

// FindPage runs a query and reports the total match count alongside the page.
func (s *Store) FindPage(ctx context.Context, q document.Query) (res document.Result, err error) {
	ctx, done := s.begin(ctx, "find_page")
	defer func() { err = done(err) }()
	return s.run(ctx, q)
}

// FindOne returns the first matching document or ErrNotFound.
func (s *Store) FindOne(ctx context.Context, filter document.Filter, opts ...FindOption) (doc document.Document, err error) {
	ctx, done := s.begin(ctx, "find_one")
	defer func() { err = done(err) }()
	return s.findOne(ctx, filter, opts)
}

// FindByID returns the document with the given _id or ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (doc document.Document, err error) {
	ctx, done := s.begin(ctx, "find_by_id")
	defer func() { err = done(err) }()
	return s.findOne(ctx, document.Filter{document.IDField: id}, nil)
}

func (s *Store) findOne(ctx context.Context, filter document.Filter, opts []FindOption) (document.Document, error) {
	q := buildQuery(filter, opts)
	q.Limit = 1
	res, err := s.run(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(res.Documents) == 0 {
		return nil, ErrNotFound
	}
	return res.Documents[0], nil
}

func (s *Store) run(ctx context.Context, q document.Query) (document.Result, error) {
	// compile first so a bad filter fails without touching the transport
	if _, err := document.CompileFilter(q.Filter); err != nil {
		return document.Result{}, err
	}
	snap, err := s.current(ctx)
	if err != nil {
		return document.Result{}, err
	}
	return document.Run(snap.docs, q)
}

// matching returns the full cached form of every match, in collection order.
func (s *Store) matching(ctx context.Context, filter document.Filter, limit int) ([]document.Document, error) {
	res, err := s.run(ctx, document.Query{Filter: filter, Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.Documents, nil
}

// CountDocuments counts matching documents.
func (s *Store) CountDocuments(ctx context.Context, filter document.Filter) (n int, err error) {
	ctx, done := s.begin(ctx, "count_documents")
	defer func() { err = done(err) }()
	res, err := s.run(ctx, document.Query{Filter: filter, Limit: 1})
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}

// Exists reports whether any document matches.
func (s *Store) Exists(ctx context.Context, filter document.Filter) (ok bool, err error) {
	ctx, done := s.begin(ctx, "exists")
	defer func() { err = done(err) }()
	res, err := s.run(ctx, document.Query{Filter: filter, Limit: 1})
	if err != nil {
		return false, err
	}
	return res.Total > 0, nil
}

// UpdateResult reports an update. Modified excludes matches the update left unchanged.
type UpdateResult struct {
	Matched  int
	Modified int
	Failures []ItemError
}

// UpdateOne applies u to the first matching document. Any failure, including
// an oversized result, is returned.
func (s *Store) UpdateOne(ctx context.Context, filter document.Filter, u document.Update) (res UpdateResult, err error) {
	ctx, done := s.begin(ctx, "update_one")
	defer func() { err = done(err) }()

	if err := document.ValidateUpdate(u); err != nil {
		return res, err
	}
	matches, err := s.matching(ctx, filter, 1)
	if err != nil || len(matches) == 0 {
		return res, err
	}
	res.Matched = 1
	modified, err := s.updateDocument(ctx, matches[0], u)
	if err != nil {
		return res, err
	}
	if modified {
		res.Modified = 1
	}
	return res, nil
}

// UpdateMany applies u to every matching document, continuing past per-document failures.
func (s *Store) UpdateMany(ctx context.Context, filter document.Filter, u document.Update) (res UpdateResult, err error) {
	ctx, done := s.begin(ctx, "update_many")
	defer func() { err = done(err) }()

	if err := document.ValidateUpdate(u); err != nil {
		return res, err
	}
	matches, err := s.matching(ctx, filter, 0)
	if err != nil {
		return res, err
	}
	res.Matched = len(matches)
	for i, doc := range matches {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		modified, err := s.updateDocument(ctx, doc, u)
		if err != nil {
			id, _ := doc.ID()
			res.Failures = append(res.Failures, ItemError{Index: i, ID: id, Err: err})
			s.log.WithContext(ctx).Warn("batch update item failed", "_id", id, "error", err)
			continue
		}
		if modified {
			res.Modified++
		}
	}
	return res, nil
}

// updateDocument applies u to a cached document and writes it back. It
// reports false without a transport call when the update changes nothing.
func (s *Store) updateDocument(ctx context.Context, current document.Document, u document.Update) (bool, error) {
	messageID, _ := current[document.MessageIDField].(string)
	base := current.StripManaged()
	updated, err := document.ApplyUpdate(base, u)
	if err != nil {
		return false, err
	}
	updated, err = document.Normalize(updated.StripManaged())
	if err != nil {
		return false, err
	}
	if document.Equal(map[string]any(base), map[string]any(updated)) {
		return false, nil
	}
	content, err := s.seal(updated)
	if err != nil {
		return false, err
	}

	tctx, span := tracing.StartTransportSpan(ctx, "edit", attribute.String("transport.message_id", messageID))
	msg, err := s.transport.Edit(tctx, messageID, content)
	tracing.End(span, err)
	if err != nil {
		return false, err
	}
	if msg.ID == "" {
		msg.ID = messageID
	}
	if msg.Timestamp.IsZero() {
		if created, perr := time.Parse(time.RFC3339Nano, fmt.Sprint(current[document.CreatedAtField])); perr == nil {
			msg.Timestamp = created
		}
	}
	stored := attachManaged(updated, msg)
	s.cache.update(func(snap *snapshot) *snapshot { return snap.with(stored) })
	id, _ := updated.ID()
	s.log.WithContext(ctx).Debug("document updated", "_id", id, "message_id", msg.ID)
	return true, nil
}

// DeleteResult reports a delete.
type DeleteResult struct {
	Matched  int
	Deleted  int
	Failures []ItemError
}

// DeleteOne deletes the first matching document.
func (s *Store) DeleteOne(ctx context.Context, filter document.Filter) (res DeleteResult, err error) {
	ctx, done := s.begin(ctx, "delete_one")
	defer func() { err = done(err) }()

	matches, err := s.matching(ctx, filter, 1)
	if err != nil || len(matches) == 0 {
		return res, err
	}
	res.Matched = 1
	if err := s.deleteDocument(ctx, matches[0]); err != nil {
		return res, err
	}
	res.Deleted = 1
	return res, nil
}

// DeleteMany deletes every matching document, continuing past per-document failures.
func (s *Store) DeleteMany(ctx context.Context, filter document.Filter) (res DeleteResult, err error) {
	ctx, done := s.begin(ctx, "delete_many")
	defer func() { err = done(err) }()

	matches, err := s.matching(ctx, filter, 0)
	if err != nil {
		return res, err
	}
	res.Matched = len(matches)
	for i, doc := range matches {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.deleteDocument(ctx, doc); err != nil {
			id, _ := doc.ID()
			res.Failures = append(res.Failures, ItemError{Index: i, ID: id, Err: err})
			s.log.WithContext(ctx).Warn("batch delete item failed", "_id", id, "error", err)
			continue
		}
		res.Deleted++
	}
	return res, nil
}

// deleteDocument removes the backing message and any older message shadowed
// by it. A message already gone from the log counts as deleted.
func (s *Store) deleteDocument(ctx context.Context, doc document.Document) error {
	id, _ := doc.ID()
	messageID, _ := doc[document.MessageIDField].(string)

	if err := s.deleteMessage(ctx, id, messageID); err != nil {
		return err
	}
	if snap, ok := s.cache.loaded(); ok {
		for _, older := range snap.shadowed[id] {
			if err := s.deleteMessage(ctx, id, older); err != nil {
				return err
			}
			s.log.Info("removed shadowed duplicate", "_id", id, "message_id", older)
		}
	}
	n := s.cache.update(func(snap *snapshot) *snapshot { return snap.without(id) })
	s.metrics.SetDocuments(s.cfg.Collection, n)
	return nil
}

func (s *Store) deleteMessage(ctx context.Context, id, messageID string) error {
	tctx, span := tracing.StartTransportSpan(ctx, "delete", attribute.String("transport.message_id", messageID))
	err := s.transport.Delete(tctx, messageID)
	tracing.End(span, err)
	if err != nil && !errors.Is(err, transport.ErrNotFound) {
		return err
	}
	if err != nil {
		s.log.Debug("backing message already gone", "_id", id, "message_id", messageID)
	}
	return nil
}

// ClearCache drops the snapshot; the next read reloads.
func (s *Store) ClearCache() {
	s.cache.clear()
	s.log.Debug("cache cleared")
}

// SetCacheTTL changes the staleness threshold. Zero or less disables caching.
func (s *Store) SetCacheTTL(ttl time.Duration) {
	s.cache.setTTL(ttl)
}

// CacheTTL returns the staleness threshold.
func (s *Store) CacheTTL() time.Duration {
	return s.cache.getTTL()
}

// CacheStats reports the cache state.
func (s *Store) CacheStats() CacheStats {
	return s.cache.stats()
}

// TestConnection asks the transport whether the log is reachable.
func (s *Store) TestConnection(ctx context.Context) bool {
	tctx, span := tracing.StartTransportSpan(ctx, "test_connection")
	ok := s.transport.TestConnection(tctx)
	var err error
	if !ok {
		err = errors.New("transport unreachable")
	}
	tracing.End(span, err)
	return ok
}

// Close closes the transport.
func (s *Store) Close() error {
	s.cache.clear()
	return s.transport.Close()
}
