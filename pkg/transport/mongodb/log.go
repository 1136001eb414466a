// Package mongodb stores the message log in a MongoDB collection. Message ids
// are ObjectIDs, so id order follows creation order.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nimburion/docstream/pkg/observability/logger"
	"github.com/nimburion/docstream/pkg/transport"
)

// Config holds MongoDB transport configuration.
type Config struct {
	URL              string
	Database         string
	Collection       string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
	MaxContentLength int
}

// Log is a transport.Transport backed by a MongoDB collection.
type Log struct {
	client     *mongo.Client
	collection *mongo.Collection
	cfg        Config
	log        logger.Logger
	mu         sync.RWMutex
	closed     bool
}

var _ transport.Transport = (*Log)(nil)

type messageDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d messageDoc) message() transport.Message {
	return transport.Message{ID: d.ID.Hex(), Content: d.Content, Timestamp: d.CreatedAt.UTC()}
}

// New connects to MongoDB and verifies the connection with a ping.
func New(cfg Config, log logger.Logger) (*Log, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to mongodb: %v", transport.ErrNetwork, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: failed to ping mongodb: %v", transport.ErrNetwork, err)
	}
	if log == nil {
		log = logger.Nop{}
	}
	l := &Log{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		cfg:        cfg,
		log:        log.With("transport", "mongodb", "database", cfg.Database, "collection", cfg.Collection),
	}
	l.log.Info("mongodb transport connected")
	return l, nil
}

func (c *Config) normalize() error {
	if c.URL == "" {
		return fmt.Errorf("mongodb URL is required")
	}
	if c.Database == "" {
		return fmt.Errorf("mongodb database is required")
	}
	if c.Collection == "" {
		c.Collection = "messages"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = 5 * time.Second
	}
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = transport.MaxContentLength
	}
	return nil
}

// Create inserts a new message.
func (l *Log) Create(ctx context.Context, content string) (transport.Message, error) {
	if err := transport.CheckContent(content, l.cfg.MaxContentLength); err != nil {
		return transport.Message{}, err
	}
	opCtx, cancel := l.withOperationTimeout(ctx)
	defer cancel()

	doc := messageDoc{
		ID:        primitive.NewObjectID(),
		Content:   content,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := l.collection.InsertOne(opCtx, doc); err != nil {
		return transport.Message{}, networkError("insert", err)
	}
	return doc.message(), nil
}

// List returns up to limit messages newest first, older than before when set.
func (l *Log) List(ctx context.Context, limit int, before string) ([]transport.Message, error) {
	if limit <= 0 {
		limit = transport.DefaultPageSize
	}
	filter := bson.M{}
	if before != "" {
		oid, err := parseID(before)
		if err != nil {
			return nil, err
		}
		filter["_id"] = bson.M{"$lt": oid}
	}
	opCtx, cancel := l.withOperationTimeout(ctx)
	defer cancel()

	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(int64(limit))
	cursor, err := l.collection.Find(opCtx, filter, findOpts)
	if err != nil {
		return nil, networkError("find", err)
	}
	defer cursor.Close(opCtx)

	var docs []messageDoc
	if err := cursor.All(opCtx, &docs); err != nil {
		return nil, networkError("find", err)
	}
	out := make([]transport.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.message())
	}
	return out, nil
}

// ListAll pages through the whole log.
func (l *Log) ListAll(ctx context.Context, maxItems int) ([]transport.Message, error) {
	return transport.ListAllMessages(ctx, l, transport.DefaultPageSize, maxItems)
}

// Edit replaces a message's content.
func (l *Log) Edit(ctx context.Context, id, content string) (transport.Message, error) {
	if err := transport.CheckContent(content, l.cfg.MaxContentLength); err != nil {
		return transport.Message{}, err
	}
	oid, err := parseID(id)
	if err != nil {
		return transport.Message{}, err
	}
	opCtx, cancel := l.withOperationTimeout(ctx)
	defer cancel()

	var doc messageDoc
	err = l.collection.FindOneAndUpdate(opCtx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"content": content}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return transport.Message{}, fmt.Errorf("%w: message %s", transport.ErrNotFound, id)
	}
	if err != nil {
		return transport.Message{}, networkError("update", err)
	}
	return doc.message(), nil
}

// Delete removes a message.
func (l *Log) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	opCtx, cancel := l.withOperationTimeout(ctx)
	defer cancel()

	res, err := l.collection.DeleteOne(opCtx, bson.M{"_id": oid})
	if err != nil {
		return networkError("delete", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: message %s", transport.ErrNotFound, id)
	}
	return nil
}

// TestConnection pings the primary.
func (l *Log) TestConnection(ctx context.Context) bool {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return false
	}
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := l.client.Ping(hcCtx, readpref.Primary()); err != nil {
		l.log.Warn("mongodb ping failed", "error", err)
		return false
	}
	return true
}

// Close disconnects the client. Calling it twice is a no-op.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close mongodb connection: %w", err)
	}
	return nil
}

func (l *Log) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.cfg.OperationTimeout)
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid message id %q", transport.ErrNotFound, id)
	}
	return oid, nil
}

func networkError(op string, err error) error {
	return fmt.Errorf("%w: mongodb %s: %v", transport.ErrNetwork, op, err)
}
