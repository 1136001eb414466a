// Package redis stores the message log in Redis: a hash of message records
// plus a sorted set ordering message ids by their sequence number.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nimburion/docstream/pkg/observability/logger"
	"github.com/nimburion/docstream/pkg/transport"
)

// Config holds Redis transport configuration.
type Config struct {
	URL              string
	Channel          string
	KeyPrefix        string
	MaxConns         int
	OperationTimeout time.Duration
	MaxContentLength int
}

// Log is a transport.Transport backed by Redis.
type Log struct {
	client *redis.Client
	cfg    Config
	log    logger.Logger
	keys   keys
}

var _ transport.Transport = (*Log)(nil)

type keys struct {
	seq, messages, order string
}

type record struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// New connects to Redis and verifies the connection.
func New(cfg Config, log logger.Logger) (*Log, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	if cfg.OperationTimeout > 0 {
		opts.ReadTimeout = cfg.OperationTimeout
		opts.WriteTimeout = cfg.OperationTimeout
	}
	opts.DialTimeout = 5 * time.Second
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: failed to ping redis: %v", transport.ErrNetwork, err)
	}

	l := NewFromClient(client, cfg, log)
	l.log.Info("redis transport connected")
	return l, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client, cfg Config, log logger.Logger) *Log {
	if cfg.Channel == "" {
		cfg.Channel = "default"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "docstream"
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = transport.MaxContentLength
	}
	if log == nil {
		log = logger.Nop{}
	}
	base := cfg.KeyPrefix + ":" + cfg.Channel
	return &Log{
		client: client,
		cfg:    cfg,
		log:    log.With("transport", "redis", "channel", cfg.Channel),
		keys: keys{
			seq:      base + ":seq",
			messages: base + ":messages",
			order:    base + ":order",
		},
	}
}

// Create appends a message under the next sequence number.
func (l *Log) Create(ctx context.Context, content string) (transport.Message, error) {
	if err := transport.CheckContent(content, l.cfg.MaxContentLength); err != nil {
		return transport.Message{}, err
	}
	opCtx, cancel := l.withOperationTimeout(ctx)
	defer cancel()

	seq, err := l.client.Incr(opCtx, l.keys.seq).Result()
	if err != nil {
		return transport.Message{}, networkError("incr", err)
	}
	msg := transport.Message{ID: formatID(seq), Content: content, Timestamp: time.Now().UTC()}
	raw, err := json.Marshal(record{Content: msg.Content, Timestamp: msg.Timestamp})
	if err != nil {
		return transport.Message{}, err
	}
	_, err = l.client.TxPipelined(opCtx, func(p redis.Pipeliner) error {
		p.HSet(opCtx, l.keys.messages, msg.ID, raw)
		p.ZAdd(opCtx, l.keys.order, redis.Z{Score: float64(seq), Member: msg.ID})
		return nil
	})
	if err != nil {
		return transport.Message{}, networkError("create", err)
	}
	return msg, nil
}

// List returns up to limit messages newest first, older than before when set.
func (l *Log) List(ctx context.Context, limit int, before string) ([]transport.Message, error) {
	if limit <= 0 {
		limit = transport.DefaultPageSize
	}
	max := "+inf"
	if before != "" {
		seq, err := parseID(before)
		if err != nil {
			return nil, err
		}
		max = "(" + strconv.FormatInt(seq, 10)
	}
	opCtx, cancel := l.withOperationTimeout(ctx)
	defer cancel()

	ids, err := l.client.ZRevRangeByScore(opCtx, l.keys.order, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   max,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, networkError("list", err)
	}
	if len(ids) == 0 {
		return []transport.Message{}, nil
	}
	values, err := l.client.HMGet(opCtx, l.keys.messages, ids...).Result()
	if err != nil {
		return nil, networkError("list", err)
	}
	out := make([]transport.Message, 0, len(ids))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// deleted between the two reads
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			l.log.Warn("skipping unreadable record", "id", ids[i], "error", err)
			continue
		}
		out = append(out, transport.Message{ID: ids[i], Content: rec.Content, Timestamp: rec.Timestamp})
	}
	return out, nil
}

// ListAll pages through the whole log.
func (l *Log) ListAll(ctx context.Context, maxItems int) ([]transport.Message, error) {
	return transport.ListAllMessages(ctx, l, transport.DefaultPageSize, maxItems)
}

// Edit replaces a message's content, keeping its timestamp.
func (l *Log) Edit(ctx context.Context, id, content string) (transport.Message, error) {
	if err := transport.CheckContent(content, l.cfg.MaxContentLength); err != nil {
		return transport.Message{}, err
	}
	opCtx, cancel := l.withOperationTimeout(ctx)
	defer cancel()

	var msg transport.Message
	err := l.client.Watch(opCtx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(opCtx, l.keys.messages, id).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: message %s", transport.ErrNotFound, id)
		}
		if err != nil {
			return networkError("edit", err)
		}
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("decode record %s: %w", id, err)
		}
		rec.Content = content
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(opCtx, func(p redis.Pipeliner) error {
			p.HSet(opCtx, l.keys.messages, id, updated)
			return nil
		})
		if err != nil {
			return networkError("edit", err)
		}
		msg = transport.Message{ID: id, Content: rec.Content, Timestamp: rec.Timestamp}
		return nil
	}, l.keys.messages)
	if errors.Is(err, redis.TxFailedErr) {
		return transport.Message{}, networkError("edit", err)
	}
	return msg, err
}

// Delete removes a message.
func (l *Log) Delete(ctx context.Context, id string) error {
	opCtx, cancel := l.withOperationTimeout(ctx)
	defer cancel()

	var removed *redis.IntCmd
	_, err := l.client.TxPipelined(opCtx, func(p redis.Pipeliner) error {
		removed = p.HDel(opCtx, l.keys.messages, id)
		p.ZRem(opCtx, l.keys.order, id)
		return nil
	})
	if err != nil {
		return networkError("delete", err)
	}
	if removed.Val() == 0 {
		return fmt.Errorf("%w: message %s", transport.ErrNotFound, id)
	}
	return nil
}

// TestConnection pings Redis.
func (l *Log) TestConnection(ctx context.Context) bool {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := l.client.Ping(hcCtx).Err(); err != nil {
		l.log.Warn("redis ping failed", "error", err)
		return false
	}
	return true
}

// Close closes the client.
func (l *Log) Close() error {
	if err := l.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	return nil
}

func (l *Log) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.cfg.OperationTimeout)
}

func formatID(seq int64) string {
	return fmt.Sprintf("%020d", seq)
}

func parseID(id string) (int64, error) {
	seq, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid message id %q", transport.ErrNotFound, id)
	}
	return seq, nil
}

func networkError(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", transport.ErrNetwork, op, err)
}
