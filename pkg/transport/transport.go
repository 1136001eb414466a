// Package transport defines the message log the document store is layered
// on: an ordered sequence of size-capped text messages that can be created,
// listed, edited and deleted by id.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxContentLength is the documented ceiling, in characters, of a message body.
const MaxContentLength = 2000

// DefaultPageSize is the page size used when listing the whole log.
const DefaultPageSize = 100

var (
	// ErrAuthentication classifies rejected credentials.
	ErrAuthentication = errors.New("transport authentication failed")
	// ErrNotFound classifies a missing message or channel.
	ErrNotFound = errors.New("transport resource not found")
	// ErrRateLimited classifies throttled requests.
	ErrRateLimited = errors.New("transport rate limited")
	// ErrNetwork classifies connectivity and server-side failures.
	ErrNetwork = errors.New("transport network error")
	// ErrContentTooLarge classifies bodies above the content ceiling.
	ErrContentTooLarge = errors.New("transport content too large")
)

// RateLimitError carries the server-advised wait before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

func transportError(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Message is one entry of the log.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Transport is the message log contract. List returns at most limit messages
// newest first, strictly older than the message id given as before (empty
// means start from the newest).
type Transport interface {
	Create(ctx context.Context, content string) (Message, error)
	List(ctx context.Context, limit int, before string) ([]Message, error)
	ListAll(ctx context.Context, maxItems int) ([]Message, error)
	Edit(ctx context.Context, id, content string) (Message, error)
	Delete(ctx context.Context, id string) error
	TestConnection(ctx context.Context) bool
	Close() error
}

// ContentLength counts characters the way the content ceiling does.
func ContentLength(content string) int {
	return utf8.RuneCountInString(content)
}

// CheckContent enforces the content ceiling.
func CheckContent(content string, max int) error {
	if max <= 0 {
		max = MaxContentLength
	}
	if n := ContentLength(content); n > max {
		return transportError(ErrContentTooLarge, "content has %d characters, limit is %d", n, max)
	}
	return nil
}

// ListAllMessages pages through a transport newest first until the log is
// exhausted or maxItems messages were collected. maxItems <= 0 means no cap.
func ListAllMessages(ctx context.Context, t Transport, pageSize, maxItems int) ([]Message, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var (
		out    []Message
		cursor string
	)
	for {
		limit := pageSize
		if maxItems > 0 && maxItems-len(out) < limit {
			limit = maxItems - len(out)
		}
		if limit <= 0 {
			return out, nil
		}
		page, err := t.List(ctx, limit, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < limit {
			return out, nil
		}
		cursor = page[len(page)-1].ID
	}
}
