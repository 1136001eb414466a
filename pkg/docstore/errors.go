package docstore

import (
	"errors"
	"fmt"

	"github.com/nimburion/docstream/pkg/document"
	"github.com/nimburion/docstream/pkg/envelope"
	"github.com/nimburion/docstream/pkg/transport"
)

var (
	// ErrValidation classifies malformed documents, filters and update specifications.
	ErrValidation = document.ErrValidation
	// ErrImmutableID is returned when an update would change a document _id.
	ErrImmutableID = document.ErrImmutableID
	// ErrDocumentTooLarge is returned when serialized content exceeds the transport ceiling.
	ErrDocumentTooLarge = fmt.Errorf("%w: serialized document exceeds the content size limit", ErrValidation)
	// ErrNotFound is returned by FindOne and FindByID when nothing matches.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateID is returned when inserting an _id already present in the cache.
	ErrDuplicateID = errors.New("duplicate document _id")
	// ErrNoKey is returned when encrypted content is found and no key is configured.
	ErrNoKey = envelope.ErrNoKey
	// ErrDecryption is returned when stored content cannot be decrypted with the configured key.
	ErrDecryption = envelope.ErrDecryption
)

// StoreError wraps failures outside the store's own taxonomy, keeping the
// original message.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("docstore %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// passthrough errors reach callers unchanged.
var passthrough = []error{
	ErrValidation,
	ErrImmutableID,
	ErrNotFound,
	ErrDuplicateID,
	ErrNoKey,
	ErrDecryption,
	transport.ErrAuthentication,
	transport.ErrNetwork,
	transport.ErrRateLimited,
	transport.ErrNotFound,
	transport.ErrContentTooLarge,
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	for _, kind := range passthrough {
		if errors.Is(err, kind) {
			return err
		}
	}
	return &StoreError{Op: op, Err: err}
}

// ItemError reports the failure of one member of a batch operation.
type ItemError struct {
	Index int
	ID    string
	Err   error
}

func (e ItemError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("item %d (_id %s): %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e ItemError) Unwrap() error {
	return e.Err
}
