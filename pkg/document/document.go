// Package document implements the in-memory query engine of the store:
// filter matching, update operators, and sort/projection/pagination over
// JSON-shaped documents.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Reserved field names.
const (
	// IDField holds the immutable document identifier.
	IDField = "_id"
	// MessageIDField holds the transport message backing the document. Store managed.
	MessageIDField = "_messageId"
	// CreatedAtField holds the transport timestamp of the backing message. Store managed.
	CreatedAtField = "_createdAt"
)

// OperatorPrefix marks filter and update operator keys.
const OperatorPrefix = "$"

var (
	// ErrValidation classifies malformed filters, update specifications and documents.
	ErrValidation = errors.New("validation error")
	// ErrImmutableID is returned when an update would change a document identifier.
	ErrImmutableID = errors.New("document _id cannot be modified")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Document is an unordered mapping from field name to a JSON-compatible value.
type Document map[string]any

// ID returns the document identifier when it is a non-empty string.
func (d Document) ID() (string, bool) {
	id, ok := d[IDField].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

// StripManaged returns a copy without store-managed attributes.
func (d Document) StripManaged() Document {
	out := make(Document, len(d))
	for k, v := range d {
		if k == MessageIDField || k == CreatedAtField {
			continue
		}
		out[k] = v
	}
	return out
}

// Normalize round-trips a document through JSON so numeric and nested values
// share the representation produced by decoding stored content.
func Normalize(d Document) (Document, error) {
	raw, err := json.Marshal(map[string]any(d))
	if err != nil {
		return nil, validationError("document is not JSON serializable: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, validationError("document is not a JSON object: %v", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return Document(out), nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case Document:
		return cloneValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// asMap returns the underlying map for nested document values.
func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Document:
		return map[string]any(t), true
	case Filter:
		return map[string]any(t), true
	default:
		return nil, false
	}
}
