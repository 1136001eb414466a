package envelope

import (
	"encoding/json"
	"fmt"
)

// Kind classifies raw transport content.
type Kind int

const (
	// KindInvalid is content that is not a JSON object.
	KindInvalid Kind = iota
	// KindDocument is a plaintext JSON document.
	KindDocument
	// KindEncrypted is an encrypted payload.
	KindEncrypted
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindEncrypted:
		return "encrypted"
	default:
		return "invalid"
	}
}

// Content is raw transport content decoded once into either a plaintext
// document or an encrypted payload.
type Content struct {
	Kind     Kind
	Document map[string]any
	Payload  Payload
}

// IsEncrypted reports whether a decoded JSON value has the encrypted payload
// shape: the marker present and true alongside string data and iv fields.
func IsEncrypted(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	marker, ok := m["encrypted"].(bool)
	if !ok || !marker {
		return false
	}
	if _, ok := m["data"].(string); !ok {
		return false
	}
	_, ok = m["iv"].(string)
	return ok
}

// Decode classifies raw content.
func Decode(raw string) Content {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		return Content{Kind: KindInvalid}
	}
	if IsEncrypted(obj) {
		return Content{
			Kind: KindEncrypted,
			Payload: Payload{
				Encrypted: true,
				Data:      obj["data"].(string),
				IV:        obj["iv"].(string),
			},
		}
	}
	return Content{Kind: KindDocument, Document: obj}
}

// Open resolves content to a plaintext document. Encrypted content requires a
// cipher; a nil cipher yields ErrNoKey.
func Open(c Content, ciph *Cipher) (map[string]any, error) {
	switch c.Kind {
	case KindDocument:
		return c.Document, nil
	case KindEncrypted:
		if ciph == nil {
			return nil, ErrNoKey
		}
		plain, err := ciph.Decrypt(c.Payload)
		if err != nil {
			return nil, err
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(plain), &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("%w: decrypted content is not a JSON object", ErrDecryption)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("content is not a JSON object")
	}
}

// Seal serializes a document for the transport, encrypting it when a cipher
// is configured.
func Seal(doc map[string]any, ciph *Cipher) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to serialize document: %w", err)
	}
	if ciph == nil {
		return string(raw), nil
	}
	payload, err := ciph.Encrypt(string(raw))
	if err != nil {
		return "", err
	}
	wrapped, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize encrypted payload: %w", err)
	}
	return string(wrapped), nil
}
