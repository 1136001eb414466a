package document

import "strings"

// Path is a parsed dot-separated field path. Array index segments are not
// supported; every segment names a key of a nested document.
type Path []string

// ParsePath splits a dotted field path into segments.
func ParsePath(raw string) Path {
	if raw == "" {
		return nil
	}
	return Path(strings.Split(raw, "."))
}

// String renders the path in dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Root returns the first segment.
func (p Path) Root() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Resolve walks the document one segment at a time. A missing segment, or a
// non-document value in the middle of the path, resolves to undefined.
func (p Path) Resolve(doc map[string]any) (any, bool) {
	if len(p) == 0 || doc == nil {
		return nil, false
	}
	current := doc
	for i, segment := range p {
		value, ok := current[segment]
		if !ok {
			return nil, false
		}
		if i == len(p)-1 {
			return value, true
		}
		next, isMap := asMap(value)
		if !isMap {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// Assign writes value at the path, creating intermediate documents as needed.
// An intermediate non-document value is replaced by a new document.
func (p Path) Assign(doc map[string]any, value any) {
	if len(p) == 0 || doc == nil {
		return
	}
	current := doc
	for _, segment := range p[:len(p)-1] {
		next, ok := asMap(current[segment])
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	current[p[len(p)-1]] = value
}

// Remove deletes the leaf key. It reports whether anything was removed; a
// missing intermediate segment is a no-op.
func (p Path) Remove(doc map[string]any) bool {
	if len(p) == 0 || doc == nil {
		return false
	}
	current := doc
	for _, segment := range p[:len(p)-1] {
		next, ok := asMap(current[segment])
		if !ok {
			return false
		}
		current = next
	}
	leaf := p[len(p)-1]
	if _, ok := current[leaf]; !ok {
		return false
	}
	delete(current, leaf)
	return true
}
