package document

import (
	"fmt"
	"sort"
	"strings"
)

// Update is a declarative transformation of a document. It is either a plain
// field mapping (shallow merge) or an object keyed by update operators.
type Update map[string]any

// Update operators, in application order.
const (
	OpSet      = "$set"
	OpUnset    = "$unset"
	OpInc      = "$inc"
	OpPush     = "$push"
	OpPull     = "$pull"
	OpAddToSet = "$addToSet"
)

var updateOrder = []string{OpSet, OpUnset, OpInc, OpPush, OpPull, OpAddToSet}

func isUpdateOperator(key string) bool {
	for _, op := range updateOrder {
		if op == key {
			return true
		}
	}
	return false
}

// IsOperatorUpdate reports whether the update uses operator keys. Mixing
// operator and plain keys at the top level is a validation error.
func IsOperatorUpdate(u Update) (bool, error) {
	operators := 0
	for key := range u {
		if strings.HasPrefix(key, OperatorPrefix) {
			operators++
		}
	}
	if operators > 0 && operators != len(u) {
		return false, validationError("update mixes operator and plain field keys")
	}
	return operators > 0, nil
}

// ValidateUpdate checks the shape of an update specification.
func ValidateUpdate(u Update) error {
	if len(u) == 0 {
		return validationError("update specification must be a non-empty object")
	}
	operatorStyle, err := IsOperatorUpdate(u)
	if err != nil {
		return err
	}
	if !operatorStyle {
		return nil
	}
	for key, raw := range u {
		if !isUpdateOperator(key) {
			return validationError("unknown update operator %q", key)
		}
		fields, ok := asMap(raw)
		if !ok {
			return validationError("%s expects an object of field paths", key)
		}
		for field, operand := range fields {
			if field == "" {
				return validationError("%s: empty field path", key)
			}
			if ParsePath(field).Root() == IDField {
				return fmt.Errorf("%w: %s targets %q", ErrImmutableID, key, field)
			}
			switch key {
			case OpInc:
				if _, ok := toNumber(operand); !ok {
					return validationError("$inc value for field %q must be numeric, got %T", field, operand)
				}
			case OpUnset:
				if !isUnsetMarker(operand) {
					return validationError("$unset value for field %q must be 1 or true, got %v", field, operand)
				}
			}
		}
	}
	return nil
}

func isUnsetMarker(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	n, ok := toNumber(v)
	return ok && n == 1
}

// ApplyUpdate validates the update and returns a new document. The input
// document is not modified.
func ApplyUpdate(doc Document, u Update) (Document, error) {
	if err := ValidateUpdate(u); err != nil {
		return nil, err
	}
	out := doc.Clone()
	if out == nil {
		out = Document{}
	}
	operatorStyle, _ := IsOperatorUpdate(u)
	if !operatorStyle {
		// replace style behaves like $set, dotted keys included
		for _, key := range sortedKeys(u) {
			value := u[key]
			if key == IDField && !Equal(value, doc[IDField]) {
				return nil, fmt.Errorf("%w: replacement carries _id %v", ErrImmutableID, value)
			}
			ParsePath(key).Assign(out, cloneValue(value))
		}
		return out, nil
	}

	for _, op := range updateOrder {
		raw, present := u[op]
		if !present {
			continue
		}
		fields, _ := asMap(raw)
		for _, field := range sortedKeys(fields) {
			if err := applyOperator(out, op, ParsePath(field), fields[field]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func applyOperator(doc Document, op string, path Path, operand any) error {
	switch op {
	case OpSet:
		path.Assign(doc, cloneValue(operand))
	case OpUnset:
		path.Remove(doc)
	case OpInc:
		delta, _ := toNumber(operand)
		current, defined := path.Resolve(doc)
		if !defined || current == nil {
			path.Assign(doc, delta)
			return nil
		}
		n, ok := toNumber(current)
		if !ok {
			return validationError("cannot apply $inc to non-numeric field %q", path)
		}
		path.Assign(doc, n+delta)
	case OpPush:
		items, _ := existingArray(doc, path)
		path.Assign(doc, append(items, cloneValue(operand)))
	case OpPull:
		items, ok := existingArray(doc, path)
		if !ok {
			return nil
		}
		kept := make([]any, 0, len(items))
		for _, item := range items {
			if !Equal(item, operand) {
				kept = append(kept, item)
			}
		}
		path.Assign(doc, kept)
	case OpAddToSet:
		items, _ := existingArray(doc, path)
		for _, item := range items {
			if Equal(item, operand) {
				path.Assign(doc, items)
				return nil
			}
		}
		path.Assign(doc, append(items, cloneValue(operand)))
	}
	return nil
}

// existingArray returns a copy of the array at path. A missing or non-array
// value yields an empty slice and false.
func existingArray(doc Document, path Path) ([]any, bool) {
	current, defined := path.Resolve(doc)
	if !defined {
		return []any{}, false
	}
	items, ok := toSlice(current)
	if !ok {
		return []any{}, false
	}
	return append([]any{}, items...), true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
