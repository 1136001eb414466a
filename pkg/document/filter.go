package document

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Filter is a declarative predicate: field paths map to literals or operator
// objects, and the logical keys $and, $or and $not compose sub-filters.
type Filter map[string]any

// Operator enumerates the supported field operators.
type Operator int

const (
	OpEq Operator = iota + 1
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNin
	OpExists
	OpRegex
)

var operatorNames = map[string]Operator{
	"$eq":     OpEq,
	"$ne":     OpNe,
	"$gt":     OpGt,
	"$gte":    OpGte,
	"$lt":     OpLt,
	"$lte":    OpLte,
	"$in":     OpIn,
	"$nin":    OpNin,
	"$exists": OpExists,
	"$regex":  OpRegex,
}

// String returns the operator keyword.
func (o Operator) String() string {
	for name, op := range operatorNames {
		if op == o {
			return name
		}
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

const (
	keyAnd     = "$and"
	keyOr      = "$or"
	keyNot     = "$not"
	keyOptions = "$options"
)

// Matcher is a compiled filter.
type Matcher struct {
	root node
}

type node interface {
	match(doc map[string]any) bool
}

type allOf []node

func (n allOf) match(doc map[string]any) bool {
	for _, child := range n {
		if !child.match(doc) {
			return false
		}
	}
	return true
}

type anyOf []node

func (n anyOf) match(doc map[string]any) bool {
	for _, child := range n {
		if child.match(doc) {
			return true
		}
	}
	return false
}

type noneOf struct{ inner node }

func (n noneOf) match(doc map[string]any) bool {
	return !n.inner.match(doc)
}

type fieldNode struct {
	path  Path
	conds []condition
}

func (n fieldNode) match(doc map[string]any) bool {
	value, defined := n.path.Resolve(doc)
	for _, c := range n.conds {
		if !c.eval(value, defined) {
			return false
		}
	}
	return true
}

type condition struct {
	op      Operator
	operand any
	set     []any
	exists  bool
	pattern *regexp.Regexp
}

func (c condition) eval(value any, defined bool) bool {
	switch c.op {
	case OpEq:
		return equalsResolved(value, defined, c.operand)
	case OpNe:
		return !equalsResolved(value, defined, c.operand)
	case OpGt, OpGte, OpLt, OpLte:
		if !defined {
			return false
		}
		cmp, ok := compareOrdered(value, c.operand)
		if !ok {
			return false
		}
		switch c.op {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case OpIn:
		return inSet(value, defined, c.set)
	case OpNin:
		return !inSet(value, defined, c.set)
	case OpExists:
		return defined == c.exists
	case OpRegex:
		if !defined || value == nil {
			return false
		}
		return c.pattern.MatchString(stringForm(value))
	default:
		return false
	}
}

// An undefined value compares equal to null only.
func equalsResolved(value any, defined bool, operand any) bool {
	if !defined {
		return operand == nil
	}
	return Equal(value, operand)
}

func inSet(value any, defined bool, set []any) bool {
	for _, candidate := range set {
		if equalsResolved(value, defined, candidate) {
			return true
		}
	}
	return false
}

// stringForm is the text $regex is tested against. Arrays join their
// elements with commas; documents use their JSON encoding.
func stringForm(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "null"
	case map[string]any:
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(raw)
	}
	if items, ok := toSlice(v); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			if item != nil {
				parts[i] = stringForm(item)
			}
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

// Match reports whether the document satisfies the compiled filter.
func (m *Matcher) Match(doc map[string]any) bool {
	if m == nil || m.root == nil {
		return true
	}
	return m.root.match(doc)
}

// CompileFilter validates a filter and compiles it. Unknown operators are
// rejected.
func CompileFilter(f Filter) (*Matcher, error) {
	root, err := compileFilter(map[string]any(f), "")
	if err != nil {
		return nil, err
	}
	return &Matcher{root: root}, nil
}

// Matches compiles the filter and evaluates it against one document.
func Matches(doc Document, f Filter) (bool, error) {
	m, err := CompileFilter(f)
	if err != nil {
		return false, err
	}
	return m.Match(doc), nil
}

func compileFilter(f map[string]any, where string) (node, error) {
	nodes := make(allOf, 0, len(f))
	for key, raw := range f {
		switch {
		case key == keyAnd || key == keyOr:
			subs, err := compileFilterList(key, raw, where)
			if err != nil {
				return nil, err
			}
			if key == keyAnd {
				nodes = append(nodes, allOf(subs))
			} else {
				nodes = append(nodes, anyOf(subs))
			}
		case key == keyNot:
			sub, ok := asMap(raw)
			if !ok {
				return nil, validationError("%s%s expects a filter object", where, keyNot)
			}
			inner, err := compileFilter(sub, where+keyNot+".")
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, noneOf{inner: inner})
		case strings.HasPrefix(key, OperatorPrefix):
			return nil, validationError("unknown top-level operator %q", where+key)
		default:
			field, err := compileField(key, raw)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, field)
		}
	}
	return nodes, nil
}

func compileFilterList(key string, raw any, where string) ([]node, error) {
	items, ok := toSlice(raw)
	if !ok {
		return nil, validationError("%s%s expects an array of filters", where, key)
	}
	out := make([]node, 0, len(items))
	for i, item := range items {
		sub, ok := asMap(item)
		if !ok {
			return nil, validationError("%s%s[%d] is not a filter object", where, key, i)
		}
		compiled, err := compileFilter(sub, fmt.Sprintf("%s%s[%d].", where, key, i))
		if err != nil {
			return nil, err
		}
		out = append(out, compiled)
	}
	return out, nil
}

func compileField(key string, raw any) (node, error) {
	n := fieldNode{path: ParsePath(key)}
	if re, ok := raw.(*regexp.Regexp); ok {
		n.conds = []condition{{op: OpRegex, pattern: re}}
		return n, nil
	}
	ops, isOperatorObject, err := operatorObject(key, raw)
	if err != nil {
		return nil, err
	}
	if !isOperatorObject {
		n.conds = []condition{{op: OpEq, operand: raw}}
		return n, nil
	}
	if _, hasOptions := ops[keyOptions]; hasOptions {
		if _, hasRegex := ops["$regex"]; !hasRegex {
			return nil, validationError("field %q: %s requires $regex", key, keyOptions)
		}
	}
	for name, operand := range ops {
		if name == keyOptions {
			continue
		}
		op, known := operatorNames[name]
		if !known {
			return nil, validationError("field %q: unknown operator %q", key, name)
		}
		cond, err := compileCondition(key, op, operand, ops[keyOptions])
		if err != nil {
			return nil, err
		}
		n.conds = append(n.conds, cond)
	}
	return n, nil
}

// operatorObject reports whether raw is an object whose keys are all
// operators. Mixing operator and plain keys is rejected.
func operatorObject(key string, raw any) (map[string]any, bool, error) {
	m, ok := asMap(raw)
	if !ok || len(m) == 0 {
		return nil, false, nil
	}
	operators := 0
	for k := range m {
		if strings.HasPrefix(k, OperatorPrefix) {
			operators++
		}
	}
	switch operators {
	case 0:
		return nil, false, nil
	case len(m):
		return m, true, nil
	default:
		return nil, false, validationError("field %q mixes operators and plain keys", key)
	}
}

func compileCondition(field string, op Operator, operand, options any) (condition, error) {
	c := condition{op: op, operand: operand}
	switch op {
	case OpIn, OpNin:
		set, ok := toSlice(operand)
		if !ok {
			return c, validationError("field %q: %s expects an array", field, op)
		}
		c.set = set
	case OpExists:
		want, ok := truthy(operand)
		if !ok {
			return c, validationError("field %q: $exists expects a boolean", field)
		}
		c.exists = want
	case OpRegex:
		re, err := compileRegex(operand, options)
		if err != nil {
			return c, validationError("field %q: %v", field, err)
		}
		c.pattern = re
	}
	return c, nil
}

func truthy(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	if n, ok := toNumber(v); ok {
		return n != 0, true
	}
	return false, false
}

func compileRegex(pattern, options any) (*regexp.Regexp, error) {
	if re, ok := pattern.(*regexp.Regexp); ok {
		if options == nil {
			return re, nil
		}
		pattern = re.String()
	}
	expr, ok := pattern.(string)
	if !ok {
		return nil, fmt.Errorf("$regex expects a string pattern")
	}
	flags := ""
	if options != nil {
		opts, ok := options.(string)
		if !ok {
			return nil, fmt.Errorf("$options expects a string")
		}
		for _, r := range opts {
			switch r {
			case 'i', 'm', 's':
				if !strings.ContainsRune(flags, r) {
					flags += string(r)
				}
			default:
				return nil, fmt.Errorf("unsupported $options flag %q", r)
			}
		}
	}
	if flags != "" {
		expr = "(?" + flags + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid $regex: %v", err)
	}
	return re, nil
}
