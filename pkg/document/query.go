package document

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Direction is a sort direction.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// ParseDirection accepts 1/"asc" and -1/"desc"; anything else is ascending.
func ParseDirection(v any) Direction {
	if n, ok := toNumber(v); ok {
		if n == -1 {
			return Descending
		}
		return Ascending
	}
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "desc", "descending", "-1":
			return Descending
		}
	}
	return Ascending
}

// SortField is one key of a sort specification.
type SortField struct {
	Path      string
	Direction Direction
}

// SortBy builds a sort specification from alternating path/direction pairs,
// e.g. SortBy("age", -1, "name", "asc").
func SortBy(pairs ...any) []SortField {
	out := make([]SortField, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, SortField{Path: fmt.Sprint(pairs[i]), Direction: ParseDirection(pairs[i+1])})
	}
	return out
}

// SortDocuments orders documents in place by each key in turn. The sort is
// stable, so documents equal on every key keep their relative order.
func SortDocuments(docs []Document, fields []SortField) {
	if len(fields) == 0 || len(docs) < 2 {
		return
	}
	paths := make([]Path, len(fields))
	for i, f := range fields {
		paths[i] = ParsePath(f.Path)
	}
	col := collate.New(language.Und)
	sort.SliceStable(docs, func(i, j int) bool {
		for k, f := range fields {
			a, _ := paths[k].Resolve(docs[i])
			b, _ := paths[k].Resolve(docs[j])
			// absent and null lead in either direction
			if an, bn := a == nil, b == nil; an != bn {
				return an
			}
			c := compareForSort(a, b, col)
			if c == 0 {
				continue
			}
			if f.Direction == Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Projection maps field paths to include (1) or exclude (0) flags.
type Projection map[string]int

func (p Projection) inclusive() bool {
	for _, flag := range p {
		if flag != 0 {
			return true
		}
	}
	return false
}

// Project applies a projection. With any include flag only the listed fields
// are copied, plus _id unless it is explicitly excluded. Otherwise the listed
// fields are removed from a copy of the document.
func Project(doc Document, p Projection) Document {
	if len(p) == 0 {
		return doc.Clone()
	}
	if !p.inclusive() {
		out := doc.Clone()
		for field := range p {
			ParsePath(field).Remove(out)
		}
		return out
	}
	out := Document{}
	for field, flag := range p {
		if flag == 0 {
			continue
		}
		path := ParsePath(field)
		if value, ok := path.Resolve(doc); ok {
			path.Assign(out, cloneValue(value))
		}
	}
	if flag, listed := p[IDField]; !listed || flag != 0 {
		if id, ok := doc[IDField]; ok {
			out[IDField] = id
		}
	}
	return out
}

// Paginate drops the first skip documents and keeps at most limit of the
// rest. A limit of zero or less is unbounded.
func Paginate(docs []Document, skip, limit int) []Document {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(docs) {
		return []Document{}
	}
	docs = docs[skip:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

// Query bundles the find-time options.
type Query struct {
	Filter     Filter
	Sort       []SortField
	Skip       int
	Limit      int
	Projection Projection
}

// Result is the outcome of running a query. Total counts every matching
// document before pagination.
type Result struct {
	Documents []Document
	Total     int
	HasMore   bool
}

// Run evaluates a query over a document set in the fixed order
// filter, sort, count, paginate, project. The input slice is not reordered.
func Run(docs []Document, q Query) (Result, error) {
	matcher, err := CompileFilter(q.Filter)
	if err != nil {
		return Result{}, err
	}
	matched := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if matcher.Match(doc) {
			matched = append(matched, doc)
		}
	}
	SortDocuments(matched, q.Sort)

	total := len(matched)
	skip := q.Skip
	if skip < 0 {
		skip = 0
	}
	page := Paginate(matched, skip, q.Limit)

	out := make([]Document, len(page))
	for i, doc := range page {
		out[i] = Project(doc, q.Projection)
	}
	return Result{
		Documents: out,
		Total:     total,
		HasMore:   skip+len(page) < total,
	}, nil
}
