package document

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genScalar() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 2),
		gen.AlphaString(),
		gen.Float64Range(-1000, 1000),
		gen.Bool(),
	).Map(func(values []interface{}) any {
		switch values[0].(int) {
		case 0:
			return values[1]
		case 1:
			return values[2]
		default:
			return values[3]
		}
	})
}

func genDocument() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(),
		genScalar(),
		genScalar(),
	).Map(func(values []interface{}) Document {
		return Document{"_id": values[0], "a": values[1], "b": map[string]any{"c": values[2]}}
	})
}

func TestProperty_EmptyFilterMatchesEverything(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("empty filter matches every document", prop.ForAll(
		func(doc Document) bool {
			ok, err := Matches(doc, Filter{})
			return err == nil && ok
		},
		genDocument(),
	))

	properties.TestingRun(t)
}

func TestProperty_NeIsNegationOfEq(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("$ne is the exact negation of $eq", prop.ForAll(
		func(doc Document, operand any, field string) bool {
			eq, err := Matches(doc, Filter{field: Filter{"$eq": operand}})
			if err != nil {
				return false
			}
			ne, err := Matches(doc, Filter{field: Filter{"$ne": operand}})
			if err != nil {
				return false
			}
			return eq != ne
		},
		genDocument(),
		genScalar(),
		gen.OneConstOf("a", "b.c", "missing", "b.missing"),
	))

	properties.TestingRun(t)
}

func TestProperty_SortDescendingReversesAscending(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("descending order is the reverse of ascending for distinct keys", prop.ForAll(
		func(values []int) bool {
			seen := map[int]bool{}
			docs := make([]Document, 0, len(values))
			for i, v := range values {
				if seen[v] {
					continue
				}
				seen[v] = true
				docs = append(docs, Document{"_id": fmt.Sprint(i), "n": float64(v)})
			}
			asc := append([]Document{}, docs...)
			desc := append([]Document{}, docs...)
			SortDocuments(asc, SortBy("n", 1))
			SortDocuments(desc, SortBy("n", -1))
			for i := range asc {
				if asc[i]["_id"] != desc[len(desc)-1-i]["_id"] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-500, 500)),
	))

	properties.TestingRun(t)
}

func TestProperty_PushThenPullRestoresArray(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("push then pull of a fresh scalar is a round trip", prop.ForAll(
		func(items []string, value string) bool {
			arr := make([]any, 0, len(items))
			for _, item := range items {
				if item != value {
					arr = append(arr, item)
				}
			}
			doc := Document{"_id": "x", "list": arr}
			pushed, err := ApplyUpdate(doc, Update{"$push": map[string]any{"list": value}})
			if err != nil {
				return false
			}
			pulled, err := ApplyUpdate(pushed, Update{"$pull": map[string]any{"list": value}})
			if err != nil {
				return false
			}
			return Equal(pulled["list"], arr)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestProperty_AddToSetIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("applying $addToSet twice equals applying it once", prop.ForAll(
		func(items []string, value string) bool {
			arr := make([]any, len(items))
			for i, item := range items {
				arr[i] = item
			}
			update := Update{"$addToSet": map[string]any{"set": value}}
			once, err := ApplyUpdate(Document{"set": arr}, update)
			if err != nil {
				return false
			}
			twice, err := ApplyUpdate(once, update)
			if err != nil {
				return false
			}
			return Equal(once["set"], twice["set"])
		},
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestProperty_PaginateWindow(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("paginate returns the contiguous window starting at skip", prop.ForAll(
		func(n, skip, limit int) bool {
			docs := make([]Document, n)
			for i := range docs {
				docs[i] = Document{"_id": fmt.Sprint(i)}
			}
			page := Paginate(docs, skip, limit)
			expected := n - skip
			if expected < 0 {
				expected = 0
			}
			if limit > 0 && limit < expected {
				expected = limit
			}
			if len(page) != expected {
				return false
			}
			for i, doc := range page {
				if doc["_id"] != fmt.Sprint(skip+i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 30),
		gen.IntRange(0, 35),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
