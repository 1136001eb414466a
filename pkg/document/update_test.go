package document

import (
	"errors"
	"strings"
	"testing"
)

func TestApplyUpdate_ReplaceStyleMerges(t *testing.T) {
	doc := Document{"_id": "1", "name": "John", "age": 30.0}
	out, err := ApplyUpdate(doc, Update{"age": 31, "city": "Rome"})
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if out["name"] != "John" || out["age"] != 31 || out["city"] != "Rome" {
		t.Errorf("unexpected merge result: %v", out)
	}
	if doc["age"] != 30.0 {
		t.Error("input document must not be modified")
	}
}

func TestApplyUpdate_ReplaceStyleDottedKeys(t *testing.T) {
	doc := Document{"_id": "1", "address": map[string]any{"city": "A", "zip": "100"}}
	out, err := ApplyUpdate(doc, Update{"address.city": "B", "geo.lat": 1.5})
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if _, literal := out["address.city"]; literal {
		t.Fatalf("dotted key stored literally: %v", out)
	}
	address, _ := out["address"].(map[string]any)
	if address["city"] != "B" || address["zip"] != "100" {
		t.Errorf("unexpected address %v", out["address"])
	}
	if lat, _ := ParsePath("geo.lat").Resolve(out); lat != 1.5 {
		t.Errorf("expected intermediate object, got %v", out)
	}
	if city, _ := ParsePath("address.city").Resolve(doc); city != "A" {
		t.Error("input document must not be modified")
	}
}

func TestApplyUpdate_ReplaceStyleKeepsID(t *testing.T) {
	doc := Document{"_id": "1", "name": "John"}
	if _, err := ApplyUpdate(doc, Update{"_id": "1", "name": "Jim"}); err != nil {
		t.Fatalf("same _id should be accepted: %v", err)
	}
	_, err := ApplyUpdate(doc, Update{"_id": "2"})
	if !errors.Is(err, ErrImmutableID) {
		t.Fatalf("expected ErrImmutableID, got %v", err)
	}
}

func TestApplyUpdate_Operators(t *testing.T) {
	base := Document{
		"_id":   "1",
		"name":  "John",
		"age":   30.0,
		"tags":  []any{"a", "b", "a"},
		"stats": map[string]any{"visits": 2.0},
	}
	tests := []struct {
		name   string
		update Update
		check  func(t *testing.T, out Document)
	}{
		{
			name:   "$set nested creates intermediates",
			update: Update{"$set": map[string]any{"profile.city": "Milan"}},
			check: func(t *testing.T, out Document) {
				if v, _ := ParsePath("profile.city").Resolve(out); v != "Milan" {
					t.Errorf("profile.city = %v", v)
				}
			},
		},
		{
			name:   "$unset removes leaf",
			update: Update{"$unset": map[string]any{"name": 1, "missing.path": true}},
			check: func(t *testing.T, out Document) {
				if _, ok := out["name"]; ok {
					t.Error("name should be removed")
				}
			},
		},
		{
			name:   "$inc existing",
			update: Update{"$inc": map[string]any{"age": 2, "stats.visits": -1.5}},
			check: func(t *testing.T, out Document) {
				if out["age"] != 32.0 {
					t.Errorf("age = %v", out["age"])
				}
				if v, _ := ParsePath("stats.visits").Resolve(out); v != 0.5 {
					t.Errorf("stats.visits = %v", v)
				}
			},
		},
		{
			name:   "$inc absent treated as zero",
			update: Update{"$inc": map[string]any{"score": 5}},
			check: func(t *testing.T, out Document) {
				if out["score"] != 5.0 {
					t.Errorf("score = %v", out["score"])
				}
			},
		},
		{
			name:   "$push appends",
			update: Update{"$push": map[string]any{"tags": "c"}},
			check: func(t *testing.T, out Document) {
				if !Equal(out["tags"], []any{"a", "b", "a", "c"}) {
					t.Errorf("tags = %v", out["tags"])
				}
			},
		},
		{
			name:   "$push absent initializes",
			update: Update{"$push": map[string]any{"history": map[string]any{"v": 1}}},
			check: func(t *testing.T, out Document) {
				if !Equal(out["history"], []any{map[string]any{"v": 1}}) {
					t.Errorf("history = %v", out["history"])
				}
			},
		},
		{
			name:   "$push on scalar reinitializes",
			update: Update{"$push": map[string]any{"name": "x"}},
			check: func(t *testing.T, out Document) {
				if !Equal(out["name"], []any{"x"}) {
					t.Errorf("name = %v", out["name"])
				}
			},
		},
		{
			name:   "$pull removes every equal element",
			update: Update{"$pull": map[string]any{"tags": "a", "missing": "x", "name": "John"}},
			check: func(t *testing.T, out Document) {
				if !Equal(out["tags"], []any{"b"}) {
					t.Errorf("tags = %v", out["tags"])
				}
				if out["name"] != "John" {
					t.Error("$pull on non-array must be a no-op")
				}
				if _, ok := out["missing"]; ok {
					t.Error("$pull on missing path must not create it")
				}
			},
		},
		{
			name:   "$addToSet skips existing",
			update: Update{"$addToSet": map[string]any{"tags": "b", "roles": "admin"}},
			check: func(t *testing.T, out Document) {
				if !Equal(out["tags"], []any{"a", "b", "a"}) {
					t.Errorf("tags = %v", out["tags"])
				}
				if !Equal(out["roles"], []any{"admin"}) {
					t.Errorf("roles = %v", out["roles"])
				}
			},
		},
		{
			name: "$set and $inc on disjoint fields",
			update: Update{
				"$set": map[string]any{"name": "Jim"},
				"$inc": map[string]any{"age": 1},
			},
			check: func(t *testing.T, out Document) {
				if out["name"] != "Jim" || out["age"] != 31.0 {
					t.Errorf("unexpected result %v", out)
				}
			},
		},
		{
			name: "$set runs before $inc on the same field",
			update: Update{
				"$inc": map[string]any{"age": 1},
				"$set": map[string]any{"age": 10},
			},
			check: func(t *testing.T, out Document) {
				if out["age"] != 11.0 {
					t.Errorf("age = %v", out["age"])
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ApplyUpdate(base, tt.update)
			if err != nil {
				t.Fatalf("ApplyUpdate: %v", err)
			}
			tt.check(t, out)
			if !Equal(base["tags"], []any{"a", "b", "a"}) {
				t.Error("base document was modified")
			}
		})
	}
}

func TestApplyUpdate_IncOnNonNumericFails(t *testing.T) {
	_, err := ApplyUpdate(Document{"name": "John"}, Update{"$inc": map[string]any{"name": 1}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "name") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestValidateUpdate(t *testing.T) {
	tests := []struct {
		name    string
		update  Update
		wantErr error
		field   string
	}{
		{"empty", Update{}, ErrValidation, ""},
		{"mixed keys", Update{"$set": map[string]any{"a": 1}, "b": 2}, ErrValidation, ""},
		{"unknown operator", Update{"$rename": map[string]any{"a": "b"}}, ErrValidation, "$rename"},
		{"operator value not object", Update{"$set": 5}, ErrValidation, "$set"},
		{"non-numeric inc", Update{"$inc": map[string]any{"count": "1"}}, ErrValidation, "count"},
		{"bad unset marker", Update{"$unset": map[string]any{"flag": 0}}, ErrValidation, "flag"},
		{"bad unset string", Update{"$unset": map[string]any{"flag": ""}}, ErrValidation, "flag"},
		{"set _id", Update{"$set": map[string]any{"_id": "x"}}, ErrImmutableID, "_id"},
		{"unset nested _id", Update{"$unset": map[string]any{"_id.part": 1}}, ErrImmutableID, "_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpdate(tt.update)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.field != "" && !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q should mention %q", err, tt.field)
			}
		})
	}

	valid := []Update{
		{"name": "x"},
		{"$unset": map[string]any{"a": 1, "b": true}},
		{"$inc": map[string]any{"n": 2.5}},
	}
	for _, u := range valid {
		if err := ValidateUpdate(u); err != nil {
			t.Errorf("ValidateUpdate(%v) = %v", u, err)
		}
	}
}
