package docstore

import (
	"testing"
	"time"

	"github.com/nimburion/docstream/pkg/document"
)

func TestSnapshot_CopyOnWrite(t *testing.T) {
	base := newSnapshot(time.Unix(0, 0), 2)
	base.put(document.Document{"_id": "a", "v": 1})
	base.put(document.Document{"_id": "b", "v": 1})

	next := base.with(document.Document{"_id": "a", "v": 2})
	if doc, _ := base.get("a"); doc["v"] != 1 {
		t.Errorf("with mutated the source snapshot: %v", doc)
	}
	if doc, _ := next.get("a"); doc["v"] != 2 {
		t.Errorf("expected replaced document, got %v", doc)
	}
	if len(next.docs) != 2 || next.docs[0]["_id"] != "a" {
		t.Errorf("replacement must keep position, got %v", next.docs)
	}

	removed := next.without("a")
	if _, ok := removed.get("a"); ok {
		t.Error("expected a to be removed")
	}
	if doc, ok := removed.get("b"); !ok || doc["_id"] != "b" {
		t.Errorf("index not rebuilt after removal: %v", removed.index)
	}
	if len(next.docs) != 2 {
		t.Error("without mutated the source snapshot")
	}
	if removed.without("missing") != removed {
		t.Error("removing an unknown id should return the same snapshot")
	}
}

func TestCache_Staleness(t *testing.T) {
	now := time.Unix(1000, 0)
	c := &cache{ttl: time.Second, now: func() time.Time { return now }}

	if _, ok := c.fresh(); ok {
		t.Fatal("empty cache cannot be fresh")
	}
	if n := c.update(func(s *snapshot) *snapshot { return s }); n != 0 {
		t.Errorf("update on empty cache should be a no-op, got %d", n)
	}
	c.replace(newSnapshot(now, 0))
	if _, ok := c.fresh(); !ok {
		t.Error("expected fresh snapshot")
	}
	now = now.Add(2 * time.Second)
	if _, ok := c.fresh(); ok {
		t.Error("expected stale snapshot")
	}
	if _, ok := c.loaded(); !ok {
		t.Error("stale snapshot must still be loaded")
	}

	st := c.stats()
	if st.Hits != 1 || st.Misses != 2 || st.Reloads != 1 || st.Age != 2*time.Second || !st.Stale {
		t.Errorf("unexpected stats %+v", st)
	}

	c.setTTL(0)
	c.replace(newSnapshot(now, 0))
	if _, ok := c.fresh(); ok {
		t.Error("zero ttl disables caching")
	}
}
