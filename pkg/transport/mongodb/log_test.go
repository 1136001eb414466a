package mongodb

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimburion/docstream/pkg/transport"
)

func TestConfigNormalize(t *testing.T) {
	if err := (&Config{Database: "db"}).normalize(); err == nil {
		t.Error("expected error without URL")
	}
	if err := (&Config{URL: "mongodb://localhost"}).normalize(); err == nil {
		t.Error("expected error without database")
	}
	cfg := Config{URL: "mongodb://localhost", Database: "db"}
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Collection != "messages" || cfg.OperationTimeout != 5*time.Second || cfg.MaxContentLength != transport.MaxContentLength {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestParseID(t *testing.T) {
	oid := primitive.NewObjectID()
	got, err := parseID(oid.Hex())
	if err != nil || got != oid {
		t.Fatalf("parseID: %v %v", got, err)
	}
	if _, err := parseID("not-an-object-id"); !errors.Is(err, transport.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMessageDocBSON(t *testing.T) {
	in := messageDoc{ID: primitive.NewObjectID(), Content: `{"_id":"a"}`, CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	raw, err := bson.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out messageDoc
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	msg := out.message()
	if msg.ID != in.ID.Hex() || msg.Content != in.Content || !msg.Timestamp.Equal(in.CreatedAt) {
		t.Errorf("unexpected message %+v", msg)
	}
}
