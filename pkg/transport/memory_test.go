package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestMemory_CreateListOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	for i := 0; i < 5; i++ {
		if _, err := m.Create(ctx, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	page, err := m.List(ctx, 2, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 || page[0].Content != "m4" || page[1].Content != "m3" {
		t.Fatalf("first page = %+v", page)
	}
	next, err := m.List(ctx, 2, page[1].ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(next) != 2 || next[0].Content != "m2" || next[1].Content != "m1" {
		t.Fatalf("second page = %+v", next)
	}
}

func TestListAllMessages_PagesAndCaps(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	for i := 0; i < 7; i++ {
		_, _ = m.Create(ctx, fmt.Sprintf("m%d", i))
	}
	all, err := ListAllMessages(ctx, m, 3, 0)
	if err != nil {
		t.Fatalf("ListAllMessages: %v", err)
	}
	if len(all) != 7 || all[0].Content != "m6" || all[6].Content != "m0" {
		t.Fatalf("all = %+v", all)
	}
	capped, err := ListAllMessages(ctx, m, 3, 4)
	if err != nil {
		t.Fatalf("ListAllMessages: %v", err)
	}
	if len(capped) != 4 || capped[3].Content != "m3" {
		t.Fatalf("capped = %+v", capped)
	}
}

func TestMemory_EditDelete(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewMemory(0).WithClock(func() time.Time { return fixed })
	msg, _ := m.Create(ctx, "a")
	if !msg.Timestamp.Equal(fixed) {
		t.Errorf("timestamp = %v", msg.Timestamp)
	}
	edited, err := m.Edit(ctx, msg.ID, "b")
	if err != nil || edited.Content != "b" || edited.ID != msg.ID {
		t.Fatalf("Edit = %+v, %v", edited, err)
	}
	if err := m.Delete(ctx, msg.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after delete", m.Len())
	}
	if _, err := m.Edit(ctx, msg.ID, "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Edit missing: expected ErrNotFound, got %v", err)
	}
	if err := m.Delete(ctx, msg.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete missing: expected ErrNotFound, got %v", err)
	}
}

func TestMemory_ContentCeiling(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	if _, err := m.Create(ctx, strings.Repeat("é", MaxContentLength)); err != nil {
		t.Fatalf("content at the ceiling must be accepted: %v", err)
	}
	_, err := m.Create(ctx, strings.Repeat("x", MaxContentLength+1))
	if !errors.Is(err, ErrContentTooLarge) {
		t.Fatalf("expected ErrContentTooLarge, got %v", err)
	}
}

func TestMemory_CloseAndConnection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	if !m.TestConnection(ctx) {
		t.Fatal("expected open transport")
	}
	_ = m.Close()
	if m.TestConnection(ctx) {
		t.Error("expected closed transport to fail connection test")
	}
	if _, err := m.Create(ctx, "x"); !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork after close, got %v", err)
	}
}

func TestRateLimitError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &RateLimitError{RetryAfter: 2 * time.Second})
	if !errors.Is(err, ErrRateLimited) {
		t.Error("RateLimitError should match ErrRateLimited")
	}
	var rl *RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter != 2*time.Second {
		t.Errorf("errors.As failed: %v", rl)
	}
}
