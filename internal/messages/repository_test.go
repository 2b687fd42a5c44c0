package messages

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
)

func TestRepositoryValidatesBeforeFetching(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		limit   int
	}{
		{"empty channel", "", 10},
		{"zero limit", "c1", 0},
		{"negative limit", "c1", -5},
		{"limit too large", "c1", 101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeMessages()
			repo := NewRepository(svc)
			_, err := repo.GetMessages(context.Background(), "s", tt.channel, tt.limit, "", false)
			if !chat.IsKind(err, chat.InvalidArgument) {
				t.Errorf("err = %v, want InvalidArgument", err)
			}
			if svc.queryCount() != 0 {
				t.Error("service called despite invalid arguments")
			}
		})
	}
}

func TestRepositorySortsAndComputesCursor(t *testing.T) {
	svc := newFakeMessages()
	svc.history["c1"] = history("c1", 25)
	repo := NewRepository(svc)

	b, err := repo.GetMessages(context.Background(), "s", "c1", 10, "m020", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Messages) != 10 || !b.HasMore || b.OldestID != "m010" {
		t.Fatalf("batch = count %d more %v oldest %q", len(b.Messages), b.HasMore, b.OldestID)
	}
	assertSortedUnique(t, b.Messages)
	if b.Messages[9].ID != "m019" {
		t.Errorf("newest = %s, want m019", b.Messages[9].ID)
	}

	svc.mu.Lock()
	q := svc.queries[0]
	svc.mu.Unlock()
	if q.SessionID != "s" || q.BeforeID != "m020" || !q.ForceRefresh || q.Limit != 10 {
		t.Errorf("query = %+v", q)
	}
}

func TestRepositoryLimitBoundary(t *testing.T) {
	svc := newFakeMessages()
	svc.history["c1"] = history("c1", 150)
	repo := NewRepository(svc)
	for _, limit := range []int{1, MaxPageSize} {
		b, err := repo.GetMessages(context.Background(), "s", "c1", limit, "", false)
		if err != nil || len(b.Messages) != limit {
			t.Errorf("limit %d: count=%d err=%v", limit, len(b.Messages), err)
		}
	}
}
