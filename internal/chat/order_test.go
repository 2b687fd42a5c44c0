package chat

import (
	"testing"
	"time"
)

func TestSortMessages_TimestampThenID(t *testing.T) {
	base := time.Unix(1700000000, 0)
	msgs := []Message{
		{ID: "c", Timestamp: base.Add(2 * time.Second)},
		{ID: "b", Timestamp: base},
		{ID: "a", Timestamp: base},
		{ID: "d", Timestamp: base.Add(time.Second)},
	}

	SortMessages(msgs)

	want := []string{"a", "b", "d", "c"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Fatalf("position %d = %q, want %q (order %v)", i, msgs[i].ID, id, ids(msgs))
		}
	}
}

func TestIndexOf(t *testing.T) {
	msgs := []Message{{ID: "m1"}, {ID: "m2"}}
	if IndexOf(msgs, "m2") != 1 {
		t.Error("expected m2 at index 1")
	}
	if IndexOf(msgs, "missing") != -1 {
		t.Error("expected -1 for missing id")
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if (Session{ID: "s"}).Expired(now) {
		t.Error("session without expiry never expires")
	}
	if !(Session{ID: "s", ExpiresAt: &past}).Expired(now) {
		t.Error("session with past expiry should be expired")
	}
	if (Session{ID: "s", ExpiresAt: &future}).Expired(now) {
		t.Error("session with future expiry should be live")
	}
}

func ids(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
