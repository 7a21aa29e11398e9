package memory

import (
	"context"
	"errors"
	"testing"
)

func TestNotifierStoresNotifications(t *testing.T) {
	t.Parallel()

	n := New()
	id1, err := n.Notify(context.Background(), "topic-a", map[string]string{"k": "v"})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected notify result id=%s err=%v", id1, err)
	}
	id2, err := n.Notify(context.Background(), "topic-b", "payload")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected notify result id=%s err=%v", id2, err)
	}

	msgs := n.Notifications()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(msgs))
	}
	if msgs[0].Topic != "topic-a" || msgs[1].Topic != "topic-b" {
		t.Fatalf("topics not recorded correctly: %+v", msgs)
	}

	msgs[0].Topic = "modified"
	if n.Notifications()[0].Topic == "modified" {
		t.Fatal("expected Notifications() to return a copy")
	}
}

func TestNotifierFailInjectsError(t *testing.T) {
	t.Parallel()

	n := New()
	boom := errors.New("broker down")
	n.Fail(boom)

	if _, err := n.Notify(context.Background(), "topic-a", "payload"); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if len(n.Notifications()) != 0 {
		t.Fatal("failed notify must not be recorded")
	}
}
