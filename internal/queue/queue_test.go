package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	want := MarkEvent{MarkID: "m1", StudentID: "stu-1", SessionID: "sess-1"}
	if err := q.Publish(ctx, want); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	events, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	select {
	case got := <-events:
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestInMemoryPublishHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)
	_ = q.Publish(ctx, MarkEvent{MarkID: "fill"})
	cancel()
	if err := q.Publish(ctx, MarkEvent{MarkID: "blocked"}); err == nil {
		t.Error("publish into a full queue with canceled context should fail")
	}
}
