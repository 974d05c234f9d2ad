package memory

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestAppendCreatesLazily(t *testing.T) {
	s := NewStore(10, 5)
	s.Append("c1", Message{Role: RoleUser, Content: "hello"})

	msgs := s.Recent("c1", 10)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "hello" {
		t.Errorf("unexpected message: %+v", msgs[0])
	}
	if msgs[0].Timestamp.IsZero() {
		t.Error("timestamp should be assigned")
	}
}

func TestPerConversationCap(t *testing.T) {
	s := NewStore(10, 3)
	for i := 0; i < 10; i++ {
		s.Append("c1", Message{Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
		if got := len(s.Recent("c1", 100)); got > 3 {
			t.Fatalf("cap violated after append %d: %d messages", i, got)
		}
	}
	msgs := s.Recent("c1", 100)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	// FIFO drop keeps the newest
	if msgs[0].Content != "m7" || msgs[2].Content != "m9" {
		t.Errorf("expected m7..m9, got %s..%s", msgs[0].Content, msgs[2].Content)
	}
}

func TestGlobalLRUEviction(t *testing.T) {
	s := NewStore(2, 10)
	base := time.Now()
	s.Append("old", Message{Role: RoleUser, Content: "a", Timestamp: base})
	s.Append("mid", Message{Role: RoleUser, Content: "b", Timestamp: base.Add(time.Second)})
	s.Append("new", Message{Role: RoleUser, Content: "c", Timestamp: base.Add(2 * time.Second)})

	if got := s.Summary().Conversations; got != 2 {
		t.Fatalf("expected 2 conversations, got %d", got)
	}
	if msgs := s.Recent("old", 1); msgs != nil {
		t.Error("oldest conversation should have been evicted")
	}
	if msgs := s.Recent("new", 1); len(msgs) != 1 {
		t.Error("newest conversation should survive")
	}
}

func TestContextForBounds(t *testing.T) {
	s := NewStore(10, 20)
	for i := 0; i < 6; i++ {
		s.Append("c1", Message{Role: RoleUser, Content: strings.Repeat("x", 10)})
	}

	// message bound
	if got := len(s.ContextFor("c1", 4, 1000)); got != 4 {
		t.Errorf("expected 4 messages, got %d", got)
	}
	// char bound trims from the front, never splits
	msgs := s.ContextFor("c1", 6, 25)
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages under 25 chars, got %d", len(msgs))
	}
	for _, m := range msgs {
		if len(m.Content) != 10 {
			t.Error("messages must never be split")
		}
	}
}

func TestClearAndSummaries(t *testing.T) {
	s := NewStore(10, 10)
	s.Append("c1", Message{Role: RoleUser, Content: "a"})
	s.Append("c2", Message{Role: RoleUser, Content: "b"})

	sums := s.Summaries()
	if len(sums) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(sums))
	}
	if sums[0].LastActivityAt.Before(sums[1].LastActivityAt) {
		t.Error("summaries should be most-recent first")
	}

	if !s.Clear("c1") {
		t.Error("clear of existing conversation should return true")
	}
	if s.Clear("c1") {
		t.Error("clear of missing conversation should return false")
	}
	if got := s.Summary().Conversations; got != 1 {
		t.Errorf("expected 1 conversation after clear, got %d", got)
	}
}
