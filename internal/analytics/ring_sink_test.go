package analytics

import (
	"context"
	"testing"
)

func TestRingSink_RecentBeforeFull(t *testing.T) {
	s := NewRingSink(4, nil)
	s.Record(context.Background(), Event{SessionID: "a"})
	s.Record(context.Background(), Event{SessionID: "b"})

	recent := s.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].SessionID != "a" || recent[1].SessionID != "b" {
		t.Fatalf("unexpected order: %+v", recent)
	}
}

func TestRingSink_OverwritesOldestWhenFull(t *testing.T) {
	s := NewRingSink(2, nil)
	s.Record(context.Background(), Event{SessionID: "a"})
	s.Record(context.Background(), Event{SessionID: "b"})
	s.Record(context.Background(), Event{SessionID: "c"})

	recent := s.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].SessionID != "b" || recent[1].SessionID != "c" {
		t.Fatalf("expected [b c], got %+v", recent)
	}
}

func TestRingSink_RecentLimitsCount(t *testing.T) {
	s := NewRingSink(5, nil)
	for i := 0; i < 5; i++ {
		s.Record(context.Background(), Event{SessionID: "x"})
	}
	if got := s.Recent(2); len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
}

func TestRingSink_DefaultCapacity(t *testing.T) {
	s := NewRingSink(0, nil)
	if s.cap != defaultRingCapacity {
		t.Fatalf("expected default capacity %d, got %d", defaultRingCapacity, s.cap)
	}
}
