package game

import (
	"context"
	"testing"
)

func TestMemoryPatternStore(t *testing.T) {
	ctx := context.Background()

	t.Run("fifo order per game type", func(t *testing.T) {
		s := NewMemoryPatternStore()
		if err := s.Append(ctx, GameTypeAviator, []string{"2.50", "10.00"}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if err := s.Append(ctx, GameTypeDragonTiger, []string{"tiger"}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		val, ok, err := s.PeekNext(ctx, GameTypeAviator)
		if err != nil || !ok || val != "2.50" {
			t.Fatalf("PeekNext() = %q, %v, %v; want 2.50", val, ok, err)
		}
		// Peek does not consume.
		if val, _, _ := s.PeekNext(ctx, GameTypeAviator); val != "2.50" {
			t.Fatalf("second PeekNext() = %q, want 2.50", val)
		}

		if err := s.PopNext(ctx, GameTypeAviator); err != nil {
			t.Fatalf("PopNext() error = %v", err)
		}
		if val, _, _ := s.PeekNext(ctx, GameTypeAviator); val != "10.00" {
			t.Errorf("PeekNext() after pop = %q, want 10.00", val)
		}

		// The other game type's queue is untouched.
		if val, _, _ := s.PeekNext(ctx, GameTypeDragonTiger); val != "tiger" {
			t.Errorf("dragontiger PeekNext() = %q, want tiger", val)
		}
	})

	t.Run("empty queue", func(t *testing.T) {
		s := NewMemoryPatternStore()
		if _, ok, err := s.PeekNext(ctx, GameTypeAviator); ok || err != nil {
			t.Errorf("PeekNext() on empty = ok=%v err=%v", ok, err)
		}
		if err := s.PopNext(ctx, GameTypeAviator); err != nil {
			t.Errorf("PopNext() on empty = %v, want nil", err)
		}
	})

	t.Run("clear drops the queue", func(t *testing.T) {
		s := NewMemoryPatternStore()
		s.Append(ctx, GameTypeAviator, []string{"3.00"})
		if err := s.Clear(ctx, GameTypeAviator); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if _, ok, _ := s.PeekNext(ctx, GameTypeAviator); ok {
			t.Error("entry survived Clear()")
		}
	})
}
