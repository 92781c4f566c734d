package planning

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storyscape/api/internal/estimate"
)

func TestBoardApplyPersists(t *testing.T) {
	board := NewBoard(newTestSession(t, "Anchor"))
	var persisted Session
	next, err := board.Apply(context.Background(), func(s *Session) error {
		_, err := s.AddStory("b", "Search", "", testNow)
		return err
	}, func(_ context.Context, s Session) error {
		persisted = s
		return nil
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(next.Stories) != 2 || len(persisted.Stories) != 2 {
		t.Fatalf("expected 2 stories, got %d / %d", len(next.Stories), len(persisted.Stories))
	}
	if got := board.Snapshot(); len(got.Stories) != 2 {
		t.Errorf("expected board to hold 2 stories, got %d", len(got.Stories))
	}
}

func TestBoardApplyRollsBackOnPersistFailure(t *testing.T) {
	board := NewBoard(newTestSession(t, "Anchor", "Search"))
	errDown := errors.New("database down")

	_, err := board.Apply(context.Background(), func(s *Session) error {
		_, err := s.MoveStory("b", estimate.Position{X: 50, Y: 50}, testNow)
		return err
	}, func(context.Context, Session) error {
		return errDown
	})
	if !errors.Is(err, errDown) {
		t.Fatalf("expected persist error, got %v", err)
	}
	got := board.Snapshot()
	if got.Stories[1].Position != estimate.AnchorPosition {
		t.Errorf("expected rollback to origin, got %+v", got.Stories[1].Position)
	}
}

func TestBoardApplyRollsBackOnMutateFailure(t *testing.T) {
	board := NewBoard(newTestSession(t, "Anchor", "Search"))
	_, err := board.Apply(context.Background(), func(s *Session) error {
		if _, err := s.UpdateStory("b", "Renamed", "", testNow); err != nil {
			return err
		}
		return s.DeleteStory("a", testNow)
	}, nil)
	if !errors.Is(err, ErrAnchorDelete) {
		t.Fatalf("expected ErrAnchorDelete, got %v", err)
	}
	if got := board.Snapshot(); got.Stories[1].Title != "Search" {
		t.Errorf("expected partial mutation rolled back, got %q", got.Stories[1].Title)
	}
}

func TestBoardSnapshotIsIsolated(t *testing.T) {
	board := NewBoard(newTestSession(t, "Anchor", "Search"))
	snap := board.Snapshot()
	snap.Stories[1].Title = "changed"
	if got := board.Snapshot(); got.Stories[1].Title != "Search" {
		t.Errorf("snapshot leaked into board state: %q", got.Stories[1].Title)
	}
}

func TestBoardConcurrentApply(t *testing.T) {
	board := NewBoard(newTestSession(t, "Anchor"))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = board.Apply(context.Background(), func(s *Session) error {
				_, err := s.AddStory(string(rune('b'+i)), "Story", "", testNow)
				return err
			}, nil)
		}(i)
	}
	wg.Wait()

	got := board.Snapshot()
	if len(got.Stories) != 21 {
		t.Fatalf("expected 21 stories, got %d", len(got.Stories))
	}
	if err := Validate(got); err != nil {
		t.Errorf("expected valid session, got %v", err)
	}
}
