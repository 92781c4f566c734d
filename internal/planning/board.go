package planning

import (
	"context"
	"sync"
)

// Board is the in-memory state of one planning session. Commands applied
// through a board are serialized.
type Board struct {
	mu    sync.Mutex
	state Session
}

func NewBoard(s Session) *Board {
	return &Board{state: s.Clone()}
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Clone()
}

// Reset replaces the state, typically with a fresh copy from the store.
func (b *Board) Reset(s Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s.Clone()
}

// Apply runs mutate against the state and then persist against the result.
// The state is restored to its previous value if either step fails, so a
// failed command is never observable.
func (b *Board) Apply(ctx context.Context, mutate func(*Session) error, persist func(context.Context, Session) error) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := b.state.Clone()
	if err := mutate(&b.state); err != nil {
		b.state = snapshot
		return Session{}, err
	}
	if persist != nil {
		if err := persist(ctx, b.state.Clone()); err != nil {
			b.state = snapshot
			return Session{}, err
		}
	}
	return b.state.Clone(), nil
}
