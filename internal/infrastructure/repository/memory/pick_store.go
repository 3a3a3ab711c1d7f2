package memory

import (
	"context"
	"sync"

	"github.com/ahlev/Parlaybot/internal/domain/pick"
)

type PickStore struct {
	mu    sync.RWMutex
	state pick.State
	saves int
}

func NewPickStore(seed pick.State) *PickStore {
	return &PickStore{state: seed.Clone()}
}

func (r *PickStore) Load(_ context.Context) (pick.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.Clone(), nil
}

func (r *PickStore) Save(_ context.Context, state pick.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = state.Clone()
	r.saves++
	return nil
}

// Saves reports how many times Save was called.
func (r *PickStore) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.saves
}
