package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/quipay/quipay/internal/types"
)

// ownerIndex holds per-owner id lists with a position side-table so
// removal swaps the tail entry into the vacated slot in O(1).
type ownerIndex struct {
	slots     map[string][]int64
	positions map[string]map[int64]int
}

func newOwnerIndex() *ownerIndex {
	return &ownerIndex{
		slots:     make(map[string][]int64),
		positions: make(map[string]map[int64]int),
	}
}

func (ix *ownerIndex) append(owner string, id int64) {
	ix.slots[owner] = append(ix.slots[owner], id)
	if ix.positions[owner] == nil {
		ix.positions[owner] = make(map[int64]int)
	}
	ix.positions[owner][id] = len(ix.slots[owner]) - 1
}

func (ix *ownerIndex) remove(owner string, id int64) {
	pos, ok := ix.positions[owner][id]
	if !ok {
		return
	}
	slots := ix.slots[owner]
	last := len(slots) - 1
	if pos != last {
		moved := slots[last]
		slots[pos] = moved
		ix.positions[owner][moved] = pos
	}
	ix.slots[owner] = slots[:last]
	delete(ix.positions[owner], id)
	if len(ix.slots[owner]) == 0 {
		delete(ix.slots, owner)
		delete(ix.positions, owner)
	}
}

func (ix *ownerIndex) ids(owner string) []int64 {
	slots := ix.slots[owner]
	out := make([]int64, len(slots))
	copy(out, slots)
	return out
}

type memoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	streams map[int64]Stream
	byPayer *ownerIndex
	byPayee *ownerIndex
}

// NewMemoryRepository constructs an in-memory repository for tests and
// development mode. Identifiers start at 1.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		streams: make(map[int64]Stream),
		byPayer: newOwnerIndex(),
		byPayee: newOwnerIndex(),
	}
}

func (r *memoryRepository) NextID(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID, nil
}

func (r *memoryRepository) Insert(_ context.Context, s Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.streams[s.ID]; exists {
		return fmt.Errorf("stream %d exists", s.ID)
	}
	r.streams[s.ID] = s
	r.byPayer.append(s.Payer, s.ID)
	r.byPayee.append(s.Payee, s.ID)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id int64) (Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[id]
	if !ok {
		return Stream{}, types.ErrStreamNotFound
	}
	return s, nil
}

func (r *memoryRepository) Update(_ context.Context, s Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.streams[s.ID]; !ok {
		return types.ErrStreamNotFound
	}
	r.streams[s.ID] = s
	return nil
}

func (r *memoryRepository) Remove(_ context.Context, s Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.streams[s.ID]
	if !ok {
		return types.ErrStreamNotFound
	}
	delete(r.streams, s.ID)
	r.byPayer.remove(stored.Payer, s.ID)
	r.byPayee.remove(stored.Payee, s.ID)
	return nil
}

func (r *memoryRepository) IDsByPayer(_ context.Context, payer string) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byPayer.ids(payer), nil
}

func (r *memoryRepository) IDsByPayee(_ context.Context, payee string) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byPayee.ids(payee), nil
}
