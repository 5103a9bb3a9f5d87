package registry

import (
	"context"
	"sync"
)

// activeIndex keeps per-employer address lists with a position side-table
// so removal swaps the tail entry into the vacated slot in O(1).
type activeIndex struct {
	slots     map[string][]string
	positions map[string]map[string]int
}

func newActiveIndex() *activeIndex {
	return &activeIndex{
		slots:     make(map[string][]string),
		positions: make(map[string]map[string]int),
	}
}

func (ix *activeIndex) append(employer, address string) {
	ix.slots[employer] = append(ix.slots[employer], address)
	if ix.positions[employer] == nil {
		ix.positions[employer] = make(map[string]int)
	}
	ix.positions[employer][address] = len(ix.slots[employer]) - 1
}

func (ix *activeIndex) remove(employer, address string) {
	pos, ok := ix.positions[employer][address]
	if !ok {
		return
	}
	slots := ix.slots[employer]
	last := len(slots) - 1
	if pos != last {
		moved := slots[last]
		slots[pos] = moved
		ix.positions[employer][moved] = pos
	}
	ix.slots[employer] = slots[:last]
	delete(ix.positions[employer], address)
	if len(ix.slots[employer]) == 0 {
		delete(ix.slots, employer)
		delete(ix.positions, employer)
	}
}

type memoryRepository struct {
	mu      sync.RWMutex
	workers map[string]Worker
	active  *activeIndex
}

// NewMemoryRepository constructs an in-memory worker repository for tests
// and development mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		workers: make(map[string]Worker),
		active:  newActiveIndex(),
	}
}

func (r *memoryRepository) Insert(_ context.Context, w Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workers[w.Address]; exists {
		return ErrWorkerExists
	}
	r.workers[w.Address] = w
	return nil
}

func (r *memoryRepository) Get(_ context.Context, address string) (Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[address]
	if !ok {
		return Worker{}, ErrWorkerNotFound
	}
	return w, nil
}

func (r *memoryRepository) Update(_ context.Context, w Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workers[w.Address]; !ok {
		return ErrWorkerNotFound
	}
	r.workers[w.Address] = w
	return nil
}

func (r *memoryRepository) AppendActive(_ context.Context, employer, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active.append(employer, address)
	return nil
}

func (r *memoryRepository) RemoveActive(_ context.Context, employer, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active.remove(employer, address)
	return nil
}

func (r *memoryRepository) ActiveByEmployer(_ context.Context, employer string, start, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slots := r.active.slots[employer]
	if start < 0 || start >= len(slots) || limit <= 0 {
		return []string{}, nil
	}
	end := start + limit
	if end > len(slots) {
		end = len(slots)
	}
	out := make([]string, end-start)
	copy(out, slots[start:end])
	return out, nil
}

func (r *memoryRepository) CountActive(_ context.Context, employer string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active.slots[employer]), nil
}
