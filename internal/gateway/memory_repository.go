package gateway

import (
	"context"
	"sort"
	"sync"
)

// memoryRepository is an in-memory agent store for tests and dev mode.
type memoryRepository struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewMemoryRepository builds an empty in-memory agent repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{agents: make(map[string]Agent)}
}

func (r *memoryRepository) Put(_ context.Context, agent Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := agent
	stored.Permissions = append([]string(nil), agent.Permissions...)
	r.agents[agent.Address] = stored
	return nil
}

func (r *memoryRepository) Get(_ context.Context, address string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[address]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	out := agent
	out.Permissions = append([]string(nil), agent.Permissions...)
	return out, nil
}

func (r *memoryRepository) Remove(_ context.Context, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, address)
	return nil
}

func (r *memoryRepository) List(_ context.Context) ([]Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agents := make([]Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		out := agent
		out.Permissions = append([]string(nil), agent.Permissions...)
		agents = append(agents, out)
	}
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].RegisteredAt != agents[j].RegisteredAt {
			return agents[i].RegisteredAt < agents[j].RegisteredAt
		}
		return agents[i].Address < agents[j].Address
	})
	return agents, nil
}
