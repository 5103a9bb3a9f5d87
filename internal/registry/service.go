package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/quipay/quipay/internal/clock"
	"github.com/quipay/quipay/internal/notification"
	"github.com/quipay/quipay/internal/types"
)

// Service is the worker directory. Profiles are registered by the
// employer (or the admin); each employer's active workers are tracked in
// a paginated index that deactivation removes from and reactivation
// re-appends to.
type Service struct {
	mu       sync.Mutex
	repo     Repository
	clock    clock.Clock
	notifier notification.Notifier

	admin string
}

// NewService builds a worker directory service.
func NewService(repo Repository, clk clock.Clock, notifier notification.Notifier, admin string) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, clock: clk, notifier: notifier, admin: admin}
}

// RegisterInput captures the data required to register a worker.
type RegisterInput struct {
	Address  string
	Employer string
	Name     string
	Role     string
}

// Register creates a worker profile and appends it to the employer's
// active index. Only the employer or the admin may register.
func (s *Service) Register(ctx context.Context, caller string, input RegisterInput) (Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.Address == "" || input.Employer == "" {
		return Worker{}, fmt.Errorf("worker address and employer are required")
	}
	if caller != input.Employer && caller != s.admin {
		return Worker{}, types.ErrUnauthorized
	}

	w := Worker{
		Address:   input.Address,
		Employer:  input.Employer,
		Name:      input.Name,
		Role:      input.Role,
		Active:    true,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, w); err != nil {
		return Worker{}, err
	}
	if err := s.repo.AppendActive(ctx, w.Employer, w.Address); err != nil {
		return Worker{}, err
	}

	s.notify(ctx, notification.KindWorkerRegistered, w.Employer,
		fmt.Sprintf("Worker %s registered for employer %s", w.Address, w.Employer))
	return w, nil
}

// UpdateProfile lets a worker (or the admin) change the profile name and
// role. Employer and active status are not touched through this path.
func (s *Service) UpdateProfile(ctx context.Context, caller, address, name, role string) (Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.repo.Get(ctx, address)
	if err != nil {
		return Worker{}, err
	}
	if caller != w.Address && caller != s.admin {
		return Worker{}, types.ErrUnauthorized
	}

	w.Name = name
	w.Role = role
	if err := s.repo.Update(ctx, w); err != nil {
		return Worker{}, err
	}
	return w, nil
}

// Deactivate removes the worker from the employer's active index. A
// worker already inactive is a no-op.
func (s *Service) Deactivate(ctx context.Context, caller, address string) error {
	return s.setActive(ctx, caller, address, false)
}

// Reactivate re-appends the worker to the employer's active index. A
// worker already active is a no-op.
func (s *Service) Reactivate(ctx context.Context, caller, address string) error {
	return s.setActive(ctx, caller, address, true)
}

func (s *Service) setActive(ctx context.Context, caller, address string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.repo.Get(ctx, address)
	if err != nil {
		return err
	}
	if caller != w.Employer && caller != s.admin {
		return types.ErrUnauthorized
	}
	if w.Active == active {
		return nil
	}

	w.Active = active
	if err := s.repo.Update(ctx, w); err != nil {
		return err
	}
	if active {
		return s.repo.AppendActive(ctx, w.Employer, w.Address)
	}
	return s.repo.RemoveActive(ctx, w.Employer, w.Address)
}

// Get returns the worker or nil when the address is unknown.
func (s *Service) Get(ctx context.Context, address string) (*Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.repo.Get(ctx, address)
	if err != nil {
		if errors.Is(err, ErrWorkerNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// IsRegistered reports whether the address has a profile.
func (s *Service) IsRegistered(ctx context.Context, address string) (bool, error) {
	w, err := s.Get(ctx, address)
	if err != nil {
		return false, err
	}
	return w != nil, nil
}

// ListByEmployer returns one page of the employer's active workers. A
// start past the end, or an unknown employer, yields an empty page.
func (s *Service) ListByEmployer(ctx context.Context, employer string, start, limit int) ([]Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addresses, err := s.repo.ActiveByEmployer(ctx, employer, start, limit)
	if err != nil {
		return nil, err
	}
	workers := make([]Worker, 0, len(addresses))
	for _, address := range addresses {
		w, err := s.repo.Get(ctx, address)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, nil
}

// CountByEmployer returns the employer's active-worker count.
func (s *Service) CountByEmployer(ctx context.Context, employer string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.CountActive(ctx, employer)
}

func (s *Service) notify(ctx context.Context, kind, destination, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: destination, Body: body})
}
