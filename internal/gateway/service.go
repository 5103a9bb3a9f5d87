package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/quipay/quipay/internal/clock"
	"github.com/quipay/quipay/internal/notification"
	"github.com/quipay/quipay/internal/stream"
	"github.com/quipay/quipay/internal/types"
)

// ErrAgentExists is returned when registering an address twice.
var ErrAgentExists = errors.New("agent already registered")

// Service registers automation agents and executes the operations they are
// delegated. ExecutePayroll is the only capability that moves money, and it
// withdraws on the payee's behalf: the engine pays the stream's payee
// regardless of which agent drives it, so delegation cannot redirect funds.
type Service struct {
	mu       sync.Mutex
	repo     Repository
	streams  *stream.Service
	clock    clock.Clock
	notifier notification.Notifier

	admin string
}

// NewService builds an agent gateway bound to the stream engine.
func NewService(repo Repository, streams *stream.Service, clk clock.Clock, notifier notification.Notifier, admin string) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, streams: streams, clock: clk, notifier: notifier, admin: admin}
}

// Register grants an agent address a set of permissions. Admin only.
func (s *Service) Register(ctx context.Context, caller, address string, permissions []string) (Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return Agent{}, types.ErrUnauthorized
	}
	if address == "" {
		return Agent{}, fmt.Errorf("agent address is required")
	}
	if len(permissions) == 0 {
		return Agent{}, fmt.Errorf("at least one permission is required")
	}
	for _, p := range permissions {
		if !ValidPermission(p) {
			return Agent{}, fmt.Errorf("unknown permission %q", p)
		}
	}
	if _, err := s.repo.Get(ctx, address); err == nil {
		return Agent{}, ErrAgentExists
	} else if !errors.Is(err, ErrAgentNotFound) {
		return Agent{}, err
	}

	agent := Agent{
		Address:      address,
		Permissions:  permissions,
		RegisteredAt: s.clock.Now(),
	}
	if err := s.repo.Put(ctx, agent); err != nil {
		return Agent{}, err
	}

	s.notify(ctx, notification.KindAgentRegistered, address,
		fmt.Sprintf("Agent %s registered with permissions %v", address, permissions))
	return agent, nil
}

// Revoke removes an agent and all its permissions. Admin only; revoking an
// unknown address is an idempotent no-op.
func (s *Service) Revoke(ctx context.Context, caller, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return types.ErrUnauthorized
	}
	if _, err := s.repo.Get(ctx, address); err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return nil
		}
		return err
	}
	if err := s.repo.Remove(ctx, address); err != nil {
		return err
	}

	s.notify(ctx, notification.KindAgentRevoked, address,
		fmt.Sprintf("Agent %s revoked", address))
	return nil
}

// IsAuthorized reports whether the agent holds the named permission.
// Unknown agents hold nothing.
func (s *Service) IsAuthorized(ctx context.Context, address, permission string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, err := s.repo.Get(ctx, address)
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return false, nil
		}
		return false, err
	}
	return agent.HasPermission(permission), nil
}

// Get returns the agent or nil when the address is unknown.
func (s *Service) Get(ctx context.Context, address string) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, err := s.repo.Get(ctx, address)
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// List returns all registered agents in registration order.
func (s *Service) List(ctx context.Context) ([]Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.List(ctx)
}

// ExecutePayroll withdraws the given streams on the payee's behalf. The
// calling agent needs the execute_payroll permission; each stream is still
// settled as if the payee withdrew, so streams the payee does not own fail
// individually.
func (s *Service) ExecutePayroll(ctx context.Context, agent, payee string, streamIDs []int64) ([]stream.WithdrawResult, error) {
	s.mu.Lock()
	a, err := s.repo.Get(ctx, agent)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return nil, types.ErrUnauthorized
		}
		return nil, err
	}
	if !a.HasPermission(PermissionExecutePayroll) {
		return nil, types.ErrUnauthorized
	}

	return s.streams.BatchWithdraw(ctx, payee, streamIDs), nil
}

func (s *Service) notify(ctx context.Context, kind, destination, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: destination, Body: body})
}
