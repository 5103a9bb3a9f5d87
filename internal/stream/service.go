package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/quipay/quipay/internal/clock"
	"github.com/quipay/quipay/internal/money"
	"github.com/quipay/quipay/internal/notification"
	"github.com/quipay/quipay/internal/treasury"
	"github.com/quipay/quipay/internal/types"
)

// Principal is the identity the engine presents to the treasury. Wiring
// designates it as the treasury's authorized caller.
const Principal = "stream-engine"

// DefaultRetentionSeconds keeps closed streams queryable for 30 days
// before cleanup may remove them.
const DefaultRetentionSeconds = int64(30 * 24 * 60 * 60)

// Service is the stream engine. It owns stream records and their indexes,
// and drives the treasury for every financial effect: creation allocates
// liability, withdrawal pays out, cancellation releases the remainder.
// Operations are serialized under one mutex so each runs to completion
// against a consistent view.
type Service struct {
	mu       sync.Mutex
	repo     Repository
	treasury *treasury.Service
	clock    clock.Clock
	notifier notification.Notifier

	admin     string
	paused    bool
	retention int64
}

// NewService builds a stream engine bound to its treasury. The admin
// principal gates pause and retention changes.
func NewService(repo Repository, treas *treasury.Service, clk clock.Clock, notifier notification.Notifier, admin string) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		repo:      repo,
		treasury:  treas,
		clock:     clk,
		notifier:  notifier,
		admin:     admin,
		retention: DefaultRetentionSeconds,
	}
}

// CreateInput captures the data required to open a stream. Payer is the
// acting principal; the schedule runs from StartTime to EndTime accruing
// Rate units per second. A zero CliffTime means the cliff sits at the
// start.
type CreateInput struct {
	Payer     string
	Payee     string
	Asset     string
	Rate      int64
	CliffTime int64
	StartTime int64
	EndTime   int64
}

// Create validates the schedule, allocates the full commitment as
// liability and persists the stream. If the treasury rejects the
// allocation no stream is persisted.
func (s *Service) Create(ctx context.Context, input CreateInput) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return Stream{}, types.ErrPaused
	}
	if input.Payer == "" || input.Payee == "" || input.Asset == "" {
		return Stream{}, fmt.Errorf("payer, payee and asset are required")
	}
	if input.Rate <= 0 {
		return Stream{}, types.ErrInvalidAmount
	}
	if input.EndTime <= input.StartTime {
		return Stream{}, types.ErrInvalidAmount
	}

	now := s.clock.Now()
	if input.StartTime < now {
		return Stream{}, types.ErrInvalidAmount
	}

	cliff := input.CliffTime
	if cliff == 0 {
		cliff = input.StartTime
	}
	if cliff > input.EndTime {
		return Stream{}, types.ErrInvalidAmount
	}

	total, err := money.CheckedMul(input.Rate, input.EndTime-input.StartTime)
	if err != nil {
		return Stream{}, err
	}

	if err := s.treasury.AllocateLiability(ctx, Principal, input.Asset, total); err != nil {
		return Stream{}, err
	}

	id, err := s.repo.NextID(ctx)
	if err != nil {
		_ = s.treasury.ReleaseLiability(ctx, Principal, input.Asset, total) // roll back the allocation
		return Stream{}, err
	}

	created := Stream{
		ID:          id,
		Payer:       input.Payer,
		Payee:       input.Payee,
		Asset:       input.Asset,
		Rate:        input.Rate,
		CliffTime:   cliff,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		TotalAmount: total,
		Status:      StatusActive,
		CreatedAt:   now,
	}

	if err := s.repo.Insert(ctx, created); err != nil {
		_ = s.treasury.ReleaseLiability(ctx, Principal, input.Asset, total) // roll back the allocation
		return Stream{}, err
	}

	s.notify(ctx, notification.KindStreamCreated, input.Payee,
		fmt.Sprintf("Stream %d opened: %d %s vesting until %d", id, total, input.Asset, input.EndTime))
	return created, nil
}

// Withdraw pays the payee everything vested and not yet withdrawn.
// Nothing available is a successful no-op returning 0.
func (s *Service) Withdraw(ctx context.Context, caller string, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withdrawLocked(ctx, caller, id)
}

// BatchWithdraw processes each id independently and never aborts the
// batch: a missing stream, a foreign payee or a closed stream yields a
// failed item while the rest proceed. Results align positionally with the
// requested ids.
func (s *Service) BatchWithdraw(ctx context.Context, caller string, ids []int64) []WithdrawResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]WithdrawResult, 0, len(ids))
	for _, id := range ids {
		amount, err := s.withdrawLocked(ctx, caller, id)
		if err != nil {
			results = append(results, WithdrawResult{StreamID: id})
			continue
		}
		results = append(results, WithdrawResult{StreamID: id, Amount: amount, Success: true})
		s.notify(ctx, notification.KindWithdrawal, caller,
			fmt.Sprintf("Withdrew %d from stream %d", amount, id))
	}
	return results
}

func (s *Service) withdrawLocked(ctx context.Context, caller string, id int64) (int64, error) {
	if s.paused {
		return 0, types.ErrPaused
	}

	stream, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if caller != stream.Payee {
		return 0, types.ErrUnauthorized
	}
	if stream.Closed() {
		return 0, types.ErrStreamClosed
	}

	now := s.clock.Now()
	available := Vested(stream, now) - stream.WithdrawnAmount
	if available <= 0 {
		return 0, nil
	}

	prev := stream
	stream.WithdrawnAmount += available
	stream.LastWithdrawalTime = now
	completed := stream.WithdrawnAmount >= stream.TotalAmount
	if completed {
		stream.Status = StatusCompleted
		stream.ClosedAt = now
	}

	if err := s.repo.Update(ctx, stream); err != nil {
		return 0, err
	}
	if err := s.treasury.Payout(ctx, Principal, stream.Asset, stream.Payee, available); err != nil {
		_ = s.repo.Update(ctx, prev) // revert the record, no funds moved
		return 0, err
	}

	if completed {
		s.notify(ctx, notification.KindStreamCompleted, stream.Payee,
			fmt.Sprintf("Stream %d fully paid out", id))
	}
	return available, nil
}

// Cancel closes a stream and releases its un-withdrawn remainder back to
// the treasury's free margin. Canceling an already closed stream is an
// idempotent no-op; the vested-but-unwithdrawn slice becomes unclaimable.
func (s *Service) Cancel(ctx context.Context, caller string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if caller != stream.Payer {
		return types.ErrUnauthorized
	}
	if stream.Closed() {
		return nil
	}

	remaining := stream.Remaining()
	if remaining > 0 {
		if err := s.treasury.ReleaseLiability(ctx, Principal, stream.Asset, remaining); err != nil {
			return err
		}
	}

	stream.Status = StatusCanceled
	stream.ClosedAt = s.clock.Now()
	if err := s.repo.Update(ctx, stream); err != nil {
		if remaining > 0 {
			_ = s.treasury.AllocateLiability(ctx, Principal, stream.Asset, remaining) // restore the commitment
		}
		return err
	}

	s.notify(ctx, notification.KindStreamCanceled, stream.Payee,
		fmt.Sprintf("Stream %d canceled by payer", id))
	return nil
}

// Cleanup removes a closed stream once its retention period elapsed.
// Attempting it on an open stream or inside the retention window fails
// explicitly, so records stay auditable until the window passes.
func (s *Service) Cleanup(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !stream.Closed() {
		return types.ErrStreamNotClosed
	}

	eligibleAt, err := money.CheckedAdd(stream.ClosedAt, s.retention)
	if err != nil {
		return err
	}
	if s.clock.Now() < eligibleAt {
		return types.ErrRetentionNotElapsed
	}

	return s.repo.Remove(ctx, stream)
}

// Get returns the stream or nil when the id is unknown. Queries never
// error on missing records.
func (s *Service) Get(ctx context.Context, id int64) (*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrStreamNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stream, nil
}

// ByPayer lists the streams a payer created. Unknown payers yield an
// empty slice.
func (s *Service) ByPayer(ctx context.Context, payer string) ([]Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.repo.IDsByPayer(ctx, payer)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, ids)
}

// ByPayee lists the streams a payee receives. Unknown payees yield an
// empty slice.
func (s *Service) ByPayee(ctx context.Context, payee string) ([]Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.repo.IDsByPayee(ctx, payee)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, ids)
}

// SetPaused flips the protocol pause switch. While paused, creation and
// withdrawal are refused; cancellation, cleanup and queries continue.
func (s *Service) SetPaused(_ context.Context, caller string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.admin {
		return types.ErrUnauthorized
	}
	s.paused = paused
	return nil
}

// Paused reports the pause switch.
func (s *Service) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// SetRetention changes the minimum time a closed stream stays queryable.
func (s *Service) SetRetention(_ context.Context, caller string, seconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.admin {
		return types.ErrUnauthorized
	}
	if seconds <= 0 {
		return types.ErrInvalidAmount
	}
	s.retention = seconds
	return nil
}

// Retention returns the current retention period in seconds.
func (s *Service) Retention() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retention
}

func (s *Service) resolve(ctx context.Context, ids []int64) ([]Stream, error) {
	streams := make([]Stream, 0, len(ids))
	for _, id := range ids {
		stream, err := s.repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, types.ErrStreamNotFound) {
				continue
			}
			return nil, err
		}
		streams = append(streams, stream)
	}
	return streams, nil
}

func (s *Service) notify(ctx context.Context, kind, destination, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: destination, Body: body})
}
