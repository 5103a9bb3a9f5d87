package treasury

import (
	"context"
	"fmt"
	"sync"

	"github.com/quipay/quipay/internal/money"
	"github.com/quipay/quipay/internal/notification"
	"github.com/quipay/quipay/internal/types"
)

// Service owns the per-asset entries and enforces the solvency rule on
// every mutation. Operations are serialized under a single mutex so each
// one runs to completion against a consistent view, mirroring a
// single-writer transactional host.
type Service struct {
	mu        sync.Mutex
	store     Store
	transfers Transferor
	notifier  notification.Notifier

	admin      string
	authorized string
}

// NewService builds a treasury service. Init must run before any mutating
// operation.
func NewService(store Store, transfers Transferor, notifier notification.Notifier) *Service {
	if transfers == nil {
		transfers = StaticTransferor{}
	}
	return &Service{store: store, transfers: transfers, notifier: notifier}
}

// Init designates the admin principal. It may run exactly once.
func (s *Service) Init(_ context.Context, admin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin != "" {
		return types.ErrAlreadyInitialized
	}
	if admin == "" {
		return fmt.Errorf("admin principal required")
	}
	s.admin = admin
	return nil
}

// SetAuthorizedCaller designates the one non-admin principal allowed to
// move liability. In practice this is the stream engine.
func (s *Service) SetAuthorizedCaller(_ context.Context, caller, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin == "" {
		return types.ErrNotInitialized
	}
	if caller != s.admin {
		return types.ErrUnauthorized
	}
	if principal == "" {
		return fmt.Errorf("authorized caller principal required")
	}
	s.authorized = principal
	return nil
}

// TransferAdmin hands the admin role to another principal.
func (s *Service) TransferAdmin(_ context.Context, caller, newAdmin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin == "" {
		return types.ErrNotInitialized
	}
	if caller != s.admin {
		return types.ErrUnauthorized
	}
	if newAdmin == "" {
		return fmt.Errorf("new admin principal required")
	}
	s.admin = newAdmin
	return nil
}

// Deposit moves funds from the depositor into custody and credits the
// asset balance. The external transfer runs first; if it fails no state
// changes.
func (s *Service) Deposit(ctx context.Context, from, asset string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin == "" {
		return types.ErrNotInitialized
	}
	if amount <= 0 {
		return types.ErrInvalidAmount
	}

	entry, err := s.store.Get(ctx, asset)
	if err != nil {
		return err
	}
	balance, err := money.CheckedAdd(entry.Balance, amount)
	if err != nil {
		return err
	}

	if _, err := s.transfers.Transfer(ctx, asset, from, CustodyAccount, amount); err != nil {
		return fmt.Errorf("deposit transfer: %w", err)
	}

	entry.Balance = balance
	if err := s.store.Put(ctx, asset, entry); err != nil {
		return err
	}

	s.notify(ctx, notification.KindDeposit, from, fmt.Sprintf("Deposited %d %s into treasury custody", amount, asset))
	return nil
}

// CheckSolvency reports whether the asset balance covers the current
// liability plus the additional amount. Negative additions are always
// insolvent, guarding against negative-amount misuse.
func (s *Service) CheckSolvency(ctx context.Context, asset string, additional int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.store.Get(ctx, asset)
	if err != nil {
		return false, err
	}
	return solvent(entry, additional)
}

// AllocateLiability admits a new commitment for the asset. This is the sole
// gate new streams pass through: it fails with ErrInsufficientBalance
// whenever the free balance cannot cover the amount.
func (s *Service) AllocateLiability(ctx context.Context, caller, asset string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin == "" {
		return types.ErrNotInitialized
	}
	if !s.mayMoveLiability(caller) {
		return types.ErrUnauthorized
	}
	if amount <= 0 {
		return types.ErrInvalidAmount
	}

	entry, err := s.store.Get(ctx, asset)
	if err != nil {
		return err
	}
	ok, err := solvent(entry, amount)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrInsufficientBalance
	}

	entry.Liability += amount
	return s.store.Put(ctx, asset, entry)
}

// ReleaseLiability returns a commitment that will never be paid out, e.g.
// the un-withdrawn remainder of a canceled stream.
func (s *Service) ReleaseLiability(ctx context.Context, caller, asset string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin == "" {
		return types.ErrNotInitialized
	}
	if !s.mayMoveLiability(caller) {
		return types.ErrUnauthorized
	}
	if amount <= 0 {
		return types.ErrInvalidAmount
	}

	entry, err := s.store.Get(ctx, asset)
	if err != nil {
		return err
	}
	if amount > entry.Liability {
		return types.ErrInvalidAmount
	}

	entry.Liability -= amount
	return s.store.Put(ctx, asset, entry)
}

// Payout settles part of a commitment to its recipient, debiting balance
// and liability together so the solvency margin is unchanged.
func (s *Service) Payout(ctx context.Context, caller, asset, recipient string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin == "" {
		return types.ErrNotInitialized
	}
	if !s.mayMoveLiability(caller) {
		return types.ErrUnauthorized
	}
	if amount <= 0 {
		return types.ErrInvalidAmount
	}
	if recipient == "" {
		return fmt.Errorf("payout recipient required")
	}

	entry, err := s.store.Get(ctx, asset)
	if err != nil {
		return err
	}
	if amount > entry.Balance || amount > entry.Liability {
		return types.ErrInsufficientBalance
	}

	if _, err := s.transfers.Transfer(ctx, asset, CustodyAccount, recipient, amount); err != nil {
		return fmt.Errorf("payout transfer: %w", err)
	}

	entry.Balance -= amount
	entry.Liability -= amount
	if err := s.store.Put(ctx, asset, entry); err != nil {
		return err
	}

	s.notify(ctx, notification.KindPayout, recipient, fmt.Sprintf("Paid out %d %s", amount, asset))
	return nil
}

// WithdrawFree draws down uncommitted funds. Only the admin may touch the
// free margin; committed liability is untouchable through this path.
func (s *Service) WithdrawFree(ctx context.Context, caller, asset, to string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin == "" {
		return types.ErrNotInitialized
	}
	if caller != s.admin {
		return types.ErrUnauthorized
	}
	if amount <= 0 {
		return types.ErrInvalidAmount
	}
	if to == "" {
		return fmt.Errorf("withdrawal destination required")
	}

	entry, err := s.store.Get(ctx, asset)
	if err != nil {
		return err
	}
	if amount > entry.Available() {
		return types.ErrInsufficientBalance
	}

	if _, err := s.transfers.Transfer(ctx, asset, CustodyAccount, to, amount); err != nil {
		return fmt.Errorf("withdrawal transfer: %w", err)
	}

	entry.Balance -= amount
	if err := s.store.Put(ctx, asset, entry); err != nil {
		return err
	}

	s.notify(ctx, notification.KindFreeWithdrawal, to, fmt.Sprintf("Withdrew %d free %s from treasury", amount, asset))
	return nil
}

// Balance returns the total value held for the asset.
func (s *Service) Balance(ctx context.Context, asset string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.store.Get(ctx, asset)
	if err != nil {
		return 0, err
	}
	return entry.Balance, nil
}

// Liability returns the outstanding committed value for the asset.
func (s *Service) Liability(ctx context.Context, asset string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.store.Get(ctx, asset)
	if err != nil {
		return 0, err
	}
	return entry.Liability, nil
}

// Available returns the uncommitted portion of the asset balance.
func (s *Service) Available(ctx context.Context, asset string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.store.Get(ctx, asset)
	if err != nil {
		return 0, err
	}
	return entry.Available(), nil
}

func (s *Service) mayMoveLiability(caller string) bool {
	if caller == "" {
		return false
	}
	return caller == s.admin || (s.authorized != "" && caller == s.authorized)
}

func (s *Service) notify(ctx context.Context, kind, destination, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: destination, Body: body})
}

func solvent(entry Entry, additional int64) (bool, error) {
	if additional < 0 {
		return false, nil
	}
	needed, err := money.CheckedAdd(entry.Liability, additional)
	if err != nil {
		return false, err
	}
	return entry.Balance >= needed, nil
}
