package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/quipay/quipay/internal/clock"
	"github.com/quipay/quipay/internal/treasury"
	"github.com/quipay/quipay/internal/types"
)

const (
	admin = "admin"
	payer = "acme"
	payee = "worker"
	token = "token:usdc"
)

func newTestEngine(t *testing.T) (*Service, *treasury.Service, *clock.Manual) {
	t.Helper()
	ctx := context.Background()
	clk := clock.NewManual(0)

	treas := treasury.NewService(treasury.NewMemoryStore(), treasury.StaticTransferor{}, nil)
	if err := treas.Init(ctx, admin); err != nil {
		t.Fatalf("init treasury: %v", err)
	}
	if err := treas.SetAuthorizedCaller(ctx, admin, Principal); err != nil {
		t.Fatalf("set authorized caller: %v", err)
	}
	return NewService(NewMemoryRepository(), treas, clk, nil, admin), treas, clk
}

func deposit(t *testing.T, treas *treasury.Service, amount int64) {
	t.Helper()
	if err := treas.Deposit(context.Background(), payer, token, amount); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func mustCreate(t *testing.T, svc *Service, input CreateInput) Stream {
	t.Helper()
	created, err := svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return created
}

func entry(t *testing.T, treas *treasury.Service) (balance, liability int64) {
	t.Helper()
	ctx := context.Background()
	balance, err := treas.Balance(ctx, token)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	liability, err = treas.Liability(ctx, token)
	if err != nil {
		t.Fatalf("liability: %v", err)
	}
	return balance, liability
}

func TestLinearVestingQuarterWithdrawals(t *testing.T) {
	svc, treas, clk := newTestEngine(t)
	ctx := context.Background()
	deposit(t, treas, 1_000_000)

	created := mustCreate(t, svc, CreateInput{
		Payer: payer, Payee: payee, Asset: token,
		Rate: 1_000, StartTime: 0, EndTime: 1_000,
	})
	if created.TotalAmount != 1_000_000 {
		t.Fatalf("expected total 1000000, got %d", created.TotalAmount)
	}

	var sum int64
	for _, at := range []int64{250, 500, 750, 1_000} {
		clk.Set(at)
		amount, err := svc.Withdraw(ctx, payee, created.ID)
		if err != nil {
			t.Fatalf("withdraw at %d: %v", at, err)
		}
		if amount != 250_000 {
			t.Fatalf("expected 250000 at t=%d, got %d", at, amount)
		}
		sum += amount
	}
	if sum != 1_000_000 {
		t.Fatalf("expected withdrawals to sum to the total, got %d", sum)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted || got.ClosedAt != 1_000 {
		t.Fatalf("expected completed at 1000, got %s/%d", got.Status, got.ClosedAt)
	}

	balance, liability := entry(t, treas)
	if balance != 0 || liability != 0 {
		t.Fatalf("expected drained treasury, got %d/%d", balance, liability)
	}
}

func TestCliffGatesThenVestsRetroactively(t *testing.T) {
	svc, treas, clk := newTestEngine(t)
	ctx := context.Background()
	deposit(t, treas, 1_000)

	created := mustCreate(t, svc, CreateInput{
		Payer: payer, Payee: payee, Asset: token,
		Rate: 10, CliffTime: 50, StartTime: 0, EndTime: 100,
	})

	// Before the cliff nothing vests regardless of elapsed time.
	clk.Set(30)
	amount, err := svc.Withdraw(ctx, payee, created.ID)
	if err != nil {
		t.Fatalf("withdraw before cliff: %v", err)
	}
	if amount != 0 {
		t.Fatalf("expected 0 before cliff, got %d", amount)
	}

	// Past the cliff, accrual is retroactive to the start.
	clk.Set(60)
	amount, err = svc.Withdraw(ctx, payee, created.ID)
	if err != nil {
		t.Fatalf("withdraw after cliff: %v", err)
	}
	if amount != 600 {
		t.Fatalf("expected 600 after cliff, got %d", amount)
	}
}

func TestInsolventCreationPersistsNothing(t *testing.T) {
	svc, treas, _ := newTestEngine(t)
	ctx := context.Background()
	deposit(t, treas, 10_000)

	_, err := svc.Create(ctx, CreateInput{
		Payer: payer, Payee: payee, Asset: token,
		Rate: 15, StartTime: 0, EndTime: 1_000, // total 15000 > balance
	})
	if !errors.Is(err, types.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	streams, err := svc.ByPayer(ctx, payer)
	if err != nil {
		t.Fatalf("by payer: %v", err)
	}
	if len(streams) != 0 {
		t.Fatalf("failed creation persisted a stream: %+v", streams)
	}
	if _, liability := entry(t, treas); liability != 0 {
		t.Fatalf("failed creation left liability %d", liability)
	}
}

func TestBatchWithdrawMixedOwnership(t *testing.T) {
	svc, treas, clk := newTestEngine(t)
	ctx := context.Background()
	deposit(t, treas, 3_000)

	input := CreateInput{Payer: payer, Asset: token, Rate: 10, StartTime: 0, EndTime: 100}
	input.Payee = payee
	a1 := mustCreate(t, svc, input)
	input.Payee = "other-worker"
	b := mustCreate(t, svc, input)
	input.Payee = payee
	a2 := mustCreate(t, svc, input)

	clk.Set(50)
	results := svc.BatchWithdraw(ctx, payee, []int64{a1.ID, b.ID, a2.ID})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Success || results[0].Amount != 500 || results[0].StreamID != a1.ID {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Success || results[1].Amount != 0 {
		t.Fatalf("foreign stream must fail without payout: %+v", results[1])
	}
	if !results[2].Success || results[2].Amount != 500 {
		t.Fatalf("unexpected third result: %+v", results[2])
	}

	foreign, err := svc.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if foreign.WithdrawnAmount != 0 || foreign.LastWithdrawalTime != 0 {
		t.Fatalf("failed item mutated the foreign stream: %+v", foreign)
	}
}

func TestCleanupRetentionGate(t *testing.T) {
	svc, treas, clk := newTestEngine(t)
	ctx := context.Background()
	deposit(t, treas, 1_000)

	if err := svc.SetRetention(ctx, admin, 100); err != nil {
		t.Fatalf("set retention: %v", err)
	}
	created := mustCreate(t, svc, CreateInput{
		Payer: payer, Payee: payee, Asset: token,
		Rate: 10, StartTime: 0, EndTime: 100,
	})

	// Cleanup requires a closed stream.
	if err := svc.Cleanup(ctx, created.ID); !errors.Is(err, types.ErrStreamNotClosed) {
		t.Fatalf("expected stream not closed, got %v", err)
	}

	clk.Set(10)
	if err := svc.Cancel(ctx, payer, created.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	clk.Set(50)
	if err := svc.Cleanup(ctx, created.ID); !errors.Is(err, types.ErrRetentionNotElapsed) {
		t.Fatalf("expected retention not elapsed, got %v", err)
	}

	clk.Set(110)
	if err := svc.Cleanup(ctx, created.ID); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("cleanup left the record behind: %+v", got)
	}
	byPayer, _ := svc.ByPayer(ctx, payer)
	byPayee, _ := svc.ByPayee(ctx, payee)
	if len(byPayer) != 0 || len(byPayee) != 0 {
		t.Fatalf("cleanup left index entries: %v / %v", byPayer, byPayee)
	}
}

func TestCancelReleasesRemainderOnce(t *testing.T) {
	svc, treas, clk := newTestEngine(t)
	ctx := context.Background()
	deposit(t, treas, 10_000)

	created := mustCreate(t, svc, CreateInput{
		Payer: payer, Payee: payee, Asset: token,
		Rate: 10, StartTime: 0, EndTime: 100,
	})

	clk.Set(40)
	if _, err := svc.Withdraw(ctx, payee, created.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	// Cancel at t=50: 500 vested, 400 withdrawn. The full un-withdrawn
	// remainder of 600 is released; the vested-but-unclaimed 100 is gone.
	clk.Set(50)
	if err := svc.Cancel(ctx, payer, created.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	balance, liability := entry(t, treas)
	if balance != 9_600 || liability != 0 {
		t.Fatalf("expected 9600/0 after cancel, got %d/%d", balance, liability)
	}

	got, _ := svc.Get(ctx, created.ID)
	if got.Status != StatusCanceled || got.ClosedAt != 50 {
		t.Fatalf("unexpected terminal state: %s/%d", got.Status, got.ClosedAt)
	}

	// A second cancel is a no-op: same terminal state, no second release.
	clk.Set(60)
	if err := svc.Cancel(ctx, payer, created.ID); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if balance2, liability2 := entry(t, treas); balance2 != balance || liability2 != liability {
		t.Fatalf("second cancel moved funds: %d/%d", balance2, liability2)
	}
	got, _ = svc.Get(ctx, created.ID)
	if got.ClosedAt != 50 {
		t.Fatalf("second cancel rewrote closure time: %d", got.ClosedAt)
	}

	if _, err := svc.Withdraw(ctx, payee, created.ID); !errors.Is(err, types.ErrStreamClosed) {
		t.Fatalf("expected stream closed, got %v", err)
	}
}

func TestWithdrawNothingVestedIsNoop(t *testing.T) {
	svc, treas, clk := newTestEngine(t)
	ctx := context.Background()
	deposit(t, treas, 1_000)

	clk.Set(10)
	created := mustCreate(t, svc, CreateInput{
		Payer: payer, Payee: payee, Asset: token,
		Rate: 10, StartTime: 20, EndTime: 120,
	})

	amount, err := svc.Withdraw(ctx, payee, created.ID)
	if err != nil || amount != 0 {
		t.Fatalf("expected zero no-op before start, got %d %v", amount, err)
	}

	clk.Set(70)
	if _, err := svc.Withdraw(ctx, payee, created.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// Same instant again: everything vested is already withdrawn.
	amount, err = svc.Withdraw(ctx, payee, created.ID)
	if err != nil || amount != 0 {
		t.Fatalf("expected zero no-op when drained, got %d %v", amount, err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, treas, clk := newTestEngine(t)
	ctx := context.Background()
	deposit(t, treas, 100_000)
	clk.Set(100)

	base := CreateInput{Payer: payer, Payee: payee, Asset: token, Rate: 10, StartTime: 100, EndTime: 200}

	bad := base
	bad.Rate = 0
	if _, err := svc.Create(ctx, bad); !errors.Is(err, types.ErrInvalidAmount) {
		t.Fatalf("zero rate: expected invalid amount, got %v", err)
	}
	bad = base
	bad.EndTime = base.StartTime
	if _, err := svc.Create(ctx, bad); !errors.Is(err, types.ErrInvalidAmount) {
		t.Fatalf("empty window: expected invalid amount, got %v", err)
	}
	bad = base
	bad.StartTime, bad.EndTime = 50, 200
	if _, err := svc.Create(ctx, bad); !errors.Is(err, types.ErrInvalidAmount) {
		t.Fatalf("past start: expected invalid amount, got %v", err)
	}
	bad = base
	bad.CliffTime = 300
	if _, err := svc.Create(ctx, bad); !errors.Is(err, types.ErrInvalidAmount) {
		t.Fatalf("cliff past end: expected invalid amount, got %v", err)
	}
	bad = base
	bad.Payee = ""
	if _, err := svc.Create(ctx, bad); err == nil {
		t.Fatal("expected error for missing payee")
	}

	if _, err := svc.Create(ctx, base); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
}

func TestCallerChecks(t *testing.T) {
	svc, treas, clk := newTestEngine(t)
	ctx := context.Background()
	deposit(t, treas, 1_000)

	created := mustCreate(t, svc, CreateInput{
		Payer: payer, Payee: payee, Asset: token,
		Rate: 10, StartTime: 0, EndTime: 100,
	})
	clk.Set(50)

	if _, err := svc.Withdraw(ctx, payer, created.ID); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("payer withdrawing: expected unauthorized, got %v", err)
	}
	if err := svc.Cancel(ctx, payee, created.ID); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("payee canceling: expected unauthorized, got %v", err)
	}
	if _, err := svc.Withdraw(ctx, payee, 999); !errors.Is(err, types.ErrStreamNotFound) {
		t.Fatalf("unknown id: expected not found, got %v", err)
	}
	if err := svc.SetRetention(ctx, payer, 60); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("non-admin retention: expected unauthorized, got %v", err)
	}
	if err := svc.SetRetention(ctx, admin, 0); !errors.Is(err, types.ErrInvalidAmount) {
		t.Fatalf("zero retention: expected invalid amount, got %v", err)
	}
}

func TestPauseGatesCreateAndWithdraw(t *testing.T) {
	svc, treas, clk := newTestEngine(t)
	ctx := context.Background()
	deposit(t, treas, 10_000)

	created := mustCreate(t, svc, CreateInput{
		Payer: payer, Payee: payee, Asset: token,
		Rate: 10, StartTime: 0, EndTime: 100,
	})

	if err := svc.SetPaused(ctx, payer, true); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("non-admin pause: expected unauthorized, got %v", err)
	}
	if err := svc.SetPaused(ctx, admin, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !svc.Paused() {
		t.Fatal("expected paused")
	}

	clk.Set(50)
	if _, err := svc.Create(ctx, CreateInput{
		Payer: payer, Payee: payee, Asset: token,
		Rate: 10, StartTime: 50, EndTime: 150,
	}); !errors.Is(err, types.ErrPaused) {
		t.Fatalf("create while paused: expected paused, got %v", err)
	}
	if _, err := svc.Withdraw(ctx, payee, created.ID); !errors.Is(err, types.ErrPaused) {
		t.Fatalf("withdraw while paused: expected paused, got %v", err)
	}
	results := svc.BatchWithdraw(ctx, payee, []int64{created.ID})
	if results[0].Success {
		t.Fatalf("batch item while paused must fail: %+v", results[0])
	}

	// Cancellation and queries stay available so payers can unwind.
	if got, err := svc.Get(ctx, created.ID); err != nil || got == nil {
		t.Fatalf("get while paused: %v %v", got, err)
	}
	if err := svc.Cancel(ctx, payer, created.ID); err != nil {
		t.Fatalf("cancel while paused: %v", err)
	}

	if err := svc.SetPaused(ctx, admin, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{
		Payer: payer, Payee: payee, Asset: token,
		Rate: 10, StartTime: 50, EndTime: 150,
	}); err != nil {
		t.Fatalf("create after unpause: %v", err)
	}
}

// Solvency must hold after every step of a full stream lifecycle.
func TestSolvencyAcrossLifecycle(t *testing.T) {
	svc, treas, clk := newTestEngine(t)
	ctx := context.Background()

	check := func(step string) {
		t.Helper()
		balance, liability := entry(t, treas)
		if balance < liability || liability < 0 {
			t.Fatalf("solvency violated after %s: balance=%d liability=%d", step, balance, liability)
		}
	}

	deposit(t, treas, 5_000)
	check("deposit")

	first := mustCreate(t, svc, CreateInput{
		Payer: payer, Payee: payee, Asset: token,
		Rate: 10, StartTime: 0, EndTime: 300, // total 3000
	})
	check("create")

	if _, err := svc.Create(ctx, CreateInput{
		Payer: payer, Payee: payee, Asset: token,
		Rate: 10, StartTime: 0, EndTime: 300,
	}); !errors.Is(err, types.ErrInsufficientBalance) {
		t.Fatalf("expected second commitment to breach solvency, got %v", err)
	}
	check("blocked create")

	clk.Set(100)
	if _, err := svc.Withdraw(ctx, payee, first.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	check("withdraw")

	if err := treas.WithdrawFree(ctx, admin, token, "ops", 2_000); err != nil {
		t.Fatalf("withdraw free: %v", err)
	}
	check("free withdrawal")

	if err := svc.Cancel(ctx, payer, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	check("cancel")

	balance, liability := entry(t, treas)
	// 5000 deposited, 1000 paid out, 2000 drawn down; nothing committed.
	if balance != 2_000 || liability != 0 {
		t.Fatalf("unexpected final state: balance=%d liability=%d", balance, liability)
	}
}

func TestListsByPayerAndPayee(t *testing.T) {
	svc, treas, _ := newTestEngine(t)
	ctx := context.Background()
	deposit(t, treas, 10_000)

	input := CreateInput{Payer: payer, Asset: token, Rate: 10, StartTime: 0, EndTime: 100}
	input.Payee = payee
	first := mustCreate(t, svc, input)
	input.Payee = "other-worker"
	mustCreate(t, svc, input)

	byPayer, err := svc.ByPayer(ctx, payer)
	if err != nil {
		t.Fatalf("by payer: %v", err)
	}
	if len(byPayer) != 2 {
		t.Fatalf("expected 2 payer streams, got %d", len(byPayer))
	}
	byPayee, err := svc.ByPayee(ctx, payee)
	if err != nil {
		t.Fatalf("by payee: %v", err)
	}
	if len(byPayee) != 1 || byPayee[0].ID != first.ID {
		t.Fatalf("unexpected payee streams: %+v", byPayee)
	}

	// Closed streams stay listed until cleanup removes them.
	if err := svc.Cancel(ctx, payer, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	byPayee, _ = svc.ByPayee(ctx, payee)
	if len(byPayee) != 1 || byPayee[0].Status != StatusCanceled {
		t.Fatalf("canceled stream missing from index: %+v", byPayee)
	}

	if none, err := svc.ByPayee(ctx, "nobody"); err != nil || len(none) != 0 {
		t.Fatalf("unknown payee must list empty, got %v %v", none, err)
	}
}
