package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/quipay/quipay/internal/clock"
	"github.com/quipay/quipay/internal/stream"
	"github.com/quipay/quipay/internal/treasury"
	"github.com/quipay/quipay/internal/types"
)

const (
	admin = "admin"
	token = "token:usdc"
)

func newTestGateway(t *testing.T) (*Service, *stream.Service, *treasury.Service, *clock.Manual) {
	t.Helper()
	ctx := context.Background()
	clk := clock.NewManual(1_000)

	treas := treasury.NewService(treasury.NewMemoryStore(), treasury.StaticTransferor{}, nil)
	if err := treas.Init(ctx, admin); err != nil {
		t.Fatalf("init treasury: %v", err)
	}
	if err := treas.SetAuthorizedCaller(ctx, admin, stream.Principal); err != nil {
		t.Fatalf("set authorized caller: %v", err)
	}
	streams := stream.NewService(stream.NewMemoryRepository(), treas, clk, nil, admin)
	svc := NewService(NewMemoryRepository(), streams, clk, nil, admin)
	return svc, streams, treas, clk
}

func TestRegisterAdminOnly(t *testing.T) {
	svc, _, _, _ := newTestGateway(t)
	ctx := context.Background()

	perms := []string{PermissionExecutePayroll}
	if _, err := svc.Register(ctx, "mallory", "bot", perms); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	agent, err := svc.Register(ctx, admin, "bot", perms)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !agent.HasPermission(PermissionExecutePayroll) {
		t.Fatalf("permission missing: %+v", agent)
	}
	if _, err := svc.Register(ctx, admin, "bot", perms); !errors.Is(err, ErrAgentExists) {
		t.Fatalf("expected agent exists, got %v", err)
	}
}

func TestRegisterValidatesPermissions(t *testing.T) {
	svc, _, _, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, admin, "bot", nil); err == nil {
		t.Fatal("expected error for empty permission set")
	}
	if _, err := svc.Register(ctx, admin, "bot", []string{"rule_the_world"}); err == nil {
		t.Fatal("expected error for unknown permission")
	}
	if _, err := svc.Register(ctx, admin, "", []string{PermissionExecutePayroll}); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	svc, _, _, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, admin, "bot", []string{PermissionExecutePayroll}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Revoke(ctx, "mallory", "bot"); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := svc.Revoke(ctx, admin, "bot"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := svc.Revoke(ctx, admin, "bot"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	ok, err := svc.IsAuthorized(ctx, "bot", PermissionExecutePayroll)
	if err != nil || ok {
		t.Fatalf("revoked agent must hold nothing, got %v %v", ok, err)
	}
	agent, err := svc.Get(ctx, "bot")
	if err != nil || agent != nil {
		t.Fatalf("expected nil for revoked agent, got %+v %v", agent, err)
	}
}

func TestIsAuthorizedScopedToGrantedPermissions(t *testing.T) {
	svc, _, _, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, admin, "bot", []string{PermissionExecutePayroll}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if ok, _ := svc.IsAuthorized(ctx, "bot", PermissionExecutePayroll); !ok {
		t.Fatal("expected execute_payroll granted")
	}
	if ok, _ := svc.IsAuthorized(ctx, "bot", PermissionManageTreasury); ok {
		t.Fatal("manage_treasury must not leak from execute_payroll")
	}
	if ok, _ := svc.IsAuthorized(ctx, "ghost", PermissionExecutePayroll); ok {
		t.Fatal("unknown agent must hold nothing")
	}
}

func TestExecutePayrollRequiresPermission(t *testing.T) {
	svc, _, _, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := svc.ExecutePayroll(ctx, "ghost", "worker", []int64{1}); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown agent, got %v", err)
	}
	if _, err := svc.Register(ctx, admin, "auditor", []string{PermissionManageTreasury}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.ExecutePayroll(ctx, "auditor", "worker", []int64{1}); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("expected unauthorized without execute_payroll, got %v", err)
	}
}

func TestExecutePayrollPaysTheStreamPayee(t *testing.T) {
	svc, streams, treas, clk := newTestGateway(t)
	ctx := context.Background()

	if err := treas.Deposit(ctx, "acme", token, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	created, err := streams.Create(ctx, stream.CreateInput{
		Payer:     "acme",
		Payee:     "worker",
		Asset:     token,
		Rate:      10,
		StartTime: 1_000,
		EndTime:   1_100,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	foreign, err := streams.Create(ctx, stream.CreateInput{
		Payer:     "acme",
		Payee:     "someone-else",
		Asset:     token,
		Rate:      10,
		StartTime: 1_000,
		EndTime:   1_100,
	})
	if err != nil {
		t.Fatalf("create foreign: %v", err)
	}

	if _, err := svc.Register(ctx, admin, "payroll-bot", []string{PermissionExecutePayroll}); err != nil {
		t.Fatalf("register: %v", err)
	}
	clk.Set(1_050)

	// The foreign stream fails item-wise: the bot acts as the payee, and
	// the payee does not own it.
	results, err := svc.ExecutePayroll(ctx, "payroll-bot", "worker", []int64{created.ID, foreign.ID, 999})
	if err != nil {
		t.Fatalf("execute payroll: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Success || results[0].Amount != 500 {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Success || results[2].Success {
		t.Fatalf("foreign and missing streams must fail: %+v", results[1:])
	}

	got, err := streams.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.WithdrawnAmount != 500 {
		t.Fatalf("expected 500 withdrawn, got %d", got.WithdrawnAmount)
	}
}
