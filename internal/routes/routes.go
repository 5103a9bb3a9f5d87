package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/quipay/quipay/internal/auth"
	"github.com/quipay/quipay/internal/clock"
	"github.com/quipay/quipay/internal/config"
	"github.com/quipay/quipay/internal/gateway"
	"github.com/quipay/quipay/internal/identity"
	"github.com/quipay/quipay/internal/middleware"
	"github.com/quipay/quipay/internal/notification"
	"github.com/quipay/quipay/internal/registry"
	"github.com/quipay/quipay/internal/stream"
	"github.com/quipay/quipay/internal/treasury"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares, builds the service graph and wires all
// application routes. The admin account is ensured on boot and its id
// becomes the admin principal for the treasury, the stream engine, the
// worker directory and the agent gateway.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.Dev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	ctx := context.Background()
	notifier := notification.NewLoggerNotifier(d.Logger)
	clk := clock.System{}

	var accounts identity.Repository
	if d.DB != nil {
		accounts = identity.NewPostgresRepository(d.DB)
	} else {
		accounts = identity.NewMemoryRepository()
	}
	identitySvc := identity.NewService(accounts)
	adminAccount, err := identitySvc.EnsureAdmin(ctx, d.Cfg.AdminHandle, d.Cfg.AdminSecret)
	if err != nil {
		return fmt.Errorf("ensure admin account: %w", err)
	}
	admin := adminAccount.ID

	var store treasury.Store
	if d.DB != nil {
		store = treasury.NewPostgresStore(d.DB)
	} else {
		store = treasury.NewMemoryStore()
	}
	treasurySvc := treasury.NewService(store, nil, notifier)
	if err := treasurySvc.Init(ctx, admin); err != nil {
		return fmt.Errorf("init treasury: %w", err)
	}
	if err := treasurySvc.SetAuthorizedCaller(ctx, admin, stream.Principal); err != nil {
		return fmt.Errorf("designate stream engine: %w", err)
	}

	var streamRepo stream.Repository
	if d.DB != nil {
		streamRepo = stream.NewPostgresRepository(d.DB)
	} else {
		streamRepo = stream.NewMemoryRepository()
	}
	streamSvc := stream.NewService(streamRepo, treasurySvc, clk, notifier, admin)
	if err := streamSvc.SetRetention(ctx, admin, d.Cfg.RetentionSeconds); err != nil {
		return fmt.Errorf("set retention: %w", err)
	}

	var workerRepo registry.Repository
	if d.DB != nil {
		workerRepo = registry.NewPostgresRepository(d.DB)
	} else {
		workerRepo = registry.NewMemoryRepository()
	}
	registrySvc := registry.NewService(workerRepo, clk, notifier, admin)

	var agentRepo gateway.Repository
	if d.DB != nil {
		agentRepo = gateway.NewPostgresRepository(d.DB)
	} else {
		agentRepo = gateway.NewMemoryRepository()
	}
	gatewaySvc := gateway.NewService(agentRepo, streamSvc, clk, notifier, admin)

	authSvc := auth.NewService(d.Cfg, accounts)
	authHandler := auth.NewHandler(identitySvc, authSvc)
	treasuryHandler := treasury.NewHandler(treasurySvc)
	streamHandler := stream.NewHandler(streamSvc)
	workerHandler := registry.NewHandler(registrySvc)
	agentHandler := gateway.NewHandler(gatewaySvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.LocalsRequestID).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	jwtmw := middleware.JWTAuth(authSvc, accounts)
	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit, d.Cfg.LoginRateWindow)
	RegisterAuthRoutes(api, authHandler, jwtmw, rateLimiter)

	// Idempotency guards mutating money routes only, so replayed deposits,
	// stream creations and withdrawals return the recorded response.
	// Without Redis it degrades to a pass-through.
	idem := func(c *fiber.Ctx) error { return c.Next() }
	if d.Cache != nil {
		idem = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}

	protected := api.Group("", jwtmw)
	RegisterTreasuryRoutes(protected, treasuryHandler, idem)
	RegisterStreamRoutes(protected, streamHandler, idem)
	RegisterWorkerRoutes(protected, workerHandler)
	RegisterAgentRoutes(protected, agentHandler, idem)

	return nil
}
