package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/feria-api/internal/application/cashsubmission"
	"github.com/jhoicas/feria-api/internal/application/identity"
	"github.com/jhoicas/feria-api/internal/application/ledger"
	"github.com/jhoicas/feria-api/internal/application/pin"
	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/application/stats"
	"github.com/jhoicas/feria-api/internal/domain/repository"
	"github.com/jhoicas/feria-api/internal/infrastructure/memstore"
	"github.com/jhoicas/feria-api/internal/infrastructure/postgres"
	"github.com/jhoicas/feria-api/internal/infrastructure/rabbitmq"
	infraredis "github.com/jhoicas/feria-api/internal/infrastructure/redis"
	"github.com/jhoicas/feria-api/internal/infrastructure/scheduler"
	httpRouter "github.com/jhoicas/feria-api/internal/interfaces/http"
	"github.com/jhoicas/feria-api/pkg/config"
	"github.com/jhoicas/feria-api/pkg/logger"
)

// backend repositorios fuera de transacción más el ejecutor transaccional del almacén elegido.
type backend struct {
	txRunner    repository.TxRunner
	users       repository.UserRepository
	pins        repository.PINRepository
	tenants     repository.TenantRepository
	submissions repository.CashSubmissionRepository
	stats       repository.StatsRepository
	close       func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()
	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("abrir almacén")
	}
	defer be.close()

	guard := pin.NewGuard(be.pins, pin.Config{
		MaxAttempts:  cfg.PIN.MaxAttempts,
		LockDuration: cfg.PIN.LockDuration(),
		BcryptCost:   cfg.PIN.BcryptCost,
	}, log.Component("pin"))
	resolver := identity.NewResolver(be.users, cfg.JWT.Secret)
	aggregator := stats.NewAggregator(be.users, be.stats, be.tenants, log.Component("stats"))

	// El agregador va primero: los consumidores de eventos ven estadísticas ya recalculadas.
	hooks := ports.Hooks{aggregator}
	if cfg.RabbitMQ.URL != "" {
		pub, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log.Component("rabbitmq"))
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ no disponible, eventos del ledger sin publicar")
		} else {
			defer pub.Close()
			hooks = append(hooks, pub)
		}
	}

	engine := ledger.NewEngine(be.txRunner, guard, hooks, ledger.Config{
		DefaultMaxAllocation: cfg.Ledger.MaxAllocation,
		MaxCardValidityDays:  cfg.Ledger.MaxCardValidityDays,
	})
	submissionSvc := cashsubmission.NewService(be.txRunner, be.submissions, guard, hooks)

	var limiter httpRouter.Limiter
	if cfg.Redis.Addr != "" {
		client := infraredis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis no responde, el limitador dejará pasar hasta que vuelva")
		}
		limiter = infraredis.NewRateLimiter(client, cfg.App.Name)
	}

	sched := scheduler.New(aggregator, scheduler.Config{
		RecomputeSchedule:  cfg.Stats.RecomputeSchedule,
		DailyResetSchedule: cfg.Stats.DailyResetSchedule,
	}, log.Component("scheduler"))
	if err := sched.Register(); err != nil {
		log.Fatal().Err(err).Msg("registrar trabajos programados")
	}
	sched.Start()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  time.Second * 60,
		ErrorHandler: httpRouter.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(httpRouter.AccessLog(log.Component("http")))

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Feria API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Resolver:    resolver,
		PIN:         guard,
		Engine:      engine,
		Submissions: submissionSvc,
		Stats:       aggregator,
		Limiter:     limiter,
		RateLimit: httpRouter.RateLimitConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		},
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Log:            log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("trabajos programados sin terminar al apagar")
	}

	log.Info().Msg("aplicación detenida")
}

func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	if cfg.Store.Driver == "memory" {
		store := memstore.New()
		if cfg.Store.SeedFile != "" {
			seed, err := memstore.LoadSeed(cfg.Store.SeedFile)
			if err != nil {
				return nil, err
			}
			if err := store.Apply(seed, cfg.PIN.BcryptCost, time.Now()); err != nil {
				return nil, err
			}
			log.Info().Str("file", cfg.Store.SeedFile).Int("tenants", len(seed.Tenants)).Msg("semilla cargada")
		}
		log.Warn().Msg("almacén en memoria: los datos se pierden al reiniciar")
		return &backend{
			txRunner:    store,
			users:       store.Users(),
			pins:        store.PINs(),
			tenants:     store.Tenants(),
			submissions: store.Submissions(),
			stats:       store.Stats(),
			close:       func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &backend{
		txRunner:    postgres.NewTxRunner(pool, cfg.Ledger.TxMaxRetries),
		users:       postgres.NewUserRepository(pool),
		pins:        postgres.NewPINRepository(pool),
		tenants:     postgres.NewTenantRepository(pool),
		submissions: postgres.NewCashSubmissionRepository(pool),
		stats:       postgres.NewStatsRepository(pool),
		close:       pool.Close,
	}, nil
}
