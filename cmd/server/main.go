// Command server runs the escrow HTTP API.
//
// @title                       Escrow Service API
// @version                     1.0
// @description                 Two-party escrow between clients and freelancers.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/99minutos/escrow-service/internal/api"
	"github.com/99minutos/escrow-service/internal/api/handler"
	"github.com/99minutos/escrow-service/internal/api/metrics"
	"github.com/99minutos/escrow-service/internal/core/domain"
	"github.com/99minutos/escrow-service/internal/core/ports"
	"github.com/99minutos/escrow-service/internal/core/service"
	"github.com/99minutos/escrow-service/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/escrow-service/internal/infrastructure/db/redis"
	"github.com/99minutos/escrow-service/internal/infrastructure/db/sqlite"
	"github.com/99minutos/escrow-service/internal/infrastructure/memory"
	"github.com/99minutos/escrow-service/internal/infrastructure/queue"
	"github.com/99minutos/escrow-service/internal/pkg/config"
	"github.com/99minutos/escrow-service/internal/platform/otel"
	"github.com/99minutos/escrow-service/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: cfg.ServiceName,
		Env:     cfg.Env,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// backends holds the adapters chosen by configuration plus their closers.
type backends struct {
	store     ports.ProjectStore
	ledger    ports.Ledger
	idem      ports.IdempotencyStore
	eventLog  ports.EventLog
	authRepo  ports.AuthRepository
	sinks     []ports.EventSink
	readiness map[string]handler.Pinger
	closers   []func(context.Context) error
}

func (b *backends) close(ctx context.Context, log zerolog.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("close backend")
		}
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	shutdownTracing, err := otel.Setup(ctx, otel.Options{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close(context.Background(), log)

	dispatcher := queue.NewDispatcher(cfg.EventWorkers, log, b.sinks...)
	dispatcher.Start(context.WithoutCancel(ctx))

	escrow := service.NewEscrowService(b.store, b.ledger, dispatcher, log,
		service.WithEventLog(b.eventLog),
		service.WithIdempotencyStore(b.idem),
	)
	auth := service.NewAuthService(b.authRepo, cfg.JWTSecret, cfg.TokenTTL)
	if cfg.Operator.Enabled() {
		if err := auth.EnsureOperator(ctx, cfg.Operator.Email, cfg.Operator.Password, domain.Identity(cfg.Operator.Identity)); err != nil {
			dispatcher.Stop()
			return fmt.Errorf("bootstrap operator: %w", err)
		}
	}

	e := api.NewRouter(api.Deps{
		Escrow:    escrow,
		Auth:      auth,
		JWTSecret: cfg.JWTSecret,
		Logger:    log,
		Readiness: b.readiness,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("store", cfg.StoreBackend).
			Str("ledger", cfg.LedgerBackend).
			Msg("escrow service listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			dispatcher.Stop()
			return err
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// In-flight requests are done, so every event is already queued.
	dispatcher.Stop()
	log.Info().Msg("escrow service stopped")
	return nil
}

func openBackends(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backends, error) {
	b := &backends{readiness: make(map[string]handler.Pinger)}
	fail := func(err error) (*backends, error) {
		b.close(context.Background(), log)
		return nil, err
	}

	var rdb *goredis.Client
	if cfg.UsesRedis() {
		client, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fail(err)
		}
		rdb = client
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		b.readiness["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	b.eventLog = memory.NewEventLog()
	b.authRepo = memory.NewAuthRepository()

	switch cfg.StoreBackend {
	case config.BackendMemory:
		b.store = memory.NewProjectStore()
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return fail(err)
		}
		b.store = sqlite.NewProjectStore(db)
		b.closers = append(b.closers, func(context.Context) error { return db.Close() })
		b.readiness["sqlite"] = db.PingContext
	case config.BackendMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return fail(err)
		}
		b.closers = append(b.closers, client.Disconnect)
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			return fail(err)
		}
		events := mongo.NewEventRepository(db)
		b.store = mongo.NewProjectStore(db)
		b.eventLog = events
		b.authRepo = mongo.NewAuthRepository(db)
		b.readiness["mongodb"] = mongoPinger(client)
	case config.BackendRedis:
		b.store = redisdb.NewProjectStore(rdb)
	}

	switch cfg.LedgerBackend {
	case config.BackendRedis:
		b.ledger = redisdb.NewLedger(rdb)
	default:
		b.ledger = memory.NewLedger()
	}

	if rdb != nil {
		b.idem = redisdb.NewIdempotencyStore(rdb)
	} else {
		b.idem = memory.NewIdempotencyStore()
	}

	// The audit log comes first so operators see an event before it is
	// fanned out elsewhere.
	if sink, ok := b.eventLog.(ports.EventSink); ok {
		b.sinks = append(b.sinks, sink)
	}
	b.sinks = append(b.sinks, metrics.NewSink())
	if rdb != nil {
		b.sinks = append(b.sinks, redisdb.NewPublisher(rdb))
	}

	return b, nil
}

func mongoPinger(client *mongodriver.Client) handler.Pinger {
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}
