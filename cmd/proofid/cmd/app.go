package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	goredis "github.com/redis/go-redis/v9"

	"proofid/internal/gate"
	gatehandler "proofid/internal/gate/handler"
	gatemetrics "proofid/internal/gate/metrics"
	httpapi "proofid/internal/http"
	identityhandler "proofid/internal/identity/handler"
	identitymetrics "proofid/internal/identity/metrics"
	identityservice "proofid/internal/identity/service"
	identitystore "proofid/internal/identity/store"
	jwttoken "proofid/internal/jwt_token"
	"proofid/internal/platform/config"
	httpmetrics "proofid/internal/platform/metrics"
	"proofid/internal/platform/postgres"
	"proofid/internal/platform/redis"
	ratelimitmetrics "proofid/internal/ratelimit/metrics"
	ratelimit "proofid/internal/ratelimit/middleware"
	ratelimitmodels "proofid/internal/ratelimit/models"
	"proofid/internal/ratelimit/store/bucket"
	recordshandler "proofid/internal/records/handler"
	recordsmetrics "proofid/internal/records/metrics"
	recordsservice "proofid/internal/records/service"
	recordsstore "proofid/internal/records/store"
	audit "proofid/pkg/platform/audit"
	"proofid/pkg/platform/audit/publisher"
	"proofid/pkg/platform/audit/publishers/kafka"
	auditmemory "proofid/pkg/platform/audit/store/memory"
	auditpostgres "proofid/pkg/platform/audit/store/postgres"
	txcontext "proofid/pkg/platform/tx"
)

const auditBufferSize = 1024

// application is the fully wired process. close releases everything in
// reverse order of acquisition.
type application struct {
	router  http.Handler
	closers []func() error
}

func (a *application) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type backends struct {
	runner     txcontext.Runner
	identities identityservice.Store
	records    recordsservice.Store
	audit      audit.Store
	buckets    ratelimit.BucketStore
	health     map[string]httpapi.HealthCheck
}

func buildApplication(ctx context.Context, cfg config.Server, logger *slog.Logger, autoMigrate bool) (*application, error) {
	admins, err := cfg.AdminPrincipals()
	if err != nil {
		return nil, err
	}
	if expr := cfg.Records.CreateExpr; expr != "" {
		if err := gate.ValidateExpression(expr); err != nil {
			return nil, fmt.Errorf("invalid RECORDS_CREATE_EXPR: %w", err)
		}
	}
	if err := cfg.CheckSigningKey(); err != nil {
		return nil, err
	}

	app := &application{}
	b, err := openBackends(ctx, cfg, logger, autoMigrate, app)
	if err != nil {
		_ = app.close()
		return nil, err
	}

	pubOpts := []publisher.Option{
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(logger),
		publisher.WithMetrics(publisher.NewMetrics()),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, 1, 1); err != nil {
			logger.WarnContext(ctx, "could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		sink, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, kafka.WithLogger(logger))
		if err != nil {
			_ = app.close()
			return nil, err
		}
		pubOpts = append(pubOpts, publisher.WithSink(sink))
		logger.InfoContext(ctx, "streaming audit events to kafka", "topic", cfg.Kafka.AuditTopic)
	}
	auditPublisher := publisher.NewPublisher(b.audit, pubOpts...)
	app.closers = append(app.closers, auditPublisher.Close)

	identities, err := identityservice.New(b.identities, b.runner, admins,
		identityservice.WithLogger(logger),
		identityservice.WithAuditPublisher(auditPublisher),
		identityservice.WithMetrics(identitymetrics.New()),
	)
	if err != nil {
		_ = app.close()
		return nil, err
	}

	accessGate := gate.New(identities,
		gate.WithLogger(logger),
		gate.WithMetrics(gatemetrics.New()),
	)

	recordOpts := []recordsservice.Option{
		recordsservice.WithLogger(logger),
		recordsservice.WithAuditPublisher(auditPublisher),
		recordsservice.WithMetrics(recordsmetrics.New()),
	}
	if expr := cfg.Records.CreateExpr; expr != "" {
		recordOpts = append(recordOpts, recordsservice.WithCreationPredicate(gate.Expression(expr)))
	}
	records := recordsservice.New(b.records, b.runner, accessGate, recordOpts...)

	tokens := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
	app.router = httpapi.NewRouter(httpapi.Dependencies{
		Logger:    logger,
		Tokens:    jwttoken.NewJWTServiceAdapter(tokens),
		Identity:  identityhandler.New(identities, logger),
		Gate:      gatehandler.New(accessGate, logger),
		Records:   recordshandler.New(records, logger),
		Metrics:   httpmetrics.New(),
		RateLimit: newRateLimiter(cfg.RateLimit, b.buckets, logger),
		Health:    b.health,
	})
	return app, nil
}

func newRateLimiter(cfg config.RateLimitConfig, buckets ratelimit.BucketStore, logger *slog.Logger) *ratelimit.Middleware {
	if cfg.ClientLimit <= 0 && cfg.PrincipalLimit <= 0 {
		logger.Info("rate limiting disabled")
		return nil
	}
	return ratelimit.New(buckets, map[ratelimitmodels.EndpointClass]ratelimitmodels.Policy{
		ratelimitmodels.ClassClient:    {Limit: cfg.ClientLimit, Window: cfg.Window},
		ratelimitmodels.ClassPrincipal: {Limit: cfg.PrincipalLimit, Window: cfg.Window},
	},
		ratelimit.WithLogger(logger),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	)
}

// openBackends selects storage: PostgreSQL for everything when DATABASE_URL
// is set; otherwise in-memory stores under one serial runner, with identities
// in Redis when REDIS_URL is set. Rate limit buckets use Redis whenever it is
// configured so all instances share one budget.
func openBackends(ctx context.Context, cfg config.Server, logger *slog.Logger, autoMigrate bool, app *application) (*backends, error) {
	b := &backends{
		buckets: bucket.NewInMemoryBucketStore(),
		health:  map[string]httpapi.HealthCheck{},
	}

	var client *goredis.Client
	if cfg.Redis.URL != "" {
		var err error
		client, err = redis.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client.Close)
		b.buckets = bucket.NewRedis(client)
		b.health["redis"] = redis.HealthCheck(client)
	}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		if autoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return nil, err
			}
		}
		b.runner = txcontext.NewPostgres(db)
		b.identities = identitystore.NewPostgres(db)
		b.records = recordsstore.NewPostgres(db)
		b.audit = auditpostgres.New(db)
		b.health["postgres"] = pinger(db)
		logger.InfoContext(ctx, "using postgres storage")
		return b, nil
	}

	b.runner = txcontext.NewSerial()
	b.records = recordsstore.NewInMemory()
	b.audit = auditmemory.NewInMemoryStore()

	if client != nil {
		b.identities = identitystore.NewRedis(client)
		logger.InfoContext(ctx, "using redis identity store with in-memory records")
		return b, nil
	}

	b.identities = identitystore.NewInMemory()
	logger.WarnContext(ctx, "using in-memory storage; state is lost on restart")
	return b, nil
}

func pinger(db *sql.DB) httpapi.HealthCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}
