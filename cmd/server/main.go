package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"wordhub/internal/authz"
	"wordhub/internal/command"
	conflictservice "wordhub/internal/conflict/service"
	conflictstore "wordhub/internal/conflict/store"
	"wordhub/internal/delivery"
	"wordhub/internal/distribution"
	"wordhub/internal/matching"
	"wordhub/internal/pagination"
	"wordhub/internal/platform/config"
	"wordhub/internal/platform/httpserver"
	"wordhub/internal/platform/kafka"
	"wordhub/internal/platform/logger"
	"wordhub/internal/platform/metrics"
	"wordhub/internal/platform/postgres"
	"wordhub/internal/platform/redis"
	"wordhub/internal/platform/workers"
	"wordhub/internal/ratelimit"
	"wordhub/internal/taxonomy"
	httptransport "wordhub/internal/transport/http"
	wordmetrics "wordhub/internal/words/metrics"
	"wordhub/internal/words/service"
	"wordhub/internal/words/store"
	pstrings "wordhub/pkg/platform/strings"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const pushQueueSize = 256

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wordhub: %v\n", err)
		os.Exit(1)
	}
}

// infra holds the external clients so shutdown can close them in order.
type infra struct {
	redis *redis.Client
	db    *sql.DB
	kafka *kgo.Client
}

func (i *infra) health(r *http.Request) error {
	ctx := r.Context()
	if i.redis != nil {
		if err := i.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if i.db != nil {
		if err := i.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

func (i *infra) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("postgres close failed", "error", err)
		}
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	file, err := config.LoadFile(cfg.File)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients := &infra{}
	defer clients.close(log)
	if clients.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return err
	}

	tx, err := taxonomy.New(file.Types...)
	if err != nil {
		return err
	}
	persister, err := openPersister(ctx, cfg, clients)
	if err != nil {
		return err
	}

	compiler, err := matching.NewCompiler(cfg.Registry.PatternCache, cfg.Registry.MatchTimeout)
	if err != nil {
		return err
	}
	wm := wordmetrics.New()
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(wm),
		service.WithValidator(compiler.Validate),
	}
	if len(file.Groups) > 0 {
		opts = append(opts, service.WithRelation(taxonomy.GroupRelation(groupsOf(file.Groups))))
	}
	registry, err := service.New(tx, persister, opts...)
	if err != nil {
		return err
	}
	if err := registry.Load(ctx); err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	guard := service.NewGuard()

	var conflicts conflictservice.Store = conflictstore.NewInMemory()
	if clients.redis != nil {
		conflicts = conflictstore.NewRedis(clients.redis.Client, clients.redis.Key("conflict", ""))
	}
	conflictSvc, err := conflictservice.New(conflicts, registry,
		conflictservice.WithLogger(log),
		conflictservice.WithTTL(cfg.Registry.ConflictTTL),
		conflictservice.WithMetrics(conflictservice.NewMetrics()),
	)
	if err != nil {
		return err
	}

	pool := workers.New(cfg.Registry.PushWorkers, pushQueueSize,
		workers.WithLogger(log),
		workers.WithMetrics(workers.NewMetrics()),
	)
	transport, err := openTransport(ctx, cfg, file, clients, log)
	if err != nil {
		return err
	}
	publisher, err := distribution.New(registry, transport, pool, subscribersOf(file),
		distribution.WithLogger(log),
		distribution.WithMetrics(distribution.NewMetrics()),
		distribution.WithSender(file.Sender),
		distribution.WithCaptchaReceiver(file.Captcha),
	)
	if err != nil {
		return err
	}

	pages, err := pagination.New(registry,
		pagination.WithPageSize(cfg.Registry.PageSize),
		pagination.WithMatcher(compiler.Matches),
		pagination.WithLogger(log),
	)
	if err != nil {
		return err
	}
	matcher, err := matching.New(registry, compiler, matching.WithLogger(log), matching.WithMetrics(wm))
	if err != nil {
		return err
	}
	sender, err := openSender(cfg, log)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(cfg.Registry.CommandLimit, cfg.Registry.CommandWindow,
		ratelimit.WithMetrics(ratelimit.NewMetrics()))
	dispatcher, err := command.New(command.Dependencies{
		Guard:      guard,
		Registry:   registry,
		Conflicts:  conflictSvc,
		Publisher:  publisher,
		Pages:      pages,
		Matcher:    matcher,
		Compiler:   compiler,
		Sender:     sender,
		Authorizer: openAuthorizer(ctx, cfg, clients, log),
		Limiter:    limiter,
	}, command.WithLogger(log), command.WithIdentity(file.Sender, version))
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Handler:    httptransport.New(dispatcher, pages, matcher, registry, log),
		Logger:     log,
		Metrics:    metrics.New(),
		AdminToken: cfg.Server.AdminToken,
		Timeout:    cfg.Server.RequestTimeout,
		Health:     clients.health,
	})
	srv := httpserver.New(cfg.Server, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting wordhub", "addr", cfg.Server.Addr, "version", version, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	bg := &jobs{guard: guard, registry: registry, conflicts: conflictSvc, limiter: limiter, logger: log}
	g.Go(func() error { return bg.flushEvery(gctx, cfg.Registry.FlushInterval) })
	g.Go(func() error { return bg.rolloverDaily(gctx) })
	g.Go(func() error { return bg.sweepEvery(gctx, time.Hour) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("graceful shutdown failed", "error", err)
		}
		if err := bg.flush(shutdownCtx); err != nil {
			log.Error("final flush failed", "error", err)
		}
		if err := pool.Close(shutdownCtx); err != nil {
			log.Warn("worker pool did not drain", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openPersister(ctx context.Context, cfg config.Config, clients *infra) (store.Persister, error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		clients.db = db
		s := store.NewPostgres(db)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageRedis:
		if clients.redis == nil {
			return nil, errors.New("redis storage requires REDIS_URL")
		}
		return store.NewRedis(clients.redis.Client, store.WithRedisKey(clients.redis.Key("tables"))), nil
	default:
		return store.NewFile(cfg.Storage.DataDir)
	}
}

// openTransport uses kafka when brokers are configured and an in-process
// transport otherwise.
func openTransport(ctx context.Context, cfg config.Config, file config.File, clients *infra, log *slog.Logger) (distribution.Transport, error) {
	client, err := kafka.New(cfg.Kafka)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Warn("KAFKA_BROKERS not set, distribution stays in process")
		return distribution.NewMemoryTransport(), nil
	}
	clients.kafka = client

	lists := [][]string{{file.Captcha}}
	for _, rs := range file.Subscribers {
		lists = append(lists, rs)
	}
	var topics []string
	for _, r := range pstrings.SortedUnion(lists...) {
		topics = append(topics, kafka.TopicFor(cfg.Kafka.TopicPrefix, r))
	}
	if err := kafka.EnsureTopics(ctx, client, cfg.Kafka, topics...); err != nil {
		return nil, err
	}
	return distribution.NewKafkaTransport(client, cfg.Kafka.TopicPrefix), nil
}

func openSender(cfg config.Config, log *slog.Logger) (delivery.Sender, error) {
	if cfg.Delivery.Sender != config.SenderWebhook {
		return delivery.NewLogSender(log), nil
	}
	return delivery.NewWebhookSender(cfg.Delivery.WebhookURL,
		delivery.WithWebhookLogger(log),
		delivery.WithRate(cfg.Delivery.Rate, cfg.Delivery.Burst),
		delivery.WithRetries(cfg.Delivery.RetryMax, 500*time.Millisecond, 30*time.Second),
	)
}

// openAuthorizer returns nil, letting everyone in, only when neither a
// static admin list nor redis is configured.
func openAuthorizer(ctx context.Context, cfg config.Config, clients *infra, log *slog.Logger) command.Authorizer {
	static := authz.NewStatic(cfg.Admins...)
	if clients.redis != nil {
		oracle := authz.NewRedis(clients.redis.Client, static,
			authz.WithKey(clients.redis.Key("admins")), authz.WithLogger(log))
		if len(cfg.Admins) > 0 {
			if err := oracle.Grant(ctx, cfg.Admins...); err != nil {
				log.Warn("seeding redis admin set failed", "error", err)
			}
		}
		return oracle
	}
	if len(cfg.Admins) == 0 {
		log.Warn("no WORDHUB_ADMINS configured, every chat user may run admin commands")
		return nil
	}
	return static
}

func groupsOf(raw [][]string) [][]taxonomy.WordType {
	out := make([][]taxonomy.WordType, 0, len(raw))
	for _, g := range raw {
		group := make([]taxonomy.WordType, 0, len(g))
		for _, t := range g {
			group = append(group, taxonomy.WordType(t))
		}
		out = append(out, group)
	}
	return out
}

func subscribersOf(file config.File) map[taxonomy.WordType][]string {
	out := make(map[taxonomy.WordType][]string, len(file.Subscribers))
	for t, receivers := range file.Subscribers {
		out[taxonomy.WordType(t)] = receivers
	}
	return out
}
