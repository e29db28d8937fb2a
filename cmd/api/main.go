package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"

	"recruitcore.io/internal/audit"
	"recruitcore.io/internal/auth"
	"recruitcore.io/internal/cache"
	"recruitcore.io/internal/config"
	"recruitcore.io/internal/directory"
	"recruitcore.io/internal/httpapi"
	"recruitcore.io/internal/migrate"
	"recruitcore.io/internal/obs"
	"recruitcore.io/internal/store/memory"
	store "recruitcore.io/internal/store/mongo"
	"recruitcore.io/internal/tracing"
)

var commit = "none"

// backend is everything the services need from the credential store.
type backend interface {
	auth.Store
	directory.Repository
	Ping(ctx context.Context) error
}

func main() {
	conf, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := obs.NewLogger(conf.Log.Level, conf.Log.Pretty)
	if err := run(conf, logger); err != nil {
		logger.Fatal().Err(err).Msg("api stopped")
	}
}

func run(conf *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	obs.Init()
	obs.InitBuildInfo(conf.Version, commit)

	tp, err := tracing.InitTracing(ctx, conf.Tracing.CollectorHost, "recruitcore-api")
	if err != nil {
		return err
	}
	if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	st, mongoStore, err := openStore(ctx, conf)
	if err != nil {
		return err
	}
	if mongoStore != nil {
		defer func() { _ = mongoStore.Close(context.Background()) }()
	}

	c, err := openCache(conf)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(conf.JWT.Secret, conf.JWT.Algorithm,
		auth.WithAccessTTL(conf.JWT.AccessTTL),
		auth.WithRefreshTTL(conf.JWT.RefreshTTL),
		auth.WithIssuer(conf.JWT.Issuer),
		auth.WithSharedBlacklist(cache.NewBlacklist(c)),
		auth.WithFailClosed(conf.Cache.BlacklistFailClose),
	)
	if err != nil {
		return err
	}
	resolver := auth.NewResolver(st, c,
		auth.WithPermissionTTL(conf.Cache.PermissionTTL),
		auth.WithUserTTL(conf.Cache.UserTTL),
	)
	sessions, err := auth.NewService(st, tokens, resolver)
	if err != nil {
		return err
	}
	rbac, err := auth.NewRBACService(st, resolver)
	if err != nil {
		return err
	}
	dir, err := directory.NewService(st, c)
	if err != nil {
		return err
	}

	if conf.Seed.OnStart {
		if err := seed(ctx, conf, st, mongoStore, resolver); err != nil {
			return err
		}
	}

	var recorderOpts []audit.RecorderOption
	if len(conf.Kafka.Brokers) > 0 {
		pub, err := audit.NewKafkaPublisher(conf.Kafka.Brokers, conf.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		recorderOpts = append(recorderOpts, audit.WithPublisher(pub))
	}

	scheduler, err := startJobs(ctx, conf, c, dir, tokens)
	if err != nil {
		return err
	}
	defer func() { _ = scheduler.Shutdown() }()

	probe := httpapi.ReadyProbe{Store: st, Cache: c}
	api := httpapi.New(probe, conf.Version, httpapi.Services{
		Auth:      sessions,
		RBAC:      rbac,
		Gate:      auth.NewGate(tokens, resolver),
		Directory: dir,
		Audit:     audit.NewRecorder(recorderOpts...),
	},
		httpapi.WithLogger(logger),
		httpapi.WithAllowedOrigins(conf.PublicCORS),
		httpapi.WithRateLimit(conf.RateLimit.PerSecond, conf.RateLimit.Burst),
	)

	srv := &http.Server{
		Addr:              conf.HTTPAddr,
		Handler:           otelhttp.NewHandler(api.Handler(), "http.server"),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", conf.Version).Str("store", conf.StoreKind).
			Bool("cache", c.Enabled()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	if conf.GRPCAddr != "" {
		lis, err := net.Listen("tcp", conf.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcServer = grpc.NewServer()
		httpapi.NewHealthServer(probe).Register(grpcServer)
		go func() {
			logger.Info().Str("addr", conf.GRPCAddr).Msg("grpc health listening")
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	dir.Flush(shutdownCtx)
	if n := c.Flush(shutdownCtx); n > 0 {
		logger.Warn().Int("pending", n).Msg("invalidations still pending at shutdown")
	}
	logger.Info().Msg("stopped")
	return nil
}

func openStore(ctx context.Context, conf *config.Config) (backend, *store.Store, error) {
	if conf.StoreKind == "memory" {
		zerolog.Ctx(ctx).Warn().Msg("using in-memory store; data is lost on restart")
		return memory.New(), nil, nil
	}
	st, err := store.Connect(ctx, conf.Mongo.URI, conf.Mongo.Database, conf.Mongo.Timeout)
	if err != nil {
		return nil, nil, err
	}
	return st, st, nil
}

// openCache returns a disabled cache when no Redis URL is configured.
func openCache(conf *config.Config) (*cache.Cache, error) {
	if conf.Cache.RedisURL == "" {
		return cache.New(nil), nil
	}
	client, err := cache.NewRedisClient(conf.Cache.RedisURL, conf.Cache.Timeout)
	if err != nil {
		return nil, err
	}
	return cache.New(cache.NewRedisStore(client,
		cache.WithOpTimeout(conf.Cache.Timeout),
		cache.WithOpenInterval(conf.Cache.BreakerOpen),
		cache.WithBreakerName("recruitcore-redis"),
	)), nil
}

// seed ensures default RBAC data. On Mongo the index migrations run first and the seed is
// recorded; afterwards every touched actor and the admin are invalidated.
func seed(ctx context.Context, conf *config.Config, st backend, mongoStore *store.Store, resolver *auth.Resolver) error {
	opts := auth.SeedOptions{AdminEmail: conf.Seed.AdminEmail, AdminPassword: conf.Seed.AdminPassword}
	var (
		report auth.SeedReport
		err    error
	)
	if mongoStore != nil {
		mgr := migrate.NewManager(mongoStore.Database())
		if err := mgr.Up(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		report, err = mgr.Seed(ctx, st, opts)
	} else {
		report, err = auth.Seed(ctx, st, opts)
	}
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	resolver.InvalidateActors(ctx, report.TouchedActors...)
	if report.AdminUserID != "" {
		resolver.InvalidateUserActors(ctx, report.AdminUserID)
	}
	zerolog.Ctx(ctx).Info().
		Int("permissions_created", report.PermissionsCreated).
		Int("actors_created", report.ActorsCreated).
		Int("links_created", report.LinksCreated).
		Bool("admin_created", report.AdminCreated).
		Msg("seed finished")
	return nil
}

// startJobs schedules retries of deferred cache invalidations and pruning of the local
// blacklist.
func startJobs(ctx context.Context, conf *config.Config, c *cache.Cache, dir *directory.Service, tokens *auth.TokenService) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	logger := zerolog.Ctx(ctx)
	_, err = s.NewJob(
		gocron.DurationJob(conf.Cache.RetryInterval),
		gocron.NewTask(func() {
			if n := dir.Flush(ctx); n > 0 {
				logger.Warn().Int("pending", n).Msg("company fan-outs still pending")
			}
			if n := c.Flush(ctx); n > 0 {
				logger.Warn().Int("pending", n).Msg("cache invalidations still pending")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}
	_, err = s.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			if n := tokens.LocalBlacklist().Prune(); n > 0 {
				logger.Debug().Int("pruned", n).Msg("local blacklist pruned")
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	s.Start()
	return s, nil
}
