package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "github.com/deskworks/dashboard/docs"
	"github.com/deskworks/dashboard/internal/api"
	"github.com/deskworks/dashboard/internal/api/handler"
	"github.com/deskworks/dashboard/internal/api/middleware"
	"github.com/deskworks/dashboard/internal/core/domain"
	"github.com/deskworks/dashboard/internal/core/ports"
	"github.com/deskworks/dashboard/internal/core/service"
	"github.com/deskworks/dashboard/internal/infrastructure/config"
	"github.com/deskworks/dashboard/internal/infrastructure/db/memory"
	mongodb "github.com/deskworks/dashboard/internal/infrastructure/db/mongo"
	redisdb "github.com/deskworks/dashboard/internal/infrastructure/db/redis"
	opshttp "github.com/deskworks/dashboard/internal/infrastructure/http"
	"github.com/deskworks/dashboard/internal/infrastructure/http/handlers"
	"github.com/deskworks/dashboard/internal/infrastructure/identity"
	"github.com/deskworks/dashboard/internal/infrastructure/queue"
	"github.com/deskworks/dashboard/pkg/logger"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard and operations servers",
	Long: `Starts the dashboard HTTP server (session API and guarded pages) and the
operations server (health probes, Prometheus metrics and API docs).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.IsDevelopment(), Service: "dashboard", Env: cfg.Env})

	var (
		checks    []handlers.DependencyCheck
		snapshots ports.SnapshotStore
		roles     ports.RoleStore
		events    ports.SessionEventPublisher = ports.NopPublisher{}
		activity  handler.ActivityLister
		runAudit  func(context.Context) error
	)

	// --- Redis ---
	if cfg.UsesRedis() {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB, Timeout: connectTimeout})
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
		checks = append(checks, handlers.DependencyCheck{Name: "redis", Check: redisdb.Pinger(rdb)})

		if cfg.Stores.Snapshots == config.BackendRedis {
			snapshots = redisdb.NewSnapshotStore(rdb, cfg.Session.TTL)
		}
		if cfg.Stores.Roles == config.BackendRedis {
			roles = redisdb.NewRoleStore(rdb)
		}
	}

	// --- MongoDB ---
	if cfg.UsesMongo() {
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database, Timeout: connectTimeout})
		if err != nil {
			return err
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			defer cancel()
			_ = client.Disconnect(dctx)
		}()
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			return err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")
		checks = append(checks, handlers.DependencyCheck{Name: "mongodb", Check: mongodb.Pinger(db)})

		if cfg.Stores.Roles == config.BackendMongo {
			roles = mongodb.NewRoleStore(db)
		}
		if cfg.Audit.Enabled {
			repo := mongodb.NewSessionEventRepository(db)
			dispatcher := queue.NewDispatcher(cfg.Audit.Workers, cfg.Audit.QueueSize, repo, logger.ForComponent("audit"))
			events = dispatcher
			activity = repo
			runAudit = dispatcher.Run
		}
	}

	// --- In-memory fallbacks ---
	if snapshots == nil {
		snapshots = memory.NewSnapshotStore(cfg.Session.TTL)
	}
	if roles == nil {
		roles = memory.NewRoleStore()
	}

	// --- Identity backend ---
	factory, err := identity.NewFactory(identity.Config{BaseURL: cfg.Identity.URL, Timeout: cfg.Identity.Timeout})
	if err != nil {
		return err
	}
	checks = append(checks, handlers.DependencyCheck{Name: "identity", Check: factory.Ping})

	// --- Sessions ---
	sessions, err := service.NewSessionManager(service.SessionDeps{
		Clients:   factory,
		Resolver:  service.NewRoleResolver(domain.DefaultRoleTable()),
		Roles:     roles,
		Snapshots: snapshots,
		Events:    events,
		Log:       logger.ForComponent("session"),
	}, cfg.Session.CacheSize)
	if err != nil {
		return err
	}

	app := api.NewRouter(api.Dependencies{
		Sessions:   sessions,
		Cookies:    middleware.NewSessionCookies(cfg.Session.Secret, cfg.Session.TTL, cfg.Session.CookieSecure),
		Guard:      service.NewRouteGuard(service.DefaultRouteTable(), snapshots, roles, logger.ForComponent("guard")),
		Activity:   activity,
		Log:        logger.ForComponent("http"),
		LoginRate:  cfg.Login.Rate,
		LoginBurst: cfg.Login.Burst,
	})
	ops := opshttp.NewOpsRouter(checks...)

	g, gctx := errgroup.WithContext(ctx)
	if runAudit != nil {
		g.Go(func() error { return runAudit(gctx) })
	}
	g.Go(func() error { return start(app, ":"+cfg.Port, "dashboard", log) })
	g.Go(func() error { return start(ops, ":"+cfg.OpsPort, "ops", log) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(app.Shutdown(sctx), ops.Shutdown(sctx))
	})

	return g.Wait()
}

func start(e *echo.Echo, addr, name string, log zerolog.Logger) error {
	log.Info().Str("server", name).Str("addr", addr).Msg("listening")
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}
