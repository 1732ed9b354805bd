package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"findoc-gateway/internal/analysisapi"
	"findoc-gateway/internal/cache"
	"findoc-gateway/internal/dashboard"
	"findoc-gateway/internal/health"
	"findoc-gateway/internal/kpi"
	"findoc-gateway/internal/news"
	"findoc-gateway/internal/shared/config"
	"findoc-gateway/internal/shared/server"
	"findoc-gateway/internal/shared/storage/db"
	"findoc-gateway/internal/shared/storage/object"
	localstore "findoc-gateway/internal/shared/storage/object/local"
	s3store "findoc-gateway/internal/shared/storage/object/s3"
	"findoc-gateway/internal/shared/telemetry"
	"findoc-gateway/internal/summary"
	"findoc-gateway/internal/uploads"
)

// App holds shared dependencies.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Cache            *cache.Coordinator
	Client           *analysisapi.Client
	UploadService    *uploads.Service
	DashboardService *dashboard.Service
	NewsService      *news.Service
	SummaryService   *summary.Service

	closers []func() error
}

// Build prepares dependencies and the router from configuration.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	scopes, err := BuildScopes(ctx, cfg, db.DefaultServerOptions())
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, DB: scopes.DB, Cache: scopes.Coordinator, closers: scopes.closers}

	client, err := analysisapi.NewClient(cfg.AnalysisAPIURL, cfg.AnalysisAPITimeout)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Client = client

	app.UploadService = &uploads.Service{Backend: client, Cache: app.Cache, MaxBytes: cfg.MaxUploadBytes}
	app.DashboardService = &dashboard.Service{Backend: client, Files: app.UploadService, Cache: app.Cache}
	app.NewsService = &news.Service{Backend: client, Cache: app.Cache}
	app.SummaryService = &summary.Service{Backend: client, Cache: app.Cache}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		UploadHandler:    uploads.NewHandler(app.UploadService),
		DashboardHandler: dashboard.NewHandler(app.DashboardService),
		NewsHandler:      news.NewHandler(app.NewsService),
		SummaryHandler:   summary.NewHandler(app.SummaryService),
		Health:           scopes.Health(),
	})
	return app, nil
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Scopes is the cache stack built from configuration.
type Scopes struct {
	DB          *sql.DB
	Durable     cache.DurableScope
	Session     cache.SessionScope
	Coordinator *cache.Coordinator

	closers []func() error
}

// Health registers a readiness check for each networked scope.
func (s *Scopes) Health() *health.Service {
	svc := health.NewService(0)
	if s.DB != nil {
		svc.Register("postgres", s.DB.PingContext)
	}
	if p, ok := s.Session.(interface{ Ping(context.Context) error }); ok {
		svc.Register("redis", p.Ping)
	}
	return svc
}

// Close releases the scope connections.
func (s *Scopes) Close() error {
	app := App{closers: s.closers}
	s.closers = nil
	return app.Close()
}

// BuildScopes builds the durable and session scopes and the coordinator
// over them. dbOpts sizes the pool when the durable scope is Postgres.
func BuildScopes(ctx context.Context, cfg config.Config, dbOpts db.Options) (*Scopes, error) {
	specs := kpi.DefaultSpecs()
	if cfg.KPISpecFile != "" {
		loaded, err := kpi.LoadSpecs(cfg.KPISpecFile)
		if err != nil {
			return nil, err
		}
		specs = loaded
	}

	s := &Scopes{}
	durable, err := buildDurable(ctx, cfg, dbOpts, s)
	if err != nil {
		s.Close()
		return nil, err
	}
	session, err := buildSession(cfg, s)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Durable = durable
	s.Session = session
	s.Coordinator = cache.New(durable, session, cache.Options{
		Specs:      specs,
		NewsTTL:    cfg.NewsCacheTTL,
		SessionTTL: cfg.SessionTTL,
	})
	telemetry.Info("bootstrap.cache_ready", map[string]any{
		"durable_store": cfg.DurableStore,
		"object_store":  cfg.ObjectStoreType,
		"session_store": cfg.SessionStore,
		"kpis":          len(specs),
	})
	return s, nil
}

func buildDurable(ctx context.Context, cfg config.Config, dbOpts db.Options, s *Scopes) (cache.DurableScope, error) {
	switch cfg.DurableStore {
	case config.DurableMemory:
		return cache.NewMemoryDurable(), nil
	case config.DurablePostgres:
		sqlDB, err := buildDB(ctx, cfg, dbOpts)
		if err != nil {
			return nil, err
		}
		if sqlDB == nil {
			return cache.NewMemoryDurable(), nil
		}
		s.DB = sqlDB
		s.closers = append(s.closers, sqlDB.Close)
		return &cache.PGDurable{DB: sqlDB}, nil
	default:
		store, err := buildStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &cache.ObjectDurable{Store: store}, nil
	}
}

func buildDB(ctx context.Context, cfg config.Config, dbOpts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_missing", map[string]any{"fallback": "memory"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required for DURABLE_STORE=postgres")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(dbOpts))
	if err == nil {
		if err = db.RunMigrations(ctx, sqlDB); err != nil {
			sqlDB.Close()
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_unavailable", map[string]any{"fallback": "memory", "err": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, s3store.Options{
			Region:   cfg.AWSRegion,
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			KMSKeyID: cfg.SSEKMSKeyID,
			Endpoint: cfg.S3Endpoint,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildSession(cfg config.Config, s *Scopes) (cache.SessionScope, error) {
	if cfg.SessionStore != config.SessionRedis {
		return cache.NewMemorySession(), nil
	}
	rs, err := cache.NewRedisSession(cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"fallback": "memory", "err": err})
			return cache.NewMemorySession(), nil
		}
		return nil, err
	}
	s.closers = append(s.closers, rs.Close)
	return rs, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
