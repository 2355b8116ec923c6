package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"resume-pdf-api/internal/analytics"
	"resume-pdf-api/internal/jobs"
	"resume-pdf-api/internal/ledger"
	"resume-pdf-api/internal/notify"
	"resume-pdf-api/internal/pipeline"
	"resume-pdf-api/internal/queue"
	"resume-pdf-api/internal/renderer"
	"resume-pdf-api/internal/services/health"
	"resume-pdf-api/internal/shared/config"
	"resume-pdf-api/internal/shared/server"
	"resume-pdf-api/internal/shared/storage/db"
	"resume-pdf-api/internal/shared/storage/object"
	localstore "resume-pdf-api/internal/shared/storage/object/local"
	s3store "resume-pdf-api/internal/shared/storage/object/s3"
	"resume-pdf-api/internal/shared/telemetry"
	"resume-pdf-api/internal/templates"
	"resume-pdf-api/internal/tenants"
	"resume-pdf-api/internal/usage"
	"resume-pdf-api/internal/webhook"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Redis  *redis.Client
	Store  object.ObjectStore
	// LocalStoreDir is set when PDFs are kept on local disk and served under /files.
	LocalStoreDir string
	Queue         queue.Client

	JobsRepo    jobs.Repo
	Ledger      ledger.Ledger
	Tenants     *tenants.Service
	Templates   *templates.Service
	Usage       *usage.Service
	Tracker     *analytics.Tracker
	Renderer    *renderer.Pool
	Notifier    *notify.Dispatcher
	Engine      *pipeline.Engine
	Scheduler   pipeline.Scheduler
	Coordinator *pipeline.Coordinator
	Health      *health.Service

	// Runner lets callers override pipeline execution for tests.
	Runner pipeline.Runner

	notifyCancel context.CancelFunc
}

// Build prepares every dependency and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if sqlDB != nil {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			if !isDevLike(cfg.Env) {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			telemetry.Warn("bootstrap.migrations_failed", map[string]any{"error": err, "fallback": "memory"})
			sqlDB = nil
		}
	}

	app := &App{Config: cfg, DB: sqlDB}

	if err := buildStore(ctx, app); err != nil {
		return nil, err
	}
	if err := buildQueue(ctx, app); err != nil {
		return nil, err
	}
	if err := buildLedger(ctx, app); err != nil {
		return nil, err
	}
	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}
	buildPipeline(app)
	buildHealth(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Tenants:         app.Tenants,
		Health:          app.Health,
		PipelineHandler: pipeline.NewHandler(app.Coordinator),
		JobsHandler:     jobs.NewHandler(app.JobsRepo),
		TemplateHandler: templates.NewHandler(app.Templates),
		UsageHandler:    usage.NewHandler(app.Usage, app.Tenants),
		FilesDir:        app.LocalStoreDir,
	})

	return app, nil
}

// RunJob executes one pipeline run through the configured runner.
func (a *App) RunJob(ctx context.Context, jobID, tenantID string) error {
	runner := a.Runner
	if runner == nil {
		runner = a.Engine
	}
	return runner.Run(ctx, jobID, tenantID)
}

// Close waits for notifications in flight and releases browsers and connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if local, ok := a.Scheduler.(*pipeline.LocalScheduler); ok {
		if err := local.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("wait for runs: %w", err))
		}
	}
	if a.Notifier != nil {
		if err := a.Notifier.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush notifications: %w", err))
		}
	}
	if a.notifyCancel != nil {
		a.notifyCancel()
	}
	if a.Renderer != nil {
		a.Renderer.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil && !db.IsLambdaRuntime() {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_missing", map[string]any{"fallback": "memory"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_connect_failed", map[string]any{"error": err, "fallback": "memory"})
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, app *App) error {
	cfg := app.Config.Storage
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3store.New(ctx, s3store.Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			KMSKeyID:        cfg.SSEKMSKeyID,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			PublicBaseURL:   cfg.PublicBaseURL,
			URLExpiry:       cfg.URLExpiry,
		})
		if err != nil {
			return fmt.Errorf("s3 store: %w", err)
		}
		app.Store = store
	default:
		baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
		if baseURL == "" {
			baseURL = "http://localhost" + server.Addr(app.Config.Port)
		}
		store := localstore.New(cfg.LocalStoreDir, baseURL+"/files")
		app.Store = store
		app.LocalStoreDir = store.Dir()
	}
	return nil
}

func buildQueue(ctx context.Context, app *App) error {
	if strings.TrimSpace(app.Config.SQSQueueURL) == "" {
		return nil
	}
	client, err := queue.NewSQSClient(ctx, app.Config.SQSQueueURL, app.Config.Storage.AWSRegion)
	if err != nil {
		return err
	}
	app.Queue = client
	return nil
}

func buildLedger(ctx context.Context, app *App) error {
	if url := strings.TrimSpace(app.Config.RedisURL); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			if !isDevLike(app.Config.Env) {
				return fmt.Errorf("redis ping: %w", err)
			}
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"error": err})
		} else {
			app.Redis = client
			app.Ledger = ledger.NewRedisLedger(client, 0)
			return nil
		}
	}
	if app.DB != nil {
		app.Ledger = &ledger.PGLedger{DB: app.DB}
		return nil
	}
	app.Ledger = ledger.NewMemoryLedger()
	return nil
}

func buildServices(ctx context.Context, app *App) error {
	cfg := app.Config
	var (
		tenantRepo   tenants.Repo
		templateRepo templates.Repo
		eventStore   analytics.Store
	)
	if app.DB != nil {
		app.JobsRepo = &jobs.PGRepo{DB: app.DB}
		tenantRepo = &tenants.PGRepo{DB: app.DB}
		templateRepo = &templates.PGRepo{DB: app.DB}
		eventStore = &analytics.PGStore{DB: app.DB}
		app.Usage = usage.NewPostgresService(usage.NewPGStore(app.DB))
	} else {
		app.JobsRepo = jobs.NewMemoryRepo()
		tenantRepo = tenants.NewMemoryRepo()
		templateRepo = templates.NewMemoryRepo()
		eventStore = analytics.NewMemoryStore()
		app.Usage = usage.NewService()
	}

	app.Tenants = tenants.NewService(tenantRepo, cfg.DefaultMaxBulkSize, cfg.DefaultMonthlyCap)
	app.Templates = templates.NewService(templateRepo)
	app.Tracker = analytics.NewTracker(eventStore)

	if err := app.Templates.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed templates: %w", err)
	}
	if err := provisionBootstrapTenant(ctx, app); err != nil {
		return err
	}

	app.Renderer = renderer.NewPool(renderer.Options{
		PoolSize:   cfg.Renderer.PoolSize,
		Timeout:    cfg.Renderer.Timeout,
		ChromePath: cfg.Renderer.ChromePath,
	})

	var sender notify.Sender
	if host := strings.TrimSpace(cfg.Email.SMTPHost); host != "" {
		sender = notify.NewSMTPSender(notify.SMTPOptions{
			Host:     host,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUser,
			Password: cfg.Email.SMTPPass,
			From:     cfg.Email.From,
		})
	} else {
		telemetry.Info("bootstrap.email_disabled", map[string]any{"reason": "SMTP_HOST empty"})
	}
	app.Notifier = notify.NewDispatcher(notify.Options{
		Webhooks:         app.Tenants,
		Deliverer:        webhook.New(webhook.Options{Client: &http.Client{}, Timeout: cfg.WebhookTimeout}),
		Sender:           sender,
		Tracker:          app.Tracker,
		EmailConcurrency: cfg.Email.Concurrency,
	})
	notifyCtx, cancel := context.WithCancel(context.Background())
	app.notifyCancel = cancel
	app.Notifier.Start(notifyCtx)
	return nil
}

func provisionBootstrapTenant(ctx context.Context, app *App) error {
	key := strings.TrimSpace(app.Config.BootstrapAPIKey)
	if key != "" {
		tenantID, err := app.Tenants.EnsureWithKey(ctx, "default", key, "")
		if err != nil {
			return fmt.Errorf("bootstrap tenant: %w", err)
		}
		telemetry.Info("bootstrap.tenant_ready", map[string]any{"tenant_id": tenantID})
		return nil
	}
	if app.DB != nil || !isDevLike(app.Config.Env) {
		return nil
	}
	t, rawKey, err := app.Tenants.Provision(ctx, tenants.ProvisionInput{Name: "dev"})
	if err != nil {
		return fmt.Errorf("dev tenant: %w", err)
	}
	telemetry.Warn("bootstrap.dev_tenant", map[string]any{"tenant_id": t.ID, "api_key": rawKey})
	return nil
}

func buildPipeline(app *App) {
	cfg := app.Config.Pipeline
	app.Engine = pipeline.NewEngine(pipeline.EngineOptions{
		Jobs:              app.JobsRepo,
		Ledger:            app.Ledger,
		Templates:         app.Templates,
		Renderer:          app.Renderer,
		Store:             app.Store,
		Usage:             app.Usage,
		Notifier:          app.Notifier,
		Tracker:           app.Tracker,
		MaxAttempts:       cfg.MaxAttempts,
		RenderConcurrency: int64(cfg.RenderConcurrency),
		RetryDelay:        cfg.RetryDelay,
	})
	if app.Queue != nil {
		app.Scheduler = pipeline.NewQueueScheduler(app.Queue)
	} else {
		app.Scheduler = pipeline.NewLocalScheduler(runnerFunc(app.RunJob))
	}
	app.Coordinator = pipeline.NewCoordinator(pipeline.CoordinatorOptions{
		Jobs:      app.JobsRepo,
		Templates: app.Templates,
		Tenants:   app.Tenants,
		Quota:     usage.NewLimiter(app.Usage, app.Tenants),
		Scheduler: app.Scheduler,
		Tracker:   app.Tracker,
	})
}

func buildHealth(app *App) {
	app.Health = health.NewService()
	if app.DB != nil {
		app.Health.Register("database", app.DB.PingContext)
	}
	if app.Redis != nil {
		app.Health.Register("redis", func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})
	}
	app.Health.RegisterDeep("renderer", app.Renderer.Check)
}

type runnerFunc func(ctx context.Context, jobID, tenantID string) error

func (f runnerFunc) Run(ctx context.Context, jobID, tenantID string) error {
	return f(ctx, jobID, tenantID)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

// RunnerOf returns a Runner that executes jobs through app.
func RunnerOf(app *App) pipeline.Runner {
	return runnerFunc(app.RunJob)
}
