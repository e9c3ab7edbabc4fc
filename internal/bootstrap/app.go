package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"skincare-backend/internal/catalog"
	"skincare-backend/internal/consultations"
	"skincare-backend/internal/llm"
	openai "skincare-backend/internal/llm/openai"
	"skincare-backend/internal/queue"
	"skincare-backend/internal/recommendations"
	"skincare-backend/internal/retry"
	"skincare-backend/internal/shared/config"
	"skincare-backend/internal/shared/server"
	"skincare-backend/internal/shared/storage/db"
	"skincare-backend/internal/shared/storage/kv"
	"skincare-backend/internal/shared/storage/object"
	localstore "skincare-backend/internal/shared/storage/object/local"
	s3store "skincare-backend/internal/shared/storage/object/s3"
	"skincare-backend/internal/vision"
)

// App holds shared dependencies for every entrypoint.
type App struct {
	Config                config.Config
	Router                *gin.Engine
	DB                    *sql.DB
	Redis                 *redis.Client
	Store                 object.ObjectStore
	Queue                 queue.Client
	Catalog               catalog.Store
	ConsultationsRepo     consultations.Repo
	ConsultationsService  *consultations.Service
	ConsultationProcessor ConsultationProcessor
	ConsultationHandler   *consultations.Handler
	CatalogHandler        *catalog.Handler
}

// ConsultationProcessor runs one queued attempt. Tests substitute it.
type ConsultationProcessor interface {
	ProcessConsultation(ctx context.Context, consultationID string, attempt int) error
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := buildRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Redis:  redisClient,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:   app.Config,
		Handlers: []server.RouteRegistrar{app.ConsultationHandler, app.CatalogHandler},
		Ready: func(c *gin.Context) error {
			return app.Ping(c.Request.Context())
		},
	})

	return app, nil
}

// Ping checks the database and redis connections that were configured.
func (a *App) Ping(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases pooled connections. The shared Lambda DB is left open.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil && !db.IsLambdaRuntime() {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
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
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	client, err := kv.Connect(ctx, cfg.RedisURL)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: redis connect failed; using in-process locks: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return client, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	switch cfg.QueueBackend {
	case "sqs":
		return queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
	case "lmstfy":
		return queue.NewLmstfyClient(cfg.LmstfyHost, cfg.LmstfyPort, cfg.LmstfyNamespace, cfg.LmstfyToken, cfg.LmstfyQueue)
	default:
		return nil, nil
	}
}

func buildVisionClient(cfg config.Config) (llm.VisionClient, error) {
	switch cfg.LLMProvider {
	case "openai":
		client, err := openai.NewClient(openai.Options{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.OpenAITimeout,
		})
		if err != nil {
			if isDevLike(cfg.Env) {
				log.Printf("bootstrap: openai unavailable; using demo vision client: %v", err)
				return llm.DemoClient{}, nil
			}
			return nil, err
		}
		return client, nil
	case "demo":
		return llm.DemoClient{}, nil
	default:
		return llm.PlaceholderClient{}, nil
	}
}

func buildCatalog(app *App) (catalog.Store, error) {
	if app.DB != nil {
		return &catalog.PGStore{DB: app.DB}, nil
	}
	entries, err := catalog.SeedEntries()
	if err != nil {
		return nil, fmt.Errorf("load seed catalog: %w", err)
	}
	return catalog.NewMemoryStore(entries), nil
}

func buildServices(app *App) error {
	visionClient, err := buildVisionClient(app.Config)
	if err != nil {
		return err
	}
	analyzer := vision.NewAnalyzer(visionClient, vision.Config{
		Strategies:  vision.DefaultStrategies(app.Config.VisionPrimaryModel, app.Config.VisionFallbackModel),
		CallTimeout: app.Config.OpenAITimeout,
		MaxTokens:   app.Config.VisionMaxTokens,
		Temperature: app.Config.VisionTemperature,
	})

	catalogStore, err := buildCatalog(app)
	if err != nil {
		return err
	}

	var repo consultations.Repo
	if app.DB != nil {
		repo = &consultations.PGRepo{DB: app.DB}
	} else {
		repo = consultations.NewMemoryRepo()
	}

	var (
		locker   consultations.Locker   = consultations.NewMemoryLocker()
		notifier consultations.Notifier = consultations.NopNotifier{}
	)
	if app.Redis != nil {
		locker = consultations.NewRedisLocker(app.Redis)
		notifier = consultations.NewRedisNotifier(app.Redis, app.Config.StatusChannel)
	}

	svc := &consultations.Service{
		Repo:        repo,
		Store:       app.Store,
		Analyzer:    analyzer,
		Recommender: recommendations.NewEngine(catalogStore),
		Queue:       app.Queue,
		Locker:      locker,
		Notifier:    notifier,
		Policy:      retry.DefaultPolicy(),
		LockTTL:     consultations.LockTTLFor(analyzer.MaxCallTime()),
	}

	app.Catalog = catalogStore
	app.ConsultationsRepo = repo
	app.ConsultationsService = svc
	app.ConsultationProcessor = svc
	app.ConsultationHandler = consultations.NewHandler(svc)
	app.CatalogHandler = catalog.NewHandler(catalogStore)

	if app.ConsultationHandler == nil || app.CatalogHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
