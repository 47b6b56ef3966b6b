package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"audit-backend/internal/audits"
	"audit-backend/internal/costs"
	"audit-backend/internal/evidence"
	"audit-backend/internal/llm"
	openai "audit-backend/internal/llm/openai"
	"audit-backend/internal/pipeline"
	"audit-backend/internal/progress"
	"audit-backend/internal/resultcache"
	"audit-backend/internal/scoring"
	"audit-backend/internal/shared/config"
	"audit-backend/internal/shared/server"
	"audit-backend/internal/shared/storage/db"
	"audit-backend/internal/shared/storage/object"
	localstore "audit-backend/internal/shared/storage/object/local"
	s3store "audit-backend/internal/shared/storage/object/s3"
	"audit-backend/internal/transcribe"
	"audit-backend/internal/transcribe/assemblyai"
)

// App holds shared dependencies.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Store        object.ObjectStore
	Cache        *resultcache.Cache
	Hub          *progress.Hub
	AuditsRepo   audits.Repo
	AuditService *audits.Service
	Runner       *pipeline.Runner
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cache, err := resultcache.New(cfg.CacheIndexPath, cfg.CacheTTL, store)
	if err != nil {
		return nil, fmt.Errorf("result cache: %w", err)
	}

	var auditsRepo audits.Repo
	if sqlDB != nil {
		auditsRepo = &audits.PGRepo{DB: sqlDB}
	} else {
		auditsRepo = audits.NewMemoryRepo()
	}

	vision, scorer, err := buildLLMClients(cfg)
	if err != nil {
		return nil, err
	}
	transcriber, err := buildTranscriber(cfg)
	if err != nil {
		return nil, err
	}

	hub := progress.NewHub()
	runner := &pipeline.Runner{
		Repo:        auditsRepo,
		Store:       store,
		Transcriber: transcriber,
		Visual:      &evidence.VisualExtractor{Vision: vision, Concurrency: cfg.ImageConcurrency},
		Scorer:      scoring.NewScorer(scorer),
		Cache:       cache,
		Hub:         hub,
		Rates:       costs.DefaultRates,
	}

	auditSvc := &audits.Service{
		Repo:   auditsRepo,
		Store:  store,
		Launch: runner.Run,
	}

	app := &App{
		Config:       cfg,
		DB:           sqlDB,
		Store:        store,
		Cache:        cache,
		Hub:          hub,
		AuditsRepo:   auditsRepo,
		AuditService: auditSvc,
		Runner:       runner,
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:       cfg,
		AuditHandler: audits.NewHandler(auditSvc),
		ProgressHub:  hub,
		Cache:        cache,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLMClients(cfg config.Config) (llm.VisionClient, llm.ScoringClient, error) {
	if cfg.LLMProvider != "openai" {
		log.Printf("bootstrap: LLM_PROVIDER %q not configured; using placeholders", cfg.LLMProvider)
		return llm.PlaceholderVision{}, llm.PlaceholderScorer{}, nil
	}
	client, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), cfg.VisionModel, cfg.ScoringModel)
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

func buildTranscriber(cfg config.Config) (transcribe.Transcriber, error) {
	if strings.TrimSpace(cfg.TranscribeAPIKey) == "" {
		log.Printf("bootstrap: TRANSCRIBE_API_KEY empty; using placeholder transcriber")
		return transcribe.Placeholder{}, nil
	}
	return assemblyai.NewClient(cfg.TranscribeAPIKey)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
