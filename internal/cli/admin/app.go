package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/supportiq/internal/compose"
	"github.com/cloo-solutions/supportiq/internal/config"
	"github.com/cloo-solutions/supportiq/internal/corpus"
	"github.com/cloo-solutions/supportiq/internal/database"
	"github.com/cloo-solutions/supportiq/internal/domain"
	"github.com/cloo-solutions/supportiq/internal/index"
	"github.com/cloo-solutions/supportiq/internal/lock"
	"github.com/cloo-solutions/supportiq/internal/openai"
	"github.com/cloo-solutions/supportiq/internal/repository"
	"github.com/cloo-solutions/supportiq/internal/routing"
	"github.com/cloo-solutions/supportiq/internal/service"
	"github.com/cloo-solutions/supportiq/internal/storage"
	"github.com/cloo-solutions/supportiq/internal/telemetry"
	"github.com/cloo-solutions/supportiq/internal/triage"
)

// app holds the process-wide collaborators built from configuration
type app struct {
	cfg     *config.Config
	pool    *pgxpool.Pool
	llm     *openai.Client
	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg}

	if cfg.SentryDSN != "" {
		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}
		shutdown, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
			Expected:         domain.IsExpected,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			a.closers = append(a.closers, shutdown)
		}
	}

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) database(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	if !a.cfg.HasDatabase() {
		return nil, fmt.Errorf("SUPPORTIQ_DATABASE_URL is required")
	}

	pool, err := database.NewPool(ctx, database.Config{URL: a.cfg.DatabaseURL, ConnectAttempts: 3})
	if err != nil {
		return nil, err
	}
	log.Println("connected to database")

	a.pool = pool
	a.closers = append(a.closers, pool.Close)
	return pool, nil
}

func (a *app) openAI() (*openai.Client, error) {
	if a.llm != nil {
		return a.llm, nil
	}
	if !a.cfg.HasOpenAI() {
		return nil, fmt.Errorf("SUPPORTIQ_OPENAI_API_KEY is required")
	}

	a.llm = openai.NewClientWithConfig(openai.Config{
		APIKey:              a.cfg.OpenAIAPIKey,
		BaseURL:             a.cfg.OpenAIBaseURL,
		EmbeddingModel:      a.cfg.EmbeddingModel,
		EmbeddingDimensions: a.cfg.EmbeddingDimensions,
		ChatModel:           a.cfg.ChatModel,
		RequestsPerSecond:   a.cfg.LLMRequestsPerSecond,
		Burst:               a.cfg.LLMBurst,
		Breaker: openai.BreakerConfig{
			MaxFailures: a.cfg.BreakerMaxFailures,
			Timeout:     a.cfg.BreakerTimeout,
		},
	})
	return a.llm, nil
}

func (a *app) snapshotStore(ctx context.Context) (index.SnapshotStore, error) {
	switch a.cfg.SnapshotStore {
	case config.SnapshotStoreNone:
		return nil, nil
	case config.SnapshotStorePostgres:
		pool, err := a.database(ctx)
		if err != nil {
			return nil, err
		}
		return repository.NewSnapshotRepository(pool), nil
	case config.SnapshotStoreS3:
		client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        a.cfg.S3Endpoint,
			Region:          a.cfg.S3Region,
			AccessKeyID:     a.cfg.S3AccessKey,
			SecretAccessKey: a.cfg.S3SecretKey,
			Bucket:          a.cfg.S3Bucket,
			Prefix:          a.cfg.S3Prefix,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", a.cfg.S3Bucket)
		return index.NewBlobSnapshotStore(client, ""), nil
	default:
		files, err := storage.NewFileStore(a.cfg.SnapshotPath)
		if err != nil {
			return nil, err
		}
		return index.NewBlobSnapshotStore(files, ""), nil
	}
}

// indexManager wires the embedder, corpus file and snapshot store into a Manager
func (a *app) indexManager(ctx context.Context) (*index.Manager, error) {
	llm, err := a.openAI()
	if err != nil {
		return nil, err
	}
	store, err := a.snapshotStore(ctx)
	if err != nil {
		return nil, err
	}
	return index.NewManager(index.New(llm), llm, corpus.NewFileSource(a.cfg.CorpusPath), store), nil
}

func (a *app) triageEngine() (*triage.Engine, error) {
	llm, err := a.openAI()
	if err != nil {
		return nil, err
	}
	return triage.NewEngine(llm, a.cfg.ClassifyTimeout), nil
}

func (a *app) machine() *routing.Machine {
	return routing.NewMachine(routing.Gate{ConfidenceThreshold: a.cfg.ConfidenceThreshold})
}

func (a *app) locker(ctx context.Context) (service.Locker, error) {
	if !a.cfg.HasRedis() {
		return lock.NewKeyedMutex(), nil
	}

	client, err := lock.NewRedisClient(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return lock.NewRedisLocker(client, lock.DefaultTTL, lock.DefaultRetryInterval), nil
}

// ticketService builds the ticket lifecycle on Postgres. With assistant set it
// also loads (or builds) the index and wires triage and generation; without
// it no OpenAI key or index is needed.
func (a *app) ticketService(ctx context.Context, assistant bool) (*service.TicketService, error) {
	pool, err := a.database(ctx)
	if err != nil {
		return nil, err
	}
	locker, err := a.locker(ctx)
	if err != nil {
		return nil, err
	}

	deps := service.TicketServiceDeps{
		Tickets:         repository.NewTicketRepository(pool),
		TxRunner:        repository.NewTxRunner(pool),
		Locker:          locker,
		Machine:         a.machine(),
		GenerateTimeout: a.cfg.GenerateTimeout,
	}
	if !assistant {
		return service.NewTicketService(deps), nil
	}

	manager, err := a.indexManager(ctx)
	if err != nil {
		return nil, err
	}
	if err := manager.LoadOrBuild(ctx); err != nil {
		return nil, fmt.Errorf("failed to load knowledge index: %w", err)
	}
	engine, err := a.triageEngine()
	if err != nil {
		return nil, err
	}

	deps.Triage = engine
	deps.Composer = compose.NewComposer(manager.Index(), a.cfg.RetrievalK, a.cfg.RetrievalThreshold)
	deps.Generator = a.llm
	return service.NewTicketService(deps), nil
}
