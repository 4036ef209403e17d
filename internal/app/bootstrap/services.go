package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/wolfman30/wa-booking-assistant/internal/bookings"
	"github.com/wolfman30/wa-booking-assistant/internal/calendar"
	"github.com/wolfman30/wa-booking-assistant/internal/catalog"
	appconfig "github.com/wolfman30/wa-booking-assistant/internal/config"
	"github.com/wolfman30/wa-booking-assistant/internal/dialogue"
	"github.com/wolfman30/wa-booking-assistant/internal/extraction"
	"github.com/wolfman30/wa-booking-assistant/internal/observability/metrics"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

// Deps are the process-level clients the booking services are built on.
// Nil Redis or DB selects the in-memory fallbacks.
type Deps struct {
	Redis   *redis.Client
	DB      *pgxpool.Pool
	AWS     aws.Config
	Metrics *metrics.BookingMetrics
}

// Services is the wired booking core.
type Services struct {
	Catalog      catalog.Catalog
	Appointments bookings.Store
	Finder       *bookings.SlotFinder
	Committer    *bookings.Committer
	States       dialogue.StateStore
	Engine       *dialogue.Engine

	closers []func() error
}

// Close releases clients opened while building the services.
func (s *Services) Close() error {
	var firstErr error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BuildServices wires catalog, calendar, committer, extractor and the dialogue engine.
func BuildServices(ctx context.Context, cfg *appconfig.Config, deps Deps, logger *logging.Logger) (*Services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pool := deps.DB
	if cfg.UseMemoryStores {
		pool = nil
	}

	svc := &Services{}
	cat, directory, err := BuildCatalog(cfg, pool, deps.Redis, logger)
	if err != nil {
		return nil, err
	}
	svc.Catalog = cat
	svc.Appointments = BuildAppointmentStore(pool, logger)

	source, err := BuildCalendarSource(ctx, cfg, svc.Appointments, directory, logger)
	if err != nil {
		return nil, err
	}
	svc.Finder = bookings.NewSlotFinder(source, deps.Metrics)
	svc.Committer = bookings.NewCommitter(svc.Appointments, logger,
		bookings.WithMaxAttempts(cfg.BookingCommitMaxAttempts),
		bookings.WithBackoff(cfg.BookingCommitBackoff),
		bookings.WithMetrics(deps.Metrics),
	)

	states, err := BuildStateStore(cfg, deps.Redis, dynamodb.NewFromConfig(deps.AWS), logger)
	if err != nil {
		return nil, err
	}
	svc.States = states

	extractor, closeExtractor, err := BuildExtractor(ctx, cfg, deps.AWS, deps.Metrics, logger)
	if err != nil {
		return nil, err
	}
	if closeExtractor != nil {
		svc.closers = append(svc.closers, closeExtractor)
	}

	svc.Engine = dialogue.NewEngine(states, cat, svc.Finder, svc.Committer, logger,
		dialogue.WithExtractor(extractor),
		dialogue.WithMaxSlots(cfg.MaxSlotsToPresent),
		dialogue.WithMetrics(deps.Metrics),
	)
	return svc, nil
}

// BuildCatalog returns the Postgres-backed catalog when a pool is available,
// otherwise an in-memory one loaded from CATALOG_SEED_FILE. The second value
// resolves external calendars.
func BuildCatalog(cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *logging.Logger) (catalog.Catalog, calendar.Directory, error) {
	if pool == nil {
		mem := catalog.NewMemoryCatalog()
		if cfg.CatalogSeedFile == "" {
			logger.Warn("catalog running in memory without a seed file")
			return mem, mem, nil
		}
		seed, err := catalog.LoadSeedFile(cfg.CatalogSeedFile)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		seed.Load(mem)
		logger.Info("catalog seeded in memory", "merchants", len(seed.Merchants))
		return mem, mem, nil
	}
	var profiles catalog.ProfileGetter = defaultProfiles{}
	var directory calendar.Directory
	if redisClient != nil {
		store := catalog.NewProfileStore(redisClient)
		profiles = store
		directory = store
	}
	return catalog.NewCachedCatalog(catalog.NewPostgresRepository(pool), profiles, cfg.CatalogCacheTTL), directory, nil
}

// defaultProfiles serves the standard opening hours when no profile store is wired.
type defaultProfiles struct{}

func (defaultProfiles) Get(_ context.Context, merchantID string) (*catalog.Profile, error) {
	return catalog.DefaultProfile(merchantID), nil
}

// BuildAppointmentStore picks the Postgres store when a pool is available.
func BuildAppointmentStore(pool *pgxpool.Pool, logger *logging.Logger) bookings.Store {
	if pool == nil {
		logger.Warn("appointments stored in memory; bookings are lost on restart")
		return bookings.NewMemoryStore()
	}
	return bookings.NewPostgresStore(pool)
}

// BuildCalendarSource merges committed appointments with Google Calendar busy
// time when credentials and a calendar directory are configured.
func BuildCalendarSource(ctx context.Context, cfg *appconfig.Config, store bookings.Store, directory calendar.Directory, logger *logging.Logger) (calendar.Source, error) {
	local := calendar.NewAppointmentSource(store)
	credentials := strings.TrimSpace(cfg.GoogleCalendarCredentialsFile)
	if credentials == "" || directory == nil {
		return local, nil
	}
	google, err := calendar.NewGoogleSource(ctx, directory, logger, option.WithCredentialsFile(credentials))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: google calendar: %w", err)
	}
	logger.Info("google calendar busy time enabled")
	return calendar.Merged{local, google}, nil
}

// BuildStateStore selects the dialogue state backend from STATE_BACKEND.
func BuildStateStore(cfg *appconfig.Config, redisClient *redis.Client, dynamoClient *dynamodb.Client, logger *logging.Logger) (dialogue.StateStore, error) {
	switch cfg.StateBackend {
	case "memory":
		logger.Warn("dialogue state kept in memory; conversations are lost on restart")
		return dialogue.NewMemoryStateStore(), nil
	case "dynamodb":
		if strings.TrimSpace(cfg.DialogueStateTable) == "" {
			return nil, fmt.Errorf("bootstrap: DIALOGUE_STATE_TABLE is required for the dynamodb backend")
		}
		return dialogue.NewDynamoStateStore(dynamoClient, cfg.DialogueStateTable, cfg.DialogueStateTTL, logger), nil
	case "", "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: redis is required for the redis state backend")
		}
		return dialogue.NewRedisStateStore(redisClient, cfg.DialogueStateTTL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown state backend %q", cfg.StateBackend)
	}
}

// BuildExtractor returns the configured LLM extractor, or the no-op extractor
// when no provider is set up. The returned close func may be nil.
func BuildExtractor(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, m *metrics.BookingMetrics, logger *logging.Logger) (extraction.Extractor, func() error, error) {
	opts := []extraction.Option{
		extraction.WithTimeout(cfg.ExtractorTimeout),
		extraction.WithMetrics(m),
	}
	switch cfg.LLMProvider {
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			logger.Warn("GEMINI_API_KEY not set; slot extraction disabled")
			return extraction.Nop, nil, nil
		}
		client, err := extraction.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		opts = append(opts, extraction.WithModel(cfg.GeminiModelID))
		return extraction.NewLLMExtractor(client, logger, opts...), client.Close, nil
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			logger.Warn("BEDROCK_MODEL_ID not set; slot extraction disabled")
			return extraction.Nop, nil, nil
		}
		client := extraction.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
		opts = append(opts, extraction.WithModel(cfg.BedrockModelID))
		return extraction.NewLLMExtractor(client, logger, opts...), nil, nil
	case "", "none":
		return extraction.Nop, nil, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown llm provider %q", cfg.LLMProvider)
	}
}
