package pkg

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/cache"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/clock"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/config"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/events"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories/casdoor"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories/memory"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories/postgres"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/services"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/validator"
)

// Engine bundles everything the server and the admin CLI share.
type Engine struct {
	Config    *config.Config
	Clock     clock.Clock
	Validator *validator.Validator
	Redis     *redis.Client
	Repos     repositories.RepositoryManager
	Identity  repositories.IdentityRepository
	Bus       *events.Bus
	Services  services.ServiceManager

	// Static is set when users come from verified JWT claims instead of Casdoor.
	Static *casdoor.StaticIdentity

	logger *slog.Logger
}

// BuildEngine connects storage, identity and the event bus and initializes
// the services on top of them.
func BuildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	e := &Engine{
		Config:    cfg,
		Clock:     clock.New(),
		Validator: validator.New(),
		logger:    logger,
	}

	if cfg.RedisURL != "" {
		client, err := NewRedisClient(cfg)
		if err != nil {
			// leaderboards and lookups fall back to process memory
			logger.Warn("Redis unavailable, continuing without it", "error", err)
		} else {
			e.Redis = client
		}
	}

	if cfg.Auth.Mode == "jwt" {
		e.Static = casdoor.NewStaticIdentity()
		e.Identity = e.Static
	} else {
		e.Identity = casdoor.NewUserCasdoor(CasdoorConfig(cfg), e.Redis)
	}

	if err := e.initRepositories(); err != nil {
		e.Close(ctx)
		return nil, err
	}

	bus, err := events.NewBus(events.KafkaConfig{
		Brokers:     cfg.Kafka.Brokers,
		TopicPrefix: cfg.Kafka.TopicPrefix,
	}, logger)
	if err != nil {
		e.Close(ctx)
		return nil, err
	}
	e.Bus = bus

	var store cache.LeaderboardStore = cache.NewMemoryLeaderboardStore()
	if e.Redis != nil {
		store = cache.NewRedisLeaderboardStore(e.Redis, cache.CacheConfig{
			TTL:    cfg.Engine.LeaderboardTTL,
			Prefix: "leaderboard:",
		})
	}

	e.Services = services.NewServiceManager(services.ServiceDeps{
		Repos:       e.Repos,
		Leaderboard: store,
		Clock:       e.Clock,
		Publisher:   e.Bus,
		Validator:   e.Validator,
		Logger:      logger,
	}, services.ServiceManagerConfig{
		RankingDebounce: cfg.Engine.RankingDebounce,
	})
	if err := e.Services.Initialize(ctx); err != nil {
		e.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return e, nil
}

func (e *Engine) initRepositories() error {
	cfg := e.Config
	switch cfg.StorageDriver {
	case "memory":
		e.logger.Warn("Using in-memory storage; data is lost on restart")
		e.Repos = memory.NewRepositoryManager(e.Identity)
	default:
		if cfg.DBAutoMigrate {
			if err := MigrateUp(cfg.DatabaseURL); err != nil {
				return err
			}
			e.logger.Info("Database migrations applied")
		}
		db, err := InitDatabase(cfg)
		if err != nil {
			return err
		}
		e.Repos = postgres.NewRepositoryManager(postgres.RepositoryConfig{
			DB:            db,
			RedisClient:   e.Redis,
			CasdoorConfig: CasdoorConfig(cfg),
			Identity:      e.Identity,
		})
	}

	if err := e.Repos.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	return nil
}

// Close releases the engine. The service manager owns the bus and the
// repositories once it exists and flushes pending leaderboards before closing them.
func (e *Engine) Close(ctx context.Context) {
	if e.Services != nil {
		if err := e.Services.Shutdown(ctx); err != nil {
			e.logger.Error("Failed to shutdown services", "error", err)
		}
	} else {
		if e.Bus != nil {
			e.Bus.Close()
		}
		if e.Repos != nil {
			e.Repos.Shutdown(ctx)
		}
	}
	if e.Redis != nil {
		e.Redis.Close()
	}
}

func CasdoorConfig(cfg *config.Config) casdoor.CasdoorConfig {
	return casdoor.CasdoorConfig{
		Endpoint:         cfg.Casdoor.Endpoint,
		ClientID:         cfg.Casdoor.ClientID,
		ClientSecret:     cfg.Casdoor.ClientSecret,
		Certificate:      cfg.Casdoor.Cert,
		OrganizationName: cfg.Casdoor.Organization,
		ApplicationName:  cfg.Casdoor.Application,
	}
}
