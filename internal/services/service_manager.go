package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/cache"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/clock"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/events"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	// Ranking recomputations of one scope inside this window are coalesced.
	RankingDebounce time.Duration
}

// ServiceDeps are the collaborators every service is built from.
type ServiceDeps struct {
	Repos       repositories.RepositoryManager
	Leaderboard cache.LeaderboardStore
	Clock       clock.Clock
	Publisher   events.EventPublisher
	Validator   *validator.Validator
	Logger      *slog.Logger
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   ServiceDeps
	config ServiceManagerConfig

	examService    ExamService
	attemptService AttemptService
	gradingService GradingService
	rankingService RankingService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(deps ServiceDeps, config ServiceManagerConfig) ServiceManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Leaderboard == nil {
		deps.Leaderboard = cache.NewMemoryLeaderboardStore()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewMockEventPublisher(deps.Logger)
	}
	return &serviceManager{deps: deps, config: config}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.deps.Repos == nil || sm.deps.Repos.GetRepository() == nil {
		return fmt.Errorf("failed to initialize services: repository not initialized")
	}

	sm.deps.Logger.Info("Initializing service manager")

	repo := sm.deps.Repos.GetRepository()
	identity := sm.deps.Repos.Identity()
	d := sm.deps

	sm.rankingService = NewRankingService(repo, d.Leaderboard, d.Clock, d.Publisher, d.Logger, sm.config.RankingDebounce)
	sm.deps.Logger.Info("Ranking service initialized", "debounce", sm.config.RankingDebounce)

	sm.attemptService = NewAttemptService(repo, identity, d.Clock, d.Validator, d.Publisher, sm.rankingService, d.Logger)
	sm.deps.Logger.Info("Attempt service initialized")

	sm.examService = NewExamService(repo, d.Clock, d.Validator, d.Publisher, d.Logger, sm.attemptService)
	sm.deps.Logger.Info("Exam service initialized")

	sm.gradingService = NewGradingService(repo, identity, d.Clock, d.Validator, d.Publisher, sm.rankingService, d.Logger)
	sm.deps.Logger.Info("Grading service initialized")

	sm.initialized = true
	sm.deps.Logger.Info("Service manager initialized successfully")
	return nil
}

// Service getters
func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.examService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.attemptService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.gradingService
}

func (sm *serviceManager) Ranking() RankingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.rankingService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}
	if err := sm.deps.Repos.HealthCheck(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

// Shutdown flushes pending leaderboard recomputations before releasing the
// repositories.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}
	sm.deps.Logger.Info("Shutting down service manager")

	if sm.rankingService != nil {
		if err := sm.rankingService.Flush(ctx); err != nil {
			sm.deps.Logger.Error("Failed to flush leaderboards", "error", err)
		}
		sm.rankingService.Close()
	}
	if err := sm.deps.Publisher.Close(); err != nil {
		sm.deps.Logger.Error("Failed to close event publisher", "error", err)
	}
	if err := sm.deps.Repos.Shutdown(ctx); err != nil {
		sm.deps.Logger.Error("Failed to shutdown repository manager", "error", err)
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")
	return nil
}
