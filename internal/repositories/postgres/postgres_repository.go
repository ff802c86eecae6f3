package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/cache"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories/casdoor"
)

// PostgreSQLRepository implements repositories.Repository on one gorm handle,
// which is either the pool or an open transaction.
type PostgreSQLRepository struct {
	db     *gorm.DB
	caches *cache.CacheManager

	exam     *ExamPostgreSQL
	question *QuestionPostgreSQL
	attempt  *AttemptPostgreSQL
	answer   *AnswerPostgreSQL
	result   *ResultPostgreSQL
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB *gorm.DB
	// RedisClient backs the row caches. It is owned by the caller and is
	// not closed on shutdown.
	RedisClient   *redis.Client
	CasdoorConfig casdoor.CasdoorConfig

	// Identity overrides the Casdoor-backed identity source when set.
	Identity repositories.IdentityRepository
}

func newPostgreSQLRepository(db *gorm.DB, caches *cache.CacheManager, inTx bool) *PostgreSQLRepository {
	r := &PostgreSQLRepository{
		db:       db,
		caches:   caches,
		exam:     NewExamPostgreSQL(db, caches),
		question: NewQuestionPostgreSQL(db, caches),
		attempt:  NewAttemptPostgreSQL(db, caches),
		answer:   NewAnswerPostgreSQL(db),
		result:   NewResultPostgreSQL(db),
	}
	// Reads inside a transaction bypass the caches.
	r.exam.inTx = inTx
	r.attempt.inTx = inTx
	return r
}

func (r *PostgreSQLRepository) Exam() repositories.ExamRepository         { return r.exam }
func (r *PostgreSQLRepository) Question() repositories.QuestionRepository { return r.question }
func (r *PostgreSQLRepository) Attempt() repositories.AttemptRepository   { return r.attempt }
func (r *PostgreSQLRepository) Answer() repositories.AnswerRepository     { return r.answer }
func (r *PostgreSQLRepository) Result() repositories.ResultRepository     { return r.result }

// WithTransaction runs fn against repositories bound to a single transaction.
// Returning an error from fn rolls everything back.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	var txRepo *PostgreSQLRepository
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo = newPostgreSQLRepository(tx, r.caches, true)
		return fn(txRepo)
	})
	if err != nil {
		return err
	}
	txRepo.exam.flushInvalidations(ctx)
	return nil
}

// Ping checks the database and, when configured, Redis.
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := r.caches.HealthCheck(ctx); err != nil && !errors.Is(err, cache.ErrCacheNotAvailable) {
		return err
	}
	return nil
}

func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// RepositoryManager implements the RepositoryManager interface
type RepositoryManager struct {
	config   RepositoryConfig
	repo     *PostgreSQLRepository
	identity repositories.IdentityRepository
}

func NewRepositoryManager(config RepositoryConfig) *RepositoryManager {
	return &RepositoryManager{config: config}
}

// Initialize verifies the connections and builds the repositories.
func (rm *RepositoryManager) Initialize() error {
	if rm.config.DB == nil {
		return errors.New("database connection is required")
	}

	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if rm.config.RedisClient != nil {
		if err := rm.config.RedisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
	}

	rm.repo = newPostgreSQLRepository(rm.config.DB, cache.NewCacheManager(rm.config.RedisClient), false)
	// Identity lives outside the database and never joins a transaction.
	rm.identity = rm.config.Identity
	if rm.identity == nil {
		rm.identity = casdoor.NewUserCasdoor(rm.config.CasdoorConfig, rm.config.RedisClient)
	}

	return nil
}

func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

func (rm *RepositoryManager) Identity() repositories.IdentityRepository {
	return rm.identity
}

func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return errors.New("repository not initialized")
	}
	return rm.repo.Ping(ctx)
}

// Shutdown closes the database pool.
func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}
	return rm.repo.Close()
}

var (
	_ repositories.Repository         = (*PostgreSQLRepository)(nil)
	_ repositories.RepositoryManager  = (*RepositoryManager)(nil)
	_ repositories.ExamRepository     = (*ExamPostgreSQL)(nil)
	_ repositories.QuestionRepository = (*QuestionPostgreSQL)(nil)
	_ repositories.AttemptRepository  = (*AttemptPostgreSQL)(nil)
	_ repositories.AnswerRepository   = (*AnswerPostgreSQL)(nil)
	_ repositories.ResultRepository   = (*ResultPostgreSQL)(nil)
)
