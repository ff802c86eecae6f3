package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

// LeaderboardStore keeps one computed leaderboard per scope together with the
// scope's generation counter. A board is only replaced by one of the same or a
// newer generation.
type LeaderboardStore interface {
	Load(ctx context.Context, scope models.RankScope) (*models.Leaderboard, error)
	Save(ctx context.Context, board *models.Leaderboard) (bool, error)
	Bump(ctx context.Context, scope models.RankScope) (int64, error)
	Generation(ctx context.Context, scope models.RankScope) (int64, error)
	Reset(ctx context.Context) error
}

func boardKey(scope models.RankScope) string {
	return "board:" + scope.String()
}

func genKey(scope models.RankScope) string {
	return "gen:" + scope.String()
}

// saveIfNewer writes the board only when its generation is not older than the
// one already stored.
var saveIfNewer = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "generation")
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call("HSET", KEYS[1], "generation", ARGV[1], "payload", ARGV[2])
redis.call("EXPIRE", KEYS[1], ARGV[3])
return 1
`)

// RedisLeaderboardStore shares leaderboards across service instances.
type RedisLeaderboardStore struct {
	helper *CacheHelper
	client *redis.Client
	config CacheConfig
}

func NewRedisLeaderboardStore(client *redis.Client, config CacheConfig) *RedisLeaderboardStore {
	return &RedisLeaderboardStore{
		helper: NewCacheHelper(client, config),
		client: client,
		config: config,
	}
}

func (s *RedisLeaderboardStore) Load(ctx context.Context, scope models.RankScope) (*models.Leaderboard, error) {
	payload, err := s.client.HGet(ctx, s.helper.GetCacheKey(boardKey(scope)), "payload").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheNotFound
		}
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	var board models.Leaderboard
	if err := json.Unmarshal([]byte(payload), &board); err != nil {
		return nil, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return &board, nil
}

func (s *RedisLeaderboardStore) Save(ctx context.Context, board *models.Leaderboard) (bool, error) {
	data, err := json.Marshal(board)
	if err != nil {
		return false, fmt.Errorf("cache marshal error: %w", err)
	}

	ttl := int64(s.config.TTL.Seconds())
	if ttl <= 0 {
		ttl = int64(LeaderboardCacheConfig.TTL.Seconds())
	}
	written, err := saveIfNewer.Run(ctx, s.client,
		[]string{s.helper.GetCacheKey(boardKey(board.Scope))},
		board.Generation, data, ttl,
	).Int()
	if err != nil {
		return false, fmt.Errorf("save leaderboard: %w", err)
	}
	return written == 1, nil
}

func (s *RedisLeaderboardStore) Bump(ctx context.Context, scope models.RankScope) (int64, error) {
	return s.client.Incr(ctx, s.helper.GetCacheKey(genKey(scope))).Result()
}

func (s *RedisLeaderboardStore) Generation(ctx context.Context, scope models.RankScope) (int64, error) {
	gen, err := s.client.Get(ctx, s.helper.GetCacheKey(genKey(scope))).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Reset drops every cached board. Generation counters are kept so that a
// recomputation still in flight cannot reinstate an older board.
func (s *RedisLeaderboardStore) Reset(ctx context.Context) error {
	return s.helper.InvalidatePattern(ctx, "board:*")
}

type memoryEntry struct {
	board      *models.Leaderboard
	generation int64
}

// MemoryLeaderboardStore is the single-process store used without Redis.
type MemoryLeaderboardStore struct {
	mu      sync.Mutex
	boards  map[string]memoryEntry
	counter map[string]int64
}

func NewMemoryLeaderboardStore() *MemoryLeaderboardStore {
	return &MemoryLeaderboardStore{
		boards:  make(map[string]memoryEntry),
		counter: make(map[string]int64),
	}
}

func (s *MemoryLeaderboardStore) Load(ctx context.Context, scope models.RankScope) (*models.Leaderboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.boards[scope.String()]
	if !ok {
		return nil, ErrCacheNotFound
	}
	cp := *entry.board
	cp.Entries = append([]models.LeaderboardEntry(nil), entry.board.Entries...)
	return &cp, nil
}

func (s *MemoryLeaderboardStore) Save(ctx context.Context, board *models.Leaderboard) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := board.Scope.String()
	if existing, ok := s.boards[key]; ok && existing.generation > board.Generation {
		return false, nil
	}
	cp := *board
	cp.Entries = append([]models.LeaderboardEntry(nil), board.Entries...)
	s.boards[key] = memoryEntry{board: &cp, generation: board.Generation}
	return true, nil
}

func (s *MemoryLeaderboardStore) Bump(ctx context.Context, scope models.RankScope) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter[scope.String()]++
	return s.counter[scope.String()], nil
}

func (s *MemoryLeaderboardStore) Generation(ctx context.Context, scope models.RankScope) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter[scope.String()], nil
}

func (s *MemoryLeaderboardStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards = make(map[string]memoryEntry)
	return nil
}
