package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/cache"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/clock"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/events"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
)

const recomputeTimeout = 30 * time.Second

type pendingRecompute struct {
	scope models.RankScope
	timer clock.Timer
}

type rankingService struct {
	repo      repositories.Repository
	store     cache.LeaderboardStore
	clock     clock.Clock
	publisher events.EventPublisher
	logger    *slog.Logger
	debounce  time.Duration

	mu          sync.Mutex
	pending     map[string]pendingRecompute
	subscribers map[string]map[int]chan *models.Leaderboard
	nextSubID   int
	closed      bool
}

// NewRankingService returns the ranking engine. A debounce of zero or less
// recomputes synchronously on every invalidation.
func NewRankingService(repo repositories.Repository, store cache.LeaderboardStore, clk clock.Clock, publisher events.EventPublisher, logger *slog.Logger, debounce time.Duration) RankingService {
	return &rankingService{
		repo:        repo,
		store:       store,
		clock:       clk,
		publisher:   publisher,
		logger:      logger.With("component", "ranking"),
		debounce:    debounce,
		pending:     make(map[string]pendingRecompute),
		subscribers: make(map[string]map[int]chan *models.Leaderboard),
	}
}

// Invalidate schedules a recomputation of each scope. Invalidations that
// arrive while one is already scheduled for the scope are folded into it.
func (s *rankingService) Invalidate(ctx context.Context, scopes ...models.RankScope) {
	if s.debounce <= 0 {
		for _, scope := range scopes {
			if _, err := s.Recompute(ctx, scope); err != nil {
				s.logger.Error("Leaderboard recomputation failed", "scope", scope.String(), "error", err)
			}
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, scope := range scopes {
		key := scope.String()
		if _, ok := s.pending[key]; ok {
			continue
		}
		scope := scope
		s.pending[key] = pendingRecompute{
			scope: scope,
			timer: s.clock.AfterFunc(s.debounce, func() { s.fire(key) }),
		}
		s.logger.Debug("Leaderboard recomputation scheduled", "scope", key, "debounce", s.debounce)
	}
}

func (s *rankingService) fire(key string) {
	s.mu.Lock()
	p, ok := s.pending[key]
	if ok {
		delete(s.pending, key)
	}
	closed := s.closed
	s.mu.Unlock()
	if !ok || closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recomputeTimeout)
	defer cancel()
	if _, err := s.Recompute(ctx, p.scope); err != nil {
		// the next invalidation of this scope retries
		s.logger.Error("Leaderboard recomputation failed", "scope", key, "error", err)
	}
}

// Flush runs every scheduled recomputation now.
func (s *rankingService) Flush(ctx context.Context) error {
	s.mu.Lock()
	due := make([]models.RankScope, 0, len(s.pending))
	for key, p := range s.pending {
		if p.timer.Stop() {
			due = append(due, p.scope)
		}
		delete(s.pending, key)
	}
	s.mu.Unlock()

	var errs []error
	for _, scope := range due {
		if _, err := s.Recompute(ctx, scope); err != nil {
			errs = append(errs, fmt.Errorf("scope %s: %w", scope, err))
		}
	}
	return errors.Join(errs...)
}

// Recompute advances the scope's generation and stores a fresh leaderboard.
func (s *rankingService) Recompute(ctx context.Context, scope models.RankScope) (*models.Leaderboard, error) {
	gen, err := s.store.Bump(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("bump generation: %w", err)
	}

	board, err := s.compute(ctx, scope, gen)
	if err != nil {
		return nil, err
	}

	if examID, ok := scope.ExamID(); ok {
		if err := s.repo.Result().UpdateRanks(ctx, ranksByAttempt(board.Entries), gen); err != nil {
			return nil, fmt.Errorf("persist ranks for exam %d: %w", examID, err)
		}
	}

	saved, err := s.store.Save(ctx, board)
	if err != nil {
		return nil, fmt.Errorf("save leaderboard: %w", err)
	}
	if !saved {
		s.logger.Debug("Newer leaderboard already stored", "scope", scope.String(), "generation", gen)
		return board, nil
	}

	s.logger.Info("Leaderboard recomputed",
		"scope", scope.String(),
		"generation", gen,
		"entries", len(board.Entries))

	event := events.NewEvent(events.LeaderboardUpdated, board.ComputedAt, events.LeaderboardUpdatedData{
		Scope:      scope.String(),
		Generation: gen,
		Entries:    len(board.Entries),
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish leaderboard event", "scope", scope.String(), "error", err)
	}
	s.notify(board)
	return board, nil
}

func (s *rankingService) compute(ctx context.Context, scope models.RankScope, gen int64) (*models.Leaderboard, error) {
	results, err := s.repo.Result().ListEvaluatedInScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list results in scope %s: %w", scope, err)
	}
	return &models.Leaderboard{
		Scope:      scope,
		Generation: gen,
		Entries:    DenseRank(results),
		ComputedAt: s.clock.Now(),
	}, nil
}

// GetLeaderboard returns the cached leaderboard of the scope, computing it on
// first use. While a recomputation is pending the previous board is served.
func (s *rankingService) GetLeaderboard(ctx context.Context, scope models.RankScope) (*models.Leaderboard, error) {
	board, err := s.store.Load(ctx, scope)
	if err == nil {
		return board, nil
	}
	if !errors.Is(err, cache.ErrCacheNotFound) {
		s.logger.Warn("Leaderboard cache unavailable, computing directly", "scope", scope.String(), "error", err)
		return s.compute(ctx, scope, 0)
	}

	gen, err := s.store.Generation(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("read generation: %w", err)
	}
	board, err = s.compute(ctx, scope, gen)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Save(ctx, board); err != nil {
		s.logger.Warn("Failed to cache leaderboard", "scope", scope.String(), "error", err)
	}
	return board, nil
}

// GetStudentRank reports the student's best entry in the scope. A student
// without an evaluated result is "not ranked", which is not an error.
func (s *rankingService) GetStudentRank(ctx context.Context, scope models.RankScope, studentID string) (*models.StudentRankResponse, error) {
	board, err := s.GetLeaderboard(ctx, scope)
	if err != nil {
		return nil, err
	}

	resp := &models.StudentRankResponse{
		Scope:    scope,
		OutOf:    len(board.Entries),
		AsOfGen:  board.Generation,
		Computed: board.ComputedAt,
	}
	for i := range board.Entries {
		if board.Entries[i].StudentID == studentID {
			entry := board.Entries[i]
			resp.Ranked = true
			resp.Entry = &entry
			break
		}
	}
	return resp, nil
}

// ExamRank returns the exam-scope rank of one attempt, or nil when unranked.
func (s *rankingService) ExamRank(ctx context.Context, examID, attemptID uint) (*int, error) {
	board, err := s.GetLeaderboard(ctx, models.ExamScope(examID))
	if err != nil {
		return nil, err
	}
	for _, e := range board.Entries {
		if e.AttemptID == attemptID {
			rank := e.Rank
			return &rank, nil
		}
	}
	return nil, nil
}

// Subscribe streams every stored recomputation of the scope. Slow readers
// only ever see the latest board.
func (s *rankingService) Subscribe(scope models.RankScope) (<-chan *models.Leaderboard, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *models.Leaderboard, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	key := scope.String()
	if s.subscribers[key] == nil {
		s.subscribers[key] = make(map[int]chan *models.Leaderboard)
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[key][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if subs, ok := s.subscribers[key]; ok {
				if c, ok := subs[id]; ok {
					delete(subs, id)
					close(c)
				}
				if len(subs) == 0 {
					delete(s.subscribers, key)
				}
			}
		})
	}
}

func (s *rankingService) notify(board *models.Leaderboard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers[board.Scope.String()] {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- board:
		default:
		}
	}
}

// Close cancels pending recomputations and ends every subscription.
func (s *rankingService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for key, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, key)
	}
	for key, subs := range s.subscribers {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(s.subscribers, key)
	}
	return nil
}
