// Package memory is an in-process attempt store used for single-node
// development and tests. Transactions are serialized and rolled back by
// restoring a snapshot, so writes outside a transaction wait for any open
// one to finish.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
)

type tables struct {
	exams         map[uint]models.Exam
	examQuestions map[uint][]models.ExamQuestion
	questions     map[uint]models.Question
	attempts      map[uint]models.Attempt
	attemptKeys   map[string]uint
	answers       map[uint]models.Answer
	results       map[uint]models.Result // keyed by attempt id
	seq           uint
}

func newTables() tables {
	return tables{
		exams:         make(map[uint]models.Exam),
		examQuestions: make(map[uint][]models.ExamQuestion),
		questions:     make(map[uint]models.Question),
		attempts:      make(map[uint]models.Attempt),
		attemptKeys:   make(map[string]uint),
		answers:       make(map[uint]models.Answer),
		results:       make(map[uint]models.Result),
	}
}

func (t tables) clone() tables {
	c := newTables()
	c.seq = t.seq
	for k, v := range t.exams {
		c.exams[k] = v
	}
	for k, v := range t.examQuestions {
		c.examQuestions[k] = append([]models.ExamQuestion(nil), v...)
	}
	for k, v := range t.questions {
		c.questions[k] = v
	}
	for k, v := range t.attempts {
		c.attempts[k] = v
	}
	for k, v := range t.attemptKeys {
		c.attemptKeys[k] = v
	}
	for k, v := range t.answers {
		c.answers[k] = v
	}
	for k, v := range t.results {
		c.results[k] = v
	}
	return c
}

func (t *tables) nextID() uint {
	t.seq++
	return t.seq
}

// Store owns the data; Repository values are views over it.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data tables
}

func NewStore() *Store {
	return &Store{data: newTables()}
}

// SeedQuestions loads question-bank entries. Questions are read-only to the engine.
func (s *Store) SeedQuestions(questions ...models.Question) {
	defer s.lock(false)()
	for _, q := range questions {
		if q.ID == 0 {
			q.ID = s.data.nextID()
		} else if q.ID > s.data.seq {
			s.data.seq = q.ID
		}
		s.data.questions[q.ID] = q
	}
}

// lock takes the write lock and returns its release. Outside a transaction
// it also holds txMu so no rollback snapshot can predate the write.
func (s *Store) lock(inTx bool) (unlock func()) {
	if !inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if !inTx {
			s.txMu.Unlock()
		}
	}
}

type Repository struct {
	store *Store
	inTx  bool
}

// NewRepository returns a Repository backed by a fresh store.
func NewRepository() *Repository {
	return &Repository{store: NewStore()}
}

func NewRepositoryWithStore(store *Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Store() *Store { return r.store }

func (r *Repository) Exam() repositories.ExamRepository         { return &examRepo{s: r.store, inTx: r.inTx} }
func (r *Repository) Question() repositories.QuestionRepository { return &questionRepo{s: r.store, inTx: r.inTx} }
func (r *Repository) Attempt() repositories.AttemptRepository   { return &attemptRepo{s: r.store, inTx: r.inTx} }
func (r *Repository) Answer() repositories.AnswerRepository     { return &answerRepo{s: r.store, inTx: r.inTx} }
func (r *Repository) Result() repositories.ResultRepository     { return &resultRepo{s: r.store, inTx: r.inTx} }

func (r *Repository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()

	r.store.mu.RLock()
	snapshot := r.store.data.clone()
	r.store.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(&Repository{store: r.store, inTx: true}); err != nil {
		r.store.mu.Lock()
		r.store.data = snapshot
		r.store.mu.Unlock()
		return err
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error { return ctx.Err() }

func (r *Repository) Close() error { return nil }

func attemptKey(examID uint, studentID string) string {
	return fmt.Sprintf("%d:%s", examID, studentID)
}

// RepositoryManager mirrors the postgres manager for the in-process store.
type RepositoryManager struct {
	repo     *Repository
	identity repositories.IdentityRepository
}

func NewRepositoryManager(identity repositories.IdentityRepository) *RepositoryManager {
	return &RepositoryManager{identity: identity}
}

func (rm *RepositoryManager) Initialize() error {
	rm.repo = NewRepository()
	return nil
}

func (rm *RepositoryManager) GetRepository() repositories.Repository { return rm.repo }

func (rm *RepositoryManager) Identity() repositories.IdentityRepository { return rm.identity }

func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}
	return rm.repo.Ping(ctx)
}

func (rm *RepositoryManager) Shutdown(ctx context.Context) error { return nil }
