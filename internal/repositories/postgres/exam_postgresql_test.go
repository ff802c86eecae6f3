package postgres

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/cache"
)

func TestExamInvalidationWaitsForCommit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	caches := cache.NewCacheManager(client)
	key := cache.ExamCacheConfig.Prefix + cache.IDKey(3)

	tests := []struct {
		name      string
		inTx      bool
		wantKept  bool
		wantQueue int
	}{
		{"outside a transaction", false, false, 0},
		{"inside a transaction", true, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := mr.Set(key, `{"id":3}`); err != nil {
				t.Fatalf("seed: %v", err)
			}
			repo := NewExamPostgreSQL(nil, caches)
			repo.inTx = tt.inTx

			repo.invalidate(ctx, 3)
			if got := mr.Exists(key); got != tt.wantKept {
				t.Errorf("key present = %v, want %v", got, tt.wantKept)
			}
			if len(repo.staleExams) != tt.wantQueue {
				t.Errorf("queued = %d, want %d", len(repo.staleExams), tt.wantQueue)
			}

			repo.flushInvalidations(ctx)
			if mr.Exists(key) {
				t.Error("key present after commit")
			}
			if len(repo.staleExams) != 0 {
				t.Errorf("queue not drained: %v", repo.staleExams)
			}
		})
	}
}
