package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

func newRedisStore(t *testing.T) (*RedisLeaderboardStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLeaderboardStore(client, LeaderboardCacheConfig), mr
}

func board(scope models.RankScope, gen int64, students ...string) *models.Leaderboard {
	b := &models.Leaderboard{Scope: scope, Generation: gen, ComputedAt: time.Unix(0, 0).UTC()}
	for i, s := range students {
		b.Entries = append(b.Entries, models.LeaderboardEntry{Rank: i + 1, StudentID: s})
	}
	return b
}

func storesUnderTest(t *testing.T) map[string]LeaderboardStore {
	redisStore, _ := newRedisStore(t)
	return map[string]LeaderboardStore{
		"redis":  redisStore,
		"memory": NewMemoryLeaderboardStore(),
	}
}

func TestLeaderboardStoreGeneration(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			scope := models.ExamScope(7)

			gen, err := store.Generation(ctx, scope)
			if err != nil || gen != 0 {
				t.Fatalf("Generation() = %d, %v; want 0, nil", gen, err)
			}
			for want := int64(1); want <= 3; want++ {
				got, err := store.Bump(ctx, scope)
				if err != nil {
					t.Fatalf("Bump: %v", err)
				}
				if got != want {
					t.Fatalf("Bump() = %d, want %d", got, want)
				}
			}
			if other, _ := store.Generation(ctx, models.GlobalScope()); other != 0 {
				t.Errorf("global generation = %d, want 0", other)
			}
		})
	}
}

func TestLeaderboardStoreRejectsOlderBoard(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			scope := models.RankScope{Type: models.ScopeDepartment, ID: "cse"}

			if _, err := store.Load(ctx, scope); !errors.Is(err, ErrCacheNotFound) {
				t.Fatalf("Load on empty store: err = %v, want ErrCacheNotFound", err)
			}

			if ok, err := store.Save(ctx, board(scope, 2, "a", "b")); err != nil || !ok {
				t.Fatalf("Save gen 2 = %v, %v", ok, err)
			}
			if ok, err := store.Save(ctx, board(scope, 1, "stale")); err != nil || ok {
				t.Fatalf("Save gen 1 = %v, %v; want rejected", ok, err)
			}

			got, err := store.Load(ctx, scope)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got.Generation != 2 || len(got.Entries) != 2 || got.Entries[0].StudentID != "a" {
				t.Fatalf("Load() = %+v, want generation 2 board", got)
			}

			if ok, _ := store.Save(ctx, board(scope, 3, "c")); !ok {
				t.Fatal("Save gen 3 rejected")
			}
			if got, _ := store.Load(ctx, scope); got.Generation != 3 {
				t.Errorf("generation = %d, want 3", got.Generation)
			}
		})
	}
}

func TestLeaderboardStoreReset(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	scope := models.ExamScope(1)

	store.Bump(ctx, scope)
	store.Save(ctx, board(scope, 1, "a"))
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := store.Load(ctx, scope); !errors.Is(err, ErrCacheNotFound) {
		t.Fatalf("Load after reset: err = %v", err)
	}
	if !mr.Exists("leaderboard:gen:exam:1") {
		t.Error("generation counter removed by Reset")
	}
}

func TestReadThroughWithoutRedis(t *testing.T) {
	helper := NewCacheHelper(nil, ExamCacheConfig)
	calls := 0
	load := func() (*struct{ Title string }, error) {
		calls++
		return &struct{ Title string }{Title: "Algebra"}, nil
	}

	for i := 0; i < 2; i++ {
		got, err := ReadThrough(context.Background(), helper, IDKey(1), load)
		if err != nil {
			t.Fatalf("ReadThrough: %v", err)
		}
		if got.Title != "Algebra" {
			t.Errorf("Title = %q", got.Title)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 without a cache", calls)
	}
}

func TestReadThroughCachesValue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	helper := NewCacheHelper(client, ExamCacheConfig)
	calls := 0
	load := func() (*struct{ Title string }, error) {
		calls++
		return &struct{ Title string }{Title: "Algebra"}, nil
	}

	for i := 0; i < 3; i++ {
		if _, err := ReadThrough(context.Background(), helper, IDKey(7), load); err != nil {
			t.Fatalf("ReadThrough: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !mr.Exists("exam:id:7") {
		t.Fatal("exam:id:7 not written")
	}
	if ttl := mr.TTL("exam:id:7"); ttl != ExamCacheConfig.TTL {
		t.Errorf("ttl = %v, want %v", ttl, ExamCacheConfig.TTL)
	}

	helper.Forget(context.Background(), IDKey(7))
	if mr.Exists("exam:id:7") {
		t.Error("exam:id:7 survived Forget")
	}
}
