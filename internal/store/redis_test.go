package store_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/warfront/realm-engine/internal/model"
	"github.com/warfront/realm-engine/internal/store"
)

// pausingStore parks the first GetActor after it has read the row, so a
// commit can land between the primary read and the cache fill.
type pausingStore struct {
	*store.MemoryStore
	once    sync.Once
	reading chan struct{}
	resume  chan struct{}
}

func (s *pausingStore) GetActor(ctx context.Context, id string) (*model.Actor, error) {
	a, err := s.MemoryStore.GetActor(ctx, id)
	s.once.Do(func() {
		close(s.reading)
		<-s.resume
	})
	return a, err
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse REDIS_TEST_URL: %v", err)
	}
	rdb := redis.NewClient(opt)
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestCachedStore_ReadBeforeCommitDoesNotStick(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()

	id := uuid.New().String()
	ps := &pausingStore{
		MemoryStore: store.NewMemoryStore(),
		reading:     make(chan struct{}),
		resume:      make(chan struct{}),
	}
	if err := ps.MemoryStore.CreateActor(ctx, &model.Actor{ID: id, Name: id, Gold: 100, Level: 1, CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rdb.Del(ctx, "actor:"+id, "gen:actor:"+id) })
	cs := store.NewCachedStore(ps, rdb, time.Minute)

	done := make(chan *model.Actor)
	go func() {
		a, err := cs.GetActor(ctx, id)
		if err != nil {
			t.Errorf("slow read: %v", err)
		}
		done <- a
	}()

	<-ps.reading
	err := cs.WithTx(ctx, func(tx store.Tx) error {
		return tx.ApplyActorDelta(ctx, id, model.ActorDelta{Gold: 100})
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	close(ps.resume)
	if stale := <-done; stale.Gold != 100 {
		t.Fatalf("slow read gold = %d, want the pre-commit 100", stale.Gold)
	}

	a, err := cs.GetActor(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if a.Gold != 200 {
		t.Errorf("gold = %d after commit, want 200", a.Gold)
	}
}
