package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasks-api/internal/model"
)

const defaultCacheTTL = 5 * time.Minute

// CachedRepo is a read-through Redis cache for Get in front of another
// repository. Writes go straight to the wrapped repository; the affected keys
// are dropped once the write is durable. Redis failures are logged and
// otherwise ignored.
type CachedRepo struct {
	next   TaskRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedRepo(next TaskRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedRepo {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedRepo{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("task:%d", id)
}

func (r *CachedRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	return r.next.Create(ctx, t)
}

func (r *CachedRepo) Get(ctx context.Context, id int64) (model.Task, error) {
	data, err := r.client.Get(ctx, cacheKey(id)).Bytes()
	if err == nil {
		var t model.Task
		if err := json.Unmarshal(data, &t); err == nil {
			return t, nil
		}
		r.logger.Warn("dropping unreadable cache entry", zap.Int64("task_id", id))
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("cache get failed", zap.Int64("task_id", id), zap.Error(err))
	}

	t, err := r.next.Get(ctx, id)
	if err != nil {
		return t, err
	}
	r.store(ctx, t)
	return t, nil
}

func (r *CachedRepo) FindByTitle(ctx context.Context, title string, excludeID int64) (model.Task, error) {
	return r.next.FindByTitle(ctx, title, excludeID)
}

func (r *CachedRepo) List(ctx context.Context) ([]model.Task, error) {
	return r.next.List(ctx)
}

func (r *CachedRepo) Update(ctx context.Context, t model.Task) (model.Task, error) {
	updated, err := r.next.Update(ctx, t)
	if err != nil {
		return updated, err
	}
	r.invalidate(ctx, t.ID)
	return updated, nil
}

func (r *CachedRepo) Delete(ctx context.Context, id int64) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *CachedRepo) GetStats(ctx context.Context) (model.Stats, error) {
	return r.next.GetStats(ctx)
}

// InTx bypasses the cache inside the transaction and invalidates every task
// the callback wrote after the commit.
func (r *CachedRepo) InTx(ctx context.Context, fn func(r TaskRepository) error) error {
	var (
		mu      sync.Mutex
		touched []int64
	)
	err := r.next.InTx(ctx, func(tx TaskRepository) error {
		return fn(&touchTracker{TaskRepository: tx, touch: func(id int64) {
			mu.Lock()
			touched = append(touched, id)
			mu.Unlock()
		}})
	})
	if err != nil {
		return err
	}
	r.invalidate(ctx, touched...)
	return nil
}

func (r *CachedRepo) store(ctx context.Context, t model.Task) {
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, cacheKey(t.ID), data, r.ttl).Err(); err != nil {
		r.logger.Warn("cache set failed", zap.Int64("task_id", t.ID), zap.Error(err))
	}
}

func (r *CachedRepo) invalidate(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cacheKey(id))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// touchTracker records the ids written through a transactional repository.
type touchTracker struct {
	TaskRepository
	touch func(id int64)
}

func (t *touchTracker) Update(ctx context.Context, task model.Task) (model.Task, error) {
	updated, err := t.TaskRepository.Update(ctx, task)
	if err == nil {
		t.touch(task.ID)
	}
	return updated, err
}

func (t *touchTracker) Delete(ctx context.Context, id int64) error {
	err := t.TaskRepository.Delete(ctx, id)
	if err == nil {
		t.touch(id)
	}
	return err
}

func (t *touchTracker) InTx(ctx context.Context, fn func(r TaskRepository) error) error {
	return fn(t)
}
