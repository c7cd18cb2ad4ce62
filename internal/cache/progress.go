package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Freeeeeet/driving_booking/internal/model"
)

// ProgressKey ключ сводки прогресса студента
func ProgressKey(studentID int64) string {
	return fmt.Sprintf("progress:%d", studentID)
}

// ProgressGenKey счётчик инвалидаций сводки студента
func ProgressGenKey(studentID int64) string {
	return fmt.Sprintf("progress:gen:%d", studentID)
}

// RedisProgress сводки прогресса в Redis.
// Каждая инвалидация увеличивает поколение; Set записывает сводку только
// если поколение не менялось с момента, когда её начали считать.
type RedisProgress struct {
	cache *Redis
	ttl   time.Duration
}

func NewRedisProgress(c *Redis, ttl time.Duration) *RedisProgress {
	return &RedisProgress{cache: c, ttl: ttl}
}

// Get возвращает сводку или nil, если её нет в кэше
func (p *RedisProgress) Get(ctx context.Context, studentID int64) (*model.StudentProgress, error) {
	var sp model.StudentProgress
	if err := p.cache.Get(ctx, ProgressKey(studentID), &sp); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &sp, nil
}

// Generation текущее поколение сводки студента
func (p *RedisProgress) Generation(ctx context.Context, studentID int64) (int64, error) {
	return readGen(ctx, p.cache.Client(), ProgressGenKey(studentID))
}

func (p *RedisProgress) Set(ctx context.Context, sp *model.StudentProgress, gen int64) error {
	genKey := ProgressGenKey(sp.StudentID)
	err := p.cache.Client().Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGen(ctx, tx, genKey)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return p.cache.SetWith(ctx, pipe, ProgressKey(sp.StudentID), sp, p.ttl)
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		// поколение сменилось между чтением и записью
		return nil
	}
	return err
}

func (p *RedisProgress) Invalidate(ctx context.Context, studentID int64) error {
	_, err := p.cache.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, ProgressGenKey(studentID))
		pipe.Del(ctx, ProgressKey(studentID))
		return nil
	})
	return err
}

func readGen(ctx context.Context, c redis.Cmdable, key string) (int64, error) {
	gen, err := c.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return gen, nil
}

type memoryEntry struct {
	sp      model.StudentProgress
	expires time.Time
}

// MemoryProgress сводки прогресса в памяти процесса
type MemoryProgress struct {
	mu      sync.RWMutex
	entries map[int64]memoryEntry
	gens    map[int64]int64
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryProgress(ttl time.Duration) *MemoryProgress {
	return &MemoryProgress{
		entries: make(map[int64]memoryEntry),
		gens:    make(map[int64]int64),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (p *MemoryProgress) Get(_ context.Context, studentID int64) (*model.StudentProgress, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[studentID]
	if !ok || (p.ttl > 0 && p.now().After(e.expires)) {
		return nil, nil
	}
	sp := e.sp
	return &sp, nil
}

func (p *MemoryProgress) Generation(_ context.Context, studentID int64) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gens[studentID], nil
}

func (p *MemoryProgress) Set(_ context.Context, sp *model.StudentProgress, gen int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gens[sp.StudentID] != gen {
		return nil
	}
	p.entries[sp.StudentID] = memoryEntry{sp: *sp, expires: p.now().Add(p.ttl)}
	return nil
}

func (p *MemoryProgress) Invalidate(_ context.Context, studentID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gens[studentID]++
	delete(p.entries, studentID)
	return nil
}
