package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"balance-game-service/internal/app"
	"balance-game-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionSetCache caches GetQuestionSet with TTL to avoid repeated store hits
// while a set is being played. Writes go straight to the wrapped store and
// invalidate the cached entry once the store has applied them. A per-id
// generation keeps reads that started before a write from caching the old set.
type QuestionSetCache struct {
	app.QuestionSetRepository

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
	gen   map[string]uint64
}

type cachedSet struct {
	set       domain.CustomQuestionSet
	expiresAt time.Time
}

func NewQuestionSetCache(store app.QuestionSetRepository, ttl time.Duration) *QuestionSetCache {
	return &QuestionSetCache{
		QuestionSetRepository: store,
		ttl:                   ttl,
		clock:                 time.Now,
		rnd:                   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:                 make(map[string]cachedSet),
		gen:                   make(map[string]uint64),
	}
}

func (c *QuestionSetCache) GetQuestionSet(ctx context.Context, id string) (domain.CustomQuestionSet, error) {
	if set, ok := c.lookup(id); ok {
		return set, nil
	}

	gen := c.generation(id)
	result, err, _ := c.sf.Do(id+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		// Re-check in case another caller filled it.
		if set, ok := c.lookup(id); ok {
			return set, nil
		}

		set, err := c.QuestionSetRepository.GetQuestionSet(ctx, id)
		if err != nil {
			return domain.CustomQuestionSet{}, err
		}

		if ttl := c.ttlWithJitter(); ttl > 0 {
			c.mu.Lock()
			if c.gen[id] == gen {
				c.cache[id] = cachedSet{set: cloneSet(set), expiresAt: c.clock().Add(ttl)}
			}
			c.mu.Unlock()
		}
		return set, nil
	})
	if err != nil {
		return domain.CustomQuestionSet{}, err
	}
	return cloneSet(result.(domain.CustomQuestionSet)), nil
}

func (c *QuestionSetCache) UpdateQuestionSet(ctx context.Context, set domain.CustomQuestionSet) error {
	defer c.invalidate(set.ID)
	return c.QuestionSetRepository.UpdateQuestionSet(ctx, set)
}

func (c *QuestionSetCache) DeleteQuestionSet(ctx context.Context, id string) error {
	defer c.invalidate(id)
	return c.QuestionSetRepository.DeleteQuestionSet(ctx, id)
}

func (c *QuestionSetCache) lookup(id string) (domain.CustomQuestionSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[id]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.CustomQuestionSet{}, false
	}
	return cloneSet(entry.set), true
}

func (c *QuestionSetCache) generation(id string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen[id]
}

func (c *QuestionSetCache) invalidate(id string) {
	c.mu.Lock()
	delete(c.cache, id)
	c.gen[id]++
	c.mu.Unlock()
}

func (c *QuestionSetCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
