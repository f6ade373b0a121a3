package rates

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value     float64
	fetchedAt time.Time
}

// Cache хранит последний полученный курс по каждому символу с ограниченным
// временем жизни. Явная инжектируемая абстракция вместо глобального состояния:
// часы подменяются в тестах, проверка свежести — чистая функция времени.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache создаёт кэш курсов с указанным временем жизни записи.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func fresh(e cacheEntry, now time.Time, ttl time.Duration) bool {
	return now.Sub(e.fetchedAt) < ttl
}

// Get возвращает закэшированный курс, если запись ещё свежая.
func (c *Cache) Get(symbol string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[symbol]
	if !ok || !fresh(e, c.now(), c.ttl) {
		return 0, false
	}
	return e.value, true
}

// Put сохраняет курс с текущей отметкой времени.
func (c *Cache) Put(symbol string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[symbol] = cacheEntry{value: value, fetchedAt: c.now()}
}
