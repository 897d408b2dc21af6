// Package learning holds the persistence contract for per-device quirks
// learned at runtime, plus the process-wide cache in front of it.
package learning

import (
	"maps"
	"sync"

	"github.com/charmbracelet/log"

	"govee-client/internal/models"
)

// Store persists learned device quirks keyed by device id. The whole map is
// read once and rewritten on every change; there is no per-device
// granularity. Implementations live outside the core (sqlite, file, no-op).
type Store interface {
	Read() (map[string]models.LearnedInfo, error)
	Write(infos map[string]models.LearnedInfo) error
}

// Cache wraps a Store with a read-once latch and a write-through cache.
// Learning durability is best-effort: a failing backing store is logged and
// never fails the operation that triggered it.
type Cache struct {
	logger *log.Logger
	store  Store

	mu     sync.Mutex
	cached bool
	infos  map[string]models.LearnedInfo
}

func NewCache(logger *log.Logger, store Store) *Cache {
	return &Cache{logger: logger, store: store}
}

// Read returns the learned quirks map, reading the backing store only the
// first time it is called in the process lifetime.
func (c *Cache) Read() map[string]models.LearnedInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cached {
		infos, err := c.store.Read()
		if err != nil {
			c.logger.Warn("could not read learned device info, starting without", "err", err)
			infos = nil
		}
		if infos == nil {
			infos = map[string]models.LearnedInfo{}
		}
		c.infos = infos
		c.cached = true
	}
	return maps.Clone(c.infos)
}

// Write replaces the cached map and flushes it to the backing store. The
// cache is updated before the store write, so reads within the same process
// always observe the latest learned values even when persistence fails.
func (c *Cache) Write(infos map[string]models.LearnedInfo) {
	c.mu.Lock()
	c.infos = maps.Clone(infos)
	c.cached = true
	c.mu.Unlock()

	if err := c.store.Write(infos); err != nil {
		c.logger.Warn("could not persist learned device info", "err", err)
	}
}

// NoopStore keeps learned info in memory only; everything is re-learned on
// the next process start.
type NoopStore struct {
	Logger *log.Logger
}

func (s NoopStore) Read() (map[string]models.LearnedInfo, error) {
	if s.Logger != nil {
		s.Logger.Warn("no learning store configured, learned device quirks will not survive a restart")
	}
	return map[string]models.LearnedInfo{}, nil
}

func (s NoopStore) Write(map[string]models.LearnedInfo) error {
	return nil
}
