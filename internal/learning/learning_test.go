package learning_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"

	"govee-client/internal/learning"
	"govee-client/internal/models"
)

type fakeStore struct {
	data       map[string]models.LearnedInfo
	readCalls  int
	writeCalls int
	readErr    error
	writeErr   error
	written    map[string]models.LearnedInfo
}

func (s *fakeStore) Read() (map[string]models.LearnedInfo, error) {
	s.readCalls++
	return s.data, s.readErr
}

func (s *fakeStore) Write(infos map[string]models.LearnedInfo) error {
	s.writeCalls++
	s.written = infos
	return s.writeErr
}

func testLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
}

func Test_CacheRead(t *testing.T) {

	t.Run("should read the backing store only once", func(t *testing.T) {
		store := &fakeStore{data: map[string]models.LearnedInfo{
			"AA:BB": {SetBrightnessMax: 100},
		}}
		cache := learning.NewCache(testLogger(), store)

		first := cache.Read()
		second := cache.Read()

		assert.Equal(t, 1, store.readCalls)
		assert.Equal(t, 100, first["AA:BB"].SetBrightnessMax)
		assert.Equal(t, first, second)
	})

	t.Run("read failure: should start empty and not fail", func(t *testing.T) {
		store := &fakeStore{readErr: fmt.Errorf("db locked")}
		cache := learning.NewCache(testLogger(), store)

		infos := cache.Read()

		assert.Empty(t, infos)
	})

	t.Run("mutating the returned map must not affect the cache", func(t *testing.T) {
		store := &fakeStore{}
		cache := learning.NewCache(testLogger(), store)

		infos := cache.Read()
		infos["AA:BB"] = models.LearnedInfo{SetBrightnessMax: 254}

		assert.Empty(t, cache.Read())
	})
}

func Test_CacheWrite(t *testing.T) {

	t.Run("should update the cache and flush the full map", func(t *testing.T) {
		store := &fakeStore{}
		cache := learning.NewCache(testLogger(), store)

		infos := map[string]models.LearnedInfo{"AA:BB": {GetBrightnessMax: 254}}
		cache.Write(infos)

		assert.Equal(t, 1, store.writeCalls)
		assert.Equal(t, infos, store.written)
		assert.Equal(t, 254, cache.Read()["AA:BB"].GetBrightnessMax)
		// write latches the cache, the store is never read
		assert.Equal(t, 0, store.readCalls)
	})

	t.Run("write failure: should keep the in-memory value", func(t *testing.T) {
		store := &fakeStore{writeErr: fmt.Errorf("disk full")}
		cache := learning.NewCache(testLogger(), store)

		cache.Write(map[string]models.LearnedInfo{"AA:BB": {SetBrightnessMax: 100}})

		assert.Equal(t, 100, cache.Read()["AA:BB"].SetBrightnessMax)
	})
}
