package repos_test

import (
	"database/sql"
	"os"
	"testing"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govee-client/internal/models"
	"govee-client/internal/repos"
)

func newTestRepo(t *testing.T) *repos.LearningRepo {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
	repo, err := repos.NewLearningRepo(logger, db)
	require.NoError(t, err)
	return repo
}

func Test_LearningRepo(t *testing.T) {

	t.Run("empty store: should read an empty map", func(t *testing.T) {
		repo := newTestRepo(t)

		infos, err := repo.Read()

		assert.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("should round-trip learned info", func(t *testing.T) {
		repo := newTestRepo(t)

		written := map[string]models.LearnedInfo{
			"AA:BB:CC:DD": {SetBrightnessMax: 100, GetBrightnessMax: 254},
			"11:22:33:44": {GetBrightnessMax: -1, TurnOnBeforeBrightness: true, OfflineIsOff: true},
		}
		require.NoError(t, repo.Write(written))

		infos, err := repo.Read()

		assert.NoError(t, err)
		assert.Equal(t, written, infos)
	})

	t.Run("write replaces the whole map", func(t *testing.T) {
		repo := newTestRepo(t)

		require.NoError(t, repo.Write(map[string]models.LearnedInfo{
			"AA:BB:CC:DD": {SetBrightnessMax: 100},
			"11:22:33:44": {SetBrightnessMax: 254},
		}))
		require.NoError(t, repo.Write(map[string]models.LearnedInfo{
			"AA:BB:CC:DD": {SetBrightnessMax: 254},
		}))

		infos, err := repo.Read()

		assert.NoError(t, err)
		assert.Equal(t, map[string]models.LearnedInfo{
			"AA:BB:CC:DD": {SetBrightnessMax: 254},
		}, infos)
	})
}
