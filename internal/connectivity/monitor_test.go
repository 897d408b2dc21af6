package connectivity_test

import (
	"os"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"

	"govee-client/internal/connectivity"
)

func newTestMonitor() *connectivity.Monitor {
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
	return connectivity.NewMonitor(logger)
}

func Test_Monitor(t *testing.T) {

	t.Run("should start online", func(t *testing.T) {
		m := newTestMonitor()

		assert.True(t, m.Online())
	})

	t.Run("should notify once per state flip", func(t *testing.T) {
		m := newTestMonitor()
		flips := []bool{}
		m.OnChange(func(online bool) { flips = append(flips, online) })

		m.Record(true)
		m.Record(false)
		m.Record(false)
		m.Record(true)

		assert.Equal(t, []bool{false, true}, flips)
		assert.True(t, m.Online())
	})

	t.Run("should track the last observed state", func(t *testing.T) {
		m := newTestMonitor()

		m.Record(false)

		assert.False(t, m.Online())
	})
}
