package devices_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"govee-client/internal/devices"
	"govee-client/internal/models"
)

func Test_Registry(t *testing.T) {

	t.Run("should accumulate devices in discovery order", func(t *testing.T) {
		r := devices.NewRegistry()

		assert.True(t, r.Add(&models.GoveeDevice{Device: "aa:bb", Model: "H6163"}))
		assert.True(t, r.Add(&models.GoveeDevice{Device: "cc:dd", Model: "H6104"}))

		ids := []string{}
		for _, d := range r.List() {
			ids = append(ids, d.Device)
		}
		assert.Equal(t, []string{"aa:bb", "cc:dd"}, ids)
	})

	t.Run("should keep the existing record when a device is re-added", func(t *testing.T) {
		r := devices.NewRegistry()
		first := &models.GoveeDevice{Device: "aa:bb", Brightness: 120}
		r.Add(first)

		assert.False(t, r.Add(&models.GoveeDevice{Device: "aa:bb"}))

		got, ok := r.Get("aa:bb")
		assert.True(t, ok)
		assert.Same(t, first, got)
		assert.Equal(t, 120, got.Brightness)
	})

	t.Run("should report missing devices", func(t *testing.T) {
		r := devices.NewRegistry()

		_, ok := r.Get("nope")

		assert.False(t, ok)
	})
}
