package devices

import (
	"sync"

	"github.com/samber/lo"

	"govee-client/internal/models"
)

// Registry is the in-memory device cache and the single view callers
// observe. Discovery is additive only: a device once known is never removed,
// even when a later discovery response omits it, and the record identity is
// preserved across discoveries.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*models.GoveeDevice
	// insertion order, for stable listings
	order []string
}

func NewRegistry() *Registry {
	return &Registry{byID: map[string]*models.GoveeDevice{}}
}

// Add registers a device record. It reports false when a record with the
// same id already exists; the existing record stays untouched.
func (r *Registry) Add(dev *models.GoveeDevice) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[dev.Device]; ok {
		return false
	}
	r.byID[dev.Device] = dev
	r.order = append(r.order, dev.Device)
	return true
}

func (r *Registry) Get(id string) (*models.GoveeDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.byID[id]
	return dev, ok
}

// List returns all known devices in discovery order.
func (r *Registry) List() []*models.GoveeDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.order, func(id string, _ int) *models.GoveeDevice {
		return r.byID[id]
	})
}
