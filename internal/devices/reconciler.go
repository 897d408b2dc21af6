package devices

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"govee-client/internal/models"
)

type quirkLearner interface {
	Learn(dev *models.GoveeDevice)
}

type ignoreKey struct {
	source models.Source
	field  models.Field
}

// Reconciler is the only mutator of device state. Every command
// acknowledgement and every poll response flows through Apply exactly once
// per field, under the per-source ignore rules and the offline policy.
type Reconciler struct {
	logger   *log.Logger
	registry *Registry
	learner  quirkLearner
	now      func() time.Time

	mu           sync.RWMutex
	ignored      map[ignoreKey]struct{}
	offlineIsOff *bool
}

func NewReconciler(logger *log.Logger, registry *Registry, learner quirkLearner) *Reconciler {
	return &Reconciler{
		logger:   logger,
		registry: registry,
		learner:  learner,
		now:      time.Now,
		ignored:  map[ignoreKey]struct{}{},
	}
}

// field setters, validated against the Field enum
var setters = map[models.Field]func(dev *models.GoveeDevice, value any) bool{
	models.FieldOnline: func(dev *models.GoveeDevice, value any) bool {
		v, ok := value.(bool)
		if ok {
			dev.Online = v
		}
		return ok
	},
	models.FieldPowerState: func(dev *models.GoveeDevice, value any) bool {
		v, ok := value.(bool)
		if ok {
			dev.PowerState = v
		}
		return ok
	},
	models.FieldBrightness: func(dev *models.GoveeDevice, value any) bool {
		v, ok := value.(int)
		if ok {
			dev.Brightness = v
		}
		return ok
	},
	models.FieldColor: func(dev *models.GoveeDevice, value any) bool {
		v, ok := value.(models.Color)
		if ok {
			dev.Color = v
		}
		return ok
	},
	models.FieldColorTemp: func(dev *models.GoveeDevice, value any) bool {
		v, ok := value.(int)
		if ok {
			dev.ColorTemp = v
		}
		return ok
	},
	models.FieldError: func(dev *models.GoveeDevice, value any) bool {
		v, ok := value.(string)
		if ok {
			dev.Err = v
		}
		return ok
	},
}

// Apply writes one field of a device record on behalf of the given source.
// A write suppressed by the ignore rules is a successful no-op.
func (r *Reconciler) Apply(source models.Source, dev *models.GoveeDevice, field models.Field, value any) {
	r.mu.RLock()
	_, suppressed := r.ignored[ignoreKey{source: source, field: field}]
	r.mu.RUnlock()

	if suppressed {
		r.logger.Warn("state write suppressed by ignore rule", "device", dev.Device, "source", source.String(), "field", field.String())
		return
	}

	set, ok := setters[field]
	if !ok || !set(dev, value) {
		r.logger.Warn("state write with unexpected field or value type dropped", "device", dev.Device, "field", field.String())
		return
	}
	dev.Source = source
	dev.Timestamp = r.now()
}

// MarkRemembered stamps a record as served from local history without
// touching any state field. Used when a poll is answered from cache.
func (r *Reconciler) MarkRemembered(dev *models.GoveeDevice) {
	dev.Source = models.SourceRemembered
	dev.Timestamp = r.now()
}

// ApplyPollState merges one parsed poll response into a device record:
// offline policy first, then brightness-range inference and normalization,
// then the field-level writes.
func (r *Reconciler) ApplyPollState(dev *models.GoveeDevice, st models.DeviceState) {
	power := st.PowerState
	applyPower := true
	if !st.Online {
		// global override wins over the per-device learned default; when
		// neither forces off the last known power state is kept
		global := r.OfflinePolicy()
		switch {
		case global != nil && *global:
			power = false
		case global == nil && dev.OfflineIsOff:
			power = false
		default:
			applyPower = false
		}
	}

	brightness := st.Brightness
	if dev.GetBrightnessMax == 0 || (dev.GetBrightnessMax == 100 && brightness > 100) {
		// assume the narrow range until a value above 100 proves otherwise
		dev.GetBrightnessMax = 100
		if brightness > 100 {
			dev.GetBrightnessMax = 254
		}
		if dev.GetBrightnessMax == 100 {
			r.logger.Info("brightness range is assumed, pull the device to full brightness once if the value looks off", "device", dev.Device)
		}
		r.learner.Learn(dev)
	}
	if dev.GetBrightnessMax == 100 {
		// scale range 0-100 up to 0-254
		brightness = brightness * 254 / 100
	}

	r.Apply(models.SourcePolled, dev, models.FieldError, "")
	r.Apply(models.SourcePolled, dev, models.FieldOnline, st.Online)
	if applyPower {
		r.Apply(models.SourcePolled, dev, models.FieldPowerState, power)
	}
	r.Apply(models.SourcePolled, dev, models.FieldBrightness, brightness)
	r.Apply(models.SourcePolled, dev, models.FieldColor, st.Color)
	r.Apply(models.SourcePolled, dev, models.FieldColorTemp, st.ColorTemp)
}

// ForceAllOffline marks every cached device offline. Called when the client
// itself loses connectivity, so stale online flags never survive an outage.
func (r *Reconciler) ForceAllOffline() {
	for _, dev := range r.registry.List() {
		r.Apply(models.SourcePolled, dev, models.FieldOnline, false)
	}
}

// SetOfflinePolicy sets the global offline-means-off override. nil removes
// the override, falling back to the per-device learned default.
func (r *Reconciler) SetOfflinePolicy(v *bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offlineIsOff = v
}

func (r *Reconciler) OfflinePolicy() *bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.offlineIsOff
}

// SetIgnoreRules parses a semicolon-separated list of source:field pairs
// (e.g. "history:brightness;api:power_state") and atomically replaces the
// active ignore set. Nothing changes when any pair is invalid.
func (r *Reconciler) SetIgnoreRules(spec string) error {
	ignored, err := parseIgnoreRules(spec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignored = ignored
	return nil
}

func parseIgnoreRules(spec string) (map[ignoreKey]struct{}, error) {
	ignored := map[ignoreKey]struct{}{}
	if strings.TrimSpace(spec) == "" {
		return ignored, nil
	}
	for _, pair := range strings.Split(spec, ";") {
		parts := strings.Split(pair, ":")
		if len(parts) != 2 {
			return nil, models.NewConfigError("malformed ignore rule %q, expected source:field", pair)
		}
		source, err := models.ParseSource(parts[0])
		if err != nil {
			return nil, err
		}
		field, ok := models.ParseField(parts[1])
		if !ok {
			return nil, models.NewConfigError("unknown device attribute %q in ignore rule %q", strings.TrimSpace(parts[1]), pair)
		}
		ignored[ignoreKey{source: source, field: field}] = struct{}{}
	}
	return ignored, nil
}
