package govee

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"govee-client/internal/api"
	"govee-client/internal/constants"
	"govee-client/internal/devices"
	"govee-client/internal/learning"
	"govee-client/internal/models"
)

type apiService interface {
	GetDevices(ctx context.Context) ([]api.DeviceInfo, error)
	Control(ctx context.Context, device string, model string, cmd api.Command) error
	GetState(ctx context.Context, device string, model string) (models.DeviceState, error)
	Ping(ctx context.Context) (time.Duration, error)
}

type rateLimiter interface {
	SetThreshold(n int) error
}

type connectivityMonitor interface {
	OnChange(fn func(online bool))
	Online() bool
}

// Client is the facade over the Govee cloud API. It keeps a session-lived
// cache of device records, serializes commands per device, honors the API's
// stale-read windows, and learns per-device quirks as it goes.
//
// Commands to the same device are serialized against each other, but the
// device records handed out by Device and Devices are not synchronized
// against concurrent polls or commands. Callers issuing operations from
// multiple goroutines should not read record fields while a command or poll
// for that device is in flight.
type Client struct {
	logger     *log.Logger
	svc        apiService
	limiter    rateLimiter
	monitor    connectivityMonitor
	registry   *devices.Registry
	reconciler *devices.Reconciler
	learning   *learning.Cache

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	cmdLocks map[string]*sync.Mutex

	evMu     sync.Mutex
	connSubs []chan bool
	devSubs  []chan *models.GoveeDevice
}

type Option func(*Client)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSleep replaces the delay function, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

func NewClient(logger *log.Logger, svc apiService, store learning.Store, limiter rateLimiter, monitor connectivityMonitor, opts ...Option) *Client {
	c := &Client{
		logger:   logger,
		svc:      svc,
		limiter:  limiter,
		monitor:  monitor,
		registry: devices.NewRegistry(),
		learning: learning.NewCache(logger, store),
		now:      time.Now,
		sleep:    sleepContext,
		cmdLocks: map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reconciler = devices.NewReconciler(logger, c.registry, c)
	monitor.OnChange(c.handleConnectivityChange)
	return c
}

// Discover fetches the account's device list and registers any devices not
// seen before. Known devices keep their cached record untouched, so repeated
// discoveries only ever grow the cache.
func (c *Client) Discover(ctx context.Context) error {
	infos, err := c.svc.GetDevices(ctx)
	if err != nil {
		return err
	}

	learned := c.learning.Read()
	for _, info := range infos {
		if _, known := c.registry.Get(info.Device); known {
			continue
		}

		dev := &models.GoveeDevice{
			Device:            info.Device,
			Model:             info.Model,
			DeviceName:        info.DeviceName,
			Controllable:      info.Controllable,
			Retrievable:       info.Retrievable,
			SupportCmds:       info.SupportCmds,
			SupportTurn:       lo.Contains(info.SupportCmds, constants.CommandTurn),
			SupportBrightness: lo.Contains(info.SupportCmds, constants.CommandBrightness),
			SupportColor:      lo.Contains(info.SupportCmds, constants.CommandColor),
			SupportColorTem:   lo.Contains(info.SupportCmds, constants.CommandColorTem),
			Timestamp:         c.now(),
		}
		if !dev.Retrievable {
			// the device will never answer a state poll
			dev.GetBrightnessMax = -1
		}
		if dev.Model == constants.ModelTurnOnBeforeBrightness {
			dev.TurnOnBeforeBrightness = true
		}
		if li, ok := learned[dev.Device]; ok {
			dev.SetBrightnessMax = li.SetBrightnessMax
			if li.GetBrightnessMax != 0 {
				dev.GetBrightnessMax = li.GetBrightnessMax
			}
			if li.TurnOnBeforeBrightness {
				dev.TurnOnBeforeBrightness = true
			}
			dev.OfflineIsOff = li.OfflineIsOff
		}
		c.Learn(dev)

		c.registry.Add(dev)
		c.logger.Info("discovered device", "device", dev.Device, "model", dev.Model, "name", dev.DeviceName)
		c.publishDevice(dev)
	}
	return nil
}

// PollAll refreshes the state of every known device. Per-device failures are
// recorded on the device record instead of aborting the sweep; only context
// cancellation stops it.
func (c *Client) PollAll(ctx context.Context) error {
	for _, dev := range c.registry.List() {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.pollDevice(ctx, dev)
	}
	return nil
}

func (c *Client) pollDevice(ctx context.Context, dev *models.GoveeDevice) {
	if !dev.Retrievable || c.now().Before(dev.LockGetUntil) {
		// the API would answer with stale data, serve the cached record
		c.reconciler.MarkRemembered(dev)
		return
	}

	st, err := c.svc.GetState(ctx, dev.Device, dev.Model)
	if err != nil {
		c.logger.Warn("state poll failed", "device", dev.Device, "err", err)
		c.reconciler.Apply(models.SourcePolled, dev, models.FieldError, err.Error())
		return
	}
	c.reconciler.ApplyPollState(dev, st)
}

// Device returns the cached record for one device id.
func (c *Client) Device(id string) (*models.GoveeDevice, error) {
	dev, ok := c.registry.Get(id)
	if !ok {
		return nil, models.NewConfigError("unknown device %q", id)
	}
	return dev, nil
}

// Devices returns all known devices in discovery order.
func (c *Client) Devices() []*models.GoveeDevice {
	return c.registry.List()
}

func (c *Client) TurnOn(ctx context.Context, id string) error {
	return c.turn(ctx, id, true)
}

func (c *Client) TurnOff(ctx context.Context, id string) error {
	return c.turn(ctx, id, false)
}

func (c *Client) turn(ctx context.Context, id string, on bool) error {
	dev, err := c.Device(id)
	if err != nil {
		return err
	}

	value := "off"
	if on {
		value = "on"
	}
	if err := c.control(ctx, dev, api.Command{Name: constants.CommandTurn, Value: value}, dev.SupportTurn); err != nil {
		return err
	}
	c.reconciler.Apply(models.SourceRemembered, dev, models.FieldPowerState, on)
	return nil
}

// SetBrightness sets a device's brightness on the normalized 0-254 range.
//
// Devices disagree on the range the command accepts. While a device's range
// is unknown the raw value is tried first; a bad-request rejection gets one
// retry with the value scaled down to 0-100, and a retry success learns the
// narrow range. A success with a value above 100 pins the wide range.
func (c *Client) SetBrightness(ctx context.Context, id string, brightness int) error {
	if brightness < 0 || brightness > 254 {
		return models.NewConfigError("brightness %d out of range 0-254", brightness)
	}
	dev, err := c.Device(id)
	if err != nil {
		return err
	}

	if dev.TurnOnBeforeBrightness && brightness > 0 {
		if err := c.turn(ctx, id, true); err != nil {
			return err
		}
		if err := c.sleep(ctx, constants.TurnOnSettleTime); err != nil {
			return err
		}
	}

	send := brightness
	if dev.SetBrightnessMax == 100 {
		send = scaleDown(brightness)
	}

	err = c.control(ctx, dev, api.Command{Name: constants.CommandBrightness, Value: send}, dev.SupportBrightness)
	if err != nil {
		if dev.SetBrightnessMax != 0 || api.Classify(err) != api.ErrBadRequest {
			return err
		}
		send = scaleDown(brightness)
		c.logger.Info("brightness rejected, retrying on the 0-100 range", "device", dev.Device, "brightness", send)
		if err := c.control(ctx, dev, api.Command{Name: constants.CommandBrightness, Value: send}, dev.SupportBrightness); err != nil {
			return err
		}
		dev.SetBrightnessMax = 100
		c.Learn(dev)
	} else if send > 100 && dev.SetBrightnessMax != 254 {
		dev.SetBrightnessMax = 254
		c.Learn(dev)
	}

	c.reconciler.Apply(models.SourceRemembered, dev, models.FieldBrightness, brightness)
	c.reconciler.Apply(models.SourceRemembered, dev, models.FieldPowerState, brightness > 0)
	return nil
}

// SetColorTemp sets the white color temperature in Kelvin, range 2000-9000.
func (c *Client) SetColorTemp(ctx context.Context, id string, kelvin int) error {
	if kelvin < 2000 || kelvin > 9000 {
		return models.NewConfigError("color temperature %dK out of range 2000-9000", kelvin)
	}
	dev, err := c.Device(id)
	if err != nil {
		return err
	}

	if err := c.control(ctx, dev, api.Command{Name: constants.CommandColorTem, Value: kelvin}, dev.SupportColorTem); err != nil {
		return err
	}
	c.reconciler.Apply(models.SourceRemembered, dev, models.FieldColorTemp, kelvin)
	return nil
}

func (c *Client) SetColor(ctx context.Context, id string, color models.Color) error {
	if !validChannel(color.R) || !validChannel(color.G) || !validChannel(color.B) {
		return models.NewConfigError("color %+v out of range, each channel must be 0-255", color)
	}
	dev, err := c.Device(id)
	if err != nil {
		return err
	}

	if err := c.control(ctx, dev, api.Command{Name: constants.CommandColor, Value: color}, dev.SupportColor); err != nil {
		return err
	}
	c.reconciler.Apply(models.SourceRemembered, dev, models.FieldColor, color)
	return nil
}

// control sends one command, serialized per device and spaced out so no two
// commands for the same device run within the API's settle window. On
// success it arms the device's stale-read windows.
func (c *Client) control(ctx context.Context, dev *models.GoveeDevice, cmd api.Command, supported bool) error {
	if !dev.Controllable {
		return models.NewConfigError("device %q is not controllable", dev.Device)
	}
	if !supported {
		return models.NewConfigError("device %q does not support the %s command", dev.Device, cmd.Name)
	}

	lock := c.commandLock(dev.Device)
	lock.Lock()
	defer lock.Unlock()

	for {
		wait := dev.LockSetUntil.Sub(c.now())
		if wait <= 0 {
			break
		}
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}

	if err := c.svc.Control(ctx, dev.Device, dev.Model, cmd); err != nil {
		return err
	}

	now := c.now()
	dev.LockSetUntil = now.Add(constants.DelaySetFollowingSet)
	dev.LockGetUntil = now.Add(constants.DelayGetFollowingSet)
	return nil
}

func (c *Client) commandLock(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.cmdLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		c.cmdLocks[id] = lock
	}
	return lock
}

// Learn persists the device's current quirk set if it differs from what is
// stored. Persistence failures are not surfaced; the quirks stay effective
// in memory for the rest of the session.
func (c *Client) Learn(dev *models.GoveeDevice) {
	infos := c.learning.Read()
	info := models.LearnedInfo{
		SetBrightnessMax:       dev.SetBrightnessMax,
		GetBrightnessMax:       dev.GetBrightnessMax,
		TurnOnBeforeBrightness: dev.TurnOnBeforeBrightness,
		OfflineIsOff:           dev.OfflineIsOff,
	}
	if infos[dev.Device] == info {
		return
	}
	infos[dev.Device] = info
	c.learning.Write(infos)
}

// IgnoreDeviceAttributes configures fields to exclude from state updates,
// e.g. "API:brightness;History:power_state". An empty spec clears all rules.
func (c *Client) IgnoreDeviceAttributes(spec string) error {
	return c.reconciler.SetIgnoreRules(spec)
}

// SetOfflinePolicy sets the global offline-means-off override. nil removes
// the override so the per-device learned default applies again.
func (c *Client) SetOfflinePolicy(v *bool) {
	c.reconciler.SetOfflinePolicy(v)
}

// SetRateLimitThreshold sets how many remaining requests trigger proactive
// delays.
func (c *Client) SetRateLimitThreshold(n int) error {
	return c.limiter.SetThreshold(n)
}

// Ping checks API reachability and returns the round trip time.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	return c.svc.Ping(ctx)
}

// Online reports whether the API was reachable on the last exchange.
func (c *Client) Online() bool {
	return c.monitor.Online()
}

func (c *Client) handleConnectivityChange(online bool) {
	if !online {
		c.reconciler.ForceAllOffline()
	}
	c.publishConnectivity(online)
}

// scaleDown maps 0-254 onto 0-100, never rounding a lit value down to off.
func scaleDown(brightness int) int {
	if brightness == 0 {
		return 0
	}
	scaled := brightness * 100 / 254
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

func validChannel(v int) bool {
	return v >= 0 && v <= 255
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
