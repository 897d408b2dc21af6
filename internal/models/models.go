package models

import (
	"fmt"
	"strings"
	"time"
)

// Source tags where the current value of a device field came from.
type Source int

const (
	// SourceRemembered means the value reflects the last successful command
	// (or the discovery default), not a reading from the device.
	SourceRemembered Source = iota
	// SourcePolled means the value reflects the last successful state poll.
	SourcePolled
)

func (s Source) String() string {
	if s == SourcePolled {
		return "api"
	}
	return "history"
}

// ParseSource accepts the wire names "api" and "history", case-insensitive.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "api":
		return SourcePolled, nil
	case "history":
		return SourceRemembered, nil
	}
	return 0, NewConfigError("unknown source %q, must be api or history", name)
}

// Field identifies a mutable state field on a device record.
type Field int

const (
	FieldOnline Field = iota
	FieldPowerState
	FieldBrightness
	FieldColor
	FieldColorTemp
	FieldError
)

var fieldNames = map[Field]string{
	FieldOnline:     "online",
	FieldPowerState: "power_state",
	FieldBrightness: "brightness",
	FieldColor:      "color",
	FieldColorTemp:  "color_temp",
	FieldError:      "error",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// ParseField resolves a field by its configuration name.
func ParseField(name string) (Field, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range fieldNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}

// Color is an RGB triple, each channel 0-255.
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// GoveeDevice is the cached record for one physical device. Records are
// created on first discovery and live for the whole client session; state
// fields are only ever written through the reconciler.
type GoveeDevice struct {
	Device     string
	Model      string
	DeviceName string

	Controllable bool
	Retrievable  bool
	SupportCmds  []string

	SupportTurn       bool
	SupportBrightness bool
	SupportColor      bool
	SupportColorTem   bool

	Online     bool
	PowerState bool
	Brightness int // always normalized to 0-254
	Color      Color
	ColorTemp  int // Kelvin

	Timestamp time.Time
	Source    Source
	Err       string // last error for this device, empty after a successful poll

	// no new control command before this time
	LockSetUntil time.Time
	// state polls are served from cache before this time
	LockGetUntil time.Time

	// learned quirks, see LearnedInfo
	SetBrightnessMax       int
	GetBrightnessMax       int
	TurnOnBeforeBrightness bool
	OfflineIsOff           bool
}

// LearnedInfo is the persisted quirk set for one device.
//
// SetBrightnessMax: 0 (unknown), 100 or 254 - the range the device accepts
// when setting brightness. GetBrightnessMax: 0 (unknown), -1 (device never
// reports state), 100 or 254 - the range the device reports.
type LearnedInfo struct {
	SetBrightnessMax       int  `json:"setBrightnessMax"`
	GetBrightnessMax       int  `json:"getBrightnessMax"`
	TurnOnBeforeBrightness bool `json:"turnOnBeforeBrightness"`
	OfflineIsOff           bool `json:"offlineIsOff"`
}

// DeviceState is one parsed state poll response, raw as reported by the API
// (brightness not yet normalized).
type DeviceState struct {
	Online     bool
	PowerState bool
	Brightness int
	Color      Color
	ColorTemp  int
}

// ConfigError reports a caller-correctable configuration or validation
// problem. It is never retried.
type ConfigError struct {
	msg string
}

func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return e.msg
}
