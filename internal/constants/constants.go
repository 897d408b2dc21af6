package constants

import "time"

const APIBase = "https://developer-api.govee.com"

// API endpoints, relative to the base URL
const (
	PathPing    = "/ping"
	PathDevices = "/v1/devices"
	PathControl = "/v1/devices/control"
	PathState   = "/v1/devices/state"
)

// rate limit response headers
const (
	HeaderRateLimitTotal     = "Rate-Limit-Total"
	HeaderRateLimitRemaining = "Rate-Limit-Remaining"
	HeaderRateLimitReset     = "Rate-Limit-Reset"
)

const DefaultRateLimitTotal = 100
const DefaultRateLimitThreshold = 5

// never wait longer than this for a rate limit window to reset
const RateLimitResetMax = 180 * time.Second

// no new control command within 1s of the previous one
const DelaySetFollowingSet = 1 * time.Second

// state polls return stale data for 2s after a control command
const DelayGetFollowingSet = 2 * time.Second

// the API ignores a brightness command sent straight after a power-on
const TurnOnSettleTime = 1 * time.Second

// control command names
const (
	CommandTurn       = "turn"
	CommandBrightness = "brightness"
	CommandColor      = "color"
	CommandColorTem   = "colorTem"
)

// models that need an explicit power-on before a brightness command
const ModelTurnOnBeforeBrightness = "H6104"
