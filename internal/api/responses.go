package api

import "encoding/json"

// DeviceInfo is one entry of the device listing endpoint.
type DeviceInfo struct {
	Device       string   `json:"device"`
	Model        string   `json:"model"`
	DeviceName   string   `json:"deviceName"`
	Controllable bool     `json:"controllable"`
	Retrievable  bool     `json:"retrievable"`
	SupportCmds  []string `json:"supportCmds"`
}

type deviceListResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Devices []DeviceInfo `json:"devices"`
	} `json:"data"`
}

// Command is a single device instruction, e.g. {Name: "turn", Value: "on"}.
type Command struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type controlRequest struct {
	Device string  `json:"device"`
	Model  string  `json:"model"`
	Cmd    Command `json:"cmd"`
}

type controlResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// The state endpoint returns properties as a list of single-key objects,
// one per reported attribute.
type stateResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Device     string                       `json:"device"`
		Model      string                       `json:"model"`
		Properties []map[string]json.RawMessage `json:"properties"`
	} `json:"data"`
}
