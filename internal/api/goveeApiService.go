package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"govee-client/internal/constants"
	"govee-client/internal/models"
)

type rateLimiter interface {
	DelayIfNeeded(ctx context.Context) error
	Record(headers http.Header)
}

type connectivityRecorder interface {
	Record(online bool)
}

// GoveeAPIService talks to the Govee cloud HTTP API. Every exchange waits
// out the rate limiter first and feeds the response headers back into it.
type GoveeAPIService struct {
	logger       *log.Logger
	apiKey       string
	limiter      rateLimiter
	connectivity connectivityRecorder
	client       *http.Client

	// BaseURL is overridable for tests.
	BaseURL string
}

func NewGoveeAPIService(logger *log.Logger, apiKey string, limiter rateLimiter, connectivity connectivityRecorder) *GoveeAPIService {
	return &GoveeAPIService{
		logger:       logger,
		apiKey:       apiKey,
		limiter:      limiter,
		connectivity: connectivity,
		client:       &http.Client{Timeout: 30 * time.Second},
		BaseURL:      constants.APIBase,
	}
}

func (s *GoveeAPIService) do(ctx context.Context, method string, path string, query map[string]string, body any) ([]byte, int, error) {
	if err := s.limiter.DelayIfNeeded(ctx); err != nil {
		return nil, 0, err
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Govee-API-Key", s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(query) > 0 {
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.connectivity.Record(false)
		return nil, 0, &Error{Kind: ErrTransport, Err: err}
	}
	defer resp.Body.Close()

	s.connectivity.Record(true)
	s.limiter.Record(resp.Header)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// GetDevices returns the devices registered to the account.
func (s *GoveeAPIService) GetDevices(ctx context.Context) ([]DeviceInfo, error) {
	body, status, err := s.do(ctx, http.MethodGet, constants.PathDevices, nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, s.statusError(status, body, "", "")
	}

	var parsed deviceListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing device list: %w", err)
	}
	if len(parsed.Data.Devices) == 0 {
		s.logger.Info("the account has no devices registered")
	}
	return parsed.Data.Devices, nil
}

// Control sends one command to one device.
func (s *GoveeAPIService) Control(ctx context.Context, device string, model string, cmd Command) error {
	body, status, err := s.do(ctx, http.MethodPut, constants.PathControl, nil, controlRequest{
		Device: device,
		Model:  model,
		Cmd:    cmd,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return s.statusError(status, body, cmd.Name, device)
	}

	var parsed controlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("parsing control response: %w", err)
	}
	if parsed.Message != "Success" {
		return &Error{Kind: ErrUnknown, Status: status, Body: parsed.Message, Command: cmd.Name, Device: device}
	}
	return nil
}

// GetState fetches the current reported state of one device.
func (s *GoveeAPIService) GetState(ctx context.Context, device string, model string) (models.DeviceState, error) {
	body, status, err := s.do(ctx, http.MethodGet, constants.PathState, map[string]string{
		"device": device,
		"model":  model,
	}, nil)
	if err != nil {
		return models.DeviceState{}, err
	}
	if status != http.StatusOK {
		return models.DeviceState{}, s.statusError(status, body, "", device)
	}

	var parsed stateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.DeviceState{}, fmt.Errorf("parsing state response: %w", err)
	}
	return s.parseProperties(device, parsed.Data.Properties), nil
}

// parseProperties flattens the list of single-key property objects into one
// state record. The API reports online as either a bool or a string.
func (s *GoveeAPIService) parseProperties(device string, props []map[string]json.RawMessage) models.DeviceState {
	st := models.DeviceState{}
	for _, prop := range props {
		for name, raw := range prop {
			switch name {
			case "online":
				var b bool
				if err := json.Unmarshal(raw, &b); err == nil {
					st.Online = b
					continue
				}
				var text string
				if err := json.Unmarshal(raw, &text); err == nil {
					st.Online = text == "true"
				}
			case "powerState":
				var text string
				if err := json.Unmarshal(raw, &text); err == nil {
					st.PowerState = text == "on"
				}
			case "brightness":
				var n int
				if err := json.Unmarshal(raw, &n); err == nil {
					st.Brightness = n
				}
			case "color":
				var c models.Color
				if err := json.Unmarshal(raw, &c); err == nil {
					st.Color = c
				}
			case "colorTem", "colorTemInKelvin":
				var n int
				if err := json.Unmarshal(raw, &n); err == nil {
					st.ColorTemp = n
				}
			default:
				s.logger.Debug("ignoring unknown state property", "device", device, "property", name)
			}
		}
	}
	return st
}

// Ping checks reachability of the API and returns the round trip time. The
// endpoint needs no API key.
func (s *GoveeAPIService) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	body, status, err := s.do(ctx, http.MethodGet, constants.PathPing, nil, nil)
	if err != nil {
		return 0, err
	}
	latency := time.Since(start)
	if status != http.StatusOK {
		return 0, s.statusError(status, body, "", "")
	}
	if string(bytes.TrimSpace(body)) != "Pong" {
		return 0, &Error{Kind: ErrUnknown, Status: status, Body: string(body)}
	}
	return latency, nil
}

func (s *GoveeAPIService) statusError(status int, body []byte, command string, device string) error {
	kind := classify(status)
	if kind == ErrRateLimited {
		s.logger.Warn("the API reported the rate limit as exhausted", "device", device)
	}
	return &Error{Kind: kind, Status: status, Body: string(body), Command: command, Device: device}
}
