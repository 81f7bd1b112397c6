package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultExpoEndpoint is the Expo push API.
const DefaultExpoEndpoint = "https://exp.host/--/api/v2/push/send"

// ExpoSender posts messages to the Expo push service.
type ExpoSender struct {
	client      *http.Client
	endpoint    string
	accessToken string
}

// NewExpoSender constructs an ExpoSender. An empty endpoint uses
// DefaultExpoEndpoint; a nil client gets a 30 second timeout.
func NewExpoSender(client *http.Client, endpoint, accessToken string) *ExpoSender {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if endpoint == "" {
		endpoint = DefaultExpoEndpoint
	}
	return &ExpoSender{client: client, endpoint: endpoint, accessToken: accessToken}
}

type expoRequest struct {
	To       string            `json:"to"`
	Sound    string            `json:"sound"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority"`
}

type expoResponse struct {
	Data struct {
		Status  string `json:"status"`
		ID      string `json:"id"`
		Message string `json:"message"`
		Details struct {
			Error string `json:"error"`
		} `json:"details"`
	} `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Send delivers msg to an Expo push token.
func (s *ExpoSender) Send(ctx context.Context, token string, msg Message) (Result, error) {
	payload, err := json.Marshal(expoRequest{
		To:       token,
		Sound:    "default",
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		Priority: "high",
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode expo request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build expo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("expo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read expo response: %w", err)
	}
	var decoded expoResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, fmt.Errorf("expo response status %d: %w", resp.StatusCode, err)
	}
	if len(decoded.Errors) > 0 {
		return Result{}, fmt.Errorf("expo error %s: %s", decoded.Errors[0].Code, decoded.Errors[0].Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return Result{}, fmt.Errorf("expo response status %d", resp.StatusCode)
	}
	if decoded.Data.Status == "error" {
		if decoded.Data.Details.Error == "DeviceNotRegistered" {
			return Result{}, fmt.Errorf("%w: %s", ErrDeviceNotRegistered, decoded.Data.Message)
		}
		return Result{}, fmt.Errorf("expo ticket error: %s", decoded.Data.Message)
	}
	return Result{ID: decoded.Data.ID, Status: decoded.Data.Status}, nil
}
