package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSMSSender delivers SMS through the external messaging gateway's HTTP
// API. Retry and backoff for failed sends belong to the gateway, not here.
type HTTPSMSSender struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPSMSSender() *HTTPSMSSender {
	return &HTTPSMSSender{
		baseURL: getEnv("SMS_GATEWAY_URL", "http://localhost:9090"),
		apiKey:  getEnv("SMS_GATEWAY_API_KEY", ""),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type smsSendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type smsSendResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Send posts one outbound message to the gateway.
func (s *HTTPSMSSender) Send(ctx context.Context, phoneNumber, body string) error {
	payload, err := json.Marshal(smsSendRequest{To: phoneNumber, Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("SMS gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var gatewayResp smsSendResponse
		if json.Unmarshal(respBody, &gatewayResp) == nil && gatewayResp.Error != "" {
			return fmt.Errorf("SMS gateway rejected send (status %d): %s", resp.StatusCode, gatewayResp.Error)
		}
		return fmt.Errorf("SMS gateway rejected send with status %d", resp.StatusCode)
	}
	return nil
}
