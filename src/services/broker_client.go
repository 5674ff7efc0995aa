package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tradevault/tradevault-server/src/models"
)

// BrokerAPI fetches a live account descriptor from a brokerage using
// plaintext credentials. Implementations must not retain the credentials
// beyond the call.
type BrokerAPI interface {
	GetAccount(ctx context.Context, baseURL, apiKey, apiSecret string) (*models.BrokerAccount, error)
}

// AlpacaClient talks to Alpaca-compatible trading APIs
type AlpacaClient struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewAlpacaClient creates a broker client with a bounded per-call timeout
func NewAlpacaClient(timeout time.Duration) *AlpacaClient {
	return &AlpacaClient{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// GetAccount calls GET /v2/account with the Alpaca auth headers.
// Auth rejections map to ErrBrokerAuthRejected, everything network-shaped to
// ErrBrokerUnavailable; neither error ever contains the credentials.
func (ac *AlpacaClient) GetAccount(ctx context.Context, baseURL, apiKey, apiSecret string) (*models.BrokerAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, ac.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v2/account", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build account request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", apiSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := ac.httpClient.Do(req)
	if err != nil {
		// The transport error is not propagated verbatim: its URL string
		// could carry request details into a log line
		return nil, fmt.Errorf("%w: %s unreachable", ErrBrokerUnavailable, baseURL)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrBrokerAuthRejected
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrBrokerUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response", ErrBrokerUnavailable)
	}

	var account models.BrokerAccount
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("%w: malformed account response", ErrBrokerUnavailable)
	}

	return &account, nil
}

// Ensure AlpacaClient implements the interface
var _ BrokerAPI = (*AlpacaClient)(nil)
