// Package mercadopago is a minimal client for the two gateway calls the
// platform needs: creating a hosted checkout preference and fetching the
// authoritative status of a payment by id. The gateway is treated as opaque;
// the tenant's API key is passed per call.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "mercadopago",
			Timeout: 30 * time.Second,
		}),
	}
}

type PreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	BackURLs          BackURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return"`
	BinaryMode        bool             `json:"binary_mode"`
}

type Preference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type Payment struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

const StatusApproved = "approved"

// GatewayError carries the gateway's message and cause detail so they can be
// surfaced to the operator or buyer verbatim.
type GatewayError struct {
	StatusCode int
	Message    string
	Cause      json.RawMessage
}

func (e *GatewayError) Error() string {
	if len(e.Cause) > 0 {
		return fmt.Sprintf("gateway error (%d): %s | detail: %s", e.StatusCode, e.Message, e.Cause)
	}
	return fmt.Sprintf("gateway error (%d): %s", e.StatusCode, e.Message)
}

// CreatePreference registers a checkout preference and returns the hosted
// checkout URL for buyer redirection.
func (c *Client) CreatePreference(ctx context.Context, apiKey string, pref PreferenceRequest) (Preference, error) {
	body, err := json.Marshal(pref)
	if err != nil {
		return Preference{}, fmt.Errorf("failed to marshal preference: %w", err)
	}

	raw, err := c.do(ctx, apiKey, http.MethodPost, "/checkout/preferences", body, http.StatusCreated)
	if err != nil {
		return Preference{}, err
	}

	var p Preference
	if err := json.Unmarshal(raw, &p); err != nil {
		return Preference{}, fmt.Errorf("failed to decode preference response: %w", err)
	}
	return p, nil
}

// GetPayment fetches the authoritative payment state by id.
func (c *Client) GetPayment(ctx context.Context, apiKey, paymentID string) (Payment, error) {
	raw, err := c.do(ctx, apiKey, http.MethodGet, "/v1/payments/"+paymentID, nil, http.StatusOK)
	if err != nil {
		return Payment{}, err
	}

	var p Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payment{}, fmt.Errorf("failed to decode payment response: %w", err)
	}
	return p, nil
}

func (c *Client) do(ctx context.Context, apiKey, method, path string, body []byte, wantStatus int) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("gateway request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("failed to read gateway response: %w", err)
		}

		if resp.StatusCode != wantStatus {
			var ge struct {
				Message string          `json:"message"`
				Cause   json.RawMessage `json:"cause"`
			}
			_ = json.Unmarshal(raw, &ge)
			if ge.Message == "" {
				ge.Message = "unknown error"
			}
			return nil, &GatewayError{StatusCode: resp.StatusCode, Message: ge.Message, Cause: ge.Cause}
		}
		return raw, nil
	})
}
