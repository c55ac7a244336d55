package iamport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	domain "github.com/stitchmall/ordercore/internal/domain/payment"
)

const defaultTimeout = 5 * time.Second

// Client verifies transactions against an iamport-compatible payment gateway.
// Every call is bounded by the configured timeout; transport and non-2xx
// failures surface as payment.ErrGateway so the verification policy can
// decide what happens next.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	timeout   time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func NewClient(baseURL, apiKey, apiSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{},
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenResponse struct {
	Response struct {
		AccessToken string `json:"access_token"`
	} `json:"response"`
}

type paymentResponse struct {
	Response struct {
		ImpUID string `json:"imp_uid"`
		Amount int64  `json:"amount"`
		Status string `json:"status"`
	} `json:"response"`
}

// VerifyTransaction fetches the gateway's view of a transaction: issue an
// access token, then look up the payment by its transaction ID.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (*domain.VerifiedPayment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.fetchToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: token: %w", domain.ErrGateway, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+transactionID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGateway, err)
	}
	req.Header.Set("Authorization", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGateway, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: payment lookup returned %d", domain.ErrGateway, resp.StatusCode)
	}

	var body paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode payment: %w", domain.ErrGateway, err)
	}

	return &domain.VerifiedPayment{
		TransactionID: transactionID,
		Amount:        body.Response.Amount,
		Status:        body.Response.Status,
	}, nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"imp_key":    c.apiKey,
		"imp_secret": c.apiSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/getToken", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if body.Response.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}
	return body.Response.AccessToken, nil
}
