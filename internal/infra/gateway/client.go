package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"staybook/internal/app/policies"
)

// Client talks to the hosted payment provider over HTTP. Every call is
// bounded by Timeout; a deadline hit maps to policies.ErrGatewayTimeout so
// callers know the request may be retried with the same idempotency key.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	Secret  string
	Timeout time.Duration
	Logger  *slog.Logger
}

type sessionRequest struct {
	ReservationID string `json:"reservation_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Description   string `json:"description,omitempty"`
	SuccessURL    string `json:"success_url"`
	CancelURL     string `json:"cancel_url"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type refundRequest struct {
	ChargeID    string `json:"charge_id,omitempty"`
	IntentID    string `json:"intent_id,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Reason      string `json:"reason,omitempty"`
}

type refundResponse struct {
	RefundID string `json:"refund_id"`
}

func (c *Client) CreateSession(ctx context.Context, req policies.SessionRequest) (policies.Session, error) {
	var out sessionResponse
	payload := sessionRequest{
		ReservationID: req.ReservationID,
		AmountCents:   req.Amount.Amount,
		Currency:      req.Amount.Currency,
		CustomerEmail: req.CustomerEmail,
		Description:   req.Description,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
	}
	if err := c.post(ctx, "/v1/checkout/sessions", payload, &out); err != nil {
		return policies.Session{}, err
	}
	if out.SessionID == "" {
		return policies.Session{}, fmt.Errorf("%w: empty session id", policies.ErrGateway)
	}
	return policies.Session{SessionID: out.SessionID, URL: out.URL}, nil
}

func (c *Client) Refund(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	var out refundResponse
	payload := refundRequest{
		ChargeID:    req.ChargeID,
		IntentID:    req.IntentID,
		AmountCents: req.Amount.Amount,
		Currency:    req.Amount.Currency,
		Reason:      req.Reason,
	}
	if err := c.post(ctx, "/v1/refunds", payload, &out); err != nil {
		return policies.RefundResult{}, err
	}
	return policies.RefundResult{RefundID: out.RefundID}, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if c == nil || c.BaseURL == "" {
		return fmt.Errorf("%w: client not configured", policies.ErrGateway)
	}
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if c.Secret != "" {
		request.Header.Set("Authorization", "Bearer "+c.Secret)
	}
	resp, err := c.httpClient().Do(request)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logError("gateway call timed out", path, err)
			return fmt.Errorf("%w: %s", policies.ErrGatewayTimeout, path)
		}
		c.logError("gateway call failed", path, err)
		return fmt.Errorf("%w: %v", policies.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%w: status %d: %s", policies.ErrGateway, resp.StatusCode, string(snippet))
		c.logError("gateway returned error", path, err)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) logError(msg, path string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Error(msg, "path", path, "error", err)
}

var _ policies.GatewayPort = (*Client)(nil)
