// Package payos talks to the PayOS payment gateway: checkout link
// creation, link cancellation and webhook checksum verification.
package payos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CodeSuccess is the result code PayOS uses for accepted operations and
// settled transactions.
const CodeSuccess = "00"

type Config struct {
	ClientID    string
	APIKey      string
	ChecksumKey string
	BaseURL     string
	ReturnURL   string
	CancelURL   string
	Timeout     time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type CheckoutRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Items       []Item `json:"items"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
	Signature   string `json:"signature"`
}

type CheckoutLink struct {
	PaymentLinkID string `json:"paymentLinkId"`
	CheckoutURL   string `json:"checkoutUrl"`
}

type apiResponse struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

// CreatePaymentLink requests a hosted checkout session for the given
// order. The request is signed over its identifying fields with the
// checksum key.
func (c *Client) CreatePaymentLink(ctx context.Context, req CheckoutRequest) (CheckoutLink, error) {
	req.ReturnURL = c.cfg.ReturnURL
	req.CancelURL = c.cfg.CancelURL
	req.Signature = Sign(c.cfg.ChecksumKey, map[string]any{
		"amount":      req.Amount,
		"cancelUrl":   req.CancelURL,
		"description": req.Description,
		"orderCode":   req.OrderCode,
		"returnUrl":   req.ReturnURL,
	})

	var link CheckoutLink
	if err := c.post(ctx, "/v2/payment-requests", req, &link); err != nil {
		return CheckoutLink{}, fmt.Errorf("creating payment link for order[%d]: %w", req.OrderCode, err)
	}

	return link, nil
}

// CancelPaymentLink voids the provider-side checkout session for the
// order code. Callers must not mark the local payment failed unless
// this succeeds.
func (c *Client) CancelPaymentLink(ctx context.Context, orderCode int64, reason string) error {
	body := struct {
		CancellationReason string `json:"cancellationReason"`
	}{CancellationReason: reason}

	path := fmt.Sprintf("/v2/payment-requests/%d/cancel", orderCode)
	if err := c.post(ctx, path, body, nil); err != nil {
		return fmt.Errorf("cancelling payment link of order[%d]: %w", orderCode, err)
	}

	return nil
}

// Verify checks the webhook checksum over the callback's data object.
func (c *Client) Verify(data map[string]any, signature string) bool {
	return Verify(c.cfg.ChecksumKey, data, signature)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("x-client-id", c.cfg.ClientID)
	r.Header.Set("x-api-key", c.cfg.APIKey)

	w, err := c.http.Do(r)
	if err != nil {
		return fmt.Errorf("calling provider: %w", err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK && w.StatusCode != http.StatusCreated {
		return fmt.Errorf("provider returned status %s", w.Status)
	}

	var resp apiResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		return fmt.Errorf("decoding provider response: %w", err)
	}

	if resp.Code != CodeSuccess {
		return fmt.Errorf("provider rejected request: code[%s] desc[%s]", resp.Code, resp.Desc)
	}

	if out != nil {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("decoding provider response data: %w", err)
		}
	}

	return nil
}
