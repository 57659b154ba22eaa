package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls the charge endpoint and interprets the answer for one locale.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Locale  Locale
}

func NewClient(baseURL string, timeout time.Duration, locale Locale) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Locale:  locale,
	}
}

// Charge never reports success without a transaction id. Transport failures
// return the localized fallback together with the error.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{ErrorMessage: FallbackMessage(c.Locale)}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/payments/charge", bytes.NewReader(body))
	if err != nil {
		return Result{ErrorMessage: FallbackMessage(c.Locale)}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept-Language", string(c.Locale))

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return Result{ErrorMessage: FallbackMessage(c.Locale)}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{ErrorMessage: FallbackMessage(c.Locale)}, err
	}
	return InterpretResponse(resp.StatusCode >= 200 && resp.StatusCode < 300, raw, c.Locale), nil
}
