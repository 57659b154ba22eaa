package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/orna-ly/orna.ly-sub000/internal/order/domain"
	"github.com/orna-ly/orna.ly-sub000/pkg/httpx"
	"github.com/orna-ly/orna.ly-sub000/pkg/idempotency"
)

// Error is a non-2xx answer from the order service.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("order service: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type PlaceResult struct {
	Order    domain.Order
	Replayed bool
	Status   int
}

func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest, idemKey string) (PlaceResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return PlaceResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return PlaceResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		httpReq.Header.Set(idempotency.Header, idemKey)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return PlaceResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PlaceResult{Status: resp.StatusCode}, err
	}
	if resp.StatusCode/100 != 2 {
		return PlaceResult{Status: resp.StatusCode}, decodeError(resp.StatusCode, raw)
	}

	var out struct {
		Data domain.Order `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return PlaceResult{Status: resp.StatusCode}, fmt.Errorf("decode order: %w", err)
	}
	return PlaceResult{
		Order:    out.Data,
		Replayed: resp.Header.Get(idempotency.ReplayHeader) == "true",
		Status:   resp.StatusCode,
	}, nil
}

func decodeError(status int, raw []byte) error {
	var er httpx.ErrorResponse
	if err := json.Unmarshal(raw, &er); err != nil || er.Error == "" {
		return &Error{Status: status, Code: http.StatusText(status), Message: strings.TrimSpace(string(raw))}
	}
	return &Error{Status: status, Code: er.Error, Message: er.Message}
}
