package payment

import (
	"encoding/json"
	"strings"
)

// Result is the checkout-side view of a charge attempt.
type Result struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
}

type chargeBody struct {
	Error string `json:"error"`
	Data  *struct {
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
	} `json:"data"`
}

// InterpretResponse turns a charge endpoint answer into a Result. A failure
// always carries a message: the body's error text when present, otherwise the
// localized fallback. Malformed bodies count as empty.
func InterpretResponse(httpOK bool, body []byte, locale Locale) Result {
	var parsed chargeBody
	_ = json.Unmarshal(body, &parsed)

	if httpOK && parsed.Data != nil && parsed.Data.TransactionID != "" {
		return Result{Success: true, TransactionID: parsed.Data.TransactionID}
	}
	msg := strings.TrimSpace(parsed.Error)
	if msg == "" {
		msg = FallbackMessage(locale)
	}
	return Result{Success: false, ErrorMessage: msg}
}
