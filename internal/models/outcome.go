package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PaymentOutcome is the result reported by the hosted payment widget.
type PaymentOutcome string

const (
	OutcomeSuccess PaymentOutcome = "success"
	OutcomePending PaymentOutcome = "pending"
	OutcomeError   PaymentOutcome = "error"
	OutcomeClosed  PaymentOutcome = "close"
)

// ParsePaymentOutcome accepts the widget callback names as well as the bare outcome.
func ParsePaymentOutcome(raw string) (PaymentOutcome, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "onsuccess":
		return OutcomeSuccess, nil
	case "pending", "onpending":
		return OutcomePending, nil
	case "error", "onerror":
		return OutcomeError, nil
	case "close", "closed", "onclose":
		return OutcomeClosed, nil
	}
	return "", fmt.Errorf("unknown payment outcome %q", raw)
}

// ConfirmationResult is what the backend confirm endpoint reports for an order.
// Raw is the unmodified backend body, passed through by the finalize route.
type ConfirmationResult struct {
	Success bool            `json:"success"`
	UUIDs   []string        `json:"uuids"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// Resolved reports whether the result carries a durable ticket reference.
func (r ConfirmationResult) Resolved() bool {
	return r.Success && len(r.UUIDs) > 0
}
