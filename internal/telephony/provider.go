package telephony

import (
	"context"
	"errors"
)

// Provider places outbound calls on behalf of an agent.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Dial is synchronous; a nil error means the provider accepted the call.
// - CallID must be unique per accepted call; the call log is keyed by it.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error
	Dial(ctx context.Context, req DialRequest) (DialResult, error)
}

// DialRequest asks the provider to connect UserID's phone to PhoneNumber.
type DialRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	UserID      int64  `json:"userId"`
}

// DialResult is returned to the API caller as-is.
type DialResult struct {
	Success bool   `json:"success"`
	CallID  string `json:"callId"`
	Message string `json:"message"`
}

// ErrDialRejected means the provider answered but refused the call.
var ErrDialRejected = errors.New("telephony: dial rejected")
