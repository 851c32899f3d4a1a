package events

import (
	"context"
	"time"
)

const (
	TypeOTPIssued   = "otp.issued"
	TypeOTPVerified = "otp.verified"
)

// OTPEvent is an audit record. It never carries the code itself.
type OTPEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	PhoneNumber string    `json:"phone_number"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event OTPEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OTPEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
