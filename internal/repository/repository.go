package repository

import (
	"context"
	"errors"

	"github.com/qcom/phoneotp/internal/models"
)

// ErrOTPNotFound is returned when no record matches the lookup. A wrong code
// and an unknown phone number are indistinguishable.
var ErrOTPNotFound = errors.New("otp not found")

// OTPRepository stores at most one record per phone number.
type OTPRepository interface {
	// Upsert replaces whatever record exists for record.PhoneNumber.
	Upsert(ctx context.Context, record models.OTPRecord) error
	// FindByPhoneAndCode returns the record only when both fields match exactly.
	FindByPhoneAndCode(ctx context.Context, phoneNumber, code string) (*models.OTPRecord, error)
}
