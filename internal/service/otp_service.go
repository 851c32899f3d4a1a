package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qcom/phoneotp/internal/config"
	"github.com/qcom/phoneotp/internal/events"
	"github.com/qcom/phoneotp/internal/logging"
	"github.com/qcom/phoneotp/internal/models"
	"github.com/qcom/phoneotp/internal/repository"
	"github.com/qcom/phoneotp/internal/sms"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidOTP = errors.New("invalid otp")
	ErrOTPExpired = errors.New("otp expired")
	ErrSendFailed = errors.New("failed to send otp")
)

const (
	codeLength      = 6
	messageTemplate = "Your Verification Otp is %s"
)

type OTPService struct {
	repo      repository.OTPRepository
	sender    sms.Sender
	publisher events.Publisher
	cfg       *config.OTPConfig
	now       func() time.Time
	logger    *logrus.Logger
}

// Option customises an OTPService at construction.
type Option func(*OTPService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *OTPService) { s.now = now }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *OTPService) { s.publisher = p }
}

func NewOTPService(repo repository.OTPRepository, sender sms.Sender, cfg *config.OTPConfig, logger *logrus.Logger, opts ...Option) *OTPService {
	s := &OTPService{
		repo:      repo,
		sender:    sender,
		publisher: events.NopPublisher{},
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue stores a fresh code for the phone, replacing any earlier one, and
// texts it. The record is written before sending, so a provider failure still
// leaves the new code in place.
func (s *OTPService) Issue(ctx context.Context, phoneNumber string) (string, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)

	code, err := generateCode(codeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}

	record := models.OTPRecord{
		PhoneNumber: phoneNumber,
		Code:        code,
		IssuedAt:    s.now(),
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return "", err
	}

	if err := s.sender.Send(ctx, phoneNumber, fmt.Sprintf(messageTemplate, code)); err != nil {
		s.logger.WithError(err).WithField("phone", logging.MaskPhone(phoneNumber)).Error("Failed to send OTP")
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	s.publish(ctx, events.TypeOTPIssued, phoneNumber)
	s.logger.WithField("phone", logging.MaskPhone(phoneNumber)).Info("OTP issued")

	return code, nil
}

// Verify checks the code for the phone. A wrong code is reported as
// ErrInvalidOTP, never as expiry. A matching code stays valid for the whole
// window and may be verified more than once.
func (s *OTPService) Verify(ctx context.Context, phoneNumber, code string) error {
	phoneNumber = strings.TrimSpace(phoneNumber)
	code = strings.TrimSpace(code)

	record, err := s.repo.FindByPhoneAndCode(ctx, phoneNumber, code)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return ErrInvalidOTP
		}
		return err
	}

	age := record.Age(s.now())
	s.logger.WithFields(logrus.Fields{
		"phone": logging.MaskPhone(phoneNumber),
		"age":   age.String(),
	}).Debug("OTP record found")

	if age > s.cfg.ValidFor {
		return ErrOTPExpired
	}

	s.publish(ctx, events.TypeOTPVerified, phoneNumber)
	return nil
}

func (s *OTPService) publish(ctx context.Context, eventType, phoneNumber string) {
	event := events.OTPEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		PhoneNumber: phoneNumber,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("type", eventType).Warn("Failed to publish OTP event")
	}
}

// generateCode draws each digit uniformly from 0-9, so leading zeros occur.
func generateCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteString(num.String())
	}
	return b.String(), nil
}
