package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/qcom/phoneotp/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type RedisOTPRepository struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisOTPRepository(client *redis.Client, logger *logrus.Logger) *RedisOTPRepository {
	return &RedisOTPRepository{
		client: client,
		logger: logger,
	}
}

func otpKey(phoneNumber string) string {
	return fmt.Sprintf("otp:%s", phoneNumber)
}

// Upsert replaces the hash in a MULTI block so readers never see a new code
// paired with an old issue time. No TTL is set.
func (r *RedisOTPRepository) Upsert(ctx context.Context, record models.OTPRecord) error {
	key := otpKey(record.PhoneNumber)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"phone_number", record.PhoneNumber,
			"code", record.Code,
			"issued_at", record.IssuedAt.UTC().Format(time.RFC3339Nano),
		)
		return nil
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to store OTP in Redis")
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	return nil
}

func (r *RedisOTPRepository) FindByPhoneAndCode(ctx context.Context, phoneNumber, code string) (*models.OTPRecord, error) {
	fields, err := r.client.HGetAll(ctx, otpKey(phoneNumber)).Result()
	if err != nil {
		r.logger.WithError(err).Error("Failed to get OTP from Redis")
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}

	// HGetAll returns an empty map, not redis.Nil, for a missing key.
	if len(fields) == 0 || fields["code"] != code {
		return nil, ErrOTPNotFound
	}

	issuedAt, err := time.Parse(time.RFC3339Nano, fields["issued_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse issued_at: %w", err)
	}

	return &models.OTPRecord{
		PhoneNumber: phoneNumber,
		Code:        fields["code"],
		IssuedAt:    issuedAt,
	}, nil
}
