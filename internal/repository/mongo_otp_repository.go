package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qcom/phoneotp/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoOTPRepository struct {
	coll   *mongo.Collection
	logger *logrus.Logger
}

func NewMongoOTPRepository(coll *mongo.Collection, logger *logrus.Logger) *MongoOTPRepository {
	return &MongoOTPRepository{
		coll:   coll,
		logger: logger,
	}
}

// EnsureIndexes creates the unique phone_number index that backs the upsert.
func (r *MongoOTPRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "phone_number", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("phone_number_idx"),
	}
	if _, err := r.coll.Indexes().CreateOne(ctx, idx); err != nil {
		return fmt.Errorf("failed to create phone_number index: %w", err)
	}
	return nil
}

func (r *MongoOTPRepository) Upsert(ctx context.Context, record models.OTPRecord) error {
	filter := bson.M{"phone_number": record.PhoneNumber}
	update := bson.M{"$set": bson.M{
		"code":      record.Code,
		"issued_at": record.IssuedAt.UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Err()
	if err != nil {
		r.logger.WithError(err).Error("Failed to store OTP in MongoDB")
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	return nil
}

func (r *MongoOTPRepository) FindByPhoneAndCode(ctx context.Context, phoneNumber, code string) (*models.OTPRecord, error) {
	var record models.OTPRecord
	err := r.coll.FindOne(ctx, bson.M{"phone_number": phoneNumber, "code": code}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOTPNotFound
		}
		r.logger.WithError(err).Error("Failed to get OTP from MongoDB")
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}

	return &record, nil
}
