package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/qcom/phoneotp/internal/models"
	"github.com/sirupsen/logrus"
)

// DynamoDBAPI is the subset of *dynamodb.Client the OTP repository needs.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

type DynamoOTPRepository struct {
	client    DynamoDBAPI
	tableName string
	logger    *logrus.Logger
}

func NewDynamoOTPRepository(client DynamoDBAPI, tableName string, logger *logrus.Logger) *DynamoOTPRepository {
	return &DynamoOTPRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Upsert writes the record under OTP#<phone>. PutItem replaces the whole item,
// which is what keeps one live code per phone.
func (r *DynamoOTPRepository) Upsert(ctx context.Context, record models.OTPRecord) error {
	item := map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: record.GetPK()},
		"SK":           &types.AttributeValueMemberS{Value: record.GetSK()},
		"phone_number": &types.AttributeValueMemberS{Value: record.PhoneNumber},
		"code":         &types.AttributeValueMemberS{Value: record.Code},
		"issued_at":    &types.AttributeValueMemberS{Value: record.IssuedAt.UTC().Format(time.RFC3339Nano)},
	}

	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to store OTP in DynamoDB")
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	return nil
}

// FindByPhoneAndCode fetches the item for the phone and filters on the code
// client-side, so a mismatch looks the same as a missing item.
func (r *DynamoOTPRepository) FindByPhoneAndCode(ctx context.Context, phoneNumber, code string) (*models.OTPRecord, error) {
	key := &models.OTPRecord{PhoneNumber: phoneNumber}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: key.GetSK()},
		},
		ConsistentRead: aws.Bool(true),
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to get OTP from DynamoDB")
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}

	if result.Item == nil {
		return nil, ErrOTPNotFound
	}

	var record models.OTPRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OTP data: %w", err)
	}

	if record.PhoneNumber != phoneNumber || record.Code != code {
		return nil, ErrOTPNotFound
	}

	return &record, nil
}
