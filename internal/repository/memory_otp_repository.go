package repository

import (
	"context"
	"sync"

	"github.com/qcom/phoneotp/internal/models"
)

// MemoryOTPRepository keeps records in process. Used for local runs and tests.
type MemoryOTPRepository struct {
	mu      sync.RWMutex
	records map[string]models.OTPRecord
}

func NewMemoryOTPRepository() *MemoryOTPRepository {
	return &MemoryOTPRepository{
		records: make(map[string]models.OTPRecord),
	}
}

func (r *MemoryOTPRepository) Upsert(ctx context.Context, record models.OTPRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.PhoneNumber] = record
	return nil
}

func (r *MemoryOTPRepository) FindByPhoneAndCode(ctx context.Context, phoneNumber, code string) (*models.OTPRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[phoneNumber]
	if !ok || record.Code != code {
		return nil, ErrOTPNotFound
	}
	return &record, nil
}

// Len reports how many phone numbers currently hold a record.
func (r *MemoryOTPRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
