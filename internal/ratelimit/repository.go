package ratelimit

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrUnresponsiveDatabase = errors.New("error occurred during accessing api_requests table")

type RequestRepository interface {
	Create(ctx context.Context, record *RequestRecord) error
	// CountBetween counts the caller's requests to endpoint with request_time in [from, to].
	CountBetween(ctx context.Context, endpoint string, caller Caller, from, to time.Time) (int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// List returns newest records first together with the total row count.
	List(ctx context.Context, offset, limit int) ([]RequestRecord, int64, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, record *RequestRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return ErrUnresponsiveDatabase
	}
	return nil
}

func (r *requestRepository) CountBetween(
	ctx context.Context,
	endpoint string,
	caller Caller,
	from, to time.Time,
) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&RequestRecord{}).
		Where("endpoint = ?", endpoint).
		Where("request_time BETWEEN ? AND ?", from, to)

	if caller.UserID != nil {
		q = q.Where("user_type = ? AND user_id = ?", caller.UserType, *caller.UserID)
	} else {
		q = q.Where("ip_address = ?", caller.IP)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, ErrUnresponsiveDatabase
	}
	return count, nil
}

func (r *requestRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("request_time < ?", cutoff).
		Delete(&RequestRecord{})
	if res.Error != nil {
		return 0, ErrUnresponsiveDatabase
	}
	return res.RowsAffected, nil
}

func (r *requestRepository) List(ctx context.Context, offset, limit int) ([]RequestRecord, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&RequestRecord{}).Count(&total).Error; err != nil {
		return nil, 0, ErrUnresponsiveDatabase
	}

	var records []RequestRecord
	err := r.db.WithContext(ctx).
		Order("request_time DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).
		Error
	if err != nil {
		return nil, 0, ErrUnresponsiveDatabase
	}
	return records, total, nil
}
