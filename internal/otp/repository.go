package otp

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrCodeNotFound         = errors.New("otp code not found")
	ErrUnresponsiveDatabase = errors.New("error occurred during accessing otp_codes table")
)

type CodeRepository interface {
	Create(ctx context.Context, code *OtpCode) error
	// LatestForPhone returns the most recently issued code, whatever its state.
	LatestForPhone(ctx context.Context, phone string) (*OtpCode, error)
	// ActiveForPhone returns the newest unverified code that has not expired at now.
	ActiveForPhone(ctx context.Context, phone string, now time.Time) (*OtpCode, error)
	DeleteForPhone(ctx context.Context, phone string) error
	DeleteByID(ctx context.Context, id uint) error
	IncrementAttempts(ctx context.Context, id uint) error
	// MarkVerified flips verified from false to true and reports whether this
	// call made the change.
	MarkVerified(ctx context.Context, id uint) (bool, error)
}

type codeRepository struct {
	db *gorm.DB
}

func NewCodeRepository(db *gorm.DB) CodeRepository {
	return &codeRepository{db: db}
}

func (r *codeRepository) Create(ctx context.Context, code *OtpCode) error {
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		return ErrUnresponsiveDatabase
	}
	return nil
}

func (r *codeRepository) LatestForPhone(ctx context.Context, phone string) (*OtpCode, error) {
	var code OtpCode
	err := r.db.WithContext(ctx).
		Where("phone = ?", phone).
		Order("created_at DESC").
		Order("id DESC").
		First(&code).
		Error
	return found(&code, err)
}

func (r *codeRepository) ActiveForPhone(ctx context.Context, phone string, now time.Time) (*OtpCode, error) {
	var code OtpCode
	err := r.db.WithContext(ctx).
		Where("phone = ? AND verified = ? AND expires_at > ?", phone, false, now).
		Order("created_at DESC").
		Order("id DESC").
		First(&code).
		Error
	return found(&code, err)
}

func (r *codeRepository) DeleteForPhone(ctx context.Context, phone string) error {
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).Delete(&OtpCode{}).Error; err != nil {
		return ErrUnresponsiveDatabase
	}
	return nil
}

func (r *codeRepository) DeleteByID(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&OtpCode{}, id).Error; err != nil {
		return ErrUnresponsiveDatabase
	}
	return nil
}

func (r *codeRepository) IncrementAttempts(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).
		Model(&OtpCode{}).
		Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).
		Error
	if err != nil {
		return ErrUnresponsiveDatabase
	}
	return nil
}

func (r *codeRepository) MarkVerified(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&OtpCode{}).
		Where("id = ? AND verified = ?", id, false).
		UpdateColumn("verified", true)
	if res.Error != nil {
		return false, ErrUnresponsiveDatabase
	}
	return res.RowsAffected == 1, nil
}

func found(code *OtpCode, err error) (*OtpCode, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, ErrUnresponsiveDatabase
	}
	return code, nil
}
