package account

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrDonorNotFound        = errors.New("donor not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrUnresponsiveDatabase = errors.New("error occurred during reading accounts")
)

type AccountRepository interface {
	ReadDonorByPhone(ctx context.Context, phone string) (*DonorRecord, error)
	ReadDonorByID(ctx context.Context, id uint) (*DonorRecord, error)
	// ReadUserByPhones matches stored numbers with separators removed against
	// any of the given spellings.
	ReadUserByPhones(ctx context.Context, phones []string) (*UserRecord, error)
	ReadUserByID(ctx context.Context, id uint) (*UserRecord, error)
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) ReadDonorByPhone(ctx context.Context, phone string) (*DonorRecord, error) {
	var donor DonorRecord
	err := r.db.WithContext(ctx).
		Where("phone = ?", phone).
		First(&donor).
		Error
	return lookup(&donor, err, ErrDonorNotFound)
}

func (r *accountRepository) ReadDonorByID(ctx context.Context, id uint) (*DonorRecord, error) {
	var donor DonorRecord
	err := r.db.WithContext(ctx).First(&donor, id).Error
	return lookup(&donor, err, ErrDonorNotFound)
}

func (r *accountRepository) ReadUserByPhones(ctx context.Context, phones []string) (*UserRecord, error) {
	var user UserRecord
	err := r.db.WithContext(ctx).
		Where("regexp_replace(phone, '[^0-9+]', '', 'g') IN ?", phones).
		First(&user).
		Error
	return lookup(&user, err, ErrUserNotFound)
}

func (r *accountRepository) ReadUserByID(ctx context.Context, id uint) (*UserRecord, error) {
	var user UserRecord
	err := r.db.WithContext(ctx).First(&user, id).Error
	return lookup(&user, err, ErrUserNotFound)
}

func lookup[T any](rec *T, err error, notFound error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, ErrUnresponsiveDatabase
	}
	return rec, nil
}
