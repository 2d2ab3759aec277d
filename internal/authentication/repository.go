package authentication

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/mehmetcc/campaign-auth-service/internal/account"
)

// uniqueViolation is the postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

var (
	ErrRecordNotFoundByGivenToken = errors.New("record not found by given token")
	ErrTokenCollision             = errors.New("generated token already exists")
	ErrUnresponsiveDatabase       = errors.New("error occurred during accessing token_pairs table")
)

type RecordRepository interface {
	Create(ctx context.Context, pair *TokenPair) error
	// ReadActiveByAccessHash returns the unrevoked pair whose access token is
	// unexpired at now.
	ReadActiveByAccessHash(ctx context.Context, hash string, now time.Time) (*TokenPair, error)
	TouchLastUsed(ctx context.Context, id uint, at time.Time) error
	// ReadActiveByRefreshHash returns the unrevoked pair whose refresh token is
	// unexpired at now. It takes no lock; Rotate decides who consumes it.
	ReadActiveByRefreshHash(ctx context.Context, hash string, now time.Time) (*TokenPair, error)
	// Rotate revokes the unrevoked pair whose refresh token is unexpired at now
	// and stores successor, atomically. Of several concurrent calls with the
	// same refresh hash at most one succeeds.
	Rotate(ctx context.Context, refreshHash string, now time.Time, successor *TokenPair) error
	RevokeByAccessHash(ctx context.Context, hash string) (bool, error)
	RevokeAll(ctx context.Context, userTypes []account.UserType, userID uint) (int64, error)
	ListActive(ctx context.Context, userTypes []account.UserType, userID uint, now time.Time) ([]TokenPair, error)
}

type recordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) Create(ctx context.Context, pair *TokenPair) error {
	return createPair(r.db.WithContext(ctx), pair)
}

func (r *recordRepository) ReadActiveByAccessHash(ctx context.Context, hash string, now time.Time) (*TokenPair, error) {
	return r.readActive(ctx, "access_token_hash = ? AND is_revoked = ? AND access_expires_at > ?", hash, now)
}

func (r *recordRepository) ReadActiveByRefreshHash(ctx context.Context, hash string, now time.Time) (*TokenPair, error) {
	return r.readActive(ctx, "refresh_token_hash = ? AND is_revoked = ? AND refresh_expires_at > ?", hash, now)
}

func (r *recordRepository) readActive(ctx context.Context, query, hash string, now time.Time) (*TokenPair, error) {
	var pair TokenPair
	err := r.db.WithContext(ctx).
		Where(query, hash, false, now).
		First(&pair).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFoundByGivenToken
	}
	if err != nil {
		return nil, ErrUnresponsiveDatabase
	}
	return &pair, nil
}

func (r *recordRepository) TouchLastUsed(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&TokenPair{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).
		Error
	if err != nil {
		return ErrUnresponsiveDatabase
	}
	return nil
}

// Rotate holds one connection for the whole transaction and makes no other
// store calls while it does.
func (r *recordRepository) Rotate(ctx context.Context, refreshHash string, now time.Time, successor *TokenPair) error {
	return r.db.
		WithContext(ctx).
		Transaction(func(tx *gorm.DB) error {
			res := tx.
				Model(&TokenPair{}).
				Where("refresh_token_hash = ? AND is_revoked = ? AND refresh_expires_at > ?", refreshHash, false, now).
				Update("is_revoked", true)
			if res.Error != nil {
				return ErrUnresponsiveDatabase
			}
			if res.RowsAffected == 0 {
				return ErrRecordNotFoundByGivenToken
			}
			return createPair(tx, successor)
		})
}

func (r *recordRepository) RevokeByAccessHash(ctx context.Context, hash string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&TokenPair{}).
		Where("access_token_hash = ? AND is_revoked = ?", hash, false).
		Update("is_revoked", true)
	if res.Error != nil {
		return false, ErrUnresponsiveDatabase
	}
	return res.RowsAffected > 0, nil
}

func (r *recordRepository) RevokeAll(ctx context.Context, userTypes []account.UserType, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&TokenPair{}).
		Where("user_type IN ? AND user_id = ? AND is_revoked = ?", userTypes, userID, false).
		Update("is_revoked", true)
	if res.Error != nil {
		return 0, ErrUnresponsiveDatabase
	}
	return res.RowsAffected, nil
}

func (r *recordRepository) ListActive(ctx context.Context, userTypes []account.UserType, userID uint, now time.Time) ([]TokenPair, error) {
	var pairs []TokenPair
	err := r.db.WithContext(ctx).
		Where("user_type IN ? AND user_id = ? AND is_revoked = ? AND refresh_expires_at > ?", userTypes, userID, false, now).
		Order("created_at DESC").
		Find(&pairs).
		Error
	if err != nil {
		return nil, ErrUnresponsiveDatabase
	}
	return pairs, nil
}

func createPair(db *gorm.DB, pair *TokenPair) error {
	err := db.Create(pair).Error
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrTokenCollision
	}
	return ErrUnresponsiveDatabase
}
