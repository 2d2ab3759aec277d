package utils

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDatabase(cfg *DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig())
	if err != nil {
		return nil, err
	}
	if err := db.Use(NewStoreTimeout(cfg.StoreTimeout)); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

const storeTimeoutCancelKey = "store_timeout:cancel"

// StoreTimeout is a gorm plugin that gives every create, query, update and
// delete its own deadline, so an unreachable database fails the call instead
// of hanging it.
type StoreTimeout struct {
	timeout time.Duration
}

func NewStoreTimeout(timeout time.Duration) *StoreTimeout {
	return &StoreTimeout{timeout: timeout}
}

func (p *StoreTimeout) Name() string { return "store_timeout" }

func (p *StoreTimeout) Initialize(db *gorm.DB) error {
	if p.timeout <= 0 {
		return nil
	}
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("*").Register("store_timeout:before_create", p.start),
		cb.Create().After("*").Register("store_timeout:after_create", p.stop),
		cb.Query().Before("*").Register("store_timeout:before_query", p.start),
		cb.Query().After("*").Register("store_timeout:after_query", p.stop),
		cb.Update().Before("*").Register("store_timeout:before_update", p.start),
		cb.Update().After("*").Register("store_timeout:after_update", p.stop),
		cb.Delete().Before("*").Register("store_timeout:before_delete", p.start),
		cb.Delete().After("*").Register("store_timeout:after_delete", p.stop),
	)
}

func (p *StoreTimeout) start(tx *gorm.DB) {
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	tx.Statement.Context = ctx
	tx.InstanceSet(storeTimeoutCancelKey, cancel)
}

func (p *StoreTimeout) stop(tx *gorm.DB) {
	if v, ok := tx.InstanceGet(storeTimeoutCancelKey); ok {
		if cancel, ok := v.(context.CancelFunc); ok {
			cancel()
		}
	}
}
