package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mehmetcc/campaign-auth-service/internal/utils"
)

var (
	ErrInvalidPhone   = errors.New("phone is not a UK mobile number")
	ErrSmsUnavailable = errors.New("sms could not be sent")
)

// CooldownError is returned by Send when a code was issued to the same phone
// too recently.
type CooldownError struct {
	Wait time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("otp requested too soon, retry in %s", e.Wait)
}

// WaitSeconds rounds Wait up to whole seconds.
func (e *CooldownError) WaitSeconds() int {
	return int(math.Ceil(e.Wait.Seconds()))
}

// Dispatch describes a code that was sent.
type Dispatch struct {
	Phone     string
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

type OtpService interface {
	Send(ctx context.Context, phone string) (*Dispatch, error)
	// Verify reports whether code is the live code for phone and consumes it
	// when it is. Wrong codes count towards the attempt limit.
	Verify(ctx context.Context, phone, code string) (bool, error)
}

type otpService struct {
	repo        CodeRepository
	sender      Sender
	ttl         time.Duration
	cooldown    time.Duration
	maxAttempts int
	now         func() time.Time
	logger      *zap.Logger
}

type Option func(*otpService)

func WithClock(now func() time.Time) Option {
	return func(s *otpService) { s.now = now }
}

func NewOtpService(repo CodeRepository, sender Sender, cfg utils.OtpConfig, logger *zap.Logger, opts ...Option) OtpService {
	s := &otpService{
		repo:        repo,
		sender:      sender,
		ttl:         cfg.TTL,
		cooldown:    cfg.Cooldown,
		maxAttempts: cfg.MaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *otpService) Send(ctx context.Context, phone string) (*Dispatch, error) {
	canonical, err := utils.NormalizePhone(phone)
	if err != nil || !utils.IsMobilePhone(canonical) {
		return nil, ErrInvalidPhone
	}
	now := s.now()

	last, err := s.repo.LatestForPhone(ctx, canonical)
	switch {
	case err == nil:
		if elapsed := now.Sub(last.CreatedAt); elapsed < s.cooldown {
			return nil, &CooldownError{Wait: s.cooldown - elapsed}
		}
	case !errors.Is(err, ErrCodeNotFound):
		s.logger.Error("failed to read latest otp", zap.String("phone", utils.MaskPhone(canonical)), zap.Error(err))
		return nil, err
	}

	if err := s.repo.DeleteForPhone(ctx, canonical); err != nil {
		s.logger.Error("failed to delete previous otps", zap.String("phone", utils.MaskPhone(canonical)), zap.Error(err))
		return nil, err
	}

	digits, err := utils.RandomDigits(utils.OtpLength)
	if err != nil {
		s.logger.Error("failed to generate otp", zap.Error(err))
		return nil, err
	}
	code := &OtpCode{
		Phone:     canonical,
		Code:      digits,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, code); err != nil {
		s.logger.Error("failed to save otp", zap.String("phone", utils.MaskPhone(canonical)), zap.Error(err))
		return nil, err
	}

	message := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", digits, int(s.ttl.Minutes()))
	if err := s.sender.Send(ctx, utils.PhoneToE164(canonical), message); err != nil {
		s.logger.Error("failed to send otp", zap.String("phone", utils.MaskPhone(canonical)), zap.Error(err))
		// the row would otherwise hold the phone in cooldown for a code nobody received
		if derr := s.repo.DeleteByID(context.WithoutCancel(ctx), code.ID); derr != nil {
			s.logger.Error("failed to discard unsent otp", zap.Uint("id", code.ID), zap.Error(derr))
		}
		return nil, fmt.Errorf("%w: %v", ErrSmsUnavailable, err)
	}

	s.logger.Info("otp sent", zap.String("phone", utils.MaskPhone(canonical)))
	return &Dispatch{
		Phone:     utils.MaskPhone(canonical),
		ExpiresAt: code.ExpiresAt,
		ExpiresIn: s.ttl,
	}, nil
}

func (s *otpService) Verify(ctx context.Context, phone, code string) (bool, error) {
	canonical, err := utils.NormalizePhone(phone)
	if err != nil {
		return false, nil
	}

	active, err := s.repo.ActiveForPhone(ctx, canonical, s.now())
	if errors.Is(err, ErrCodeNotFound) {
		return false, nil
	}
	if err != nil {
		s.logger.Error("failed to read active otp", zap.String("phone", utils.MaskPhone(canonical)), zap.Error(err))
		return false, err
	}

	if active.Attempts >= s.maxAttempts {
		s.logger.Warn("otp locked out", zap.String("phone", utils.MaskPhone(canonical)))
		if err := s.repo.DeleteByID(ctx, active.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(active.Code), []byte(code)) != 1 {
		if err := s.repo.IncrementAttempts(ctx, active.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	won, err := s.repo.MarkVerified(ctx, active.ID)
	if err != nil {
		return false, err
	}
	return won, nil
}
