package account

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mehmetcc/campaign-auth-service/internal/utils"
)

var ErrUnknownUserType = errors.New("unknown user type")

// AccountService is the read-only account directory used by authentication.
type AccountService interface {
	ReadDonorByPhone(ctx context.Context, phone string) (*DonorRecord, error)
	ReadStaffByPhone(ctx context.Context, phone string) (*UserRecord, error)
	// ReadView resolves the current view of a principal. Inactive staff
	// accounts resolve to ErrUserNotFound.
	ReadView(ctx context.Context, userType UserType, id uint) (*UserView, error)
}

type accountService struct {
	repo   AccountRepository
	logger *zap.Logger
}

func NewAccountService(repo AccountRepository, logger *zap.Logger) AccountService {
	return &accountService{
		repo:   repo,
		logger: logger,
	}
}

func (s *accountService) ReadDonorByPhone(ctx context.Context, phone string) (*DonorRecord, error) {
	canonical, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, ErrDonorNotFound
	}
	donor, err := s.repo.ReadDonorByPhone(ctx, canonical)
	if err != nil && !errors.Is(err, ErrDonorNotFound) {
		s.logger.Error("failed to get donor by phone", zap.String("phone", utils.MaskPhone(canonical)), zap.Error(err))
	}
	return donor, err
}

func (s *accountService) ReadStaffByPhone(ctx context.Context, phone string) (*UserRecord, error) {
	user, err := s.repo.ReadUserByPhones(ctx, phoneSpellings(phone))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		s.logger.Error("failed to get staff user by phone", zap.Error(err))
	}
	return user, err
}

func (s *accountService) ReadView(ctx context.Context, userType UserType, id uint) (*UserView, error) {
	switch userType {
	case Donor:
		donor, err := s.repo.ReadDonorByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return NewDonorView(donor), nil
	case Admin, Registrar:
		user, err := s.repo.ReadUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !user.Active {
			return nil, ErrUserNotFound
		}
		return NewUserView(user), nil
	default:
		return nil, ErrUnknownUserType
	}
}

// phoneSpellings lists the forms a staff number may have been stored in once
// separators are stripped.
func phoneSpellings(raw string) []string {
	stripped := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '+' {
			return r
		}
		return -1
	}, raw)

	spellings := []string{stripped}
	if canonical, err := utils.NormalizePhone(raw); err == nil {
		e164 := utils.PhoneToE164(canonical)
		spellings = append(spellings, canonical, e164, strings.TrimPrefix(e164, "+"))
	}
	return spellings
}
