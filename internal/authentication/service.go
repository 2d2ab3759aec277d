package authentication

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mehmetcc/campaign-auth-service/internal/account"
	"github.com/mehmetcc/campaign-auth-service/internal/otp"
	"github.com/mehmetcc/campaign-auth-service/internal/utils"
)

const (
	TokenTypeBearer = "Bearer"

	// maxIssueAttempts bounds retries after a generated token collides with a
	// stored one.
	maxIssueAttempts = 3
)

var (
	ErrInvalidCredentials  = errors.New("invalid phone or password")
	ErrInvalidOtp          = errors.New("invalid or expired otp")
	ErrDonorNotFound       = errors.New("donor not found")
	ErrInvalidToken        = errors.New("invalid or expired access token")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrIssueFailed         = errors.New("could not issue a unique token pair")
)

type AuthenticationService interface {
	AuthenticateDonor(ctx context.Context, phone, otpCode string, p Provenance) (*TokenResponse, error)
	AuthenticateUser(ctx context.Context, phone, password string, p Provenance) (*TokenResponse, error)
	// Validate resolves an access token to its principal. Every call consults
	// the store; nothing is cached.
	Validate(ctx context.Context, accessToken string) (*Identity, error)
	// Refresh consumes a refresh token and issues its replacement pair.
	Refresh(ctx context.Context, refreshToken string, p Provenance) (*TokenResponse, error)
	Revoke(ctx context.Context, accessToken string) (bool, error)
	RevokeAll(ctx context.Context, userType account.UserType, userID uint) (int64, error)
	Sessions(ctx context.Context, userType account.UserType, userID uint) ([]TokenPair, error)
}

type authenticationService struct {
	accounts        account.AccountService
	otps            otp.OtpService
	recordRepo      RecordRepository
	logger          *zap.Logger
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	now             func() time.Time
	verifyPassword  func(hash, password string) bool
}

type Option func(*authenticationService)

func WithClock(now func() time.Time) Option {
	return func(a *authenticationService) { a.now = now }
}

func NewAuthenticationService(
	accounts account.AccountService,
	otps otp.OtpService,
	recordRepo RecordRepository,
	logger *zap.Logger,
	accessTTL time.Duration,
	refreshTTL time.Duration,
	opts ...Option,
) AuthenticationService {
	a := &authenticationService{
		accounts:        accounts,
		otps:            otps,
		recordRepo:      recordRepo,
		logger:          logger,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
		now:             func() time.Time { return time.Now().UTC() },
		verifyPassword:  account.VerifyPassword,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *authenticationService) AuthenticateDonor(ctx context.Context, phone, otpCode string, p Provenance) (*TokenResponse, error) {
	canonical, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, ErrInvalidOtp
	}

	ok, err := a.otps.Verify(ctx, canonical, otpCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.logger.Info("donor otp rejected", zap.String("phone", utils.MaskPhone(canonical)))
		return nil, ErrInvalidOtp
	}

	donor, err := a.accounts.ReadDonorByPhone(ctx, canonical)
	if errors.Is(err, account.ErrDonorNotFound) {
		return nil, ErrDonorNotFound
	}
	if err != nil {
		return nil, err
	}

	return a.issue(ctx, account.NewDonorView(donor), p)
}

func (a *authenticationService) AuthenticateUser(ctx context.Context, phone, password string, p Provenance) (*TokenResponse, error) {
	user, err := a.accounts.ReadStaffByPhone(ctx, phone)
	if errors.Is(err, account.ErrUserNotFound) {
		a.verifyPassword(account.DummyPasswordHash(), password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	// the hash is compared even for inactive accounts so every rejection takes as long
	if !a.verifyPassword(user.Password, password) || !user.Active {
		a.logger.Info("staff login rejected", zap.Uint("userID", user.ID))
		return nil, ErrInvalidCredentials
	}

	return a.issue(ctx, account.NewUserView(user), p)
}

func (a *authenticationService) issue(ctx context.Context, view *account.UserView, p Provenance) (*TokenResponse, error) {
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		pair, access, refresh, err := a.newPair(view.Type, view.ID, p)
		if err != nil {
			return nil, err
		}
		err = a.recordRepo.Create(ctx, pair)
		if errors.Is(err, ErrTokenCollision) {
			a.logger.Warn("token collision, regenerating", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			a.logger.Error("failed to store token pair", zap.Error(err))
			return nil, err
		}
		a.logger.Info("token pair issued", zap.String("userType", string(view.Type)), zap.Uint("userID", view.ID))
		return a.response(access, refresh, view), nil
	}
	return nil, ErrIssueFailed
}

// newPair builds an unsaved pair with fresh random tokens and returns the raw
// tokens alongside it.
func (a *authenticationService) newPair(userType account.UserType, userID uint, p Provenance) (*TokenPair, string, string, error) {
	access, err := utils.RandomToken(utils.TokenBytes)
	if err != nil {
		return nil, "", "", err
	}
	refresh, err := utils.RandomToken(utils.TokenBytes)
	if err != nil {
		return nil, "", "", err
	}
	now := a.now()
	return &TokenPair{
		UserType:         userType,
		UserID:           userID,
		AccessTokenHash:  utils.HashToken(access),
		RefreshTokenHash: utils.HashToken(refresh),
		AccessExpiresAt:  now.Add(a.accessTokenTTL),
		RefreshExpiresAt: now.Add(a.refreshTokenTTL),
		DeviceInfo:       p.DeviceInfo,
		IPAddress:        p.IPAddress,
		UserAgent:        p.UserAgent,
	}, access, refresh, nil
}

func (a *authenticationService) response(access, refresh string, view *account.UserView) *TokenResponse {
	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(a.accessTokenTTL.Seconds()),
		TokenType:    TokenTypeBearer,
		User:         view,
	}
}

func (a *authenticationService) Validate(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, ErrInvalidToken
	}
	now := a.now()
	pair, err := a.recordRepo.ReadActiveByAccessHash(ctx, utils.HashToken(accessToken), now)
	if errors.Is(err, ErrRecordNotFoundByGivenToken) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if err := a.recordRepo.TouchLastUsed(ctx, pair.ID, now); err != nil {
		a.logger.Warn("failed to update last_used_at", zap.Uint("tokenID", pair.ID), zap.Error(err))
	}

	view, err := a.accounts.ReadView(ctx, pair.UserType, pair.UserID)
	switch {
	case err == nil:
	case errors.Is(err, account.ErrDonorNotFound),
		errors.Is(err, account.ErrUserNotFound),
		errors.Is(err, account.ErrUnknownUserType):
		return nil, ErrInvalidToken
	default:
		return nil, err
	}

	return &Identity{
		TokenID:  pair.ID,
		UserType: pair.UserType,
		UserID:   pair.UserID,
		User:     view,
	}, nil
}

func (a *authenticationService) Refresh(ctx context.Context, refreshToken string, p Provenance) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	hash := utils.HashToken(refreshToken)
	now := a.now()

	// the principal is resolved before Rotate opens its transaction, so a
	// refresh never holds one connection while waiting for another
	current, err := a.recordRepo.ReadActiveByRefreshHash(ctx, hash, now)
	if errors.Is(err, ErrRecordNotFoundByGivenToken) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	view, err := a.accounts.ReadView(ctx, current.UserType, current.UserID)
	switch {
	case err == nil:
	case errors.Is(err, account.ErrDonorNotFound),
		errors.Is(err, account.ErrUserNotFound),
		errors.Is(err, account.ErrUnknownUserType):
		return nil, ErrInvalidRefreshToken
	default:
		return nil, err
	}

	if p.DeviceInfo == "" {
		p.DeviceInfo = current.DeviceInfo
	}

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		pair, access, refresh, err := a.newPair(view.Type, view.ID, p)
		if err != nil {
			return nil, err
		}
		err = a.recordRepo.Rotate(ctx, hash, now, pair)
		switch {
		case err == nil:
			a.logger.Info("token pair refreshed", zap.String("userType", string(view.Type)), zap.Uint("userID", view.ID))
			return a.response(access, refresh, view), nil
		case errors.Is(err, ErrTokenCollision):
			a.logger.Warn("token collision on refresh, regenerating", zap.Int("attempt", attempt))
			continue
		case errors.Is(err, ErrRecordNotFoundByGivenToken):
			return nil, ErrInvalidRefreshToken
		default:
			a.logger.Error("failed to rotate token pair", zap.Error(err))
			return nil, err
		}
	}
	return nil, ErrIssueFailed
}

func (a *authenticationService) Revoke(ctx context.Context, accessToken string) (bool, error) {
	revoked, err := a.recordRepo.RevokeByAccessHash(ctx, utils.HashToken(accessToken))
	if err != nil {
		a.logger.Error("failed to revoke token", zap.Error(err))
		return false, err
	}
	return revoked, nil
}

func (a *authenticationService) RevokeAll(ctx context.Context, userType account.UserType, userID uint) (int64, error) {
	n, err := a.recordRepo.RevokeAll(ctx, principalTypes(userType), userID)
	if err != nil {
		a.logger.Error("failed to revoke tokens", zap.String("userType", string(userType)), zap.Uint("userID", userID), zap.Error(err))
		return 0, err
	}
	a.logger.Info("tokens revoked", zap.String("userType", string(userType)), zap.Uint("userID", userID), zap.Int64("count", n))
	return n, nil
}

func (a *authenticationService) Sessions(ctx context.Context, userType account.UserType, userID uint) ([]TokenPair, error) {
	return a.recordRepo.ListActive(ctx, principalTypes(userType), userID, a.now())
}

// principalTypes lists the stored user types that identify the same account.
// Staff pairs are issued under the role held at the time, so a promoted or
// demoted user keeps pairs under both staff types.
func principalTypes(userType account.UserType) []account.UserType {
	switch userType {
	case account.Admin, account.Registrar:
		return []account.UserType{account.Admin, account.Registrar}
	default:
		return []account.UserType{userType}
	}
}
