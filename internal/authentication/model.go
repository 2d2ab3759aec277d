package authentication

import (
	"time"

	"gorm.io/gorm"

	"github.com/mehmetcc/campaign-auth-service/internal/account"
)

// TokenPair is one issued access/refresh pair. Only SHA-256 digests of the
// tokens are stored. IsRevoked only ever goes from false to true.
type TokenPair struct {
	gorm.Model
	UserType         account.UserType `gorm:"type:text;not null;index:idx_token_pairs_user,priority:1"`
	UserID           uint             `gorm:"not null;index:idx_token_pairs_user,priority:2"`
	AccessTokenHash  string           `gorm:"size:64;uniqueIndex;not null"`
	RefreshTokenHash string           `gorm:"size:64;uniqueIndex;not null"`
	AccessExpiresAt  time.Time        `gorm:"not null"`
	RefreshExpiresAt time.Time        `gorm:"not null;index"`
	IsRevoked        bool             `gorm:"not null;default:false"`
	DeviceInfo       string           `gorm:"size:255"`
	IPAddress        string           `gorm:"size:64"`
	UserAgent        string           `gorm:"size:512"`
	LastUsedAt       *time.Time
}

func (TokenPair) TableName() string { return "token_pairs" }

// Provenance describes where a token pair was requested from.
type Provenance struct {
	DeviceInfo string
	IPAddress  string
	UserAgent  string
}

// Identity is the authenticated principal behind a validated access token.
// UserType is the type the pair was issued to; User is resolved fresh on every
// validation, so User.Type reflects the current staff role.
type Identity struct {
	TokenID  uint
	UserType account.UserType
	UserID   uint
	User     *account.UserView
}

// Role is the principal's current type.
func (i *Identity) Role() account.UserType {
	if i.User != nil {
		return i.User.Type
	}
	return i.UserType
}

// TokenResponse is returned by every endpoint that issues tokens.
type TokenResponse struct {
	AccessToken  string            `json:"access_token" example:"9f2c...e1"`
	RefreshToken string            `json:"refresh_token" example:"4b7a...0c"`
	ExpiresIn    int               `json:"expires_in" example:"900"`
	TokenType    string            `json:"token_type" example:"Bearer"`
	User         *account.UserView `json:"user"`
}

// SessionView is an active token pair as shown to its owner.
type SessionView struct {
	ID               uint       `json:"id"`
	DeviceInfo       string     `json:"device_info,omitempty"`
	IPAddress        string     `json:"ip_address,omitempty"`
	UserAgent        string     `json:"user_agent,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
	RefreshExpiresAt time.Time  `json:"refresh_expires_at"`
	Current          bool       `json:"current"`
}

func NewSessionView(p *TokenPair, currentID uint) SessionView {
	return SessionView{
		ID:               p.ID,
		DeviceInfo:       p.DeviceInfo,
		IPAddress:        p.IPAddress,
		UserAgent:        p.UserAgent,
		CreatedAt:        p.CreatedAt,
		LastUsedAt:       p.LastUsedAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
		Current:          p.ID == currentID,
	}
}
