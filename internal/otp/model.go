package otp

import "time"

// OtpCode is a one-time code issued to a phone. At most one row per phone
// exists after issuance; a verified row is never accepted again.
type OtpCode struct {
	ID        uint      `gorm:"primaryKey"`
	Phone     string    `gorm:"size:16;not null;index"`
	Code      string    `gorm:"size:6;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	Verified  bool      `gorm:"not null;default:false"`
	Attempts  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
}

func (OtpCode) TableName() string { return "otp_codes" }
