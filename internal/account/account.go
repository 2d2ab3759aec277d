package account

import (
	"gorm.io/gorm"
)

// UserType identifies which kind of principal a token belongs to.
// @Description principal type: "donor", "admin" or "registrar"
type UserType string

const (
	// Donor signs in with a one-time code sent to their phone
	Donor UserType = "donor"
	// Admin is a staff account with full access
	Admin UserType = "admin"
	// Registrar is a staff account limited to registration work
	Registrar UserType = "registrar"
)

func (t UserType) Valid() bool {
	switch t {
	case Donor, Admin, Registrar:
		return true
	}
	return false
}

// DonorRecord is a campaign donor. Pledge and payment totals are maintained by
// the back office; this service only reads them.
type DonorRecord struct {
	gorm.Model
	Name        string  `gorm:"not null"`
	Phone       string  `gorm:"uniqueIndex;not null"`
	PledgeTotal float64 `gorm:"type:numeric(12,2);not null;default:0"`
	PaidTotal   float64 `gorm:"type:numeric(12,2);not null;default:0"`
}

func (DonorRecord) TableName() string { return "donors" }

// UserRecord is a staff account. Password holds a bcrypt hash.
type UserRecord struct {
	gorm.Model
	Name     string `gorm:"not null"`
	Phone    string `gorm:"index;not null"`
	Email    string `gorm:"index"`
	Password string `gorm:"not null"`
	Role     string `gorm:"type:text;not null;default:'registrar'"`
	Active   bool   `gorm:"not null;default:true"`
}

func (UserRecord) TableName() string { return "users" }

// UserType classifies the staff role; anything other than admin is a registrar.
func (u *UserRecord) UserType() UserType {
	if UserType(u.Role) == Admin {
		return Admin
	}
	return Registrar
}

// UserView is the caller-facing projection of a donor or staff account.
// It never carries secrets.
// swagger:model UserView
type UserView struct {
	ID          uint     `json:"id"`
	Type        UserType `json:"type"`
	Name        string   `json:"name"`
	Phone       string   `json:"phone"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	PledgeTotal *float64 `json:"pledge_total,omitempty"`
	PaidTotal   *float64 `json:"paid_total,omitempty"`
	Balance     *float64 `json:"balance,omitempty"`
}

func NewDonorView(d *DonorRecord) *UserView {
	pledged, paid := d.PledgeTotal, d.PaidTotal
	balance := pledged - paid
	return &UserView{
		ID:          d.ID,
		Type:        Donor,
		Name:        d.Name,
		Phone:       d.Phone,
		PledgeTotal: &pledged,
		PaidTotal:   &paid,
		Balance:     &balance,
	}
}

func NewUserView(u *UserRecord) *UserView {
	t := u.UserType()
	return &UserView{
		ID:    u.ID,
		Type:  t,
		Name:  u.Name,
		Phone: u.Phone,
		Email: u.Email,
		Role:  string(t),
	}
}
