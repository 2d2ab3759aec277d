package account

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const PasswordMinimumLength = 10

var (
	ErrPasswordTooShort                    = fmt.Errorf("password should be at least %d characters", PasswordMinimumLength)
	ErrPasswordNotAlphanumeric             = errors.New("password must contain both letters and digits")
	ErrPasswordDoesNotHaveSpecialCharacter = errors.New("password does not contain special characters")
	ErrHashingPasswordFailed               = errors.New("hashing password failed")
)

const specialCharacters = "!@#$%^&*()-_=+[]{}|;:'\",.<>?/`~"

// CheckPassword enforces the strength policy for staff passwords.
func CheckPassword(password string) error {
	if len(password) < PasswordMinimumLength {
		return ErrPasswordTooShort
	}

	var hasLetter, hasDigit, hasSpecial bool
	for _, c := range password {
		switch {
		case unicode.IsLetter(c):
			hasLetter = true
		case unicode.IsDigit(c):
			hasDigit = true
		case strings.ContainsRune(specialCharacters, c):
			hasSpecial = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrPasswordNotAlphanumeric
	}
	if !hasSpecial {
		return ErrPasswordDoesNotHaveSpecialCharacter
	}
	return nil
}

// HashPassword validates and bcrypt-hashes a staff password.
func HashPassword(password string) (string, error) {
	if err := CheckPassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", ErrHashingPasswordFailed
	}
	return string(hashed), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DummyPasswordHash is a valid bcrypt hash matching no real password. Login
// compares against it when no usable account exists, so a miss costs the same
// as a wrong password.
var DummyPasswordHash = sync.OnceValue(func() string {
	hashed, err := bcrypt.GenerateFromPassword([]byte("no account matches this phone"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(hashed)
})
