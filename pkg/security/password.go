package security

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes
const maxPasswordBytes = 72

var (
	ErrHashingFailed = errors.New("password hashing failed")
	ErrPasswordShort = errors.New("password too short")
	ErrPasswordLong  = errors.New("password longer than 72 bytes")
	ErrMismatch      = errors.New("credentials do not match")
	MinPasswordLen   = 8
)

// PasswordHasher hashes and checks account passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
	// CompareMissing spends the cost of one Compare and always fails. Logins
	// for unknown emails call it so they take as long as a wrong password.
	CompareMissing(password string) error
}

// NormalizeEmail is the form account emails are stored and looked up in
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckPassword enforces the length rules shared by every account type
func CheckPassword(password string) error {
	if len(password) < MinPasswordLen {
		return ErrPasswordShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordLong
	}
	return nil
}

type bcryptHasher struct {
	cost  int
	dummy []byte
}

// NewBcryptHasher creates a bcrypt hasher. An out of range cost falls back
// to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("referral-api-missing-account"), cost)
	if err != nil {
		panic(err)
	}
	return &bcryptHasher{cost: cost, dummy: dummy}
}

func (b *bcryptHasher) Hash(password string) (string, error) {
	if err := CheckPassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(hash), nil
}

func (b *bcryptHasher) Compare(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrMismatch
	}
	return nil
}

func (b *bcryptHasher) CompareMissing(password string) error {
	_ = bcrypt.CompareHashAndPassword(b.dummy, []byte(password))
	return ErrMismatch
}
