package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordLen = 72
)

var (
	ErrHashingFailed    = errors.New("password hashing failed")
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrPasswordMismatch = errors.New("password does not match")
	ErrMalformedHash    = errors.New("malformed password hash")
)

// PasswordHasher hashes and checks operator passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher falls back to bcrypt.DefaultCost when cost is out of range.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(password string) (string, error) {
	switch {
	case len(password) < MinPasswordLen:
		return "", ErrPasswordTooShort
	case len(password) > MaxPasswordLen:
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", errors.Join(ErrHashingFailed, err)
	}
	return string(hashed), nil
}

// Compare reports ErrPasswordMismatch for a wrong password and
// ErrMalformedHash when the stored hash is unusable.
func (b *bcryptHasher) Compare(hashedPassword, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return errors.Join(ErrMalformedHash, err)
	}
}

// CheckHash validates a stored hash without a password, so operator
// configuration can be rejected at startup.
func CheckHash(hashedPassword string) error {
	if _, err := bcrypt.Cost([]byte(hashedPassword)); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return nil
}
