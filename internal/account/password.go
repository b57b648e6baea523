package account

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher turns passwords into stored credentials and checks them.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(credential, password string) bool
}

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using bcrypt's default cost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.DefaultCost}
}

// ErrPasswordTooLong is returned for passwords bcrypt cannot hash (more than 72 bytes).
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

func (h *BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(credential, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(credential), []byte(password)) == nil
}
