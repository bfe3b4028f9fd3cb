package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHasher is used when no hasher is provided explicitly.
var DefaultHasher PasswordHasher = BcryptHasher{}

// BcryptHasher hashes passwords with bcrypt. Passwords are pre-hashed with
// sha256 so bcrypt's 72 byte input limit never silently truncates long ones.
type BcryptHasher struct {
	// Cost overrides bcrypt.DefaultCost when positive. Zero value is fine.
	Cost int
}

func (h BcryptHasher) cost() int {
	if h.Cost > 0 {
		return h.Cost
	}
	return bcrypt.DefaultCost
}

func (h BcryptHasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword(sum[:], h.cost())
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedPassword string, password string) error {
	sum := sha256.Sum256([]byte(password))
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:])
}
