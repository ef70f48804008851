package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmpty    = errors.New("password must not be empty")
	ErrMismatch = errors.New("password does not match")
)

// DefaultCost is the bcrypt cost used by Hash.
const DefaultCost = 12

// Hash generates a bcrypt hash at DefaultCost.
func Hash(plain string) (string, error) {
	return HashWithCost(plain, DefaultCost)
}

func HashWithCost(plain string, cost int) (string, error) {
	if plain == "" {
		return "", ErrEmpty
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	return string(h), err
}

// Compare returns nil when plain matches hash, ErrMismatch when it does not,
// and the bcrypt error for malformed hashes.
func Compare(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return err
	}
	return nil
}
