// Package cryptox implements the one-way hashing contract used for stored
// passwords and refresh tokens.
package cryptox

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

// MaxInputLen is the longest secret bcrypt hashes without truncation.
const MaxInputLen = 72

var (
	ErrInvalidCost  = errors.New("invalid hash cost")
	ErrInputTooLong = errors.New("secret exceeds 72 bytes")
)

// Hasher produces salted one-way digests of secrets and checks candidates
// against them.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}

// BcryptHasher is a Hasher with a fixed bcrypt cost.
type BcryptHasher struct {
	cost int
}

// ValidateCost reports whether cost is usable by bcrypt.
func ValidateCost(cost int) error {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidCost, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

// NewBcryptHasher returns a hasher using cost, or DefaultCost when cost is 0.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if err := ValidateCost(cost); err != nil {
		return nil, err
	}
	return &BcryptHasher{cost: cost}, nil
}

// Cost returns the configured work factor.
func (h *BcryptHasher) Cost() int { return h.cost }

// Hash accepts any secret up to MaxInputLen bytes, including the empty one.
func (h *BcryptHasher) Hash(plain string) (string, error) {
	if len(plain) > MaxInputLen {
		return "", ErrInputTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

// Compare runs in constant time with respect to the candidate. An empty hash
// never matches.
func (h *BcryptHasher) Compare(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
