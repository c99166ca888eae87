package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCost = errors.New("bcrypt cost out of range")

// Hasher hashes and verifies secrets with bcrypt at a configurable work factor.
type Hasher struct {
	cost int
}

func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCost, cost)
	}

	return &Hasher{cost: cost}, nil
}

// Hash returns a salted bcrypt hash of plain.
func (h *Hasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Verify reports whether plain matches the stored hash. A malformed hash never matches.
func (h *Hasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

func (h *Hasher) Cost() int {
	return h.cost
}
