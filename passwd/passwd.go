// Package passwd hashes account passwords with bcrypt.
//
// Digests carry their own salt and cost, so the only thing kept in the
// database is the output of Hash.
package passwd

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost = 10
)

var (
	ErrPasswordTooLong = errors.New("password must not exceed 72 bytes")
)

type (
	Hasher struct {
		cost int

		dummyOnce sync.Once
		// digest of an unguessable password, keeps the cost of a
		// lookup miss equal to the cost of a wrong password
		dummy []byte
	}
)

// New returns a Hasher using the given bcrypt cost, values outside
// the range accepted by bcrypt fallback to DefaultCost.
func New(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Cost() int { return h.cost }

func (h *Hasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	} else if err != nil {
		return "", fmt.Errorf("passwd: unable to hash password, cause %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. A malformed digest
// never matches.
func (h *Hasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// DummyVerify spends the same amount of work as Verify and always
// returns false.
func (h *Hasher) DummyVerify(password string) bool {
	h.dummyOnce.Do(func() {
		var secret [16]byte
		rand.Read(secret[:])
		h.dummy, _ = bcrypt.GenerateFromPassword(secret[:], h.cost)
	})
	bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
	return false
}
