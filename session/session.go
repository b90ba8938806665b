package session

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const (
	MaxAge = 7 * 24 * time.Hour

	// tokens issued further in the future are rejected
	clockSkew = time.Minute
)

type (
	Payload struct {
		UserID   int64
		IssuedAt time.Time
		// ID is empty for codecs that cannot carry it
		ID string
	}

	Service struct {
		codec   Codec
		revoked *RevocationList
		now     func() time.Time
		maxAge  time.Duration
	}
)

// NewService returns a token service using codec. revoked may be nil,
// in which case Revoke is a no-op.
func NewService(codec Codec, revoked *RevocationList) *Service {
	return &Service{
		codec:   codec,
		revoked: revoked,
		now:     time.Now,
		maxAge:  MaxAge,
	}
}

// SetClock replaces the time source, meant for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) MaxAge() time.Duration { return s.maxAge }

func (s *Service) Codec() Codec { return s.codec }

func (s *Service) Mint(userID int64) (string, error) {
	return s.codec.Encode(Payload{
		UserID:   userID,
		IssuedAt: s.now(),
		ID:       uuid.NewString(),
	})
}

// Parse decodes token, any malformed input yields nil.
func (s *Service) Parse(token string) *Payload {
	if len(token) == 0 {
		return nil
	}
	p, err := s.codec.Decode(token)
	if err != nil {
		return nil
	}
	return &p
}

// IsValid reports whether p is younger than MaxAge.
func (s *Service) IsValid(p *Payload) bool {
	if p == nil {
		return false
	}
	age := s.now().Sub(p.IssuedAt)
	return age < s.maxAge && age > -clockSkew
}

// Resolve returns the payload of token when it is well formed, not
// expired and not revoked.
func (s *Service) Resolve(ctx context.Context, token string) (*Payload, bool, error) {
	p := s.Parse(token)
	if !s.IsValid(p) {
		return nil, false, nil
	}
	if s.revoked != nil {
		revoked, err := s.revoked.Contains(ctx, revocationID(token, p))
		if err != nil {
			return nil, false, err
		} else if revoked {
			return nil, false, nil
		}
	}
	return p, true, nil
}

// Revoke marks token as unusable. Tokens that do not parse are ignored.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if s.revoked == nil {
		return nil
	}
	p := s.Parse(token)
	if p == nil {
		return nil
	}
	return s.revoked.Add(ctx, revocationID(token, p))
}

func revocationID(token string, p *Payload) string {
	if p.ID != "" {
		return "jti:" + p.ID
	}
	return "raw:" + strconv.FormatUint(xxhash.Sum64String(token), 16)
}
