package session

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/andrebq/pizzabox/sealbox"
	"github.com/golang-jwt/jwt/v5"
)

type (
	Codec interface {
		Name() string
		Encode(Payload) (string, error)
		Decode(string) (Payload, error)
	}

	LegacyCodec struct{}

	JWTCodec struct {
		key    []byte
		maxAge time.Duration
	}

	SealedCodec struct {
		key []byte
	}

	legacyPayload struct {
		UserID    int64 `json:"userId"`
		CreatedAt int64 `json:"createdAt"`
	}

	jwtClaims struct {
		jwt.RegisteredClaims
		UserID int64 `json:"uid"`
	}

	sealedPayload struct {
		UserID   int64  `json:"uid"`
		IssuedAt int64  `json:"iat"`
		ID       string `json:"jti,omitempty"`
	}
)

// NewCodec builds the codec identified by name. Signed codecs derive
// their own key from root.
func NewCodec(name string, root *Key) (Codec, error) {
	switch name {
	case "", "jwt":
		return NewJWTCodec(DeriveKey(root, "session/jwt"), MaxAge), nil
	case "sealed":
		return NewSealedCodec(DeriveKey(root, "session/sealed")), nil
	case "legacy":
		return LegacyCodec{}, nil
	}
	return nil, UnknownCodec{Name: name}
}

func (LegacyCodec) Name() string { return "legacy" }

func (LegacyCodec) Encode(p Payload) (string, error) {
	buf, err := json.Marshal(legacyPayload{UserID: p.UserID, CreatedAt: p.IssuedAt.UnixMilli()})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func (LegacyCodec) Decode(token string) (Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, errMalformed
	}
	var lp legacyPayload
	if err := json.Unmarshal(raw, &lp); err != nil {
		return Payload{}, errMalformed
	}
	if lp.UserID == 0 || lp.CreatedAt == 0 {
		return Payload{}, errMalformed
	}
	return Payload{UserID: lp.UserID, IssuedAt: time.UnixMilli(lp.CreatedAt)}, nil
}

func NewJWTCodec(key *Key, maxAge time.Duration) *JWTCodec {
	return &JWTCodec{key: append([]byte(nil), key[:]...), maxAge: maxAge}
}

func (j *JWTCodec) Name() string { return "jwt" }

func (j *JWTCodec) Encode(p Payload) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.IssuedAt.Add(j.maxAge)),
			ID:        p.ID,
		},
		UserID: p.UserID,
	})
	return token.SignedString(j.key)
}

// Decode checks the signature only, expiration is enforced by Service
// against its own clock.
func (j *JWTCodec) Decode(token string) (Payload, error) {
	var claims jwtClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return j.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return Payload{}, errMalformed
	}
	if claims.UserID == 0 || claims.IssuedAt == nil {
		return Payload{}, errMalformed
	}
	return Payload{UserID: claims.UserID, IssuedAt: claims.IssuedAt.Time, ID: claims.ID}, nil
}

func NewSealedCodec(key *Key) *SealedCodec {
	return &SealedCodec{key: append([]byte(nil), key[:]...)}
}

func (s *SealedCodec) Name() string { return "sealed" }

// Encode renders iv|tag|ciphertext as unpadded url-safe base64.
func (s *SealedCodec) Encode(p Payload) (string, error) {
	plain, err := json.Marshal(sealedPayload{UserID: p.UserID, IssuedAt: p.IssuedAt.UnixMilli(), ID: p.ID})
	if err != nil {
		return "", err
	}
	iv, ct, tag, err := sealbox.SealBytes(rand.Reader, plain, s.key)
	if err != nil {
		return "", fmt.Errorf("session: unable to seal token, cause %w", err)
	}
	var buf bytes.Buffer
	buf.Write(iv)
	buf.Write(tag)
	buf.Write(ct)
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

func (s *SealedCodec) Decode(token string) (Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < sealbox.NonceSize+sealbox.TagSize {
		return Payload{}, errMalformed
	}
	iv := raw[:sealbox.NonceSize]
	tag := raw[sealbox.NonceSize : sealbox.NonceSize+sealbox.TagSize]
	plain, err := sealbox.OpenBytes(iv, raw[sealbox.NonceSize+sealbox.TagSize:], tag, s.key)
	if err != nil {
		return Payload{}, errMalformed
	}
	var sp sealedPayload
	if err := json.Unmarshal(plain, &sp); err != nil || sp.UserID == 0 || sp.IssuedAt == 0 {
		return Payload{}, errMalformed
	}
	return Payload{UserID: sp.UserID, IssuedAt: time.UnixMilli(sp.IssuedAt), ID: sp.ID}, nil
}
