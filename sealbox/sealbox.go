// Package sealbox implements authenticated symmetric encryption using
// AES-256-GCM.
package sealbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	KeySize   = 32
	NonceSize = 12
	TagSize   = 16
)

type (
	// Sealed carries every piece needed to open a message, except the
	// key. All fields are base64 (std encoding).
	Sealed struct {
		Ciphertext string `json:"ciphertext"`
		IV         string `json:"iv"`
		Tag        string `json:"tag"`
	}

	KeySizeError int

	AuthenticationError struct {
		cause error
	}
)

// Seal encrypts plaintext with a fresh random nonce.
func Seal(plaintext string, key []byte) (Sealed, error) {
	iv, ct, tag, err := SealBytes(rand.Reader, []byte(plaintext), key)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Tag:        base64.StdEncoding.EncodeToString(tag),
	}, nil
}

// Open verifies and decrypts s. Any tampering, or a different key,
// results in AuthenticationError.
func Open(s Sealed, key []byte) (string, error) {
	iv, err := base64.StdEncoding.DecodeString(s.IV)
	if err != nil {
		return "", AuthenticationError{cause: fmt.Errorf("invalid iv encoding: %w", err)}
	}
	ct, err := base64.StdEncoding.DecodeString(s.Ciphertext)
	if err != nil {
		return "", AuthenticationError{cause: fmt.Errorf("invalid ciphertext encoding: %w", err)}
	}
	tag, err := base64.StdEncoding.DecodeString(s.Tag)
	if err != nil {
		return "", AuthenticationError{cause: fmt.Errorf("invalid tag encoding: %w", err)}
	}
	plain, err := OpenBytes(iv, ct, tag, key)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// SealBytes is the binary form of Seal.
func SealBytes(random io.Reader, plaintext, key []byte) (iv, ciphertext, tag []byte, err error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, nil, nil, err
	}
	iv = make([]byte, NonceSize)
	if _, err = io.ReadFull(random, iv); err != nil {
		return nil, nil, nil, fmt.Errorf("sealbox: unable to read nonce, cause %w", err)
	}
	out := aead.Seal(nil, iv, plaintext, nil)
	split := len(out) - TagSize
	return iv, out[:split], out[split:], nil
}

// OpenBytes is the binary form of Open.
func OpenBytes(iv, ciphertext, tag, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != NonceSize {
		return nil, AuthenticationError{cause: fmt.Errorf("iv must have %v bytes got %v", NonceSize, len(iv))}
	}
	if len(tag) != TagSize {
		return nil, AuthenticationError{cause: fmt.Errorf("tag must have %v bytes got %v", TagSize, len(tag))}
	}
	buf := make([]byte, 0, len(ciphertext)+len(tag))
	buf = append(buf, ciphertext...)
	buf = append(buf, tag...)
	plain, err := aead.Open(nil, iv, buf, nil)
	if err != nil {
		return nil, AuthenticationError{cause: err}
	}
	return plain, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, KeySizeError(len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (k KeySizeError) Error() string {
	return fmt.Sprintf("sealbox: key must have %v bytes got %v", KeySize, int(k))
}

func (a AuthenticationError) Error() string {
	return fmt.Sprintf("sealbox: message authentication failed, cause %v", a.cause)
}

func (a AuthenticationError) Unwrap() error { return a.cause }

func (a AuthenticationError) Is(target error) bool {
	_, ok := target.(AuthenticationError)
	return ok
}
