// Package keystore owns the RSA keypair used to receive credentials.
//
// Clients fetch the public key, encrypt each credential field with
// RSA-OAEP (SHA-256) and the server decrypts it with the private half.
// The pair lives in memory only: restarting the process (or calling
// Rotate) makes every ciphertext produced for the previous key
// undecryptable.
package keystore

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"sync"

	"github.com/andrebq/pizzabox/internal/logutil"
	"github.com/rs/zerolog"
)

const (
	DefaultBits = 2048
)

type (
	// KeyPair holds both halves PEM encoded, public as SPKI and
	// private as PKCS#8.
	KeyPair struct {
		PublicKey  string
		PrivateKey string
	}

	Store struct {
		sync.RWMutex
		bits    int
		random  io.Reader
		log     zerolog.Logger
		private *rsa.PrivateKey
		pair    KeyPair
	}
)

// New returns an empty store, the keypair is generated on first use.
func New(ctx context.Context, bits int) *Store {
	if bits <= 0 {
		bits = DefaultBits
	}
	return &Store{
		bits:   bits,
		random: rand.Reader,
		log:    logutil.GetOrDefault(ctx).With().Str("component", "keystore").Logger(),
	}
}

func (s *Store) KeyPair() (KeyPair, error) {
	_, pair, err := s.current()
	return pair, err
}

func (s *Store) PublicKey() (string, error) {
	pair, err := s.KeyPair()
	if err != nil {
		return "", err
	}
	return pair.PublicKey, nil
}

// Rotate drops the current keypair and generates a new one.
func (s *Store) Rotate() error {
	s.Lock()
	defer s.Unlock()
	return s.generate()
}

// Decrypt reverses EncryptWithPublicKey using the current private key.
func (s *Store) Decrypt(ciphertext string) (string, error) {
	key, _, err := s.current()
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", DecryptionError{cause: fmt.Errorf("invalid base64 payload: %w", err)}
	}
	if len(raw) != key.Size() {
		return "", DecryptionError{cause: fmt.Errorf("payload has %v bytes but key modulus has %v", len(raw), key.Size())}
	}
	plain, err := rsa.DecryptOAEP(sha256.New(), s.random, key, raw, nil)
	if err != nil {
		return "", DecryptionError{cause: err}
	}
	return string(plain), nil
}

func (s *Store) current() (*rsa.PrivateKey, KeyPair, error) {
	s.RLock()
	key, pair := s.private, s.pair
	s.RUnlock()
	if key != nil {
		return key, pair, nil
	}
	s.Lock()
	defer s.Unlock()
	if s.private == nil {
		if err := s.generate(); err != nil {
			return nil, KeyPair{}, err
		}
	}
	return s.private, s.pair, nil
}

// generate must be called with the write lock held
func (s *Store) generate() error {
	key, err := rsa.GenerateKey(s.random, s.bits)
	if err != nil {
		return fmt.Errorf("keystore: unable to generate %v bits rsa key, cause %w", s.bits, err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("keystore: unable to encode public key, cause %w", err)
	}
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("keystore: unable to encode private key, cause %w", err)
	}
	s.private = key
	s.pair = KeyPair{
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})),
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: priv})),
	}
	s.log.Info().Int("bits", s.bits).Str("fingerprint", Fingerprint(pub)).Msg("Generated new RSA key pair")
	return nil
}

// Fingerprint returns a short identifier of a DER encoded public key,
// safe to log.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:8])
}
