package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"io"
)

// EncryptWithPublicKey performs the client side of the exchange: it
// encrypts plaintext for the holder of publicPEM and returns the
// ciphertext base64 encoded.
func EncryptWithPublicKey(publicPEM string, plaintext string) (string, error) {
	return encryptWithPublicKey(rand.Reader, publicPEM, plaintext)
}

// MaxPlaintext returns how many bytes a single RSA-OAEP block can carry
// with the given public key.
func MaxPlaintext(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha256.Size - 2
}

func ParsePublicKey(publicPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicPEM))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, InvalidPublicKey{cause: errors.New("missing PUBLIC KEY pem block")}
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, InvalidPublicKey{cause: err}
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, InvalidPublicKey{cause: errors.New("not an rsa key")}
	}
	return rsaKey, nil
}

func encryptWithPublicKey(random io.Reader, publicPEM string, plaintext string) (string, error) {
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return "", err
	}
	if max := MaxPlaintext(pub); len(plaintext) > max {
		return "", PayloadTooLarge{Size: len(plaintext), Max: max}
	}
	out, err := rsa.EncryptOAEP(sha256.New(), random, pub, []byte(plaintext), nil)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}
