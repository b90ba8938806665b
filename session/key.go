package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
)

const (
	RootKeyEnvVar = "PIZZABOX_SESSION_ROOTKEY"
)

type (
	Key [32]byte

	KeyFn func(context.Context) (*Key, error)

	// Ratchet derives a chain of keys from a root key, each step
	// mixing the previous key with a label.
	Ratchet struct {
		key *Key
	}
)

func (k *Key) Zero() {
	for i := range k {
		k[i] = 0
	}
}

func (k *Key) String() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

// NewRatchet starts a ratchet from a copy of root.
func NewRatchet(root *Key) *Ratchet {
	var k Key
	copy(k[:], root[:])
	return &Ratchet{key: &k}
}

func (r *Ratchet) Next(label []byte) *Key {
	var newKey Key
	// parameters must stay fixed, every instance sharing a root key
	// has to derive the same keys
	buf := argon2.IDKey((*r.key)[:], label, 3, 16*1024, 2, uint32(len(newKey)))
	copy(newKey[:], buf)
	r.key.Zero()
	r.key = &newKey
	return r.key
}

func (r *Ratchet) Zero() {
	r.key.Zero()
}

// DeriveKey returns the key for a given purpose, the root is not modified.
func DeriveKey(root *Key, purpose string) *Key {
	r := NewRatchet(root)
	k := *r.Next([]byte("pizzabox/" + purpose))
	r.Zero()
	return &k
}

// RandomKey returns a fresh key, useful when no root key is configured
// and sessions do not need to survive a restart.
func RandomKey() (*Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return nil, fmt.Errorf("session: unable to read random key, cause %w", err)
	}
	return &k, nil
}

// KeyFnFromEnv reads the base64 encoded root key from varname and
// clears the variable.
func KeyFnFromEnv(varname string, getfn func(string) string, setfn func(string, string) error) (KeyFn, error) {
	if getfn == nil {
		getfn = os.Getenv
	}
	if setfn == nil {
		setfn = os.Setenv
	}
	val := getfn(varname)
	setfn(varname, "")
	if len(val) == 0 {
		return nil, MissingRootKey{EnvVar: varname}
	}
	var rootKey Key
	raw, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return nil, fmt.Errorf("session: cannot decode string to valid key, cause %v", err)
	} else if len(raw) != len(rootKey) {
		return nil, fmt.Errorf("session: decoded key has %v bytes expecting %v", len(raw), len(rootKey))
	}
	copy(rootKey[:], raw)
	return func(_ context.Context) (*Key, error) {
		var k Key
		copy(k[:], rootKey[:])
		return &k, nil
	}, nil
}
