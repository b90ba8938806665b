package sealbox

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) []byte {
	k := make([]byte, KeySize)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return k
}

func TestSealOpen(t *testing.T) {
	key := newKey(t)
	for _, msg := range []string{"", "margherita", "{\"userId\":1}"} {
		s, err := Seal(msg, key)
		require.NoError(t, err)
		iv, _ := base64.StdEncoding.DecodeString(s.IV)
		tag, _ := base64.StdEncoding.DecodeString(s.Tag)
		require.Len(t, iv, NonceSize)
		require.Len(t, tag, TagSize)
		out, err := Open(s, key)
		require.NoError(t, err)
		require.Equal(t, msg, out)
	}
}

func TestFreshNonce(t *testing.T) {
	key := newKey(t)
	a, err := Seal("same", key)
	require.NoError(t, err)
	b, err := Seal("same", key)
	require.NoError(t, err)
	require.NotEqual(t, a.IV, b.IV)
	require.NotEqual(t, a.Ciphertext+a.Tag, b.Ciphertext+b.Tag)
}

func TestOpenRejectsTampering(t *testing.T) {
	key := newKey(t)
	s, err := Seal("pepperoni", key)
	require.NoError(t, err)

	flip := func(v string) string {
		raw, _ := base64.StdEncoding.DecodeString(v)
		raw[0] ^= 0x01
		return base64.StdEncoding.EncodeToString(raw)
	}

	for name, tampered := range map[string]Sealed{
		"ciphertext": {Ciphertext: flip(s.Ciphertext), IV: s.IV, Tag: s.Tag},
		"tag":        {Ciphertext: s.Ciphertext, IV: s.IV, Tag: flip(s.Tag)},
		"iv":         {Ciphertext: s.Ciphertext, IV: flip(s.IV), Tag: s.Tag},
		"encoding":   {Ciphertext: "%%%", IV: s.IV, Tag: s.Tag},
		"short-tag":  {Ciphertext: s.Ciphertext, IV: s.IV, Tag: "AAAA"},
	} {
		out, err := Open(tampered, key)
		require.ErrorIs(t, err, AuthenticationError{}, name)
		require.Empty(t, out, name)
	}

	_, err = Open(s, newKey(t))
	require.ErrorIs(t, err, AuthenticationError{})
}

func TestKeySize(t *testing.T) {
	_, err := Seal("x", make([]byte, 16))
	require.Equal(t, KeySizeError(16), err)
}
