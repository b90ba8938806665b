package session

import (
	"errors"
	"fmt"
)

type (
	MissingRootKey struct {
		EnvVar string
	}

	UnknownCodec struct {
		Name string
	}
)

var (
	errMalformed = errors.New("malformed session token")
)

func (m MissingRootKey) Error() string {
	return fmt.Sprintf("session: root key environment variable %v is empty", m.EnvVar)
}

func (u UnknownCodec) Error() string {
	return fmt.Sprintf("session: unknown token codec %q, valid options are jwt, sealed and legacy", u.Name)
}
