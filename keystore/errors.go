package keystore

import "fmt"

type (
	// DecryptionError is returned for every ciphertext that cannot be
	// turned back into plaintext, including those produced for a key
	// this store no longer holds.
	DecryptionError struct {
		cause error
	}

	PayloadTooLarge struct {
		Size int
		Max  int
	}

	InvalidPublicKey struct {
		cause error
	}
)

func (d DecryptionError) Error() string {
	return fmt.Sprintf("unable to decrypt payload, cause %v", d.cause)
}

func (d DecryptionError) Unwrap() error { return d.cause }

func (d DecryptionError) Is(target error) bool {
	_, ok := target.(DecryptionError)
	return ok
}

func (p PayloadTooLarge) Error() string {
	return fmt.Sprintf("payload has %v bytes, rsa-oaep limit is %v", p.Size, p.Max)
}

func (i InvalidPublicKey) Error() string {
	return fmt.Sprintf("invalid public key, cause %v", i.cause)
}

func (i InvalidPublicKey) Unwrap() error { return i.cause }
