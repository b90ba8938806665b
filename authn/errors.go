package authn

import "fmt"

type (
	// ValidationError reports missing or unacceptable input.
	ValidationError struct {
		Reason string
	}

	// DecryptionError reports credentials that could not be decrypted
	// with the current key.
	DecryptionError struct {
		cause error
	}

	// ConflictError reports an attempt to register an email twice.
	ConflictError struct {
		Email string
	}

	// InvalidCredentialsError is returned both for unknown emails and
	// wrong passwords, callers must not be able to tell them apart.
	InvalidCredentialsError struct{}

	// UnexpectedError hides a fault that is not the caller's doing.
	UnexpectedError struct {
		Op    string
		cause error
	}
)

func (v ValidationError) Error() string {
	return v.Reason
}

func (d DecryptionError) Error() string {
	return "Invalid encrypted data"
}

func (d DecryptionError) Unwrap() error { return d.cause }

func (d DecryptionError) Is(target error) bool {
	_, ok := target.(DecryptionError)
	return ok
}

func (c ConflictError) Error() string {
	return "User with this email already exists"
}

func (InvalidCredentialsError) Error() string {
	return "Invalid email or password"
}

func (u UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected failure during %v, cause %v", u.Op, u.cause)
}

func (u UnexpectedError) Unwrap() error { return u.cause }

func (u UnexpectedError) Is(target error) bool {
	_, ok := target.(UnexpectedError)
	return ok
}
