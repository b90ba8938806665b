package userdb

import "fmt"

type (
	UserNotFound struct {
		Email string
		ID    int64
	}

	DuplicateEmail struct {
		Email string
	}

	UnsupportedDSN struct {
		DSN string
	}
)

func (u UserNotFound) Error() string {
	if u.Email != "" {
		return fmt.Sprintf("user with email %v not found", u.Email)
	}
	return fmt.Sprintf("user %v not found", u.ID)
}

func (d DuplicateEmail) Error() string {
	return fmt.Sprintf("user with email %v already exists", d.Email)
}

func (u UnsupportedDSN) Error() string {
	return fmt.Sprintf("unsupported database dsn %q, use a sqlite path/file: url or a postgres:// url", Redact(u.DSN))
}
