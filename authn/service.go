// Package authn implements the account protocol of the storefront:
// public key distribution, registration, login, session lookup and
// logout. It knows nothing about HTTP, see authn/api for that.
package authn

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andrebq/pizzabox/internal/logutil"
	"github.com/andrebq/pizzabox/internal/metrics"
	"github.com/andrebq/pizzabox/passwd"
	"github.com/andrebq/pizzabox/session"
	"github.com/andrebq/pizzabox/userdb"
)

const (
	MinPasswordLength = 6
)

type (
	KeyStore interface {
		PublicKey() (string, error)
		Decrypt(ciphertext string) (string, error)
	}

	UserStore interface {
		FindUserByEmail(ctx context.Context, email string) (*userdb.User, error)
		FindUserByID(ctx context.Context, id int64) (*userdb.User, error)
		InsertUser(ctx context.Context, nu userdb.NewUser) (*userdb.User, error)
	}

	// Profile is the public view of an account.
	Profile struct {
		ID        int64     `json:"id"`
		Email     string    `json:"email"`
		Name      string    `json:"name"`
		Phone     string    `json:"phone,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Grant is the outcome of a successful register or login.
	Grant struct {
		User  Profile
		Token string
	}

	Service struct {
		keys     KeyStore
		users    UserStore
		hasher   *passwd.Hasher
		sessions *session.Service
	}
)

func New(keys KeyStore, users UserStore, hasher *passwd.Hasher, sessions *session.Service) *Service {
	return &Service{
		keys:     keys,
		users:    users,
		hasher:   hasher,
		sessions: sessions,
	}
}

// SessionMaxAge is how long a minted token is honored.
func (s *Service) SessionMaxAge() time.Duration {
	return s.sessions.MaxAge()
}

func (s *Service) PublicKey(ctx context.Context) (key string, err error) {
	defer s.observe(ctx, "public_key", time.Now(), &err)
	key, err = s.keys.PublicKey()
	if err != nil {
		return "", UnexpectedError{Op: "public key", cause: err}
	}
	return key, nil
}

func (s *Service) Register(ctx context.Context, env Envelope) (grant *Grant, err error) {
	defer s.observe(ctx, "register", time.Now(), &err)
	creds, err := s.open(ctx, env)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(creds.Password) < MinPasswordLength {
		return nil, ValidationError{Reason: "Password must be at least 6 characters"}
	}
	email := userdb.NormalizeEmail(creds.Email)
	_, err = s.users.FindUserByEmail(ctx, email)
	if err == nil {
		return nil, ConflictError{Email: email}
	} else if !errors.As(err, &userdb.UserNotFound{}) {
		return nil, UnexpectedError{Op: "register", cause: err}
	}
	digest, err := s.hasher.Hash(creds.Password)
	if errors.Is(err, passwd.ErrPasswordTooLong) {
		return nil, ValidationError{Reason: "Password must not exceed 72 bytes"}
	} else if err != nil {
		return nil, UnexpectedError{Op: "register", cause: err}
	}
	user, err := s.users.InsertUser(ctx, userdb.NewUser{
		Email:        email,
		Name:         defaultName(creds.Email),
		PasswordHash: digest,
	})
	if errors.As(err, &userdb.DuplicateEmail{}) {
		// lost the race against a concurrent registration
		return nil, ConflictError{Email: email}
	} else if err != nil {
		return nil, UnexpectedError{Op: "register", cause: err}
	}
	logger := logutil.GetOrDefault(ctx)
	logger.Info().Int64("user.id", user.ID).Msg("User registered")
	return s.grant(user)
}

func (s *Service) Login(ctx context.Context, env Envelope) (grant *Grant, err error) {
	defer s.observe(ctx, "login", time.Now(), &err)
	creds, err := s.open(ctx, env)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindUserByEmail(ctx, creds.Email)
	if errors.As(err, &userdb.UserNotFound{}) {
		s.hasher.DummyVerify(creds.Password)
		return nil, InvalidCredentialsError{}
	} else if err != nil {
		return nil, UnexpectedError{Op: "login", cause: err}
	}
	if !s.hasher.Verify(creds.Password, user.PasswordHash) {
		return nil, InvalidCredentialsError{}
	}
	return s.grant(user)
}

// CurrentSession returns the profile bound to token, or nil when the
// token is absent, malformed, expired, revoked or points to an account
// that no longer exists.
func (s *Service) CurrentSession(ctx context.Context, token string) (profile *Profile, err error) {
	defer s.observe(ctx, "session", time.Now(), &err)
	log := logutil.GetOrDefault(ctx)
	p, ok, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		log.Warn().Err(err).Msg("Unable to check session revocation, treating request as anonymous")
		return nil, nil
	} else if !ok {
		return nil, nil
	}
	user, err := s.users.FindUserByID(ctx, p.UserID)
	if errors.As(err, &userdb.UserNotFound{}) {
		log.Info().Int64("user.id", p.UserID).Msg("Session refers to a missing account")
		return nil, nil
	} else if err != nil {
		return nil, UnexpectedError{Op: "session", cause: err}
	}
	pf := profileOf(user)
	return &pf, nil
}

// Logout revokes token, it never fails.
func (s *Service) Logout(ctx context.Context, token string) {
	var err error
	defer s.observe(ctx, "logout", time.Now(), &err)
	if token == "" {
		return
	}
	if rerr := s.sessions.Revoke(ctx, token); rerr != nil {
		logger := logutil.GetOrDefault(ctx)
		logger.Warn().Err(rerr).Msg("Unable to revoke session token")
	}
}

// open resolves the envelope into plain credentials
func (s *Service) open(ctx context.Context, env Envelope) (Credentials, error) {
	var creds Credentials
	switch env := env.(type) {
	case EncryptedEnvelope:
		email, err := s.keys.Decrypt(env.Email)
		if err != nil {
			logger := logutil.GetOrDefault(ctx)
			logger.Warn().Err(err).Str("field", "email").Msg("Decryption error")
			return Credentials{}, DecryptionError{cause: err}
		}
		password, err := s.keys.Decrypt(env.Password)
		if err != nil {
			logger := logutil.GetOrDefault(ctx)
			logger.Warn().Err(err).Str("field", "password").Msg("Decryption error")
			return Credentials{}, DecryptionError{cause: err}
		}
		creds = Credentials{Email: email, Password: password}
	case PlainEnvelope:
		creds = Credentials{Email: env.Email, Password: env.Password}
	default:
		return Credentials{}, ValidationError{Reason: "Email and password are required"}
	}
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return Credentials{}, ValidationError{Reason: "Email and password are required"}
	}
	return creds, nil
}

func (s *Service) grant(user *userdb.User) (*Grant, error) {
	token, err := s.sessions.Mint(user.ID)
	if err != nil {
		return nil, UnexpectedError{Op: "mint session", cause: err}
	}
	return &Grant{User: profileOf(user), Token: token}, nil
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err *error) {
	outcome := outcomeOf(*err)
	if outcome == "unexpected" {
		logger := logutil.GetOrDefault(ctx)
		logger.Error().Err(*err).Str("operation", op).Msg("Authentication operation failed")
	}
	metrics.Observe(op, outcome, start)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ValidationError{}):
		return "validation"
	case errors.Is(err, DecryptionError{}):
		return "decryption"
	case errors.As(err, &ConflictError{}):
		return "conflict"
	case errors.As(err, &InvalidCredentialsError{}):
		return "invalid_credentials"
	}
	return "unexpected"
}

func profileOf(u *userdb.User) Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
	}
}

// defaultName uses the local part of email as display name
func defaultName(email string) string {
	email = strings.TrimSpace(email)
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	if local == "" {
		return email
	}
	return local
}
