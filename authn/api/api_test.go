package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/andrebq/pizzabox/authn"
	"github.com/andrebq/pizzabox/internal/testutil"
	"github.com/andrebq/pizzabox/keystore"
	"github.com/andrebq/pizzabox/passwd"
	"github.com/andrebq/pizzabox/session"
	"github.com/andrebq/pizzabox/userdb"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type (
	testServer struct {
		handler http.Handler
		svc     *authn.Service
		keys    *keystore.Store
		db      *userdb.DB
	}
)

func newTestServer(ctx context.Context, t *testing.T, insecure bool) (*testServer, func()) {
	db, cleanup := testutil.AcquireUserDB(ctx, t, "users")
	keys := keystore.New(ctx, 1024)
	root, err := session.RandomKey()
	require.NoError(t, err)
	codec, err := session.NewCodec("jwt", root)
	require.NoError(t, err)
	revoked, err := session.NewRevocationList(session.MaxAge)
	require.NoError(t, err)
	svc := authn.New(keys, db, passwd.New(bcrypt.MinCost), session.NewService(codec, revoked))
	return &testServer{
			handler: AsHandler(ctx, svc, insecure),
			svc:     svc,
			keys:    keys,
			db:      db,
		}, func() {
			revoked.Close()
			cleanup()
		}
}

func sessionCookie(t *testing.T, res *http.Response) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not found")
	return nil
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	srv, cleanup := newTestServer(ctx, t, true)
	defer cleanup()

	res := apitest.New().
		Handler(srv.handler).
		Post("/register").
		JSON(`{"email":"alice@test.com","password":"secret1"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.message", "Registration successful")).
		Assert(jsonpath.Equal("$.user.email", "alice@test.com")).
		Assert(jsonpath.Equal("$.user.name", "alice")).
		Assert(jsonpath.Present("$.user.id")).
		Assert(jsonpath.NotPresent("$.user.password")).
		Cookies(apitest.NewCookie(SessionCookieName).HttpOnly(true).Path("/").MaxAge(7 * 24 * 60 * 60).Secure(false)).
		End()
	registered := sessionCookie(t, res.Response)
	require.Contains(t, res.Response.Header.Get("Set-Cookie"), "SameSite=Lax")

	apitest.New().
		Handler(srv.handler).
		Post("/register").
		JSON(`{"email":"alice@test.com","password":"anything-else"}`).
		Expect(t).
		Status(http.StatusConflict).
		Body(`{"error":"User with this email already exists"}`).
		CookieNotPresent(SessionCookieName).
		End()

	apitest.New().
		Handler(srv.handler).
		Post("/login").
		JSON(`{"email":"alice@test.com","password":"wrongpass"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Body(`{"error":"Invalid email or password"}`).
		End()

	apitest.New().
		Handler(srv.handler).
		Post("/login").
		JSON(`{"email":"nobody@test.com","password":"secret1"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Body(`{"error":"Invalid email or password"}`).
		End()

	res = apitest.New().
		Handler(srv.handler).
		Post("/login").
		JSON(`{"email":"ALICE@TEST.com","password":"secret1"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.message", "Login successful")).
		Assert(jsonpath.Equal("$.user.email", "alice@test.com")).
		CookiePresent(SessionCookieName).
		End()
	loggedIn := sessionCookie(t, res.Response)

	for _, c := range []*http.Cookie{registered, loggedIn} {
		apitest.New().
			Handler(srv.handler).
			Get("/session").
			Cookie(SessionCookieName, c.Value).
			Expect(t).
			Status(http.StatusOK).
			Assert(jsonpath.Equal("$.user.email", "alice@test.com")).
			End()
	}

	apitest.New().
		Handler(srv.handler).
		Post("/logout").
		Cookie(SessionCookieName, loggedIn.Value).
		Expect(t).
		Status(http.StatusOK).
		Cookies(apitest.NewCookie(SessionCookieName).Value("").MaxAge(-1)).
		End()

	// a client that honors the expired cookie sends nothing
	apitest.New().
		Handler(srv.handler).
		Get("/session").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"user":null}`).
		End()

	// a client replaying the old cookie is anonymous as well
	apitest.New().
		Handler(srv.handler).
		Get("/session").
		Cookie(SessionCookieName, loggedIn.Value).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"user":null}`).
		End()

	// logout is idempotent
	apitest.New().
		Handler(srv.handler).
		Post("/logout").
		Expect(t).
		Status(http.StatusOK).
		End()
}

func TestEncryptedCredentials(t *testing.T) {
	ctx := context.Background()
	srv, cleanup := newTestServer(ctx, t, false)
	defer cleanup()

	pub, err := srv.keys.PublicKey()
	require.NoError(t, err)
	apitest.New().
		Handler(srv.handler).
		Get("/public-key").
		Expect(t).
		Status(http.StatusOK).
		Header("Cache-Control", "no-store").
		Assert(jsonpath.Contains("$.publicKey", "BEGIN PUBLIC KEY")).
		Assert(jsonpath.Equal("$.publicKey", pub)).
		End()

	encrypt := func(v string) string {
		ct, err := keystore.EncryptWithPublicKey(pub, v)
		require.NoError(t, err)
		return ct
	}

	apitest.New().
		Handler(srv.handler).
		Post("/register").
		JSON(fmt.Sprintf(`{"encryptedEmail":%q,"encryptedPassword":%q}`, encrypt("bob@test.com"), encrypt("secret1"))).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.user.email", "bob@test.com")).
		Cookies(apitest.NewCookie(SessionCookieName).Secure(true).HttpOnly(true)).
		End()

	apitest.New().
		Handler(srv.handler).
		Post("/login").
		JSON(fmt.Sprintf(`{"encryptedEmail":%q,"encryptedPassword":%q}`, encrypt("BOB@test.com"), encrypt("secret1"))).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.user.name", "bob")).
		End()

	stale := fmt.Sprintf(`{"encryptedEmail":%q,"encryptedPassword":%q}`, encrypt("bob@test.com"), encrypt("secret1"))
	require.NoError(t, srv.keys.Rotate())
	apitest.New().
		Handler(srv.handler).
		Post("/login").
		JSON(stale).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"Invalid encrypted data"}`).
		End()
}

func TestShortPassword(t *testing.T) {
	ctx := context.Background()
	srv, cleanup := newTestServer(ctx, t, true)
	defer cleanup()

	apitest.New().
		Handler(srv.handler).
		Post("/register").
		JSON(`{"email":"carol@test.com","password":"abc"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"Password must be at least 6 characters"}`).
		CookieNotPresent(SessionCookieName).
		End()

	_, err := srv.db.FindUserByEmail(ctx, "carol@test.com")
	require.ErrorAs(t, err, &userdb.UserNotFound{})
}

func TestBadRequests(t *testing.T) {
	ctx := context.Background()
	srv, cleanup := newTestServer(ctx, t, true)
	defer cleanup()

	for _, path := range []string{"/login", "/register"} {
		for _, body := range []string{
			``,
			`{}`,
			`{"email":"dave@test.com"}`,
			`{"encryptedEmail":"abc"}`,
			`not json`,
			`{"email":1,"password":2}`,
		} {
			apitest.New().
				Handler(srv.handler).
				Post(path).
				Body(body).
				Header("Content-Type", "application/json").
				Expect(t).
				Status(http.StatusBadRequest).
				Assert(jsonpath.Present("$.error")).
				End()
		}
	}

	apitest.New().
		Handler(srv.handler).
		Post("/login").
		JSON(`{"email":"dave@test.com","password":"` + strings.Repeat("x", maxBodySize) + `"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()

	apitest.New().
		Handler(srv.handler).
		Get("/login").
		Expect(t).
		Status(http.StatusMethodNotAllowed).
		End()
}

func TestSessionWithGarbageCookie(t *testing.T) {
	ctx := context.Background()
	srv, cleanup := newTestServer(ctx, t, true)
	defer cleanup()

	for _, path := range []string{"/session", "/me"} {
		apitest.New().
			Handler(srv.handler).
			Get(path).
			Cookie(SessionCookieName, "definitely-not-a-token").
			Expect(t).
			Status(http.StatusOK).
			Body(`{"user":null}`).
			End()
	}
}

func TestUnexpectedFailure(t *testing.T) {
	ctx := context.Background()
	srv, cleanup := newTestServer(ctx, t, true)
	cleanup()

	apitest.New().
		Handler(srv.handler).
		Post("/register").
		JSON(`{"email":"erin@test.com","password":"secret1"}`).
		Expect(t).
		Status(http.StatusInternalServerError).
		Body(`{"error":"An error occurred during registration"}`).
		End()

	apitest.New().
		Handler(srv.handler).
		Post("/login").
		JSON(`{"email":"erin@test.com","password":"secret1"}`).
		Expect(t).
		Status(http.StatusInternalServerError).
		Body(`{"error":"An error occurred during login"}`).
		End()
}
