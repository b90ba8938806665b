package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/andrebq/pizzabox/authn"
	"github.com/andrebq/pizzabox/internal/logutil"
	"github.com/julienschmidt/httprouter"
)

const (
	SessionCookieName = "pizza_session"

	maxBodySize = 64 << 10
)

type (
	credentialsBody struct {
		EncryptedEmail    string `json:"encryptedEmail"`
		EncryptedPassword string `json:"encryptedPassword"`
		Email             string `json:"email"`
		Password          string `json:"password"`
	}

	grantResponse struct {
		Message string        `json:"message"`
		User    authn.Profile `json:"user"`
	}

	sessionResponse struct {
		User *authn.Profile `json:"user"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}

	handler struct {
		svc            *authn.Service
		insecureCookie bool
	}
)

// AsHandler exposes svc over HTTP. insecureCookie drops the Secure flag
// from the session cookie, it should only be used for local development.
func AsHandler(ctx context.Context, svc *authn.Service, insecureCookie bool) http.Handler {
	h := &handler{svc: svc, insecureCookie: insecureCookie}
	router := httprouter.New()
	router.HandlerFunc("GET", "/public-key", h.publicKey)
	router.HandlerFunc("POST", "/register", h.register)
	router.HandlerFunc("POST", "/login", h.login)
	router.HandlerFunc("GET", "/session", h.session)
	router.HandlerFunc("GET", "/me", h.session)
	router.HandlerFunc("POST", "/logout", h.logout)
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		logger := logutil.GetOrDefault(r.Context())
		logger.Error().Interface("panic", v).Msg("Handler panic")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "An error occurred"})
	}
	logger := logutil.GetOrDefault(ctx)
	logger.Debug().Bool("cookie.insecure", insecureCookie).Msg("Auth api configured")
	return router
}

func (h *handler) publicKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.svc.PublicKey(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get public key"})
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, struct {
		PublicKey string `json:"publicKey"`
	}{PublicKey: key})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	env, err := readEnvelope(w, r)
	if err == nil {
		var grant *authn.Grant
		grant, err = h.svc.Register(r.Context(), env)
		if err == nil {
			h.setSession(w, grant.Token)
			writeJSON(w, http.StatusCreated, grantResponse{Message: "Registration successful", User: grant.User})
			return
		}
	}
	writeError(w, err, "An error occurred during registration")
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	env, err := readEnvelope(w, r)
	if err == nil {
		var grant *authn.Grant
		grant, err = h.svc.Login(r.Context(), env)
		if err == nil {
			h.setSession(w, grant.Token)
			writeJSON(w, http.StatusOK, grantResponse{Message: "Login successful", User: grant.User})
			return
		}
	}
	writeError(w, err, "An error occurred during login")
}

func (h *handler) session(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.CurrentSession(r.Context(), sessionToken(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "An error occurred"})
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, sessionResponse{User: profile})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context(), sessionToken(r))
	h.clearSession(w)
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
	}{Message: "Logged out"})
}

func (h *handler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.svc.SessionMaxAge() / time.Second),
		HttpOnly: true,
		Secure:   !h.insecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *handler) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !h.insecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func readEnvelope(w http.ResponseWriter, r *http.Request) (authn.Envelope, error) {
	var body credentialsBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, authn.ValidationError{Reason: "Email and password are required"}
		}
		return nil, authn.ValidationError{Reason: "Invalid request body"}
	}
	return authn.NewEnvelope(body.EncryptedEmail, body.EncryptedPassword, body.Email, body.Password)
}

// writeError maps the authn error taxonomy to a response, unexpected
// failures are answered with fallback and never expose the cause.
func writeError(w http.ResponseWriter, err error, fallback string) {
	status := http.StatusInternalServerError
	msg := fallback
	switch {
	case errors.As(err, &authn.ValidationError{}):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, authn.DecryptionError{}):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.As(err, &authn.ConflictError{}):
		status, msg = http.StatusConflict, err.Error()
	case errors.As(err, &authn.InvalidCredentialsError{}):
		status, msg = http.StatusUnauthorized, err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
