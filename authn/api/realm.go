package api

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/andrebq/pizzabox/authn"
	"github.com/andrebq/pizzabox/internal/logutil"
)

const (
	UserIDHeader    = "X-Pizzabox-User-Id"
	UserEmailHeader = "X-Pizzabox-User-Email"
)

var (
	bearerTokenRE = regexp.MustCompile(`^Bearer ([^\s]+)$`)
)

// Identify resolves the session of each request and passes the account to
// next through UserIDHeader and UserEmailHeader. Values sent by the client
// for those headers are always dropped, anonymous requests reach next
// without them.
//
// The token is taken from the session cookie or from an
// "Authorization: Bearer" header.
func Identify(svc *authn.Service, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(UserIDHeader)
		r.Header.Del(UserEmailHeader)
		token := sessionToken(r)
		if token == "" {
			if groups := bearerTokenRE.FindStringSubmatch(r.Header.Get("Authorization")); len(groups) > 0 {
				token = groups[1]
			}
		}
		if token != "" {
			profile, err := svc.CurrentSession(r.Context(), token)
			if err != nil {
				logger := logutil.GetOrDefault(r.Context())
				logger.Error().Err(err).Msg("Unable to resolve session for storefront request")
			} else if profile != nil {
				r.Header.Set(UserIDHeader, strconv.FormatInt(profile.ID, 10))
				r.Header.Set(UserEmailHeader, profile.Email)
			}
		}
		next.ServeHTTP(w, r)
	})
}
