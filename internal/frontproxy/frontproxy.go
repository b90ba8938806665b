package frontproxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/andrebq/pizzabox/internal/logutil"
	"github.com/julienschmidt/httprouter"
)

const (
	AuthPrefix  = "/api/auth"
	MetricsPath = "/metrics"
)

type (
	InvalidStorefront struct {
		URL string
	}
)

var (
	methods = []string{
		"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD", "PATCH",
	}
)

func (i InvalidStorefront) Error() string {
	return fmt.Sprintf("storefront url %q must be absolute (scheme://host)", i.URL)
}

// AsHandler mounts auth under AuthPrefix and metrics at MetricsPath.
// Everything else goes to storefront, or is answered with 404 when
// storefront is nil. metrics may be nil, identify (also optional) wraps
// the storefront proxy.
func AsHandler(ctx context.Context, auth http.Handler, metrics http.Handler, storefront *url.URL, identify func(http.Handler) http.Handler) (http.Handler, error) {
	router := httprouter.New()

	authHandler := http.StripPrefix(AuthPrefix, auth)
	for _, m := range methods {
		router.Handler(m, AuthPrefix+"/*path", authHandler)
	}
	if metrics != nil {
		router.Handler("GET", MetricsPath, metrics)
	}

	if storefront != nil {
		if storefront.Scheme == "" || storefront.Host == "" {
			return nil, InvalidStorefront{URL: storefront.String()}
		}
		proxy := httputil.NewSingleHostReverseProxy(storefront)
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger := logutil.GetOrDefault(r.Context())
			logger.Error().Err(err).Str("storefront", storefront.Host).Msg("Storefront unavailable")
			w.WriteHeader(http.StatusBadGateway)
		}
		var upstream http.Handler = proxy
		if identify != nil {
			upstream = identify(proxy)
		}
		// anything outside the auth api belongs to the storefront
		router.NotFound = upstream
		router.HandleMethodNotAllowed = false
		logger := logutil.GetOrDefault(ctx)
		logger.Info().Str("storefront", storefront.String()).Msg("Proxying storefront")
	}

	return router, nil
}
