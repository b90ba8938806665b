package frontproxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"

	"github.com/steinfletcher/apitest"
)

func TestRouter(t *testing.T) {
	storefrontCount := map[string]int{}
	storefront := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Tagged") != "yes" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		storefrontCount[r.URL.Path]++
		w.WriteHeader(http.StatusOK)
	}))
	defer storefront.Close()

	authCount := map[string]int{}
	auth := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCount[r.Method+" "+r.URL.Path]++
		w.WriteHeader(http.StatusOK)
	})

	var metricsCount int
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metricsCount++
		w.WriteHeader(http.StatusOK)
	})

	tagged := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Set("X-Tagged", "yes")
			next.ServeHTTP(w, r)
		})
	}

	storefrontURL, _ := url.Parse(storefront.URL)
	handler, err := AsHandler(context.Background(), auth, metrics, storefrontURL, tagged)
	if err != nil {
		t.Fatal(err)
	}

	apitest.Handler(handler).Get("/api/auth/public-key").Expect(t).Status(http.StatusOK).End()
	apitest.Handler(handler).Post("/api/auth/login").Expect(t).Status(http.StatusOK).End()
	apitest.Handler(handler).Post("/api/auth/logout").Expect(t).Status(http.StatusOK).End()
	apitest.Handler(handler).Get("/metrics").Expect(t).Status(http.StatusOK).End()
	apitest.Handler(handler).Get("/index.html").Expect(t).Status(http.StatusOK).End()
	apitest.Handler(handler).Get("/menu/pizzas").Expect(t).Status(http.StatusOK).End()
	apitest.Handler(handler).Post("/cart").Expect(t).Status(http.StatusOK).End()

	if !reflect.DeepEqual(authCount, map[string]int{
		"GET /public-key": 1,
		"POST /login":     1,
		"POST /logout":    1,
	}) {
		t.Fatalf("Invalid number of calls to auth handler: %v", authCount)
	}
	if metricsCount != 1 {
		t.Fatal("Invalid metrics count: ", metricsCount)
	}
	if !reflect.DeepEqual(storefrontCount, map[string]int{
		"/index.html":  1,
		"/menu/pizzas": 1,
		"/cart":        1,
	}) {
		t.Fatalf("Invalid number of calls to storefront: %v", storefrontCount)
	}
}

func TestWithoutStorefront(t *testing.T) {
	auth := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler, err := AsHandler(context.Background(), auth, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	apitest.Handler(handler).Get("/api/auth/session").Expect(t).Status(http.StatusOK).End()
	apitest.Handler(handler).Get("/index.html").Expect(t).Status(http.StatusNotFound).End()
	apitest.Handler(handler).Get("/metrics").Expect(t).Status(http.StatusNotFound).End()
}

func TestStorefrontDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	storefrontURL, _ := url.Parse(down.URL)
	down.Close()

	handler, err := AsHandler(context.Background(), http.NotFoundHandler(), nil, storefrontURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	apitest.Handler(handler).Get("/index.html").Expect(t).Status(http.StatusBadGateway).End()
}

func TestRelativeStorefront(t *testing.T) {
	relative, _ := url.Parse("storefront/")
	_, err := AsHandler(context.Background(), http.NotFoundHandler(), nil, relative, nil)
	if !errors.Is(err, InvalidStorefront{URL: relative.String()}) {
		t.Fatalf("Unexpected error for relative storefront url: %v", err)
	}
}
