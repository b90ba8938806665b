package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/andrebq/pizzabox/internal/logutil"
	"golang.org/x/sync/errgroup"
)

const (
	ShutdownTimeout = 30 * time.Second
)

// Serve listens on bind and serves handler until ctx is cancelled, then
// drains in-flight requests for up to ShutdownTimeout.
func Serve(ctx context.Context, bind string, handler http.Handler) error {
	l, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	return ServeListener(ctx, l, handler)
}

// ServeListener is Serve over an existing listener, which is closed on
// return.
func ServeListener(ctx context.Context, l net.Listener, handler http.Handler) error {
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", l.Addr().String()).Logger()
	server := &http.Server{
		Handler:           handler,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    64 << 10,
		BaseContext: func(net.Listener) context.Context {
			return logutil.WithLogger(context.Background(), log)
		},
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info().Msg("Starting HTTP server")
		err := server.Serve(l)
		if errors.Is(err, http.ErrServerClosed) {
			log.Info().Msg("Server closed")
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info().Msg("Initiating shutdown process")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		log.Info().Err(err).Msg("Shutdown completed")
		return nil
	})
	return group.Wait()
}
