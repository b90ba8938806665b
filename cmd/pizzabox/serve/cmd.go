package serve

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/andrebq/pizzabox/authn"
	"github.com/andrebq/pizzabox/authn/api"
	"github.com/andrebq/pizzabox/internal/cmdflags"
	"github.com/andrebq/pizzabox/internal/config"
	"github.com/andrebq/pizzabox/internal/frontproxy"
	"github.com/andrebq/pizzabox/internal/httpserver"
	"github.com/andrebq/pizzabox/internal/logutil"
	"github.com/andrebq/pizzabox/internal/metrics"
	"github.com/andrebq/pizzabox/keystore"
	"github.com/andrebq/pizzabox/passwd"
	"github.com/andrebq/pizzabox/session"
	"github.com/andrebq/pizzabox/userdb"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	defaults := config.Default()
	var configFile string
	database := defaults.Database
	var rootKeyEnvVar string
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the auth api in front of the storefront",
		Flags: []cli.Flag{
			cmdflags.Config(&configFile),
			cmdflags.Database(&database),
			cmdflags.RootKeyEnvVar(&rootKeyEnvVar),
			&cli.StringFlag{
				Name:  "bind",
				Usage: "Address to bind for incoming requests",
				Value: defaults.Bind,
			},
			&cli.StringFlag{
				Name:  "storefront",
				Usage: "Base url of the storefront, requests outside /api/auth are proxied to it",
			},
			&cli.StringFlag{
				Name:  "session-codec",
				Usage: "Session token format: jwt, sealed or legacy (unsigned, local testing only)",
				Value: defaults.SessionCodec,
			},
			&cli.BoolFlag{
				Name:  "insecure-cookie",
				Usage: "Drop the Secure attribute from the session cookie, for plain http during development",
			},
			&cli.IntFlag{
				Name:  "rsa-bits",
				Usage: "Size of the RSA key used to encrypt credentials in transit",
				Value: keystore.DefaultBits,
			},
			&cli.IntFlag{
				Name:  "bcrypt-cost",
				Usage: "bcrypt cost factor for new password hashes",
				Value: passwd.DefaultCost,
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg := defaults
			if configFile != "" {
				var err error
				cfg, err = config.Load(ctx.Context, configFile, cfg)
				if err != nil {
					return err
				}
			}
			if ctx.IsSet("database") || cfg.Database == "" {
				cfg.Database = database
			}
			if ctx.IsSet("root-key-envvar-name") || cfg.RootKeyEnvVar == "" {
				cfg.RootKeyEnvVar = rootKeyEnvVar
			}
			if ctx.IsSet("bind") {
				cfg.Bind = ctx.String("bind")
			}
			if ctx.IsSet("storefront") {
				cfg.Storefront = ctx.String("storefront")
			}
			if ctx.IsSet("session-codec") {
				cfg.SessionCodec = ctx.String("session-codec")
			}
			if ctx.IsSet("insecure-cookie") {
				cfg.InsecureCookie = ctx.Bool("insecure-cookie")
			}
			if ctx.IsSet("rsa-bits") || cfg.RSABits == 0 {
				cfg.RSABits = ctx.Int("rsa-bits")
			}
			if ctx.IsSet("bcrypt-cost") || cfg.BcryptCost == 0 {
				cfg.BcryptCost = ctx.Int("bcrypt-cost")
			}
			return run(ctx.Context, cfg)
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	log := logutil.GetOrDefault(ctx)

	var storefront *url.URL
	if cfg.Storefront != "" {
		var err error
		storefront, err = url.Parse(cfg.Storefront)
		if err != nil {
			return err
		}
	}

	root, err := rootKey(ctx, cfg.RootKeyEnvVar)
	if err != nil {
		return err
	}
	codec, err := session.NewCodec(cfg.SessionCodec, root)
	root.Zero()
	if err != nil {
		return err
	}
	if codec.Name() == "legacy" {
		log.Warn().Msg("Legacy session tokens are not signed, anyone can forge them. Never use this codec in production")
	}
	revoked, err := session.NewRevocationList(session.MaxAge)
	if err != nil {
		return err
	}
	defer revoked.Close()

	users, err := userdb.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer users.Close()

	svc := authn.New(
		keystore.New(ctx, cfg.RSABits),
		users,
		passwd.New(cfg.BcryptCost),
		session.NewService(codec, revoked))
	if _, err := svc.PublicKey(ctx); err != nil {
		return err
	}

	identify := func(next http.Handler) http.Handler { return api.Identify(svc, next) }
	handler, err := frontproxy.AsHandler(ctx, api.AsHandler(ctx, svc, cfg.InsecureCookie), metrics.Handler(), storefront, identify)
	if err != nil {
		return err
	}
	log.Info().
		Str("database", userdb.Redact(cfg.Database)).
		Str("session.codec", codec.Name()).
		Bool("cookie.insecure", cfg.InsecureCookie).
		Msg("Auth service ready")
	return httpserver.Serve(ctx, cfg.Bind, logutil.Requests(ctx, handler))
}

func rootKey(ctx context.Context, envvar string) (*session.Key, error) {
	keyfn, err := session.KeyFnFromEnv(envvar, nil, nil)
	if errors.As(err, &session.MissingRootKey{}) {
		logger := logutil.GetOrDefault(ctx)
		logger.Warn().Str("envvar", envvar).Msg("No session root key configured, using an ephemeral key. Sessions will not survive a restart")
		return session.RandomKey()
	} else if err != nil {
		return nil, err
	}
	return keyfn(ctx)
}
