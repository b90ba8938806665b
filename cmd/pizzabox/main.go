package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrebq/pizzabox/cmd/pizzabox/keys"
	"github.com/andrebq/pizzabox/cmd/pizzabox/serve"
	"github.com/andrebq/pizzabox/cmd/pizzabox/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	var verbose bool
	app := &cli.App{
		Name:  "pizzabox",
		Usage: "Accounts and sessions for the pizza storefront",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Usage:       "Enable debug logs",
				Destination: &verbose,
			},
		},
		Before: func(ctx *cli.Context) error {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			serve.Cmd(),
			users.Cmd(),
			keys.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
