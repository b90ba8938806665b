package keys

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/andrebq/pizzabox/keystore"
	"github.com/andrebq/pizzabox/session"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "Key material helpers",
		Subcommands: []*cli.Command{
			genCmd(),
			encryptCmd(),
		},
	}
}

func genCmd() *cli.Command {
	return &cli.Command{
		Name:  "gen",
		Usage: "Print a new session root key, export it in the root key environment variable",
		Action: func(ctx *cli.Context) error {
			k, err := session.RandomKey()
			if err != nil {
				return err
			}
			defer k.Zero()
			_, err = fmt.Fprintln(ctx.App.Writer, k.String())
			return err
		},
	}
}

func encryptCmd() *cli.Command {
	var publicKeyFile string
	return &cli.Command{
		Name:  "encrypt",
		Usage: "Encrypt stdin (first line) with a public key fetched from /api/auth/public-key, the output can be sent as encryptedEmail or encryptedPassword",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "public-key",
				Aliases:     []string{"k"},
				Usage:       "PEM file with the server public key",
				Destination: &publicKeyFile,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			pub, err := os.ReadFile(publicKeyFile)
			if err != nil {
				return err
			}
			sc := bufio.NewScanner(ctx.App.Reader)
			if !sc.Scan() {
				if sc.Err() != nil {
					return sc.Err()
				}
				return errors.New("missing value from stdin")
			}
			ct, err := keystore.EncryptWithPublicKey(string(pub), strings.TrimSpace(sc.Text()))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(ctx.App.Writer, ct)
			return err
		},
	}
}
