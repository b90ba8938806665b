package users

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/andrebq/pizzabox/authn"
	"github.com/andrebq/pizzabox/internal/cmdflags"
	"github.com/andrebq/pizzabox/keystore"
	"github.com/andrebq/pizzabox/passwd"
	"github.com/andrebq/pizzabox/session"
	"github.com/andrebq/pizzabox/userdb"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	database := "pizzabox.db"
	var users *userdb.DB
	return &cli.Command{
		Name:  "users",
		Usage: "Manage storefront accounts",
		Flags: []cli.Flag{
			cmdflags.Database(&database),
		},
		Before: func(ctx *cli.Context) error {
			var err error
			users, err = userdb.Open(ctx.Context, database)
			return err
		},
		After: func(ctx *cli.Context) error {
			if users == nil {
				return nil
			}
			return users.Close()
		},
		Subcommands: []*cli.Command{
			registerCmd(&users),
			deleteCmd(&users),
		},
	}
}

func registerCmd(users **userdb.DB) *cli.Command {
	var email string
	var cost int
	return &cli.Command{
		Name:  "register",
		Usage: "Register a new account (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "email",
				Aliases:     []string{"e"},
				Usage:       "Email of the account",
				Destination: &email,
				Required:    true,
			},
			&cli.IntFlag{
				Name:        "bcrypt-cost",
				Value:       passwd.DefaultCost,
				Destination: &cost,
			},
		},
		Action: func(ctx *cli.Context) error {
			sc := bufio.NewScanner(ctx.App.Reader)
			if !sc.Scan() {
				if sc.Err() != nil {
					return sc.Err()
				}
				return errors.New("missing password from stdin")
			}
			password := strings.TrimSpace(sc.Text())

			// the token is discarded, any key will do
			root, err := session.RandomKey()
			if err != nil {
				return err
			}
			codec, err := session.NewCodec("jwt", root)
			if err != nil {
				return err
			}
			svc := authn.New(keystore.New(ctx.Context, 0), *users, passwd.New(cost), session.NewService(codec, nil))
			env, err := authn.NewEnvelope("", "", email, password)
			if err != nil {
				return err
			}
			grant, err := svc.Register(ctx.Context, env)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(ctx.App.Writer, "%v\t%v\n", grant.User.ID, grant.User.Email)
			return err
		},
	}
}

func deleteCmd(users **userdb.DB) *cli.Command {
	var email string
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete an account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "email",
				Aliases:     []string{"e"},
				Destination: &email,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			u, err := (*users).FindUserByEmail(ctx.Context, email)
			if err != nil {
				return err
			}
			return (*users).DeleteUser(ctx.Context, u.ID)
		},
	}
}
