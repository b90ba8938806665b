package cmdflags

import (
	"github.com/andrebq/pizzabox/session"
	"github.com/urfave/cli/v2"
)

func Database(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "database",
		Aliases:     []string{"db"},
		Usage:       "Path to a sqlite database or a postgres:// url holding the user accounts",
		Destination: out,
		Value:       *out,
	}
}

func Config(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Lua file defining a pizzabox table, flags set on the command line take precedence",
		Destination: out,
		Value:       *out,
	}
}

func RootKeyEnvVar(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = session.RootKeyEnvVar
	}
	return &cli.StringFlag{
		Name:        "root-key-envvar-name",
		Usage:       "Name of the environment variable that holds the session root key. The key itself should not be passed as an argument",
		Value:       *out,
		Destination: out,
	}
}
