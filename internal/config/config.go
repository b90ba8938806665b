// Package config loads pizzabox settings from a Lua file.
//
// The file must assign a global table named pizzabox, keys are written in
// snake_case:
//
//	pizzabox = {
//	    bind = "127.0.0.1:8080",
//	    database = "data/pizzabox.db",
//	    session_codec = "jwt",
//	}
//
// Only the base, table and string libraries are available to the script.
// Secrets are never read from the file.
package config

import (
	"context"
	"fmt"

	"github.com/andrebq/pizzabox/internal/logutil"
	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
)

const (
	GlobalName = "pizzabox"
)

type (
	Config struct {
		Bind           string
		Database       string
		Storefront     string
		SessionCodec   string
		InsecureCookie bool
		RSABits        int
		BcryptCost     int
		RootKeyEnvVar  string
	}

	MissingTable struct {
		File string
	}

	InvalidFile struct {
		File  string
		cause error
	}
)

func (m MissingTable) Error() string {
	return fmt.Sprintf("config file %v did not define a global %v table", m.File, GlobalName)
}

func (i InvalidFile) Error() string {
	return fmt.Sprintf("unable to load config file %v: %v", i.File, i.cause)
}

func (i InvalidFile) Unwrap() error { return i.cause }

// Default returns the settings used when neither a file nor flags say
// otherwise. Zero values for RSABits, BcryptCost and RootKeyEnvVar let each
// package pick its own default.
func Default() Config {
	return Config{
		Bind:         "127.0.0.1:8080",
		Database:     "pizzabox.db",
		SessionCodec: "jwt",
	}
}

// Load evaluates file and overlays its pizzabox table on top of base.
// Keys absent from the table keep the value from base.
func Load(ctx context.Context, file string, base Config) (Config, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	if err := openLibs(L); err != nil {
		return base, InvalidFile{File: file, cause: err}
	}
	if err := L.DoFile(file); err != nil {
		return base, InvalidFile{File: file, cause: err}
	}
	return fromState(ctx, L, file, base)
}

// LoadString is Load for an in-memory script, name is only used in errors.
func LoadString(ctx context.Context, name, code string, base Config) (Config, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	if err := openLibs(L); err != nil {
		return base, InvalidFile{File: name, cause: err}
	}
	if err := L.DoString(code); err != nil {
		return base, InvalidFile{File: name, cause: err}
	}
	return fromState(ctx, L, name, base)
}

func fromState(ctx context.Context, L *lua.LState, file string, base Config) (Config, error) {
	tbl, ok := L.GetGlobal(GlobalName).(*lua.LTable)
	if !ok {
		return base, MissingTable{File: file}
	}
	cfg := base
	if err := gluamapper.Map(tbl, &cfg); err != nil {
		return base, InvalidFile{File: file, cause: err}
	}
	logger := logutil.GetOrDefault(ctx)
	logger.Debug().Str("config.file", file).Msg("Configuration loaded")
	return cfg, nil
}

func openLibs(L *lua.LState) error {
	for _, pair := range []struct {
		n string
		f lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(pair.f),
			NRet:    0,
			Protect: true,
		}, lua.LString(pair.n)); err != nil {
			return err
		}
	}
	// base exposes file access helpers that a config file has no use for
	for _, name := range []string{"dofile", "loadfile", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return nil
}
