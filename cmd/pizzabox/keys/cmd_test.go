package keys

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrebq/pizzabox/keystore"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func run(t *testing.T, stdin string, args ...string) string {
	var out bytes.Buffer
	app := &cli.App{
		Name:     "pizzabox",
		Reader:   strings.NewReader(stdin),
		Writer:   &out,
		Commands: []*cli.Command{Cmd()},
	}
	require.NoError(t, app.Run(append([]string{"pizzabox", "keys"}, args...)))
	return out.String()
}

func TestGen(t *testing.T) {
	first := strings.TrimSpace(run(t, "", "gen"))
	raw, err := base64.StdEncoding.DecodeString(first)
	require.NoError(t, err)
	require.Len(t, raw, 32)
	require.NotEqual(t, first, strings.TrimSpace(run(t, "", "gen")))
}

func TestEncrypt(t *testing.T) {
	store := keystore.New(testContext(t), 1024)
	pub, err := store.PublicKey()
	require.NoError(t, err)
	file := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(file, []byte(pub), 0600))

	ct := strings.TrimSpace(run(t, "alice@test.com\n", "encrypt", "--public-key", file))
	plain, err := store.Decrypt(ct)
	require.NoError(t, err)
	require.Equal(t, "alice@test.com", plain)
}

// testContext stands in for t.Context, which needs go1.24.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
