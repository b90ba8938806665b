package testutil

import (
	"context"
	"os"
	"path/filepath"

	"github.com/andrebq/pizzabox/userdb"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}
)

// AcquireUserDB opens a fresh sqlite user database inside a temporary
// directory, the returned function closes and removes it.
func AcquireUserDB(ctx context.Context, t TestLog, name string) (*userdb.DB, func()) {
	dir, err := os.MkdirTemp("", "pizzabox-tests")
	if err != nil {
		t.Fatal(err)
	}
	db, err := userdb.Open(ctx, filepath.Join(dir, name+".db"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	return db, func() {
		err := db.Close()
		if err != nil {
			t.Log("unable to close user database", err)
		}
		err = os.RemoveAll(dir)
		if err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}
