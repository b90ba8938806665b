package userdb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

type (
	gooseLogger struct {
		log zerolog.Logger
	}
)

var (
	//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
	migrations embed.FS

	// goose keeps its configuration in package level variables
	gooseMu sync.Mutex
)

func migrate(ctx context.Context, db *sql.DB, d dialect, log zerolog.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: log})
	if err := goose.SetDialect(d.goose); err != nil {
		return fmt.Errorf("unable to configure migrations for %v, cause %w", d.goose, err)
	}
	if err := goose.UpContext(ctx, db, d.migrations); err != nil {
		return fmt.Errorf("unable to apply migrations from %v, cause %w", d.migrations, err)
	}
	return nil
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.Fatal().Msgf(format, v...)
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.Debug().Msgf(format, v...)
}
