package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate runs goose against the pool. command is "up", "down" or "status".
func Migrate(ctx context.Context, db *DB, logger *zap.Logger, command string) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(&gooseLogger{sugar: logger.Sugar()})

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	switch command {
	case "up":
		return goose.UpContext(ctx, sqlDB, "migrations")
	case "down":
		return goose.DownContext(ctx, sqlDB, "migrations")
	case "status":
		return goose.StatusContext(ctx, sqlDB, "migrations")
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
}

// gooseLogger implements goose.Logger on top of zap.
type gooseLogger struct {
	sugar *zap.SugaredLogger
}

func (l *gooseLogger) Printf(format string, v ...interface{}) { l.sugar.Infof(format, v...) }
func (l *gooseLogger) Fatalf(format string, v ...interface{}) { l.sugar.Fatalf(format, v...) }
