package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// migrate прогоняет migrations/*.sql по порядку имён; применённые файлы
// запоминаются в schema_migrations и второй раз не исполняются.

func appliedSet(ctx context.Context, conn *pgx.Conn) (map[string]bool, error) {
	_, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name text PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return nil, errors.Wrap(err, "ensure schema_migrations")
	}

	rows, err := conn.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, errors.Wrap(err, "select applied")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan name")
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func applyFile(ctx context.Context, conn *pgx.Conn, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read migration")
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err = tx.Exec(ctx, string(body)); err != nil {
		return errors.Wrap(err, "exec migration")
	}
	name := filepath.Base(path)
	if _, err = tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return errors.Wrap(err, "record migration")
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

func main() {
	viper.SetConfigName(".migrate")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetDefault("dir", "migrations")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	dsn := viper.GetString("dsn")
	if env := os.Getenv("DATABASE_DSN"); env != "" {
		dsn = env
	}
	if dsn == "" {
		panic("has no dsn in config and DATABASE_DSN is empty")
	}

	files, err := filepath.Glob(filepath.Join(viper.GetString("dir"), "*.sql"))
	if err != nil {
		panic(fmt.Errorf("get file glob: %w", err))
	}
	sort.Strings(files)

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		panic(fmt.Errorf("connect: %w", err))
	}
	defer func() {
		_ = conn.Close(ctx)
	}()

	applied, err := appliedSet(ctx, conn)
	if err != nil {
		panic(err)
	}

	for _, file := range files {
		if applied[filepath.Base(file)] {
			continue
		}
		if err := applyFile(ctx, conn, file); err != nil {
			panic(fmt.Errorf("apply %s: %w", file, err))
		}
		fmt.Printf("%s file complete\n", file)
	}
	fmt.Println("done")
}
