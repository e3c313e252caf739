package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
)

// CLI holds the server configuration. Every flag can also be set through its environment variable.
type CLI struct {
	Port           int           `help:"Port the HTTP server listens on" default:"8080" env:"PORT"`
	RequestTimeout time.Duration `help:"Deadline for handling a single request" default:"5s" env:"HTTP_REQUEST_TIMEOUT"`
	LogLevel       string        `help:"Minimum log level" enum:"debug,info,warn,error" default:"info" env:"LOG_LEVEL"`

	Store          string `help:"Backing store for books" enum:"postgres,memory" default:"postgres" env:"BOOKS_STORE"`
	DatabaseURL    string `help:"Postgres connection string" env:"DATABASE_URL"`
	DatabaseDriver string `help:"database/sql driver: postgres (lib/pq) or pgx" enum:"postgres,pgx" default:"postgres" env:"DATABASE_DRIVER"`
	MigrationsPath string `help:"Directory holding the SQL migrations" default:"cmd/api/database/migrations" env:"DATABASE_MIGRATIONS_PATH"`

	NtfyEnabled bool          `help:"Publish a notification when a book is created" env:"NOTIFICATIONS_ENABLED"`
	NtfyURL     string        `help:"Base URL of the ntfy topic" default:"https://ntfy.sh/books" env:"NOTIFICATIONS_URL"`
	NtfyTimeout time.Duration `help:"Deadline for delivering a notification" default:"2s" env:"NOTIFICATIONS_TIMEOUT"`
}

func parseCLI(args []string, options ...kong.Option) (*CLI, error) {
	cli := &CLI{}
	options = append([]kong.Option{
		kong.Name("books-api"),
		kong.Description("CRUD REST API for books identified by ISBN."),
		kong.UsageOnError(),
	}, options...)

	parser, err := kong.New(cli, options...)
	if err != nil {
		return nil, err
	}
	_, err = parser.Parse(args)
	if err != nil {
		return nil, err
	}
	return cli, nil
}

func initLogging(levelName string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = slog.LevelInfo
	}

	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
