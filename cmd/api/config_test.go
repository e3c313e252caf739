package main

import (
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/matryer/is"
)

func TestParseCLI(t *testing.T) {
	exit := kong.Exit(func(code int) {
		t.Fatalf("unexpected Kong exit %d", code)
	})

	t.Run("defaults", func(t *testing.T) {
		is := is.New(t)

		cli, err := parseCLI(nil, exit)
		is.NoErr(err)
		is.Equal(cli.Port, 8080)
		is.Equal(cli.Store, "postgres")
		is.Equal(cli.DatabaseDriver, "postgres")
		is.Equal(cli.RequestTimeout, 5*time.Second)
		is.True(!cli.NtfyEnabled)
	})

	t.Run("environment variables", func(t *testing.T) {
		is := is.New(t)
		t.Setenv("BOOKS_STORE", "memory")
		t.Setenv("HTTP_REQUEST_TIMEOUT", "250ms")
		t.Setenv("DATABASE_DRIVER", "pgx")

		cli, err := parseCLI(nil, exit)
		is.NoErr(err)
		is.Equal(cli.Store, "memory")
		is.Equal(cli.RequestTimeout, 250*time.Millisecond)
		is.Equal(cli.DatabaseDriver, "pgx")
	})

	t.Run("flags win over the environment", func(t *testing.T) {
		is := is.New(t)
		t.Setenv("PORT", "9000")

		cli, err := parseCLI([]string{"--port=9100", "--ntfy-enabled"}, exit)
		is.NoErr(err)
		is.Equal(cli.Port, 9100)
		is.True(cli.NtfyEnabled)
	})

	t.Run("rejects an unknown store", func(t *testing.T) {
		is := is.New(t)

		_, err := parseCLI([]string{"--store=redis"}, exit)
		is.True(err != nil)
	})
}

func TestOpenRepositoryMemory(t *testing.T) {
	is := is.New(t)

	repo, closeRepo, err := openRepository(t.Context(), &CLI{Store: "memory"})
	is.NoErr(err)
	defer closeRepo()
	is.True(repo != nil)
}
