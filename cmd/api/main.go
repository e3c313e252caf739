package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/isbn-books-service/cmd/api/book"
	"github.com/isbn-books-service/cmd/api/database"
	bookhttp "github.com/isbn-books-service/cmd/api/http"
	"github.com/isbn-books-service/cmd/api/inmemory"
	"github.com/isbn-books-service/cmd/api/notifications"
)

func main() {
	cli, err := parseCLI(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	initLogging(cli.LogLevel)

	err = run(cli)
	if err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cli)
	if err != nil {
		return err
	}
	defer closeRepo()

	var notifier book.Notifier
	if cli.NtfyEnabled {
		notifier = notifications.NewNtfy(true, cli.NtfyURL, &http.Client{})
	}

	bookService := book.NewService(repo, notifier, cli.NtfyTimeout)
	bookHandler := bookhttp.NewBookHandler(bookService)

	//create and init http server:
	server := bookhttp.NewServer(bookhttp.ServerConfig{Port: cli.Port, RequestTimeout: cli.RequestTimeout}, bookHandler)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", server.Addr, "store", cli.Store)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("unexpected http server error: %w", err)
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	slog.Info("graceful shutdown complete")
	return nil
}

/* Opens the configured store. The returned close func releases it and is always safe to call. */
func openRepository(ctx context.Context, cli *CLI) (book.Repository, func(), error) {
	if cli.Store == "memory" {
		store, err := inmemory.NewInMemoryStore()
		if err != nil {
			return nil, nil, fmt.Errorf("creating in-memory store: %w", err)
		}
		return store, func() {}, nil
	}

	//connect to db:
	dbObject, err := database.ConnectDb(ctx, cli.DatabaseDriver, cli.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting with db: %w", err)
	}
	closeDB := func() {
		if err := dbObject.Close(); err != nil {
			slog.Warn("closing db", "error", err)
		}
	}

	//apply migrations:
	store := database.NewStore(dbObject)
	err = database.MigrationUp(store, cli.MigrationsPath)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		closeDB()
		return nil, nil, fmt.Errorf("migrating: %w", err)
	}
	return store, closeDB, nil
}
