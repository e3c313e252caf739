package book

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

//go:generate mockgen -source=service.go -destination=mocks/service_mock.go -package=mocks

type ServiceAPI interface {
	ListBooks(ctx context.Context, filter Filter) ([]Book, error)
	GetBook(ctx context.Context, isbn string) (Book, error)
	CreateBook(ctx context.Context, bookEntry Book) (Book, error)
	UpdateBook(ctx context.Context, isbn string, bookEntry Book) (Book, error)
	PatchBook(ctx context.Context, isbn string, patch Patch) (Book, error)
	DeleteBook(ctx context.Context, isbn string) error
}

type Repository interface {
	ListBooks(ctx context.Context, filter Filter) ([]Book, error)
	GetBook(ctx context.Context, isbn string) (Book, error)
	GetBookForUpdate(ctx context.Context, isbn string) (Book, error)
	CreateBook(ctx context.Context, bookEntry Book) (Book, error)
	UpdateBook(ctx context.Context, bookEntry Book) (Book, error)
	DeleteBook(ctx context.Context, isbn string) error
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Repository, driver.Tx, error)
}

type Notifier interface {
	BookCreated(ctx context.Context, isbn, title string) error
}

type Service struct {
	repo                 Repository
	notifier             Notifier
	notificationsTimeout time.Duration
}

/* The notifier may be nil, in which case no notifications are sent. */
func NewService(repo Repository, notifier Notifier, notificationsTimeout time.Duration) *Service {
	return &Service{
		repo:                 repo,
		notifier:             notifier,
		notificationsTimeout: notificationsTimeout,
	}
}

func (s *Service) ListBooks(ctx context.Context, filter Filter) ([]Book, error) {
	books, err := s.repo.ListBooks(ctx, filter)
	if err != nil {
		return nil, wrapRepoErr("ListBooks", err)
	}
	return books, nil
}

func (s *Service) GetBook(ctx context.Context, isbn string) (Book, error) {
	b, err := s.repo.GetBook(ctx, isbn)
	if err != nil {
		return Book{}, wrapRepoErr("GetBook", err)
	}
	return b, nil
}

func (s *Service) CreateBook(ctx context.Context, bookEntry Book) (Book, error) {
	created, err := s.repo.CreateBook(ctx, bookEntry)
	if err != nil {
		return Book{}, wrapRepoErr("CreateBook", err)
	}

	if s.notifier != nil {
		go s.notifyCreated(created)
	}
	return created, nil
}

/* Replaces every non-key field of the book stored under isbn. The isbn never changes, so the one in bookEntry is ignored. */
func (s *Service) UpdateBook(ctx context.Context, isbn string, bookEntry Book) (Book, error) {
	bookEntry.ISBN = isbn

	updated, err := s.repo.UpdateBook(ctx, bookEntry)
	if err != nil {
		return Book{}, wrapRepoErr("UpdateBook", err)
	}
	return updated, nil
}

/* Loads the stored book, applies the patch onto it and saves it back. The read and the write share one transaction so concurrent patches of the same isbn are serialized. */
func (s *Service) PatchBook(ctx context.Context, isbn string, patch Patch) (Book, error) {
	patch.ISBN = nil // the isbn is the key and stays as stored

	txRepo, tx, err := s.repo.BeginTx(ctx, nil)
	if err != nil {
		return Book{}, wrapRepoErr("PatchBook", err)
	}
	defer tx.Rollback() //No-op once committed.

	current, err := txRepo.GetBookForUpdate(ctx, isbn)
	if err != nil {
		return Book{}, wrapRepoErr("PatchBook", err)
	}

	patch.Apply(&current)

	updated, err := txRepo.UpdateBook(ctx, current)
	if err != nil {
		return Book{}, wrapRepoErr("PatchBook", err)
	}

	err = tx.Commit()
	if err != nil {
		return Book{}, wrapRepoErr("PatchBook", fmt.Errorf("committing: %w", err))
	}
	return updated, nil
}

func (s *Service) DeleteBook(ctx context.Context, isbn string) error {
	err := s.repo.DeleteBook(ctx, isbn)
	if err != nil {
		return wrapRepoErr("DeleteBook", err)
	}
	return nil
}

/* Runs detached from the request, so it gets its own deadline. */
func (s *Service) notifyCreated(b Book) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notificationsTimeout)
	defer cancel()

	err := s.notifier.BookCreated(ctx, b.ISBN, b.Title)
	if err != nil {
		slog.Warn("notifying book creation", "isbn", b.ISBN, "error", err)
	}
}

func wrapRepoErr(call string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("timeout on call to %s: %w", call, err)
	}
	return fmt.Errorf("calling %s: %w", call, err)
}
