package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/isbn-books-service/cmd/api/book"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

const bookColumns = `isbn, amazon_url, author, language, pages, publisher, title, year`

var dialect = goqu.Dialect("postgres")

type DBTX interface {
	sqlx.ExtContext
}

type Store struct {
	db  *sqlx.DB
	exc DBTX
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:  db,
		exc: db,
	}
}

/* Returns a store bound to a new transaction. Callers must Commit or Rollback the returned driver.Tx. */
func (store *Store) BeginTx(ctx context.Context, opts *sql.TxOptions) (book.Repository, driver.Tx, error) {
	tx, err := store.db.BeginTxx(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}

	txRepo := NewStore(store.db)
	txRepo.exc = tx
	return txRepo, tx, nil
}

/* Connects to the database trought a connection string and returns a valid DB object. driverName is "postgres" (lib/pq) or "pgx". */
func ConnectDb(ctx context.Context, driverName, connStr string) (*sqlx.DB, error) {
	sqlDB, err := sqlx.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("connecting to db, openning: %w", err)
	}

	err = sqlDB.PingContext(ctx)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to db, pingging: %w", err)
	}

	slog.Info("successfully connected to db", "driver", driverName)
	return sqlDB, nil
}

func MigrationUp(store *Store, path string) error {
	driver, err := postgres.WithInstance(store.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrating up: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", path),
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("migrating up: %w", err)
	}

	err = m.Up()
	if err != nil {
		return fmt.Errorf("migrating up: %w", err)
	}
	return nil
}

type bookRow struct {
	ISBN      string         `db:"isbn"`
	AmazonURL sql.NullString `db:"amazon_url"`
	Author    sql.NullString `db:"author"`
	Language  sql.NullString `db:"language"`
	Pages     sql.NullInt64  `db:"pages"`
	Publisher sql.NullString `db:"publisher"`
	Title     sql.NullString `db:"title"`
	Year      sql.NullInt64  `db:"year"`
}

func (r bookRow) toBook() book.Book {
	return book.Book{
		ISBN:      r.ISBN,
		AmazonURL: r.AmazonURL.String,
		Author:    r.Author.String,
		Language:  r.Language.String,
		Pages:     int(r.Pages.Int64),
		Publisher: r.Publisher.String,
		Title:     r.Title.String,
		Year:      int(r.Year.Int64),
	}
}

/* Stores the book into the database and returns the stored row. */
func (store *Store) CreateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	sqlStatement := `
	INSERT INTO books (` + bookColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + bookColumns
	var row bookRow
	err := sqlx.GetContext(ctx, store.exc, &row, sqlStatement, bookEntry.ISBN, bookEntry.AmazonURL, bookEntry.Author,
		bookEntry.Language, bookEntry.Pages, bookEntry.Publisher, bookEntry.Title, bookEntry.Year)
	if err != nil {
		if isUniqueViolation(err) {
			return book.Book{}, fmt.Errorf("storing book on db: %w", book.ErrResponseBookConflict)
		}
		return book.Book{}, fmt.Errorf("storing book on db: %w", err)
	}

	return row.toBook(), nil
}

/* Searches a book in database based on isbn. */
func (store *Store) GetBook(ctx context.Context, isbn string) (book.Book, error) {
	sqlStatement := `SELECT ` + bookColumns + `
	FROM books
	WHERE isbn = $1;`
	return store.getBook(ctx, "searching by isbn", sqlStatement, isbn)
}

/* Like GetBook, but locks the row until the surrounding transaction ends. */
func (store *Store) GetBookForUpdate(ctx context.Context, isbn string) (book.Book, error) {
	sqlStatement := `SELECT ` + bookColumns + `
	FROM books
	WHERE isbn = $1
	FOR UPDATE;`
	return store.getBook(ctx, "searching by isbn for update", sqlStatement, isbn)
}

func (store *Store) getBook(ctx context.Context, action, sqlStatement, isbn string) (book.Book, error) {
	var row bookRow
	err := sqlx.GetContext(ctx, store.exc, &row, sqlStatement, isbn)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return book.Book{}, fmt.Errorf("%s: %w", action, book.ErrResponseBookNotFound)
		default:
			return book.Book{}, fmt.Errorf("%s: %w", action, err)
		}
	}

	return row.toBook(), nil
}

/* Returns the books matching every column set on the filter, oldest first. */
func (store *Store) ListBooks(ctx context.Context, filter book.Filter) ([]book.Book, error) {
	sqlStatement, args, err := listQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}

	rows := []bookRow{}
	err = sqlx.SelectContext(ctx, store.exc, &rows, sqlStatement, args...)
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}

	bookslist := make([]book.Book, 0, len(rows))
	for _, row := range rows {
		bookslist = append(bookslist, row.toBook())
	}
	return bookslist, nil
}

func listQuery(filter book.Filter) (string, []any, error) {
	cols := make([]any, 0, len(book.FieldNames))
	for _, name := range book.FieldNames {
		cols = append(cols, name)
	}

	ds := dialect.From("books").
		Select(cols...).
		Order(goqu.C("created_at").Asc(), goqu.C("isbn").Asc()).
		Prepared(true)

	where := filter.Columns()
	if len(where) > 0 {
		ds = ds.Where(goqu.Ex(where))
	}
	return ds.ToSQL()
}

/* Replaces every non-key column of the row matching the book's isbn. */
func (store *Store) UpdateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	sqlStatement := `
	UPDATE books
	SET amazon_url = $2, author = $3, language = $4, pages = $5, publisher = $6, title = $7, year = $8
	WHERE isbn = $1
	RETURNING ` + bookColumns
	var row bookRow
	err := sqlx.GetContext(ctx, store.exc, &row, sqlStatement, bookEntry.ISBN, bookEntry.AmazonURL, bookEntry.Author,
		bookEntry.Language, bookEntry.Pages, bookEntry.Publisher, bookEntry.Title, bookEntry.Year)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return book.Book{}, fmt.Errorf("updating on db: %w", book.ErrResponseBookNotFound)
		default:
			return book.Book{}, fmt.Errorf("updating on db: %w", err)
		}
	}

	return row.toBook(), nil
}

func (store *Store) DeleteBook(ctx context.Context, isbn string) error {
	sqlStatement := `
	DELETE FROM books
	WHERE isbn = $1;`
	result, err := store.exc.ExecContext(ctx, sqlStatement, isbn)
	if err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("deleting book from db: %w", book.ErrResponseBookNotFound)
	}
	return nil
}

/* Both supported drivers report constraint violations with the SQLSTATE code, each in its own error type. */
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
