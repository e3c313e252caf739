package inmemory

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-memdb"
	"github.com/isbn-books-service/cmd/api/book"
)

const booksTable = "books"

type InMemoryStore struct {
	db  *memdb.MemDB
	exc *memdb.Txn // set only on stores returned by BeginTx
}

func NewInMemoryStore() (*InMemoryStore, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			booksTable: {
				Name: booksTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ISBN"},
					},
					"seq": { // Insertion order, used for listing.
						Name:    "seq",
						Unique:  true,
						Indexer: &memdb.UintFieldIndex{Field: "Seq"},
					},
				},
			},
		},
	}

	err := schema.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating in-memory schema: %w", err)
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize in-memory database: %w", err)
	}
	slog.Debug("in-memory store ready")
	return &InMemoryStore{db: db}, nil
}

type storedBook struct {
	ISBN      string
	Seq       uint64
	AmazonURL string
	Author    string
	Language  string
	Pages     int
	Publisher string
	Title     string
	Year      int
}

func toStored(b book.Book, seq uint64) storedBook {
	return storedBook{
		ISBN:      b.ISBN,
		Seq:       seq,
		AmazonURL: b.AmazonURL,
		Author:    b.Author,
		Language:  b.Language,
		Pages:     b.Pages,
		Publisher: b.Publisher,
		Title:     b.Title,
		Year:      b.Year,
	}
}

func (s storedBook) toBook() book.Book {
	return book.Book{
		ISBN:      s.ISBN,
		AmazonURL: s.AmazonURL,
		Author:    s.Author,
		Language:  s.Language,
		Pages:     s.Pages,
		Publisher: s.Publisher,
		Title:     s.Title,
		Year:      s.Year,
	}
}

/* Returns the transaction to work on. Outside of BeginTx a fresh one is opened and finish must be called with the outcome. */
func (store *InMemoryStore) txn(write bool) (txn *memdb.Txn, finish func(commit bool)) {
	if store.exc != nil { //It means this method is being called inside a larger transaction.
		return store.exc, func(bool) {}
	}

	txn = store.db.Txn(write)
	return txn, func(commit bool) {
		if commit && write {
			txn.Commit()
			return
		}
		txn.Abort()
	}
}

func (store *InMemoryStore) ListBooks(ctx context.Context, filter book.Filter) ([]book.Book, error) {
	txn, finish := store.txn(false)
	defer finish(false)

	it, err := txn.Get(booksTable, "seq")
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}

	books := []book.Book{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		b := obj.(storedBook).toBook()
		if !filter.Matches(b) {
			continue
		}
		books = append(books, b)
	}
	return books, nil
}

func (store *InMemoryStore) GetBook(ctx context.Context, isbn string) (book.Book, error) {
	txn, finish := store.txn(false)
	defer finish(false)

	stored, err := first(txn, isbn)
	if err != nil {
		return book.Book{}, fmt.Errorf("searching by isbn: %w", err)
	}
	return stored.toBook(), nil
}

/* Inside a transaction from BeginTx the write lock is already held, which serializes concurrent patches. */
func (store *InMemoryStore) GetBookForUpdate(ctx context.Context, isbn string) (book.Book, error) {
	txn, finish := store.txn(true)
	defer finish(false)

	stored, err := first(txn, isbn)
	if err != nil {
		return book.Book{}, fmt.Errorf("searching by isbn for update: %w", err)
	}
	return stored.toBook(), nil
}

func (store *InMemoryStore) CreateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	txn, finish := store.txn(true)
	committed := false
	defer func() { finish(committed) }()

	existing, err := txn.First(booksTable, "id", bookEntry.ISBN)
	if err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", err)
	}
	if existing != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", book.ErrResponseBookConflict)
	}

	seq, err := nextSeq(txn)
	if err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", err)
	}

	stored := toStored(bookEntry, seq)
	err = txn.Insert(booksTable, stored)
	if err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", err)
	}

	committed = true
	return stored.toBook(), nil
}

func (store *InMemoryStore) UpdateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	txn, finish := store.txn(true)
	committed := false
	defer func() { finish(committed) }()

	current, err := first(txn, bookEntry.ISBN)
	if err != nil {
		return book.Book{}, fmt.Errorf("updating book on db: %w", err)
	}

	//Seq will not change, the book keeps its place in listings.
	updated := toStored(bookEntry, current.Seq)
	err = txn.Insert(booksTable, updated)
	if err != nil {
		return book.Book{}, fmt.Errorf("updating book on db: %w", err)
	}

	committed = true
	return updated.toBook(), nil
}

func (store *InMemoryStore) DeleteBook(ctx context.Context, isbn string) error {
	txn, finish := store.txn(true)
	committed := false
	defer func() { finish(committed) }()

	current, err := first(txn, isbn)
	if err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}

	err = txn.Delete(booksTable, current)
	if err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}

	committed = true
	return nil
}

func first(txn *memdb.Txn, isbn string) (storedBook, error) {
	raw, err := txn.First(booksTable, "id", isbn)
	if err != nil {
		return storedBook{}, err
	}
	if raw == nil {
		return storedBook{}, book.ErrResponseBookNotFound
	}
	return raw.(storedBook), nil
}

/* Writers are serialized by memdb, so reading the last sequence inside a write transaction is safe. */
func nextSeq(txn *memdb.Txn) (uint64, error) {
	last, err := txn.Last(booksTable, "seq")
	if err != nil {
		return 0, err
	}
	if last == nil {
		return 1, nil
	}
	return last.(storedBook).Seq + 1, nil
}

// -- Transactions --

func (store *InMemoryStore) BeginTx(ctx context.Context, opts *sql.TxOptions) (book.Repository, driver.Tx, error) {
	if store.exc != nil {
		return nil, nil, fmt.Errorf("beginning transaction: already inside a transaction")
	}

	txn := store.db.Txn(true)
	txStore := &InMemoryStore{
		db:  store.db,
		exc: txn,
	}
	return txStore, &TxWrapper{txn: txn}, nil
}

type TxWrapper struct {
	txn *memdb.Txn
}

func (tx *TxWrapper) Commit() error {
	tx.txn.Commit()
	return nil
}

/* Aborting a committed memdb transaction is a no-op, so Rollback is safe to defer. */
func (tx *TxWrapper) Rollback() error {
	tx.txn.Abort()
	return nil
}
