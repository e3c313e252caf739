package database

import (
	"testing"

	"github.com/isbn-books-service/cmd/api/book"
	"github.com/matryer/is"
)

func TestListQuery(t *testing.T) {
	t.Run("no filter selects every row in insertion order", func(t *testing.T) {
		is := is.New(t)

		sqlStatement, args, err := listQuery(book.Filter{})
		is.NoErr(err)
		is.Equal(sqlStatement, `SELECT "isbn", "amazon_url", "author", "language", "pages", "publisher", "title", "year" FROM "books" ORDER BY "created_at" ASC, "isbn" ASC`)
		is.Equal(len(args), 0)
	})

	t.Run("filter columns become placeholders", func(t *testing.T) {
		is := is.New(t)

		author := "Testy Testerson"
		sqlStatement, args, err := listQuery(book.Filter{Author: &author})
		is.NoErr(err)
		is.Equal(sqlStatement, `SELECT "isbn", "amazon_url", "author", "language", "pages", "publisher", "title", "year" FROM "books" WHERE ("author" = $1) ORDER BY "created_at" ASC, "isbn" ASC`)
		is.Equal(args, []any{"Testy Testerson"})
	})
}
