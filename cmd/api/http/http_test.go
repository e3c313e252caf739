package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/isbn-books-service/cmd/api/book"
	bookmock "github.com/isbn-books-service/cmd/api/book/mocks"
	bookhttp "github.com/isbn-books-service/cmd/api/http"
	"github.com/matryer/is"
	"go.uber.org/mock/gomock"
)

const requestTimeout = 2 * time.Second

const bookJSON = `{
	"isbn": "1",
	"amazon_url": "http://test.test",
	"author": "Testy Testerson",
	"language": "english",
	"pages": 2,
	"publisher": "Test Press",
	"title": "Testing",
	"year": 2017
}`

const bookResponseJSON = `{"book":{"isbn":"1","amazon_url":"http://test.test","author":"Testy Testerson","language":"english","pages":2,"publisher":"Test Press","title":"Testing","year":2017}}` + "\n"

func newMockedServer(t *testing.T) (*http.Server, *bookmock.MockServiceAPI) {
	ctrl := gomock.NewController(t)
	mockAPI := bookmock.NewMockServiceAPI(ctrl)
	bookHandler := bookhttp.NewBookHandler(mockAPI)
	server := bookhttp.NewServer(bookhttp.ServerConfig{Port: 8080, RequestTimeout: requestTimeout}, bookHandler)
	return server, mockAPI
}

func serve(server *http.Server, method, url, body string) (int, string) {
	request, _ := http.NewRequest(method, url, strings.NewReader(body))
	response := httptest.NewRecorder()

	server.Handler.ServeHTTP(response, request)

	respBody, _ := io.ReadAll(response.Result().Body)
	return response.Result().StatusCode, string(respBody)
}

func TestCreateBook(t *testing.T) {
	server, mockAPI := newMockedServer(t)

	t.Run("creates a book without errors", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().CreateBook(gomock.Any(), testBook("1")).Return(testBook("1"), nil)

		status, body := serve(server, http.MethodPost, "/books", bookJSON)

		is.Equal(status, 201)
		is.Equal(body, bookResponseJSON)
	})

	t.Run("expected validation error for an empty body", func(t *testing.T) {
		is := is.New(t)

		status, body := serve(server, http.MethodPost, "/books", "")

		is.Equal(status, 400)
		is.Equal(body, `{"error_code":100,"message":["instance is not of a type(s) object"]}`+"\n")
	})

	t.Run("expected validation error for an unknown key", func(t *testing.T) {
		is := is.New(t)

		invalidBook := strings.Replace(bookJSON, `"year": 2017`, `"year": 2017, "notARealThing": "Wrong"`, 1)

		status, body := serve(server, http.MethodPost, "/books", invalidBook)

		is.Equal(status, 400)
		is.Equal(body, `{"error_code":100,"message":["instance is not allowed to have the additional property \"notARealThing\""]}`+"\n")
	})

	t.Run("expected conflict error", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().CreateBook(gomock.Any(), gomock.Any()).Return(book.Book{}, fmt.Errorf("storing book on db: %w", book.ErrResponseBookConflict))

		status, _ := serve(server, http.MethodPost, "/books", bookJSON)

		is.Equal(status, 409)
	})

	t.Run("expected internal error from the store", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().CreateBook(gomock.Any(), gomock.Any()).Return(book.Book{}, errors.New("connection refused"))

		status, body := serve(server, http.MethodPost, "/books", bookJSON)

		is.Equal(status, 500)
		is.Equal(body, `{"error_code":120,"message":"internal server error"}`+"\n")
	})

	t.Run("expected context timeout error", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().CreateBook(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, b book.Book) (book.Book, error) {
			_, hasDeadline := ctx.Deadline()
			is.True(hasDeadline) // the server sets the request timeout
			return book.Book{}, fmt.Errorf("timeout on call to CreateBook: %w", context.DeadlineExceeded)
		})

		status, body := serve(server, http.MethodPost, "/books", bookJSON)

		is.Equal(status, 504)
		is.Equal(body, `{"error_code":109,"message":"request timed out"}`+"\n")
	})
}

func TestListBooks(t *testing.T) {
	server, mockAPI := newMockedServer(t)

	t.Run("lists all books without errors", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().ListBooks(gomock.Any(), book.Filter{}).Return([]book.Book{testBook("1")}, nil)

		status, body := serve(server, http.MethodGet, "/books", "")

		is.Equal(status, 200)
		is.Equal(body, `{"books":[`+strings.TrimPrefix(strings.TrimSuffix(bookResponseJSON, "}\n"), `{"book":`)+`]}`+"\n")
	})

	t.Run("an empty list is not null", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().ListBooks(gomock.Any(), book.Filter{}).Return(nil, nil)

		status, body := serve(server, http.MethodGet, "/books/", "")

		is.Equal(status, 200)
		is.Equal(body, `{"books":[]}`+"\n")
	})

	t.Run("passes the query through as a filter", func(t *testing.T) {
		is := is.New(t)

		filter := book.Filter{Author: toPointer("Testy Testerson"), Year: toPointer(2017)}
		mockAPI.EXPECT().ListBooks(gomock.Any(), filter).Return([]book.Book{}, nil)

		status, _ := serve(server, http.MethodGet, "/books?author=Testy+Testerson&year=2017&sort=ignored", "")

		is.Equal(status, 200)
	})

	t.Run("expected filter error", func(t *testing.T) {
		is := is.New(t)

		status, body := serve(server, http.MethodGet, "/books?pages=many", "")

		is.Equal(status, 400)
		is.Equal(body, `{"error_code":100,"message":["query parameter 'pages' must be an integer"]}`+"\n")
	})
}

func TestGetBook(t *testing.T) {
	server, mockAPI := newMockedServer(t)

	t.Run("gets a book without errors", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().GetBook(gomock.Any(), "1").Return(testBook("1"), nil)

		status, body := serve(server, http.MethodGet, "/books/1", "")

		is.Equal(status, 200)
		is.Equal(body, bookResponseJSON)
	})

	t.Run("expected not found error", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().GetBook(gomock.Any(), "BAD").Return(book.Book{}, fmt.Errorf("searching by isbn: %w", book.ErrResponseBookNotFound))

		status, body := serve(server, http.MethodGet, "/books/BAD", "")

		is.Equal(status, 404)
		is.Equal(body, `{"error_code":101,"message":"book not found"}`+"\n")
	})

	t.Run("method not allowed", func(t *testing.T) {
		is := is.New(t)

		status, _ := serve(server, http.MethodPost, "/books/1", bookJSON)

		is.Equal(status, 405)
	})
}

func TestUpdateBook(t *testing.T) {
	server, mockAPI := newMockedServer(t)

	t.Run("updates a book without errors", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().UpdateBook(gomock.Any(), "1", testBook("1")).Return(testBook("1"), nil)

		status, body := serve(server, http.MethodPut, "/books/1", bookJSON)

		is.Equal(status, 200)
		is.Equal(body, bookResponseJSON)
	})

	t.Run("expected validation error for a partial body", func(t *testing.T) {
		is := is.New(t)

		status, _ := serve(server, http.MethodPut, "/books/1", `{"author":"Testy3"}`)

		is.Equal(status, 400)
	})
}

func TestPatchBook(t *testing.T) {
	server, mockAPI := newMockedServer(t)

	t.Run("patches a book without errors", func(t *testing.T) {
		is := is.New(t)

		patched := testBook("1")
		patched.Author = "Testy3"
		patch := book.Patch{Author: toPointer("Testy3")}

		mockAPI.EXPECT().PatchBook(gomock.Any(), "1", patch).Return(patched, nil)

		status, body := serve(server, http.MethodPatch, "/books/1", `{"author":"Testy3"}`)

		is.Equal(status, 200)
		is.Equal(body, strings.Replace(bookResponseJSON, "Testy Testerson", "Testy3", 1))
	})

	t.Run("unknown keys never reach the service", func(t *testing.T) {
		is := is.New(t)

		status, _ := serve(server, http.MethodPatch, "/books/1", `{"notARealThing":"Wrong"}`)

		is.Equal(status, 400)
	})
}

func TestDeleteBook(t *testing.T) {
	server, mockAPI := newMockedServer(t)

	t.Run("deletes a book without errors", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().DeleteBook(gomock.Any(), "1").Return(nil)

		status, body := serve(server, http.MethodDelete, "/books/1", "")

		is.Equal(status, 200)
		is.Equal(body, `{"message":"Book deleted"}`+"\n")
	})

	t.Run("expected not found error", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().DeleteBook(gomock.Any(), "1").Return(book.ErrResponseBookNotFound)

		status, _ := serve(server, http.MethodDelete, "/books/1", "")

		is.Equal(status, 404)
	})
}

func TestRequestID(t *testing.T) {
	is := is.New(t)
	server, _ := newMockedServer(t)

	request, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	response := httptest.NewRecorder()
	server.Handler.ServeHTTP(response, request)

	is.Equal(response.Result().StatusCode, 204)
	is.True(response.Header().Get("X-Request-ID") != "")

	request, _ = http.NewRequest(http.MethodGet, "/ping", nil)
	request.Header.Set("X-Request-ID", "abc")
	response = httptest.NewRecorder()
	server.Handler.ServeHTTP(response, request)

	is.Equal(response.Header().Get("X-Request-ID"), "abc")
}

func testBook(isbn string) book.Book {
	return book.Book{
		ISBN:      isbn,
		AmazonURL: "http://test.test",
		Author:    "Testy Testerson",
		Language:  "english",
		Pages:     2,
		Publisher: "Test Press",
		Title:     "Testing",
		Year:      2017,
	}
}

func toPointer[T any](v T) *T {
	return &v
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("decoding %q: %v", body, err)
	}
	return v
}
