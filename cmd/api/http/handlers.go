package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/isbn-books-service/cmd/api/book"
)

const maxBodyBytes = 1 << 20

type BookHandler struct {
	bookService book.ServiceAPI
}

func NewBookHandler(bookService book.ServiceAPI) *BookHandler {
	return &BookHandler{bookService: bookService}
}

/* Addresses a call to "/books" according to the requested action.  */
func (h *BookHandler) books(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listBooks(w, r)
	case http.MethodPost:
		h.createBook(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

/* Addresses a call to "/books/(expected isbn here)" according to the requested action.  */
func (h *BookHandler) bookByIsbn(w http.ResponseWriter, r *http.Request) {
	isbn, _ := strings.CutPrefix(r.URL.Path, "/books/")
	if isbn == "" {
		h.books(w, r)
		return
	}
	if strings.Contains(isbn, "/") {
		responseError(w, r, book.ErrResponseBookNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getBook(w, r, isbn)
	case http.MethodPut:
		h.updateBook(w, r, isbn)
	case http.MethodPatch:
		h.patchBook(w, r, isbn)
	case http.MethodDelete:
		h.deleteBook(w, r, isbn)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

/* Returns the stored books, narrowed by any book field given as query parameter. */
func (h *BookHandler) listBooks(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r.URL.Query())
	if err != nil {
		responseError(w, r, err)
		return
	}

	books, err := h.bookService.ListBooks(r.Context(), filter)
	if err != nil {
		responseError(w, r, err)
		return
	}

	responseJSON(w, r, http.StatusOK, booksToResponse(books))
}

func (h *BookHandler) getBook(w http.ResponseWriter, r *http.Request, isbn string) {
	returnedBook, err := h.bookService.GetBook(r.Context(), isbn)
	if err != nil {
		responseError(w, r, err)
		return
	}

	responseJSON(w, r, http.StatusOK, BookEnvelope{Book: bookToResponse(returnedBook)})
}

/* Validates the entry against the create shape, then stores it as a new book. */
func (h *BookHandler) createBook(w http.ResponseWriter, r *http.Request) {
	bookEntry, err := book.DecodeCreate(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		responseError(w, r, err)
		return
	}

	storedBook, err := h.bookService.CreateBook(r.Context(), bookEntry)
	if err != nil {
		responseError(w, r, err)
		return
	}

	responseJSON(w, r, http.StatusCreated, BookEnvelope{Book: bookToResponse(storedBook)})
}

/* Validates the entry against the create shape, then replaces the stored book. */
func (h *BookHandler) updateBook(w http.ResponseWriter, r *http.Request, isbn string) {
	bookEntry, err := book.DecodeCreate(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		responseError(w, r, err)
		return
	}

	updatedBook, err := h.bookService.UpdateBook(r.Context(), isbn, bookEntry)
	if err != nil {
		responseError(w, r, err)
		return
	}

	responseJSON(w, r, http.StatusOK, BookEnvelope{Book: bookToResponse(updatedBook)})
}

/* Validates the entry against the update shape, then overwrites only the fields it carries. */
func (h *BookHandler) patchBook(w http.ResponseWriter, r *http.Request, isbn string) {
	patch, err := book.DecodeUpdate(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		responseError(w, r, err)
		return
	}

	patchedBook, err := h.bookService.PatchBook(r.Context(), isbn, patch)
	if err != nil {
		responseError(w, r, err)
		return
	}

	responseJSON(w, r, http.StatusOK, BookEnvelope{Book: bookToResponse(patchedBook)})
}

func (h *BookHandler) deleteBook(w http.ResponseWriter, r *http.Request, isbn string) {
	err := h.bookService.DeleteBook(r.Context(), isbn)
	if err != nil {
		responseError(w, r, err)
		return
	}

	responseJSON(w, r, http.StatusOK, MessageResponse{Message: "Book deleted"})
}

/* Builds the equality filter from the query string. Parameters that are not book fields are ignored. */
func filterFromQuery(query url.Values) (book.Filter, error) {
	var filter book.Filter
	var messages []string

	stringParam := func(name string) *string {
		if !query.Has(name) {
			return nil
		}
		v := query.Get(name)
		return &v
	}
	intParam := func(name string) *int {
		if !query.Has(name) {
			return nil
		}
		v, err := strconv.Atoi(query.Get(name))
		if err != nil {
			messages = append(messages, "query parameter '"+name+"' must be an integer")
			return nil
		}
		return &v
	}

	filter.ISBN = stringParam("isbn")
	filter.AmazonURL = stringParam("amazon_url")
	filter.Author = stringParam("author")
	filter.Language = stringParam("language")
	filter.Pages = intParam("pages")
	filter.Publisher = stringParam("publisher")
	filter.Title = stringParam("title")
	filter.Year = intParam("year")

	if len(messages) > 0 {
		return book.Filter{}, book.NewValidationError(messages...)
	}
	return filter, nil
}

type BookResponse struct {
	ISBN      string `json:"isbn"`
	AmazonURL string `json:"amazon_url"`
	Author    string `json:"author"`
	Language  string `json:"language"`
	Pages     int    `json:"pages"`
	Publisher string `json:"publisher"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
}

type BookEnvelope struct {
	Book BookResponse `json:"book"`
}

type BooksEnvelope struct {
	Books []BookResponse `json:"books"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Code    int `json:"error_code"`
	Message any `json:"message"` // a string, or a list of strings for validation errors
}

/*Copy the fields of a book object to an http layer struct with json tags*/
func bookToResponse(b book.Book) BookResponse {
	return BookResponse{
		ISBN:      b.ISBN,
		AmazonURL: b.AmazonURL,
		Author:    b.Author,
		Language:  b.Language,
		Pages:     b.Pages,
		Publisher: b.Publisher,
		Title:     b.Title,
		Year:      b.Year,
	}
}

func booksToResponse(books []book.Book) BooksEnvelope {
	results := make([]BookResponse, 0, len(books))
	for _, b := range books {
		results = append(results, bookToResponse(b))
	}
	return BooksEnvelope{Books: results}
}

/* The single place where errors become HTTP responses. */
func responseError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *book.ValidationError
	switch {
	case errors.As(err, &vErr):
		responseJSON(w, r, http.StatusBadRequest, ErrorResponse{Code: book.ErrResponseBookEntryInvalid.Code, Message: vErr.Messages})
	case errors.Is(err, book.ErrResponseBookNotFound):
		responseJSON(w, r, http.StatusNotFound, errorBody(book.ErrResponseBookNotFound))
	case errors.Is(err, book.ErrResponseBookConflict):
		responseJSON(w, r, http.StatusConflict, errorBody(book.ErrResponseBookConflict))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		requestLogger(r.Context()).Warn("request did not finish in time", "error", err)
		responseJSON(w, r, http.StatusGatewayTimeout, errorBody(book.ErrResponseRequestTimeout))
	default:
		requestLogger(r.Context()).Error("handling request", "method", r.Method, "path", r.URL.Path, "error", err)
		responseJSON(w, r, http.StatusInternalServerError, errorBody(book.ErrResponseFromRepository))
	}
}

func errorBody(e book.ErrResponse) ErrorResponse {
	return ErrorResponse{Code: e.Code, Message: e.Message}
}

/*Writes a JSON response into a http.ResponseWriter. */
func responseJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		requestLogger(r.Context()).Error("writing response", "error", err)
	}
}
