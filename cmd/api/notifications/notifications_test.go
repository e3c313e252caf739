package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestBookCreated(t *testing.T) {

	t.Run("publishes the creation of a new book on the topic", func(t *testing.T) {
		is := is.New(t)

		var gotPath, gotBody string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			gotPath = r.URL.Path
			gotBody = string(body)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ntfy := NewNtfy(true, server.URL+"/test_Ah3mn6oD", server.Client())

		err := ntfy.BookCreated(context.Background(), "1", "Testing")
		is.NoErr(err)
		is.Equal(gotPath, "/test_Ah3mn6oD_New_book_created")
		is.Equal(gotBody, "New book created: Testing (1)")
	})

	t.Run("does nothing when disabled", func(t *testing.T) {
		is := is.New(t)

		ntfy := NewNtfy(false, "http://127.0.0.1:0", nil)

		is.NoErr(ntfy.BookCreated(context.Background(), "1", "Testing"))
	})

	t.Run("expected wrong response error", func(t *testing.T) {
		is := is.New(t)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		ntfy := NewNtfy(true, server.URL, server.Client())

		err := ntfy.BookCreated(context.Background(), "1", "Testing")
		var failed ErrNotificationFailed
		is.True(errors.As(err, &failed))
		is.Equal(failed.statusCode, http.StatusTooManyRequests)
	})

	t.Run("expected context timeout error", func(t *testing.T) {
		is := is.New(t)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		ntfy := NewNtfy(true, server.URL, server.Client())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Millisecond)
		defer cancel()

		err := ntfy.BookCreated(ctx, "1", "Testing")
		is.True(errors.Is(err, context.DeadlineExceeded))
	})
}
