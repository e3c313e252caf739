package book

import (
	"fmt"
	"strings"
)

type ErrResponse struct {
	Code    int    `json:"error_code"`
	Message string `json:"message"`
}

func (e ErrResponse) Error() string {
	return e.Message
}

var ErrResponseBookEntryInvalid = ErrResponse{100, "book entry does not match the expected schema"}
var ErrResponseBookNotFound = ErrResponse{101, "book not found"}
var ErrResponseBookConflict = ErrResponse{103, "there is already a book with this isbn"}
var ErrResponseRequestTimeout = ErrResponse{109, "request timed out"}
var ErrResponseFromRepository = ErrResponse{120, "internal server error"}

/* Client supplied data that failed the schema checks. Messages keeps the order in which the checks failed. */
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrResponseBookEntryInvalid.Message, strings.Join(e.Messages, "; "))
}

func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}
