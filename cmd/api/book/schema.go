package book

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const msgNotAnObject = "instance is not of a type(s) object"

var fieldTypes = map[string]string{
	"isbn":       "string",
	"amazon_url": "string",
	"author":     "string",
	"language":   "string",
	"pages":      "integer",
	"publisher":  "string",
	"title":      "string",
	"year":       "integer",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their json name so messages match what the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	return v
}

// createDocument is the create shape: every field is required.
type createDocument struct {
	ISBN      *string `json:"isbn" validate:"required,min=1"`
	AmazonURL *string `json:"amazon_url" validate:"required"`
	Author    *string `json:"author" validate:"required"`
	Language  *string `json:"language" validate:"required"`
	Pages     *int    `json:"pages" validate:"required,min=1"`
	Publisher *string `json:"publisher" validate:"required"`
	Title     *string `json:"title" validate:"required"`
	Year      *int    `json:"year" validate:"required"`
}

func (d *createDocument) targets() map[string]any {
	return map[string]any{
		"isbn":       &d.ISBN,
		"amazon_url": &d.AmazonURL,
		"author":     &d.Author,
		"language":   &d.Language,
		"pages":      &d.Pages,
		"publisher":  &d.Publisher,
		"title":      &d.Title,
		"year":       &d.Year,
	}
}

// updateDocument is the update shape: every field is optional.
type updateDocument struct {
	ISBN      *string `json:"isbn" validate:"omitempty,min=1"`
	AmazonURL *string `json:"amazon_url"`
	Author    *string `json:"author"`
	Language  *string `json:"language"`
	Pages     *int    `json:"pages" validate:"omitempty,min=1"`
	Publisher *string `json:"publisher"`
	Title     *string `json:"title"`
	Year      *int    `json:"year"`
}

func (d *updateDocument) targets() map[string]any {
	return map[string]any{
		"isbn":       &d.ISBN,
		"amazon_url": &d.AmazonURL,
		"author":     &d.Author,
		"language":   &d.Language,
		"pages":      &d.Pages,
		"publisher":  &d.Publisher,
		"title":      &d.Title,
		"year":       &d.Year,
	}
}

/* Reads a request body in the create shape. On failure the error is a *ValidationError listing every problem found. */
func DecodeCreate(r io.Reader) (Book, error) {
	var doc createDocument
	err := decodeDocument(r, &doc, doc.targets())
	if err != nil {
		return Book{}, err
	}

	return Book{
		ISBN:      *doc.ISBN,
		AmazonURL: *doc.AmazonURL,
		Author:    *doc.Author,
		Language:  *doc.Language,
		Pages:     *doc.Pages,
		Publisher: *doc.Publisher,
		Title:     *doc.Title,
		Year:      *doc.Year,
	}, nil
}

/* Reads a request body in the update shape, where any subset of the known fields may be present. */
func DecodeUpdate(r io.Reader) (Patch, error) {
	var doc updateDocument
	err := decodeDocument(r, &doc, doc.targets())
	if err != nil {
		return Patch{}, err
	}

	return Patch{
		ISBN:      doc.ISBN,
		AmazonURL: doc.AmazonURL,
		Author:    doc.Author,
		Language:  doc.Language,
		Pages:     doc.Pages,
		Publisher: doc.Publisher,
		Title:     doc.Title,
		Year:      doc.Year,
	}, nil
}

func decodeDocument(r io.Reader, doc any, targets map[string]any) error {
	obj, err := readObject(r)
	if err != nil {
		return err
	}

	perField := map[string]string{}
	for _, name := range FieldNames {
		raw, present := obj[name]
		if !present {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) || json.Unmarshal(raw, targets[name]) != nil {
			perField[name] = fmt.Sprintf("instance.%s is not of a type(s) %s", name, fieldTypes[name])
		}
	}

	err = validate.Struct(doc)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if _, failed := perField[fe.Field()]; failed {
				continue
			}
			perField[fe.Field()] = ruleMessage(fe)
		}
	} else if err != nil {
		return fmt.Errorf("validating book entry: %w", err)
	}

	var messages []string
	for _, name := range FieldNames {
		if msg, ok := perField[name]; ok {
			messages = append(messages, msg)
		}
	}
	messages = append(messages, additionalProperties(obj)...)

	if len(messages) > 0 {
		return NewValidationError(messages...)
	}
	return nil
}

/* Reads the whole body and makes sure it holds a JSON object. */
func readObject(r io.Reader) (map[string]json.RawMessage, error) {
	if r == nil {
		return nil, NewValidationError(msgNotAnObject)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, NewValidationError("reading request body: " + err.Error())
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, NewValidationError(msgNotAnObject)
	}

	var obj map[string]json.RawMessage
	err = json.Unmarshal(body, &obj)
	if err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, NewValidationError(msgNotAnObject)
		}
		return nil, NewValidationError("invalid json request: " + err.Error())
	}
	if obj == nil { // literal null
		return nil, NewValidationError(msgNotAnObject)
	}
	return obj, nil
}

func additionalProperties(obj map[string]json.RawMessage) []string {
	var unknown []string
	for key := range obj {
		if _, known := fieldTypes[key]; !known {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	messages := make([]string, 0, len(unknown))
	for _, key := range unknown {
		messages = append(messages, fmt.Sprintf("instance is not allowed to have the additional property %q", key))
	}
	return messages
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("instance requires property %q", fe.Field())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("instance.%s does not meet minimum length of %s", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("instance.%s must be greater than or equal to %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("instance.%s does not satisfy %q", fe.Field(), fe.Tag())
	}
}
