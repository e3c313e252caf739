package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const bookCreatedTopic = "_New_book_created"

type Ntfy struct {
	baseURL string
	enabled bool
	client  *http.Client
}

func NewNtfy(enableNotifications bool, notificationsBaseURL string, client *http.Client) *Ntfy {
	if client == nil {
		client = &http.Client{}
	}
	return &Ntfy{
		baseURL: notificationsBaseURL,
		enabled: enableNotifications,
		client:  client,
	}
}

type ErrNotificationFailed struct {
	statusCode int
}

func (e ErrNotificationFailed) Error() string {
	return fmt.Sprintf("ntfy wrong response - want: 200 OK, got: %d", e.statusCode)
}

/* Publishes a message on the book creation topic. Does nothing when notifications are disabled. */
func (ntf *Ntfy) BookCreated(ctx context.Context, isbn, title string) error {
	if !ntf.enabled {
		return nil
	}

	topic := ntf.baseURL + bookCreatedTopic
	message := fmt.Sprintf("New book created: %s (%s)", title, isbn)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, topic, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("delivering message to topic %s: %w", topic, err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := ntf.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering message to topic %s: %w", topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delivering message to topic %s: %w", topic, ErrNotificationFailed{statusCode: resp.StatusCode})
	}
	return nil
}
