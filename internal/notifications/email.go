package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// EmailClient sends transactional mail through an HTTP mail provider.
type EmailClient struct {
	endpoint string
	apiKey   string
	fromAddr string
	fromName string
	http     *http.Client
}

// NewEmailClient constructs an EmailClient. httpClient may be nil to use the
// default client.
func NewEmailClient(endpoint, apiKey, fromAddr, fromName string, httpClient *http.Client) *EmailClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &EmailClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		http:     httpClient,
	}
}

type emailMessage struct {
	FromAddr string `json:"from_address"`
	FromName string `json:"from_name"`
	ToAddr   string `json:"to_address"`
	ToName   string `json:"to_name"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// SendEmail implements notify.EmailSender.
func (c *EmailClient) SendEmail(ctx context.Context, to, toName, subject, body string) error {
	msg := emailMessage{
		FromAddr: c.fromAddr,
		FromName: c.fromName,
		ToAddr:   to,
		ToName:   toName,
		Subject:  subject,
		Body:     body,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email provider: unexpected status %d", resp.StatusCode)
	}
	return nil
}
