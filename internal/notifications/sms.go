package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// SMSClient sends texts through an HTTP SMS gateway that accepts a form POST
// and answers with a JSON code/message pair, code 0 meaning accepted.
type SMSClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewSMSClient constructs an SMSClient. httpClient may be nil to use the
// default client.
func NewSMSClient(endpoint, apiKey string, httpClient *http.Client) *SMSClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SMSClient{endpoint: endpoint, apiKey: apiKey, http: httpClient}
}

// SendSMS implements notify.SMSSender.
func (c *SMSClient) SendSMS(ctx context.Context, phone, text string) error {
	data := url.Values{}
	data.Set("apiKey", c.apiKey)
	data.Set("recipient", phone)
	data.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sms response: %w", err)
	}

	var result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("sms response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("sms gateway: %s (code %d)", result.Message, result.Code)
	}
	return nil
}
