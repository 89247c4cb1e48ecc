// Package mailer delivers coupon emails through a Resend-compatible
// transactional email API. Delivery status beyond the accepted send id is
// tracked server-side by the provider; the claim flow only needs the id.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"
)

type Client struct {
	BaseURL string
	APIKey  string
	From    string
	http    *http.Client
}

// NewClient reads the mailer block from config. The request timeout bounds
// every send; a hung provider surfaces as a send failure instead of wedging
// the claim flow.
func NewClient() *Client {
	timeout := viper.GetInt("mailer.timeout_seconds")
	if timeout <= 0 {
		timeout = 10
	}
	return &Client{
		BaseURL: viper.GetString("mailer.base_url"),
		APIKey:  viper.GetString("mailer.api_key"),
		From:    viper.GetString("mailer.from"),
		http:    &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Name       string `json:"name"`
}

// Send posts the email and returns the provider's send id.
func (c *Client) Send(ctx context.Context, email Email) (string, error) {
	if email.From == "" {
		email.From = c.From
	}
	payload, err := json.Marshal(email)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := apiError{}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return "", fmt.Errorf("email provider rejected the send: %s", apiErr.Message)
		}
		return "", fmt.Errorf("email provider returned status %d", resp.StatusCode)
	}
	result := sendResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("unable to decode email provider response: %w", err)
	}
	return result.ID, nil
}

// SendCouponEmail sends the reward email for a finalized claim.
func (c *Client) SendCouponEmail(ctx context.Context, to string, code string, description string, gameType string) (string, error) {
	subject := fmt.Sprintf("Your reward: %s", description)
	html := fmt.Sprintf(
		`<h2>Congratulations!</h2>
<p>You won <strong>%s</strong> playing the %s game.</p>
<p>Your coupon code is:</p>
<p style="font-size:24px;font-weight:bold;letter-spacing:2px">%s</p>
<p>Use it at checkout before it expires.</p>`,
		description, gameType, code)
	return c.Send(ctx, Email{To: []string{to}, Subject: subject, HTML: html})
}
