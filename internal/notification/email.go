package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ms-watchmarket/internal/logger"
)

// Message is one templated transactional email.
type Message struct {
	RecipientAddress   string            `json:"recipientAddress"`
	TemplateID         string            `json:"templateId"`
	SubstitutionFields map[string]string `json:"substitutionFields,omitempty"`
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// EmailClient sends through the transactional email provider's HTTP API.
type EmailClient struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
	log     *logger.Logger
}

func NewEmailClient(baseURL, apiKey, from string, httpClient *http.Client, log *logger.Logger) *EmailClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &EmailClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
		http:    httpClient,
		log:     log,
	}
}

type sendRequest struct {
	From string `json:"from"`
	Message
}

func (c *EmailClient) Send(ctx context.Context, msg Message) error {
	if msg.RecipientAddress == "" || msg.TemplateID == "" {
		return fmt.Errorf("email needs a recipient and a template")
	}
	body, err := json.Marshal(sendRequest{From: c.from, Message: msg})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("EMAIL", fmt.Sprintf("Email provider error: %v", err))
		return fmt.Errorf("email provider error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error("EMAIL", fmt.Sprintf("Email provider returned %d: %s", resp.StatusCode, detail))
		return fmt.Errorf("email provider returned status: %d", resp.StatusCode)
	}

	c.log.LogEmail(msg.TemplateID, msg.RecipientAddress, "sent")
	return nil
}
