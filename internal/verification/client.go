package verification

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
	"ms-watchmarket/internal/models"
)

// TokenProvider supplies the bearer token for partner calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// invalidator is implemented by providers that cache tokens.
type invalidator interface {
	Invalidate(ctx context.Context)
}

// Client talks to the third-party watch authentication partner.
type Client struct {
	baseURL     string
	callbackURL string
	http        *http.Client
	tokens      TokenProvider
	log         *logger.Logger
}

func NewClient(baseURL, callbackURL string, httpClient *http.Client, tokens TokenProvider, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		callbackURL: callbackURL,
		http:        httpClient,
		tokens:      tokens,
		log:         log,
	}
}

type inspectionRequest struct {
	OrderID     string `json:"orderId"`
	ListingID   string `json:"listingId"`
	SellerID    string `json:"sellerId"`
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	Title       string `json:"title"`
	CallbackURL string `json:"callbackUrl"`
}

type inspectionResponse struct {
	Reference string `json:"reference"`
}

// Result is what the partner posts back once the inspection is done.
type Result struct {
	Reference string `json:"reference" validate:"required"`
	OrderID   string `json:"orderId" validate:"required"`
	Passed    *bool  `json:"passed" validate:"required"`
	Notes     string `json:"notes"`
}

// Submit books an inspection for the order and returns the partner's reference.
func (c *Client) Submit(ctx context.Context, order models.Order) (string, error) {
	body, err := json.Marshal(inspectionRequest{
		OrderID:     order.ID,
		ListingID:   order.ListingID,
		SellerID:    order.SellerID,
		Brand:       order.Brand,
		Model:       order.Model,
		Title:       order.Title,
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return "", err
	}

	url := c.baseURL + "/v1/inspections"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create inspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "inspection-"+order.ID)
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get partner token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debug("VERIFY", fmt.Sprintf("Submitting order %s for authentication: %s", order.ID, url))
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("VERIFY", fmt.Sprintf("Authentication partner error: %v", err))
		return "", fmt.Errorf("authentication partner error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Error("VERIFY", fmt.Sprintf("Failed to close partner response body: %v", err))
		}
	}(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		if inv, ok := c.tokens.(invalidator); ok {
			inv.Invalidate(ctx)
		}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		c.log.Error("VERIFY", fmt.Sprintf("Authentication partner returned status: %d", resp.StatusCode))
		return "", fmt.Errorf("authentication partner returned status: %d", resp.StatusCode)
	}

	var out inspectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode partner response: %w", err)
	}
	if out.Reference == "" {
		return "", fmt.Errorf("authentication partner returned no reference")
	}

	c.log.Info("VERIFY", fmt.Sprintf("Order %s booked for authentication, reference %s", order.ID, out.Reference))
	return out.Reference, nil
}
