package verification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ms-watchmarket/internal/logger"
	"ms-watchmarket/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("no token")
	}
	return string(s), nil
}

func order() models.Order {
	return models.Order{ID: "order-1", ListingID: "listing-1", SellerID: "seller-1", Brand: "Rolex", Model: "116500LN", Title: "Daytona"}
}

func TestSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/inspections", r.URL.Path)
		assert.Equal(t, "Bearer m2m", r.Header.Get("Authorization"))
		assert.Equal(t, "inspection-order-1", r.Header.Get("Idempotency-Key"))

		var body inspectionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "order-1", body.OrderID)
		assert.Equal(t, "Rolex", body.Brand)
		assert.Equal(t, "https://orders.example.com/api/partner/authentication", body.CallbackURL)

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"reference":"insp-77"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "https://orders.example.com/api/partner/authentication", srv.Client(), staticToken("m2m"), logger.Discard())
	ref, err := c.Submit(context.Background(), order())
	require.NoError(t, err)
	assert.Equal(t, "insp-77", ref)
}

func TestSubmitFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client(), nil, logger.Discard())
	_, err := c.Submit(context.Background(), order())
	assert.Error(t, err)

	c = NewClient(srv.URL, "", srv.Client(), staticToken(""), logger.Discard())
	_, err = c.Submit(context.Background(), order())
	assert.ErrorContains(t, err, "partner token")
}

func TestSubmitWithoutReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", srv.Client(), nil, logger.Discard()).Submit(context.Background(), order())
	assert.ErrorContains(t, err, "no reference")
}

type cachedToken struct {
	dropped int
}

func (c *cachedToken) Token(context.Context) (string, error) { return "stale", nil }

func (c *cachedToken) Invalidate(context.Context) { c.dropped++ }

func TestSubmitRejectedTokenIsDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &cachedToken{}
	c := NewClient(srv.URL, "", srv.Client(), tokens, logger.Discard())
	_, err := c.Submit(context.Background(), order())
	assert.Error(t, err)
	assert.Equal(t, 1, tokens.dropped)
}
