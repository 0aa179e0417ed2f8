package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ms-watchmarket/internal/logger"
)

type M2MConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

type m2mTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenSource hands out client-credentials tokens for calls to partner
// services, reusing a cached token until it nears expiry.
type TokenSource struct {
	cfg    M2MConfig
	client *http.Client
	cache  *PartnerTokenCache
	log    *logger.Logger
}

func NewTokenSource(cfg M2MConfig, client *http.Client, cache *PartnerTokenCache, log *logger.Logger) *TokenSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenSource{cfg: cfg, client: client, cache: cache, log: log}
}

func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn("AUTH", fmt.Sprintf("token cache unavailable: %v", err))
		} else if cached != "" {
			return cached, nil
		}
	}

	token, expiresIn, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, token, time.Duration(expiresIn)*time.Second); err != nil {
			s.log.Warn("AUTH", fmt.Sprintf("failed to cache M2M token: %v", err))
		}
	}
	return token, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (s *TokenSource) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Drop(ctx); err != nil {
		s.log.Warn("AUTH", fmt.Sprintf("failed to drop M2M token: %v", err))
	}
}

func (s *TokenSource) fetch(ctx context.Context) (string, int, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", s.cfg.ClientID)
	data.Set("client_secret", s.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	s.log.Debug("AUTH", fmt.Sprintf("Requesting M2M token for client %s", s.cfg.ClientID))
	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.log.Error("AUTH", fmt.Sprintf("token endpoint returned %s: %s", resp.Status, body))
		return "", 0, fmt.Errorf("failed to get token, status: %s", resp.Status)
	}

	var tokenResp m2mTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", 0, fmt.Errorf("token response carried no access token")
	}
	return tokenResp.AccessToken, tokenResp.ExpiresIn, nil
}
