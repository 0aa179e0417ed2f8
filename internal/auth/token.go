package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// HMACVerifier validates HS256 tokens signed with a shared secret. Used for
// local development and tests where no identity provider runs.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

type tokenClaims struct {
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (Claims, error) {
	if rawToken == "" {
		return Claims{}, errors.New("empty token")
	}
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("subject claim not found in token")
	}
	return Claims{Subject: claims.Subject, Roles: claims.RealmAccess.Roles}, nil
}

// SignHMAC issues a token HMACVerifier accepts.
func SignHMAC(secret, subject string, roles ...string) (string, error) {
	claims := tokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}
	claims.RealmAccess.Roles = roles
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
