package utils

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DocumentTokenClaims grants one user access to one document session.
type DocumentTokenClaims struct {
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	jwt.RegisteredClaims
}

// ValidateDocumentToken validates an HS256 token and returns its claims.
func ValidateDocumentToken(tokenString string, secret []byte) (*DocumentTokenClaims, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &DocumentTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*DocumentTokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.DocumentID == "" || claims.UserID == "" {
		return nil, errors.New("token missing documentId or userId")
	}
	return claims, nil
}

// SignDocumentToken issues a token for documentID, valid for ttl.
func SignDocumentToken(documentID, userID, username string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := &DocumentTokenClaims{
		DocumentID: documentID,
		UserID:     userID,
		Username:   username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ExtractTokenFromHeader extracts the token from the Authorization header
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}

	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return "", errors.New("invalid authorization header format")
	}

	return authHeader[7:], nil
}

// TokenFromRequest reads ?token= first (browsers cannot set headers on a
// WebSocket upgrade), then the Authorization header. Empty when neither is set.
func TokenFromRequest(r *http.Request) string {
	if tok := strings.TrimSpace(r.URL.Query().Get("token")); tok != "" {
		return tok
	}
	tok, err := ExtractTokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		return ""
	}
	return tok
}
