package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/config"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"
)

// SessionAuth resolves the caller from an HS256 session token, read from the
// Authorization bearer header or the session cookie. The `sub` claim is the user id.
func SessionAuth(cfg *config.Config) gin.HandlerFunc {
	secret := []byte(cfg.Auth.JWTSecret)
	cookie := cfg.Auth.CookieName
	return func(c *gin.Context) {
		if len(secret) == 0 {
			abortWithError(c, apperr.Configuration("session auth is not configured"))
			return
		}
		raw := bearerToken(c)
		if raw == "" && cookie != "" {
			raw, _ = c.Cookie(cookie)
		}
		if raw == "" {
			abortWithError(c, apperr.Unauthorized("missing session token"))
			return
		}
		userID, err := ParseSessionToken(raw, secret)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(logctx.KeyUserID, userID)
		ctx := context.WithValue(c.Request.Context(), logctx.KeyUserID, userID)
		c.Request = c.Request.WithContext(ctx)
		if v, ok := c.Get(logctx.KeyLogger); ok {
			if l, ok := v.(*zap.SugaredLogger); ok && l != nil {
				setLogger(c, l.With("user_id", userID))
			}
		}
		c.Next()
	}
}

// ParseSessionToken validates raw and returns its subject.
func ParseSessionToken(raw string, secret []byte) (string, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", apperr.Unauthorized("invalid session token: %v", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", apperr.Unauthorized("invalid session token")
	}
	return claims.Subject, nil
}

// AdminAuth admits requests bearing the configured operator token.
// An empty admin token disables the admin surface.
func AdminAuth(cfg *config.Config) gin.HandlerFunc {
	want := []byte(cfg.Auth.AdminToken)
	return func(c *gin.Context) {
		got := []byte(bearerToken(c))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			abortWithError(c, apperr.Unauthorized("admin token required"))
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
