package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/readerlab/reader-platform/internal/common"
)

const UserIDKey = "user_id"

type claims struct {
	UserID uint64 `json:"uid"`
	jwt.RegisteredClaims
}

func parseBearer(c *gin.Context, secret string) (uint64, error) {
	h := c.GetHeader("Authorization")
	if h == "" {
		return 0, errors.New("missing authorization header")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	if raw == "" || raw == h {
		return 0, errors.New("malformed authorization header")
	}

	var cl claims
	tok, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid || cl.UserID == 0 {
		return 0, errors.New("invalid token")
	}
	return cl.UserID, nil
}

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := parseBearer(c, secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			c.Abort()
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// AuthOptional attributes the request to a user when a valid token is
// present and lets anonymous requests through untouched.
func AuthOptional(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if uid, err := parseBearer(c, secret); err == nil {
				c.Set(UserIDKey, uid)
			}
		}
		c.Next()
	}
}
