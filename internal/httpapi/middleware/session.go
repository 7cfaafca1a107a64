package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/suPer8Hu/nextile-ai/internal/common"
)

const (
	SessionCookie = "nextile_session"
	BrowserIDKey  = "browser_id"

	sessionTTL = 30 * 24 * time.Hour
	issuer     = "nextile"
)

// BrowserSession identifies the browser with a signed cookie whose subject is
// an opaque id. It is not authentication; it only keys the server-side session.
func BrowserSession(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := browserIDFromCookie(c, secret)
		if err != nil {
			if id, err = common.NewULID(); err != nil {
				common.AbortFail(c, http.StatusInternalServerError, 50000, "internal error")
				return
			}
			token, err := SignBrowserID(secret, id, time.Now())
			if err != nil {
				common.AbortFail(c, http.StatusInternalServerError, 50000, "internal error")
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, token, int(sessionTTL.Seconds()), "/", "", false, true)
		}
		c.Set(BrowserIDKey, id)
		c.Next()
	}
}

// BrowserID returns the id set by BrowserSession.
func BrowserID(c *gin.Context) string {
	return c.GetString(BrowserIDKey)
}

func SignBrowserID(secret []byte, id string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ParseBrowserID(secret []byte, token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("session token has no subject")
	}
	return claims.Subject, nil
}

func browserIDFromCookie(c *gin.Context, secret []byte) (string, error) {
	raw, err := c.Cookie(SessionCookie)
	if err != nil {
		return "", err
	}
	return ParseBrowserID(secret, raw)
}
