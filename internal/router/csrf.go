package router

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"cogscreen-go/internal/auth"
	"cogscreen-go/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	csrfTokenSessionKey = "csrf_token"
	csrfTokenFormKey    = "_csrf"
	csrfTokenContextKey = "csrf_token"
	csrfTokenHeaderKey  = "X-CSRF-Token"
)

// csrfExempt lists routes that establish a session. They sit behind the
// login rate limiter instead.
var csrfExempt = map[string]bool{
	"/login":         true,
	"/guest/session": true,
}

var unsafeMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// CSRFProtection guards cookie-authenticated requests with a per-session
// token, published to clients through /api/me. Bearer requests skip it.
func CSRFProtection() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
			c.Next()
			return
		}

		session := sessions.Default(c)
		token, err := sessionCSRFToken(session)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not establish session"})
			return
		}
		c.Set(csrfTokenContextKey, token)

		if !unsafeMethods[c.Request.Method] || csrfExempt[c.FullPath()] {
			c.Next()
			return
		}

		submitted := c.GetHeader(csrfTokenHeaderKey)
		if submitted == "" {
			submitted = c.PostForm(csrfTokenFormKey)
		}
		if subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1 {
			if c.GetHeader("HX-Request") == "true" {
				c.Header("HX-Redirect", "/")
			}
			_ = c.Error(errors.New("invalid CSRF token"))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid CSRF token"})
			return
		}
		c.Next()
	}
}

// sessionCSRFToken returns the session's token, minting one on first use.
func sessionCSRFToken(session sessions.Session) (string, error) {
	if token, ok := session.Get(csrfTokenSessionKey).(string); ok && token != "" {
		return token, nil
	}
	token, err := utils.GenerateSecureToken(32)
	if err != nil {
		return "", errors.New("failed to generate CSRF token")
	}
	session.Set(csrfTokenSessionKey, token)
	if err := session.Save(); err != nil {
		return "", errors.New("failed to save session")
	}
	return token, nil
}
