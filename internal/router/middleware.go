package router

import (
	"net/http"
	"strconv"
	"strings"

	"cogscreen-go/internal/auth"
	"cogscreen-go/internal/database"
	"cogscreen-go/internal/repository"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserLoaderMiddleware resolves the caller. A bearer token wins over the
// cookie session; a registered participant is loaded from the database so
// that deleted accounts stop working immediately.
func UserLoaderMiddleware(log *zap.Logger, issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
			claims, err := issuer.Parse(token)
			if err != nil {
				c.Set("auth_error", err)
				c.Next()
				return
			}
			p, err := auth.FromClaims(claims)
			if err != nil {
				c.Set("auth_error", err)
				c.Next()
				return
			}
			if p.Role == auth.RoleUser && !loadUser(c, log, p.UserID) {
				c.Next()
				return
			}
			c.Set(auth.PrincipalContextKey, p)
			c.Next()
			return
		}

		session := sessions.Default(c)
		userID, ok := session.Get("userID").(uint)
		if !ok {
			// No user ID in session, proceed anonymously.
			c.Next()
			return
		}
		if !loadUser(c, log, userID) {
			// User ID from session is invalid (user was deleted, etc.)
			// Clear the bad session and proceed anonymously.
			session.Clear()
			session.Options(sessions.Options{Path: "/", MaxAge: -1})
			session.Save()
			c.Next()
			return
		}
		c.Set(auth.PrincipalContextKey, auth.Principal{
			Subject: strconv.FormatUint(uint64(userID), 10),
			Role:    auth.RoleUser,
			UserID:  userID,
		})
		c.Next()
	}
}

func loadUser(c *gin.Context, log *zap.Logger, id uint) bool {
	if database.DB == nil {
		return false
	}
	user, err := repository.GetUserByID(c.Request.Context(), id)
	if err != nil {
		log.Debug("Rejected unknown user", zap.Uint("userID", id), zap.Error(err))
		return false
	}
	c.Set("user", user)
	return true
}

// AuthRequired rejects requests without a guest or user principal. API
// callers get a JSON 401, browsers are sent back to the start page.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(auth.PrincipalContextKey); exists {
			c.Next()
			return
		}
		if wantsJSON(c) {
			msg := "Authentication required"
			if err, ok := c.Get("auth_error"); ok {
				msg = err.(error).Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		if c.GetHeader("HX-Request") == "true" {
			c.Header("HX-Redirect", "/")
		} else {
			c.Redirect(http.StatusFound, "/")
		}
		c.Abort()
	}
}

func wantsJSON(c *gin.Context) bool {
	if _, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
		return true
	}
	if c.Request.Method != http.MethodGet {
		return true
	}
	return strings.HasPrefix(c.Request.URL.Path, "/api/") ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}
