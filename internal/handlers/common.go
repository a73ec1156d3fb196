package handlers

import (
	"errors"
	"net/http"

	"cogscreen-go/internal/auth"
	"cogscreen-go/internal/models"
	"cogscreen-go/internal/utils"

	"github.com/gin-gonic/gin"
)

// principal returns the caller set by the router's identity middleware.
func principal(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(auth.PrincipalContextKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

func requirePrincipal(c *gin.Context) (auth.Principal, bool) {
	p, ok := principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return auth.Principal{}, false
	}
	return p, true
}

// currentUser returns the loaded user of a registered participant.
func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

func validationError(c *gin.Context, err error) bool {
	var verr *utils.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return true
	}
	return false
}
