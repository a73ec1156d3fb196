package router

import (
	"net/http"

	"cogscreen-go/internal/utils"

	"github.com/gin-gonic/gin"
)

const CspNonceContextKey = "csp_nonce"

// NonceMiddleware draws a fresh nonce for every response and stores it in
// the context for the Content-Security-Policy header.
func NonceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce, err := utils.GenerateSecureToken(16)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare response"})
			return
		}
		c.Set(CspNonceContextKey, nonce)
		c.Next()
	}
}
