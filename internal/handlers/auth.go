package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"cogscreen-go/internal/auth"
	"cogscreen-go/internal/database"
	"cogscreen-go/internal/repository"
	"cogscreen-go/internal/results"
	"cogscreen-go/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	log      *zap.Logger
	issuer   *auth.Issuer
	store    results.Store
	sessions *services.SessionRegistry
}

func NewAuthHandler(log *zap.Logger, issuer *auth.Issuer, store results.Store, sessions *services.SessionRegistry) *AuthHandler {
	return &AuthHandler{log: log, issuer: issuer, store: store, sessions: sessions}
}

type loginRequest struct {
	PatientID string `json:"Patient_ID" form:"Patient_ID"`
	Password  string `json:"password" form:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil || req.PatientID == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Patient_ID and password are required"})
		return
	}
	if database.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Registered accounts are not available"})
		return
	}

	user, err := repository.GetUserByPatientID(c.Request.Context(), req.PatientID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		h.log.Error("Failed to load user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	if err != nil || !user.CheckPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Patient_ID or password"})
		return
	}

	session := sessions.Default(c)
	session.Set("userID", user.ID)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to login"})
		return
	}

	token, expires, err := h.issuer.Issue(strconv.FormatUint(uint64(user.ID), 10), auth.RoleUser, auth.UserTTL, nil)
	if err != nil {
		h.log.Error("Failed to issue user token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to login"})
		return
	}
	h.log.Info("User logged in", zap.Uint("userID", user.ID))
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": expires, "user": user.Profile()})
}

// GuestSession validates the intake scores and starts an anonymous session.
func (h *AuthHandler) GuestSession(c *gin.Context) {
	var req auth.GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	scores, err := req.Validate()
	if err != nil {
		if !validationError(c, err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	token, expires, err := h.issuer.IssueGuest(scores)
	if err != nil {
		h.log.Error("Failed to issue guest token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start guest session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": expires, "payload": scores})
}

// Logout ends the session and discards the caller's stored test records.
func (h *AuthHandler) Logout(c *gin.Context) {
	if p, ok := principal(c); ok {
		if err := h.store.ClearAll(c.Request.Context(), p.Owner(), results.TestRecordKeys...); err != nil {
			h.log.Warn("Failed to clear test records", zap.String("owner", p.Owner()), zap.Error(err))
		}
		h.sessions.Remove(p.Owner())
	}

	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// Me describes the caller and hands out the CSRF token of the cookie
// session.
func (h *AuthHandler) Me(c *gin.Context) {
	csrf, _ := c.Get("csrf_token")
	p, ok := principal(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "csrfToken": csrf})
		return
	}
	body := gin.H{"authenticated": true, "role": p.Role, "owner": p.Owner(), "csrfToken": csrf}
	if user, ok := currentUser(c); ok {
		body["user"] = user.Profile()
	}
	if p.Guest != nil {
		body["guest"] = p.Guest
	}
	c.JSON(http.StatusOK, body)
}
