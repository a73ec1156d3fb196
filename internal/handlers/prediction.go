package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"cogscreen-go/internal/database"
	"cogscreen-go/internal/models"
	"cogscreen-go/internal/prediction"
	"cogscreen-go/internal/repository"
	"cogscreen-go/internal/results"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Predictor scores a payload.
type Predictor interface {
	Predict(ctx context.Context, p prediction.Payload) (*prediction.Result, error)
}

type PredictionHandler struct {
	log       *zap.Logger
	store     results.Store
	predictor Predictor
}

func NewPredictionHandler(log *zap.Logger, store results.Store, predictor Predictor) *PredictionHandler {
	return &PredictionHandler{log: log, store: store, predictor: predictor}
}

// Predict assembles the caller's results and asks the model for a verdict.
func (h *PredictionHandler) Predict(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var userScores, guestScores prediction.Scores
	if user, ok := currentUser(c); ok {
		userScores = prediction.Scores{CDRSum: user.CDRSum, CDRMemory: user.CDRMemory, CDRGlob: user.CDRGlob, MMSE: user.MMSEScore}
	}
	if g := p.Guest; g != nil {
		mmse := float64(g.NACCMMSE)
		guestScores = prediction.Scores{CDRSum: &g.CDRSum, CDRMemory: &g.CDRMemory, CDRGlob: &g.CDRGlob, MMSE: &mmse}
	}

	payload, err := prediction.Collect(ctx, h.store, p.Owner(), userScores, guestScores)
	if err != nil {
		h.log.Error("Failed to collect prediction inputs", zap.String("owner", p.Owner()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect results"})
		return
	}

	result, err := h.predictor.Predict(ctx, payload)
	if err != nil {
		h.log.Warn("Prediction service failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if database.DB != nil {
		raw, _ := json.Marshal(payload)
		record := &models.PredictionRecord{
			OwnerID:     p.Owner(),
			Role:        string(p.Role),
			Payload:     raw,
			Prediction:  result.Prediction,
			Probability: result.Probability,
		}
		if err := repository.SavePredictionRecord(ctx, record); err != nil {
			h.log.Warn("Failed to save prediction record", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"prediction":  result.Prediction,
		"probability": result.Probability,
		"message":     result.Message(),
		"percentage":  result.Percentage(),
		"payload":     payload,
	})
}
