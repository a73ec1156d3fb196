package handlers

import (
	"errors"
	"net/http"

	"cogscreen-go/internal/metrics"
	"cogscreen-go/internal/services"
	"cogscreen-go/internal/tmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TMTHandler struct {
	log      *zap.Logger
	sessions *services.SessionRegistry
}

func NewTMTHandler(log *zap.Logger, sessions *services.SessionRegistry) *TMTHandler {
	return &TMTHandler{log: log, sessions: sessions}
}

type variantInfo struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Labels   []string `json:"labels"`
	MaxBatch int      `json:"maxBatch"` // events per /events call, 0 for no cap
}

func (h *TMTHandler) Variants(c *gin.Context) {
	catalog := h.sessions.Catalog()
	out := make([]variantInfo, 0, len(catalog))
	for _, id := range catalog.IDs() {
		v := catalog[id]
		labels := make([]string, len(v.Sequence))
		for i, l := range v.Sequence {
			labels[i] = l.String()
		}
		out = append(out, variantInfo{ID: v.ID, Title: v.Title, Labels: labels, MaxBatch: h.sessions.MaxBatch()})
	}
	c.JSON(http.StatusOK, out)
}

// fail maps registry errors to responses.
func (h *TMTHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tmt.ErrUnknownVariant):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrBatchTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "maxBatch": h.sessions.MaxBatch()})
	case errors.Is(err, services.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		h.log.Error("Trail making request failed", zap.String("variant", c.Param("variant")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Trail making test unavailable"})
	}
}

func (h *TMTHandler) Snapshot(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	snap, err := h.sessions.Snapshot(p.Owner(), c.Param("variant"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *TMTHandler) Start(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	snap, err := h.sessions.Start(c.Request.Context(), p.Owner(), c.Param("variant"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *TMTHandler) Reset(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	snap, err := h.sessions.Reset(p.Owner(), c.Param("variant"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type eventsRequest struct {
	Events []services.PointerEvent `json:"events" binding:"required"`
}

// Events applies a batch of raw pointer events in order.
func (h *TMTHandler) Events(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req eventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event batch"})
		return
	}
	outcomes, snap, err := h.sessions.Dispatch(p.Owner(), c.Param("variant"), req.Events)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes, "snapshot": snap})
}

func (h *TMTHandler) Result(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	res, found, err := h.sessions.LatestResult(c.Request.Context(), p.Owner(), c.Param("variant"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "No result recorded"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Summary pairs the latest A and B results.
func (h *TMTHandler) Summary(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var parts [2]*tmt.Result
	for i, id := range []string{"A", "B"} {
		res, found, err := h.sessions.LatestResult(ctx, p.Owner(), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		if found {
			parts[i] = &res
		}
	}
	c.JSON(http.StatusOK, metrics.Summarize(parts[0], parts[1]))
}

type submitRequest struct {
	Duration *float64 `json:"duration" binding:"required"`
	Errors   *int     `json:"errors" binding:"required"`
}

// Submit records a result measured by the browser.
func (h *TMTHandler) Submit(variant string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := requirePrincipal(c)
		if !ok {
			return
		}
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration and errors are required"})
			return
		}
		if *req.Duration <= 0 || *req.Errors < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be positive and errors non-negative"})
			return
		}
		res := tmt.Result{Duration: *req.Duration, Errors: *req.Errors}
		if err := h.sessions.RecordResult(c.Request.Context(), p.Owner(), variant, res); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Result saved", "result": res})
	}
}
