package handlers

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"cogscreen-go/internal/auth"
	"cogscreen-go/internal/database"
	"cogscreen-go/internal/repository"
	"cogscreen-go/internal/results"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

type ResultsHandler struct {
	log   *zap.Logger
	store results.Store
}

func NewResultsHandler(log *zap.Logger, store results.Store) *ResultsHandler {
	return &ResultsHandler{log: log, store: store}
}

// Records returns every stored test record of the caller, keyed by storage
// key. Missing records are omitted.
func (h *ResultsHandler) Records(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	out := make(map[string]json.RawMessage, len(results.TestRecordKeys))
	for _, key := range results.TestRecordKeys {
		raw, err := h.store.Read(c.Request.Context(), p.Owner(), key)
		if err != nil {
			continue
		}
		out[key] = raw
	}
	c.JSON(http.StatusOK, out)
}

// ClearRecords removes the caller's test records.
func (h *ResultsHandler) ClearRecords(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if err := h.store.ClearAll(c.Request.Context(), p.Owner(), results.TestRecordKeys...); err != nil {
		h.log.Error("Failed to clear test records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear records"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Timeline returns the echarts options of one metric across a registered
// participant's runs.
func (h *ResultsHandler) Timeline(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if p.Role != auth.RoleUser || database.DB == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "History is only kept for registered participants"})
		return
	}
	variant := strings.ToUpper(c.DefaultQuery("variant", "A"))
	metricKey := c.DefaultQuery("metric", "duration")
	if !slices.Contains(repository.TimelineMetrics(), metricKey) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown metric"})
		return
	}

	data, err := repository.GetTimelineData(c.Request.Context(), p.Owner(), variant, metricKey)
	if err != nil {
		h.log.Error("Failed to get timeline data", zap.Error(err), zap.String("variant", variant), zap.String("metricKey", metricKey))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load timeline data"})
		return
	}
	label := "Trail Making " + variant + ": " + metricLabel(metricKey)
	c.JSON(http.StatusOK, gin.H{
		"variant": variant,
		"metric":  metricKey,
		"points":  data,
		"chart":   generateTimelineChart(data, label).JSON(),
	})
}

func metricLabel(key string) string {
	switch key {
	case "duration":
		return "Completion Time (s)"
	case "errors":
		return "Errors"
	case "path_efficiency":
		return "Path Efficiency"
	case "release_precision":
		return "Release Precision"
	}
	return strings.ReplaceAll(key, "_", " ")
}

func generateTimelineChart(data []repository.TimelineDataPoint, metricLabel string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Metric Over Time",
			Subtitle: metricLabel,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "time",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:  "value",
			Scale: opts.Bool(true),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	items := make([]opts.LineData, 0, len(data))
	for _, point := range data {
		items = append(items, opts.LineData{Value: []interface{}{point.Date, point.Value}})
	}

	line.AddSeries(metricLabel, items).SetSeriesOptions(charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))
	return line
}
