package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gimat/hydrocast/internal/models"
	"github.com/gimat/hydrocast/internal/services"
)

// ForecastHandler exposes the forecasting core over HTTP.
type ForecastHandler struct {
	orchestrator *services.Orchestrator
	logger       *logrus.Logger
}

func NewForecastHandler(orchestrator *services.Orchestrator, logger *logrus.Logger) *ForecastHandler {
	return &ForecastHandler{orchestrator: orchestrator, logger: logger}
}

// forecastRequestBody is the wire shape of POST /api/v1/forecast.
type forecastRequestBody struct {
	StationID string `json:"station_id" binding:"required"`
	Variable  string `json:"variable"`
	Horizon   int    `json:"horizon"`
	Model     string `json:"model"`
}

// CreateForecast handles POST /api/v1/forecast.
func (h *ForecastHandler) CreateForecast(c *gin.Context) {
	var body forecastRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	req := &models.ForecastRequest{
		StationID: body.StationID,
		Variable:  models.Variable(body.Variable),
		Horizon:   body.Horizon,
		Model:     models.ModelKind(body.Model),
	}

	result, err := h.orchestrator.Forecast(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// evaluateRequestBody is the wire shape of POST /api/v1/evaluate.
type evaluateRequestBody struct {
	StationID string    `json:"station_id" binding:"required"`
	Variable  string    `json:"variable"`
	Model     string    `json:"model"`
	From      time.Time `json:"from" binding:"required"`
	To        time.Time `json:"to" binding:"required"`
}

// Evaluate handles POST /api/v1/evaluate.
func (h *ForecastHandler) Evaluate(c *gin.Context) {
	var body evaluateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if !body.To.After(body.From) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "evaluation period must end after it starts"})
		return
	}

	variable := models.Variable(body.Variable)
	if variable == "" {
		variable = models.VariableDischarge
	}
	model := models.ModelKind(body.Model)
	if model == "" {
		model = models.ModelHybrid
	}

	metrics, err := h.orchestrator.Evaluate(c.Request.Context(), body.StationID, variable, model, body.From, body.To)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, metrics)
}

// ListModels handles GET /api/v1/forecast/models.
func (h *ForecastHandler) ListModels(c *gin.Context) {
	kinds := models.KnownModelKinds()
	out := make([]gin.H, 0, len(kinds))
	descriptions := map[models.ModelKind]string{
		models.ModelTrend:       "seasonal autoregressive forecast of the approximation component",
		models.ModelFluctuation: "bidirectional-context forecast of the detail components",
		models.ModelSpatial:     "upstream propagation adjustment over the river network",
		models.ModelHybrid:      "all components combined with confidence bounds",
	}
	for _, k := range kinds {
		out = append(out, gin.H{"name": string(k), "description": descriptions[k]})
	}
	c.JSON(http.StatusOK, gin.H{"models": out})
}

// writeError maps the core error taxonomy onto HTTP statuses.
func (h *ForecastHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInsufficientHistory):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("forecast request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// TopologyHandler exposes neighbor queries for inspection and debugging of
// the network graph the spatial predictor consumes.
type TopologyHandler struct {
	query   services.TopologyQuerier
	maxHops int
}

func NewTopologyHandler(query services.TopologyQuerier, maxHops int) *TopologyHandler {
	return &TopologyHandler{query: query, maxHops: maxHops}
}

// GetNeighbors handles GET /api/v1/stations/:id/neighbors.
func (h *TopologyHandler) GetNeighbors(c *gin.Context) {
	stationID := c.Param("id")

	maxHops := h.maxHops
	if raw := c.Query("max_hops"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_hops must be a positive integer"})
			return
		}
		maxHops = parsed
	}

	neighbors, err := h.query.UpstreamOf(c.Request.Context(), stationID, maxHops)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"station_id": stationID,
		"upstream":   neighbors,
		"count":      len(neighbors),
	})
}
