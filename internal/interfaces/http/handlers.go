package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/decorcrm/approval-engine/internal/application/service"
	"github.com/decorcrm/approval-engine/internal/domain/approval"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	flows     service.FlowService
	gate      service.GateService
	decisions service.DecisionService
	tasks     service.TaskQueryService
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	flows service.FlowService,
	gate service.GateService,
	decisions service.DecisionService,
	tasks service.TaskQueryService,
	logger Logger,
) *Handlers {
	return &Handlers{
		flows:     flows,
		gate:      gate,
		decisions: decisions,
		tasks:     tasks,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// SaveFlow handles POST /api/flows
func (h *Handlers) SaveFlow(c *gin.Context) {
	var input service.SaveFlowInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	input.TenantID = c.GetString("tenant_id")

	flow, err := h.flows.SaveFlow(c.Request.Context(), input)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: flow})
}

// ListFlows handles GET /api/flows, optionally filtered by ?module=
func (h *Handlers) ListFlows(c *gin.Context) {
	flows, err := h.flows.ListFlows(c.Request.Context(), c.GetString("tenant_id"))
	if err != nil {
		h.serviceError(c, err)
		return
	}

	if module := c.Query("module"); module != "" {
		filtered := flows[:0]
		for _, flow := range flows {
			if flow.Module == module {
				filtered = append(filtered, flow)
			}
		}
		flows = filtered
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: flows})
}

// GetFlow handles GET /api/flows/:id
func (h *Handlers) GetFlow(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	flow, err := h.flows.GetFlow(c.Request.Context(), c.GetString("tenant_id"), id)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: flow})
}

// DeactivateFlow handles POST /api/flows/:id/deactivate
func (h *Handlers) DeactivateFlow(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.flows.DeactivateFlow(c.Request.Context(), c.GetString("tenant_id"), id); err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// EvaluateTrigger handles POST /api/triggers/evaluate
func (h *Handlers) EvaluateTrigger(c *gin.Context) {
	var input service.TriggerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	input.TenantID = c.GetString("tenant_id")

	result, err := h.gate.EvaluateTrigger(c.Request.Context(), input)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ProcessDecision handles POST /api/decisions
func (h *Handlers) ProcessDecision(c *gin.Context) {
	var input service.DecisionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	input.TenantID = c.GetString("tenant_id")

	instance, err := h.decisions.ProcessDecision(c.Request.Context(), input)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// inboxQuery represents query parameters for the task inbox endpoints
type inboxQuery struct {
	UserID string `form:"user_id"`
	Limit  int    `form:"limit"`
}

// ListPendingTasks handles GET /api/tasks/pending
func (h *Handlers) ListPendingTasks(c *gin.Context) {
	var query inboxQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}

	views, err := h.tasks.ListPendingTasks(c.Request.Context(), c.GetString("tenant_id"), query.UserID, query.Limit)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: views})
}

// ListProcessedTasks handles GET /api/tasks/processed
func (h *Handlers) ListProcessedTasks(c *gin.Context) {
	var query inboxQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}

	views, err := h.tasks.ListProcessedTasks(c.Request.Context(), c.GetString("tenant_id"), query.UserID, query.Limit)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: views})
}

// GetInstanceProgress handles GET /api/instances/:id/progress
func (h *Handlers) GetInstanceProgress(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	progress, err := h.tasks.GetInstanceProgress(c.Request.Context(), c.GetString("tenant_id"), id)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: progress})
}

// ListUnreconciled handles GET /api/instances/unreconciled
func (h *Handlers) ListUnreconciled(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	instances, err := h.tasks.ListUnreconciled(c.Request.Context(), c.GetString("tenant_id"), limit)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instances})
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// serviceError maps domain errors to HTTP status codes
func (h *Handlers) serviceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, approval.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, approval.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, approval.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, approval.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, approval.ErrRateLimited):
		status = http.StatusTooManyRequests
	default:
		h.logger.Error("Unhandled service error", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}
