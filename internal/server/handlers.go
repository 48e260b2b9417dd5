package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/orchestrator"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	orch    *orchestrator.Orchestrator
	metrics *monitoring.Metrics
}

// NewHandlers creates a new handler set
func NewHandlers(orch *orchestrator.Orchestrator, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{orch: orch, metrics: metrics}
}

// statusFor maps an error classification to an HTTP status.
func statusFor(err error) int {
	switch errs.CodeOf(err) {
	case errs.CodeValidation:
		return http.StatusBadRequest
	case errs.CodePermissionDenied:
		return http.StatusForbidden
	case errs.CodeRateLimited, errs.CodeOverloaded, errs.CodeResourceExhausted:
		return http.StatusTooManyRequests
	case errs.CodeAlreadyExists:
		return http.StatusConflict
	case errs.CodeTimeout:
		return http.StatusGatewayTimeout
	case errs.CodeShuttingDown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error": err.Error(),
		"code":  string(errs.CodeOf(err)),
	})
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Isolate Orchestrator",
		"version": "0.1.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"stats":  h.orch.Stats(),
	})
}

// CreateSandbox creates an isolate and assigns its permission tier
func (h *Handlers) CreateSandbox(c *gin.Context) {
	var req types.CreateSandboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sb, err := h.orch.CreateSandbox(req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sandbox": sb})
}

// ListSandboxes lists live isolate ids
func (h *Handlers) ListSandboxes(c *gin.Context) {
	ids := h.orch.ListSandboxes()
	c.JSON(http.StatusOK, gin.H{"sandboxes": ids, "count": len(ids)})
}

// GetSandbox returns one sandbox snapshot
func (h *Handlers) GetSandbox(c *gin.Context) {
	sb, ok := h.orch.GetSandbox(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sandbox not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sandbox": sb})
}

// DeleteSandbox terminates an isolate; idempotent
func (h *Handlers) DeleteSandbox(c *gin.Context) {
	h.orch.DestroySandbox(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"terminated": c.Param("id")})
}

// AssignPermissions overwrites an isolate's permission tier
func (h *Handlers) AssignPermissions(c *gin.Context) {
	var req types.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	isolateID := c.Param("id")
	if _, live := h.orch.GetSandbox(isolateID); !live {
		c.JSON(http.StatusNotFound, gin.H{"error": "sandbox not found"})
		return
	}
	if err := h.orch.AssignPermissions(isolateID, req.Tier); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"isolate_id": isolateID, "tier": req.Tier})
}

// RunScript executes code inside the isolate's execution unit
func (h *Handlers) RunScript(c *gin.Context) {
	var req struct {
		Script string `json:"script" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.orch.RunScript(c.Request.Context(), c.Param("id"), req.Script)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": out})
}

// Execute routes one capability operation and returns its terminal
// message
func (h *Handlers) Execute(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.orch.HandleCapabilityRequest(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusOK
	if msg.Type == types.MessageError {
		status = statusFor(errs.New(errs.Code(msg.ErrorCode), msg.Operation, msg.IsolateID, msg.Error))
	}
	c.JSON(status, gin.H{"message": msg})
}

// Operations lists every supported operation id
func (h *Handlers) Operations(c *gin.Context) {
	ops := h.orch.SupportedOperations()
	c.JSON(http.StatusOK, gin.H{"operations": ops, "count": len(ops)})
}

// Stats aggregates subsystem counters
func (h *Handlers) Stats(c *gin.Context) {
	stats := h.orch.Stats()
	if h.metrics != nil {
		snap := h.metrics.GetSnapshot()
		stats["http"] = gin.H{
			"total_requests":   snap.TotalRequests,
			"total_errors":     snap.TotalErrors,
			"avg_duration_sec": h.metrics.AverageRequestSeconds(),
		}
		stats["capabilities"] = gin.H{
			"calls":    snap.CapabilityCalls,
			"denials":  snap.Denials,
			"timeouts": snap.Timeouts,
		}
	}
	c.JSON(http.StatusOK, stats)
}

// Alerts returns the advisory resource alert log
func (h *Handlers) Alerts(c *gin.Context) {
	alerts := h.orch.Alerts()
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}
