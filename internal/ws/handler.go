package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/logging"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/orchestrator"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Handler manages WebSocket connections
type Handler struct {
	orch    *orchestrator.Orchestrator
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewHandler creates a new WebSocket handler. metrics may be nil.
func NewHandler(orch *orchestrator.Orchestrator, metrics *monitoring.Metrics, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handler{orch: orch, metrics: metrics, log: log}
}

// conn serializes writes; capability requests complete concurrently.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(v interface{}) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	cn := &conn{ws: ws}
	cn.write(map[string]interface{}{
		"type":    "system",
		"message": "Connected to isolate orchestrator",
	})

	reqCtx := c.Request.Context()
	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg types.Message
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			cn.write(&types.Message{
				Type:      types.MessageError,
				Timestamp: time.Now(),
				Error:     "malformed message: " + err.Error(),
			})
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", string(msg.Type))
		}

		switch msg.Type {
		case types.MessageRequest:
			inflight.Add(1)
			go func(msg types.Message) {
				defer inflight.Done()
				h.handleRequest(cn, reqCtx, msg)
			}(msg)
		case "ping":
			cn.write(map[string]interface{}{"type": "pong"})
		default:
			cn.write(&types.Message{
				Type:          types.MessageError,
				Timestamp:     time.Now(),
				Error:         "unknown message type",
				CorrelationID: msg.ID,
			})
		}
	}
}

// handleRequest dispatches one capability request and writes its
// terminal message back. The client correlates by the id it sent.
func (h *Handler) handleRequest(cn *conn, reqCtx context.Context, msg types.Message) {
	terminal, err := h.orch.HandleCapabilityRequest(reqCtx, types.ExecuteRequest{
		IsolateID: msg.IsolateID,
		Operation: msg.Operation,
		Params:    msg.Payload,
	})
	if err != nil {
		terminal = &types.Message{
			Type:      types.MessageError,
			Operation: msg.Operation,
			IsolateID: msg.IsolateID,
			Timestamp: time.Now(),
			Error:     err.Error(),
			ErrorCode: string(errs.CodeOf(err)),
		}
	}
	// Correlate with the id the client supplied, if any.
	if msg.ID != "" {
		terminal.CorrelationID = msg.ID
	}

	if h.metrics != nil {
		h.metrics.RecordWSMessage("out", string(terminal.Type))
	}
	if err := cn.write(terminal); err != nil {
		h.log.Debug("WebSocket write failed", zap.Error(err))
	}
}
