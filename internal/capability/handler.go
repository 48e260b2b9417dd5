package capability

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/logging"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

// Definition describes one capability domain.
type Definition struct {
	Domain      string       `json:"domain"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Tools       []types.Tool `json:"tools"`
}

// Handler implements one privileged domain's operations.
type Handler interface {
	Definition() Definition
	Execute(ctx context.Context, operation string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error)
}

// Releaser is implemented by handlers that keep per-isolate state and
// must be purged when the owning isolate terminates.
type Releaser interface {
	ReleaseIsolate(isolateID string)
}

// Recorder receives execution timings. Satisfied by the monitoring
// metrics collector; nil disables recording.
type Recorder interface {
	RecordCapability(domain, operation, code string, duration time.Duration)
}

// Base is the shared scaffold every concrete handler runs behind.
type Base struct {
	perms   *permissions.Engine
	log     *logging.Logger
	metrics Recorder
}

// NewBase creates the handler scaffold.
func NewBase(perms *permissions.Engine, log *logging.Logger, metrics Recorder) *Base {
	if log == nil {
		log = logging.NewNop()
	}
	return &Base{perms: perms, log: log, metrics: metrics}
}

// Run executes one capability operation through the full pipeline:
// shape validation, authorization, rate-limit accounting, timed domain
// execution, and error classification.
func (b *Base) Run(ctx context.Context, h Handler, msg *types.Message) *types.Result {
	if msg.IsolateID == "" {
		return failure(errs.Validation(msg.Operation, msg.IsolateID, "isolate id is required"))
	}
	if msg.Payload == nil {
		return failure(errs.Validation(msg.Operation, msg.IsolateID, "payload is required"))
	}

	decision := b.perms.Validate(msg.IsolateID, msg.Operation, msg.Payload)
	if !decision.Allowed {
		if decision.Code == errs.CodePermissionDenied {
			// Security-relevant denial: always audit, never retried.
			b.log.Audit().Warn("Permission denied",
				zap.String("isolate_id", msg.IsolateID),
				zap.String("operation", msg.Operation),
				zap.String("reason", decision.Reason))
		}
		return failure(errs.New(decision.Code, msg.Operation, msg.IsolateID, decision.Reason))
	}

	b.perms.RecordRequest(msg.IsolateID, msg.Operation)

	start := time.Now()
	data, err := h.Execute(ctx, msg.Operation, msg.Payload, &types.Context{
		IsolateID: msg.IsolateID,
		MessageID: msg.ID,
	})
	elapsed := time.Since(start)

	var result *types.Result
	if err != nil {
		result = failure(classify(err, msg.Operation, msg.IsolateID))
	} else {
		result = &types.Result{Success: true, Data: data}
	}

	if b.metrics != nil {
		code := result.Code
		if result.Success {
			code = "ok"
		}
		b.metrics.RecordCapability(h.Definition().Domain, msg.Operation, code, elapsed)
	}
	b.log.Debug("Capability executed",
		zap.String("isolate_id", msg.IsolateID),
		zap.String("operation", msg.Operation),
		zap.Bool("success", result.Success),
		zap.Duration("duration", elapsed))

	return result
}

// classify ensures every handler failure carries a code plus operation
// and isolate context.
func classify(err error, operation, isolateID string) *errs.Error {
	var e *errs.Error
	if errors.As(err, &e) {
		if e.Operation == "" {
			e.Operation = operation
		}
		if e.IsolateID == "" {
			e.IsolateID = isolateID
		}
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.CodeTimeout, operation, isolateID, err)
	}
	return errs.Execution(operation, isolateID, err)
}

func failure(err *errs.Error) *types.Result {
	msg := err.Error()
	return &types.Result{Success: false, Error: &msg, Code: string(err.Code)}
}
