package broker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/infrastructure/config"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/logging"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/id"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

// entry is one in-flight request awaiting its terminal message.
type entry struct {
	msg      *types.Message
	deadline time.Time
	done     chan *types.Message // buffered, receives exactly one terminal message
	timer    *time.Timer
}

// Broker routes capability messages and guarantees exactly one terminal
// response or error per request.
type Broker struct {
	cfg     config.BrokerConfig
	log     *logging.Logger
	factory *capability.Factory
	base    *capability.Base

	mu        sync.Mutex
	pending   map[string]*entry
	dbCache   map[string]capability.Handler
	processed uint64
	closed    bool

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a broker over the given handler factory and execution
// pipeline.
func New(cfg config.BrokerConfig, factory *capability.Factory, base *capability.Base, log *logging.Logger) *Broker {
	if log == nil {
		log = logging.NewNop()
	}
	return &Broker{
		cfg:     cfg,
		log:     log,
		factory: factory,
		base:    base,
		pending: make(map[string]*entry),
		dbCache: make(map[string]capability.Handler),
		stop:    make(chan struct{}),
	}
}

// Start launches the expiry sweep.
func (b *Broker) Start() {
	b.wg.Add(1)
	go b.sweepLoop()
}

// SendRequest dispatches one capability operation and blocks the caller
// until its own terminal message arrives. Concurrent calls do not
// serialize against each other; responses arrive in completion order.
func (b *Broker) SendRequest(ctx context.Context, isolateID, operation string, payload map[string]interface{}, timeout time.Duration) (*types.Message, error) {
	if timeout <= 0 {
		timeout = b.cfg.DefaultTimeout
	}

	msg := &types.Message{
		ID:        id.NewMessageID().String(),
		Type:      types.MessageRequest,
		Operation: operation,
		IsolateID: isolateID,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errs.New(errs.CodeShuttingDown, operation, isolateID, "broker is shutting down")
	}
	if b.cfg.MaxPending > 0 && len(b.pending) >= b.cfg.MaxPending {
		b.mu.Unlock()
		return nil, errs.New(errs.CodeOverloaded, operation, isolateID, "pending request ceiling reached")
	}
	e := &entry{
		msg:      msg,
		deadline: time.Now().Add(timeout),
		done:     make(chan *types.Message, 1),
	}
	e.timer = time.AfterFunc(timeout, func() { b.expire(msg.ID) })
	b.pending[msg.ID] = e
	b.mu.Unlock()

	go b.dispatch(msg, timeout)

	select {
	case terminal := <-e.done:
		return terminal, nil
	case <-ctx.Done():
		// The caller gave up; resolve the entry so the late handler
		// completion is discarded rather than leaked.
		b.resolve(msg.ID, errorMessage(msg, errs.CodeTimeout, "caller cancelled"))
		select {
		case terminal := <-e.done:
			return terminal, nil
		default:
			return nil, ctx.Err()
		}
	}
}

// dispatch resolves the handler and runs the pipeline. The result is
// delivered through resolve; if the entry has already expired the
// terminal message is discarded.
func (b *Broker) dispatch(msg *types.Message, timeout time.Duration) {
	handler := b.handlerFor(msg)
	if handler == nil {
		b.resolve(msg.ID, errorMessage(msg, errs.CodeValidation, "no handler for operation "+msg.Operation))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result := b.base.Run(ctx, handler, msg)
	if result.Success {
		b.resolve(msg.ID, &types.Message{
			ID:            id.NewMessageID().String(),
			Type:          types.MessageResponse,
			Operation:     msg.Operation,
			IsolateID:     msg.IsolateID,
			Timestamp:     time.Now(),
			Payload:       result.Data,
			CorrelationID: msg.ID,
		})
		return
	}
	reason := "execution failed"
	if result.Error != nil {
		reason = *result.Error
	}
	b.resolve(msg.ID, errorMessage(msg, errs.Code(result.Code), reason))
}

// handlerFor routes by domain prefix. Database handlers are cached per
// isolate; everything else shares one instance.
func (b *Broker) handlerFor(msg *types.Message) capability.Handler {
	if permissions.Domain(msg.Operation) != "database" {
		return b.factory.Handler(msg.Operation)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if h, ok := b.dbCache[msg.IsolateID]; ok {
		return h
	}
	h := b.factory.NewInstance(msg.Operation)
	if h != nil {
		b.dbCache[msg.IsolateID] = h
	}
	return h
}

// resolve delivers the terminal message for a pending entry. It is safe
// to call for an already-removed id; the message is then dropped, which
// is exactly the late-completion contract.
func (b *Broker) resolve(msgID string, terminal *types.Message) {
	b.mu.Lock()
	e, ok := b.pending[msgID]
	if ok {
		delete(b.pending, msgID)
		e.timer.Stop()
		b.processed++
	}
	b.mu.Unlock()

	if !ok {
		b.log.Debug("Discarding late completion", zap.String("message_id", msgID))
		return
	}
	e.done <- terminal
}

// expire rejects a pending entry whose deadline elapsed.
func (b *Broker) expire(msgID string) {
	b.mu.Lock()
	e, ok := b.pending[msgID]
	if ok {
		delete(b.pending, msgID)
		b.processed++
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	e.done <- errorMessage(e.msg, errs.CodeTimeout, "request deadline exceeded")
}

// ReleaseIsolate purges the isolate's cached database handler and fans
// teardown out to shared handlers with per-isolate state.
func (b *Broker) ReleaseIsolate(isolateID string) {
	b.mu.Lock()
	h, ok := b.dbCache[isolateID]
	delete(b.dbCache, isolateID)
	b.mu.Unlock()

	if ok {
		if r, releasable := h.(capability.Releaser); releasable {
			r.ReleaseIsolate(isolateID)
		}
	}
	b.factory.ReleaseIsolate(isolateID)
}

// Stats reports broker counters.
func (b *Broker) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]interface{}{
		"pending":           len(b.pending),
		"handlers":          b.factory.Count(),
		"database_handlers": len(b.dbCache),
		"processed":         b.processed,
	}
}

// Shutdown rejects every pending entry and clears internal state. The
// broker accepts no requests afterwards.
func (b *Broker) Shutdown() {
	b.stopOnce.Do(func() { close(b.stop) })
	b.wg.Wait()

	b.mu.Lock()
	b.closed = true
	doomed := make([]*entry, 0, len(b.pending))
	for _, e := range b.pending {
		e.timer.Stop()
		doomed = append(doomed, e)
	}
	b.pending = make(map[string]*entry)
	b.dbCache = make(map[string]capability.Handler)
	b.mu.Unlock()

	for _, e := range doomed {
		e.done <- errorMessage(e.msg, errs.CodeShuttingDown, "broker is shutting down")
	}
}

func (b *Broker) sweepLoop() {
	defer b.wg.Done()
	interval := b.cfg.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.sweep()
		case <-b.stop:
			return
		}
	}
}

// sweep purges entries that outlived deadline plus grace. The timer
// normally fires first; this is the backstop against a misfired timer
// leaking an entry forever.
func (b *Broker) sweep() {
	now := time.Now()
	var doomed []*entry

	b.mu.Lock()
	for msgID, e := range b.pending {
		if now.After(e.deadline.Add(b.cfg.ExpiryGrace)) {
			delete(b.pending, msgID)
			e.timer.Stop()
			b.processed++
			doomed = append(doomed, e)
		}
	}
	b.mu.Unlock()

	for _, e := range doomed {
		b.log.Warn("Sweeping expired entry",
			zap.String("message_id", e.msg.ID),
			zap.String("operation", e.msg.Operation))
		e.done <- errorMessage(e.msg, errs.CodeTimeout, "request deadline exceeded")
	}
}

func errorMessage(req *types.Message, code errs.Code, reason string) *types.Message {
	return &types.Message{
		ID:            id.NewMessageID().String(),
		Type:          types.MessageError,
		Operation:     req.Operation,
		IsolateID:     req.IsolateID,
		Timestamp:     time.Now(),
		Error:         reason,
		ErrorCode:     string(code),
		CorrelationID: req.ID,
	}
}
