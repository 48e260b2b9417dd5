package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/broker"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability/canvas"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability/database"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability/dom"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability/file"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability/network"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability/process"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/infrastructure/config"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/logging"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/sandbox"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

// DefaultTier is assigned when sandbox creation names no tier.
const DefaultTier = permissions.TierBasic

// Orchestrator wires the capability subsystems together.
type Orchestrator struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *monitoring.Metrics

	perms   *permissions.Engine
	factory *capability.Factory
	broker  *broker.Broker
	manager *sandbox.Manager
	store   database.Store
}

// New builds an orchestrator from configuration. metrics may be nil.
func New(cfg *config.Config, log *logging.Logger, metrics *monitoring.Metrics) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.NewNop()
	}

	perms := permissions.NewEngine(log)

	store, err := database.OpenSQLite(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	factory := capability.NewFactory()
	factory.Register("file", func() capability.Handler { return file.New(cfg.Storage.Root, perms) })
	factory.Register("network", func() capability.Handler { return network.New(perms) })
	factory.Register("canvas", func() capability.Handler { return canvas.New(perms) })
	factory.Register("database", func() capability.Handler { return database.New(store) })
	factory.Register("process", func() capability.Handler { return process.New(perms) })
	factory.Register("dom", func() capability.Handler { return dom.New(perms) })

	var recorder capability.Recorder
	if metrics != nil {
		recorder = metrics
	}
	base := capability.NewBase(perms, log, recorder)
	brk := broker.New(cfg.Broker, factory, base, log)
	mgr := sandbox.NewManager(cfg.Sandbox, nil, log)

	o := &Orchestrator{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		perms:   perms,
		factory: factory,
		broker:  brk,
		manager: mgr,
		store:   store,
	}

	// Termination purges everything keyed by the isolate id, explicit
	// or sweep-initiated alike.
	mgr.OnTerminate(func(isolateID string) {
		perms.Remove(isolateID)
		brk.ReleaseIsolate(isolateID)
		o.updateGauges()
	})

	return o, nil
}

// Start launches background maintenance (idle sweep, resource sampler,
// broker expiry sweep).
func (o *Orchestrator) Start() {
	o.manager.Start()
	o.broker.Start()
	o.log.Info("Orchestrator started",
		zap.Strings("domains", o.factory.Domains()))
}

// CreateSandbox creates an isolate and assigns its permission tier.
func (o *Orchestrator) CreateSandbox(req types.CreateSandboxRequest) (sandbox.Sandbox, error) {
	if req.Tier == "" {
		req.Tier = DefaultTier
	}
	if permissions.TierByName(req.Tier) == nil {
		return sandbox.Sandbox{}, errs.Validation("sandbox.create", req.ID, "unknown permission tier: "+req.Tier)
	}

	sb, err := o.manager.Create(req)
	if err != nil {
		return sandbox.Sandbox{}, err
	}
	if err := o.perms.Assign(sb.ID, req.Tier); err != nil {
		o.manager.Terminate(sb.ID)
		return sandbox.Sandbox{}, errs.Validation("sandbox.create", sb.ID, err.Error())
	}

	if o.metrics != nil {
		o.metrics.IncSandboxesTotal()
	}
	o.updateGauges()
	return sb, nil
}

// DestroySandbox terminates an isolate. The manager's termination hook
// purges its permissions, rate counters, cached database handler and
// canvases; outstanding broker requests are not cancelled and resolve
// on their own deadlines.
func (o *Orchestrator) DestroySandbox(isolateID string) {
	o.manager.Terminate(isolateID)
}

// GetSandbox returns a live sandbox snapshot.
func (o *Orchestrator) GetSandbox(isolateID string) (sandbox.Sandbox, bool) {
	return o.manager.Get(isolateID)
}

// ListSandboxes returns live isolate ids.
func (o *Orchestrator) ListSandboxes() []string {
	return o.manager.List()
}

// AssignPermissions overwrites the isolate's permission tier.
func (o *Orchestrator) AssignPermissions(isolateID, tier string) error {
	return o.perms.Assign(isolateID, tier)
}

// HasPermission reports whether the operation would be authorized,
// without consuming rate budget.
func (o *Orchestrator) HasPermission(isolateID, operation string, payload map[string]interface{}) bool {
	return o.perms.IsAllowed(isolateID, operation, payload)
}

// HandleCapabilityRequest routes one capability operation for a live
// isolate and awaits its terminal message.
func (o *Orchestrator) HandleCapabilityRequest(ctx context.Context, req types.ExecuteRequest) (*types.Message, error) {
	if _, live := o.manager.Get(req.IsolateID); !live {
		return nil, errs.Validation(req.Operation, req.IsolateID, "sandbox not found")
	}
	o.manager.Touch(req.IsolateID)

	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	msg, err := o.broker.SendRequest(ctx, req.IsolateID, req.Operation, req.Params, timeout)
	o.updateGauges()
	return msg, err
}

// RunScript executes code inside the isolate's execution unit.
func (o *Orchestrator) RunScript(ctx context.Context, isolateID, script string) (interface{}, error) {
	return o.manager.Run(ctx, isolateID, script)
}

// SupportedOperations lists every registered operation id.
func (o *Orchestrator) SupportedOperations() []string {
	return o.factory.Operations()
}

// Alerts returns the advisory resource alert log.
func (o *Orchestrator) Alerts() []sandbox.Alert {
	return o.manager.Alerts()
}

// Stats aggregates subsystem counters.
func (o *Orchestrator) Stats() map[string]interface{} {
	return map[string]interface{}{
		"broker":  o.broker.Stats(),
		"sandbox": o.manager.Stats(),
		"domains": o.factory.Domains(),
	}
}

// Shutdown stops background loops, rejects pending requests, terminates
// all sandboxes and closes the store.
func (o *Orchestrator) Shutdown() {
	o.broker.Shutdown()
	o.manager.Stop()
	if err := o.store.Close(); err != nil {
		o.log.Warn("Closing capability store", zap.Error(err))
	}
	o.log.Info("Orchestrator stopped")
}

func (o *Orchestrator) updateGauges() {
	if o.metrics == nil {
		return
	}
	o.metrics.SetSandboxes(o.manager.Count())
	if pending, ok := o.broker.Stats()["pending"].(int); ok {
		o.metrics.SetPending(pending)
	}
}
