package sandbox

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/infrastructure/config"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/logging"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/id"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

const maxAlerts = 100

// record is the manager-owned mutable state for one sandbox.
type record struct {
	Sandbox
	inactive bool
}

// Manager owns the sandbox registry and its background maintenance.
type Manager struct {
	cfg    config.SandboxConfig
	log    *logging.Logger
	runner Runner
	now    func() time.Time

	mu        sync.RWMutex
	sandboxes map[string]*record
	alerts    []Alert
	created   uint64
	reaped    uint64

	hooksMu     sync.Mutex
	onTerminate []func(isolateID string)

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewManager creates a sandbox manager. A nil runner selects the
// default goja runner.
func NewManager(cfg config.SandboxConfig, runner Runner, log *logging.Logger) *Manager {
	if runner == nil {
		runner = NewGojaRunner()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		log:       log,
		runner:    runner,
		now:       time.Now,
		sandboxes: make(map[string]*record),
		stop:      make(chan struct{}),
	}
}

// OnTerminate registers a cleanup hook invoked after every termination,
// whether explicit or sweep-initiated. Hooks run outside the manager
// lock.
func (m *Manager) OnTerminate(fn func(isolateID string)) {
	m.hooksMu.Lock()
	m.onTerminate = append(m.onTerminate, fn)
	m.hooksMu.Unlock()
}

// Start launches the idle sweep and the resource sampler.
func (m *Manager) Start() {
	m.wg.Add(2)
	go m.sweepLoop()
	go m.sampleLoop()
}

// Stop halts background loops and terminates every live sandbox.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
	for _, sid := range m.List() {
		m.Terminate(sid)
	}
}

// Create registers a new sandbox. It fails with ResourceExhausted when
// the global cap is reached and AlreadyExists when the id is live.
func (m *Manager) Create(req types.CreateSandboxRequest) (Sandbox, error) {
	isolateID := req.ID
	if isolateID == "" {
		isolateID = id.NewIsolateID().String()
	}

	cfg := Config{
		ID:               isolateID,
		Tier:             req.Tier,
		ExecutionTimeout: time.Duration(req.ExecutionTimeout) * time.Millisecond,
		MemoryLimitMB:    req.MemoryLimitMB,
		AllowedAPIs:      req.AllowedAPIs,
		NetworkAllowlist: req.NetworkAllowlist,
	}

	m.mu.Lock()
	if m.cfg.MaxCount > 0 && len(m.sandboxes) >= m.cfg.MaxCount {
		m.mu.Unlock()
		return Sandbox{}, errs.New(errs.CodeResourceExhausted, "sandbox.create", isolateID, "sandbox count limit reached")
	}
	if _, live := m.sandboxes[isolateID]; live {
		m.mu.Unlock()
		return Sandbox{}, errs.New(errs.CodeAlreadyExists, "sandbox.create", isolateID, "sandbox already exists")
	}
	now := m.now()
	rec := &record{Sandbox: Sandbox{
		Config:     cfg,
		State:      StateCreated,
		CreatedAt:  now,
		LastActive: now,
	}}
	m.sandboxes[isolateID] = rec
	m.created++
	snapshot := rec.Sandbox
	m.mu.Unlock()

	m.log.Info("Sandbox created",
		zap.String("isolate_id", isolateID),
		zap.String("tier", cfg.Tier))
	return snapshot, nil
}

// Get returns a snapshot of the sandbox, if live.
func (m *Manager) Get(isolateID string) (Sandbox, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sandboxes[isolateID]
	if !ok {
		return Sandbox{}, false
	}
	return rec.Sandbox, true
}

// List returns the ids of all live sandboxes.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sandboxes))
	for sid := range m.sandboxes {
		ids = append(ids, sid)
	}
	return ids
}

// Count returns the number of live sandboxes.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sandboxes)
}

// Touch records activity, moving the sandbox to Active and refreshing
// its idle clock. Unknown ids are ignored.
func (m *Manager) Touch(isolateID string) {
	m.mu.Lock()
	if rec, ok := m.sandboxes[isolateID]; ok {
		rec.State = StateActive
		rec.LastActive = m.now()
	}
	m.mu.Unlock()
}

// MarkInactive flags a sandbox whose execution unit died; the next
// sweep reaps it regardless of its idle clock.
func (m *Manager) MarkInactive(isolateID string) {
	m.mu.Lock()
	if rec, ok := m.sandboxes[isolateID]; ok {
		rec.inactive = true
	}
	m.mu.Unlock()
}

// Terminate stops a sandbox and releases its registration. Terminating
// an unknown or already-terminated id is a no-op.
func (m *Manager) Terminate(isolateID string) {
	m.mu.Lock()
	_, live := m.sandboxes[isolateID]
	if live {
		delete(m.sandboxes, isolateID)
		m.reaped++
	}
	m.mu.Unlock()
	if !live {
		return
	}

	m.hooksMu.Lock()
	hooks := append([]func(string){}, m.onTerminate...)
	m.hooksMu.Unlock()
	for _, fn := range hooks {
		fn(isolateID)
	}
	m.log.Info("Sandbox terminated", zap.String("isolate_id", isolateID))
}

// Run executes a script inside the sandbox via the configured runner.
func (m *Manager) Run(ctx context.Context, isolateID, script string) (interface{}, error) {
	sb, ok := m.Get(isolateID)
	if !ok {
		return nil, errs.Validation("sandbox.run", isolateID, "sandbox not found")
	}
	m.Touch(isolateID)
	out, err := m.runner.Run(ctx, sb, script)
	if err != nil {
		return nil, errs.Execution("sandbox.run", isolateID, err)
	}
	return out, nil
}

// Alerts returns a copy of the advisory alert log.
func (m *Manager) Alerts() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Alert{}, m.alerts...)
}

// Stats returns lifecycle counters.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"live":       len(m.sandboxes),
		"created":    m.created,
		"terminated": m.reaped,
		"alerts":     len(m.alerts),
	}
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

// sweep reaps inactive sandboxes and anything past the idle threshold,
// marking sandboxes Idle at half the threshold on the way.
func (m *Manager) sweep() {
	idleAfter := m.cfg.IdleTimeout
	if idleAfter <= 0 {
		idleAfter = 5 * time.Minute
	}
	now := m.now()

	var doomed []string
	m.mu.Lock()
	for sid, rec := range m.sandboxes {
		idle := now.Sub(rec.LastActive)
		switch {
		case rec.inactive, idle > idleAfter:
			doomed = append(doomed, sid)
		case idle > idleAfter/2 && rec.State == StateActive:
			rec.State = StateIdle
		}
	}
	m.mu.Unlock()

	for _, sid := range doomed {
		m.log.Info("Sweeping idle sandbox", zap.String("isolate_id", sid))
		m.Terminate(sid)
	}
}

func (m *Manager) sampleLoop() {
	defer m.wg.Done()
	interval := m.cfg.SampleInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-m.stop:
			return
		}
	}
}

// sample estimates aggregate memory and checks advisory thresholds.
func (m *Manager) sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	heapMB := int(ms.HeapAlloc / (1 << 20))

	m.mu.Lock()
	count := len(m.sandboxes)
	if m.cfg.MemoryAlertMB > 0 && heapMB >= m.cfg.MemoryAlertMB {
		m.appendAlertLocked("memory", "aggregate heap above threshold")
	}
	if m.cfg.CountAlert > 0 && count >= m.cfg.CountAlert {
		m.appendAlertLocked("count", "sandbox count above threshold")
	}
	m.mu.Unlock()

	m.log.Debug("Resource sample",
		zap.Int("heap_mb", heapMB),
		zap.Int("sandboxes", count))
}

func (m *Manager) appendAlertLocked(kind, message string) {
	if len(m.alerts) >= maxAlerts {
		m.alerts = m.alerts[1:]
	}
	m.alerts = append(m.alerts, Alert{At: m.now(), Kind: kind, Message: message})
}
