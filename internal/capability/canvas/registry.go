package canvas

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/id"
)

// System-wide ceilings, independent of any permission profile.
const (
	SystemMaxPixels = 8192 * 8192
	MaxOpsPerCanvas = 10000
)

// Op is one logged drawing primitive.
type Op struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params"`
}

// Canvas is a replay log with dimensions.
type Canvas struct {
	ID        string    `json:"id"`
	IsolateID string    `json:"isolate_id"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Ops       []Op      `json:"ops"`
	CreatedAt time.Time `json:"created_at"`
}

// registry tracks live canvases and their owning isolates.
type registry struct {
	mu        sync.Mutex
	canvases  map[string]*Canvas
	byIsolate map[string]map[string]struct{}
}

func newRegistry() *registry {
	return &registry{
		canvases:  make(map[string]*Canvas),
		byIsolate: make(map[string]map[string]struct{}),
	}
}

func (r *registry) create(isolateID string, width, height int) *Canvas {
	c := &Canvas{
		ID:        id.NewCanvasID().String(),
		IsolateID: isolateID,
		Width:     width,
		Height:    height,
		CreatedAt: time.Now(),
	}
	r.mu.Lock()
	r.canvases[c.ID] = c
	owned := r.byIsolate[isolateID]
	if owned == nil {
		owned = make(map[string]struct{})
		r.byIsolate[isolateID] = owned
	}
	owned[c.ID] = struct{}{}
	r.mu.Unlock()
	return c
}

// get returns the canvas only when owned by the requesting isolate;
// canvases are never visible across isolates.
func (r *registry) get(canvasID, isolateID string) *Canvas {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.canvases[canvasID]
	if c == nil || c.IsolateID != isolateID {
		return nil
	}
	return c
}

func (r *registry) appendOps(c *Canvas, ops []Op) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(c.Ops)+len(ops) > MaxOpsPerCanvas {
		return false
	}
	c.Ops = append(c.Ops, ops...)
	return true
}

func (r *registry) clear(c *Canvas) {
	r.mu.Lock()
	c.Ops = nil
	r.mu.Unlock()
}

// releaseIsolate drops every canvas the isolate owns.
func (r *registry) releaseIsolate(isolateID string) {
	r.mu.Lock()
	for canvasID := range r.byIsolate[isolateID] {
		delete(r.canvases, canvasID)
	}
	delete(r.byIsolate, isolateID)
	r.mu.Unlock()
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.canvases)
}
