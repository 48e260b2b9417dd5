package canvas

import (
	"context"
	"encoding/base64"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

// allowedOps is the fixed allow-list of drawing primitives.
var allowedOps = map[string]bool{
	"rect":   true,
	"circle": true,
	"line":   true,
	"text":   true,
	"path":   true,
}

// Handler implements the canvas capability.
type Handler struct {
	reg   *registry
	perms *permissions.Engine
}

// New creates a canvas handler.
func New(perms *permissions.Engine) *Handler {
	return &Handler{reg: newRegistry(), perms: perms}
}

// Definition returns capability metadata.
func (h *Handler) Definition() capability.Definition {
	return capability.Definition{
		Domain:      "canvas",
		Name:        "Canvas Rendering",
		Description: "Replay-log canvas drawing with rasterized export",
		Tools: []types.Tool{
			{
				ID:          "canvas.create",
				Name:        "Create Canvas",
				Description: "Allocate a canvas and return its id",
				Parameters: []types.Parameter{
					{Name: "width", Type: "number", Description: "Width in pixels", Required: true},
					{Name: "height", Type: "number", Description: "Height in pixels", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "canvas.draw",
				Name:        "Draw",
				Description: "Append primitive operations to the canvas log",
				Parameters: []types.Parameter{
					{Name: "canvas_id", Type: "string", Description: "Canvas id", Required: true},
					{Name: "ops", Type: "array", Description: "Primitive operations", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "canvas.export",
				Name:        "Export",
				Description: "Replay the log into an encoded image or json",
				Parameters: []types.Parameter{
					{Name: "canvas_id", Type: "string", Description: "Canvas id", Required: true},
					{Name: "format", Type: "string", Description: "png, jpeg or json", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "canvas.getInfo",
				Name:        "Canvas Info",
				Description: "Canvas dimensions and op count",
				Parameters: []types.Parameter{
					{Name: "canvas_id", Type: "string", Description: "Canvas id", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "canvas.clear",
				Name:        "Clear",
				Description: "Reset the canvas operation log",
				Parameters: []types.Parameter{
					{Name: "canvas_id", Type: "string", Description: "Canvas id", Required: true},
				},
				Returns: "object",
			},
		},
	}
}

// Execute routes a canvas operation.
func (h *Handler) Execute(ctx context.Context, operation string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	switch operation {
	case "canvas.create":
		return h.create(operation, params, reqCtx)
	case "canvas.draw":
		return h.draw(operation, params, reqCtx)
	case "canvas.export":
		return h.export(operation, params, reqCtx)
	case "canvas.getInfo":
		return h.getInfo(operation, params, reqCtx)
	case "canvas.clear":
		return h.clearOps(operation, params, reqCtx)
	default:
		return nil, errs.Validation(operation, reqCtx.IsolateID, "unknown canvas operation")
	}
}

// ReleaseIsolate purges every canvas the isolate owns.
func (h *Handler) ReleaseIsolate(isolateID string) {
	h.reg.releaseIsolate(isolateID)
}

func (h *Handler) create(op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	width, height := paramInt(params, "width"), paramInt(params, "height")
	if width <= 0 || height <= 0 {
		return nil, errs.Validation(op, reqCtx.IsolateID, "width and height must be positive")
	}

	pixels := width * height
	if pixels > SystemMaxPixels {
		return nil, errs.Newf(errs.CodeResourceExhausted, op, reqCtx.IsolateID,
			"canvas exceeds system pixel ceiling (%d)", SystemMaxPixels)
	}
	if profile := h.perms.Get(reqCtx.IsolateID); profile != nil &&
		profile.Canvas.MaxPixels > 0 && pixels > profile.Canvas.MaxPixels {
		return nil, errs.Denied(op, reqCtx.IsolateID, "canvas exceeds profile pixel limit")
	}

	c := h.reg.create(reqCtx.IsolateID, width, height)
	return map[string]interface{}{
		"canvas_id": c.ID,
		"width":     c.Width,
		"height":    c.Height,
	}, nil
}

func (h *Handler) lookup(op string, params map[string]interface{}, reqCtx *types.Context) (*Canvas, error) {
	canvasID, _ := params["canvas_id"].(string)
	if canvasID == "" {
		return nil, errs.Validation(op, reqCtx.IsolateID, "canvas_id is required")
	}
	c := h.reg.get(canvasID, reqCtx.IsolateID)
	if c == nil {
		return nil, errs.Validation(op, reqCtx.IsolateID, "unknown canvas: "+canvasID)
	}
	return c, nil
}

func (h *Handler) draw(op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	c, err := h.lookup(op, params, reqCtx)
	if err != nil {
		return nil, err
	}

	rawOps, ok := params["ops"].([]interface{})
	if !ok || len(rawOps) == 0 {
		return nil, errs.Validation(op, reqCtx.IsolateID, "ops array is required")
	}

	ops := make([]Op, 0, len(rawOps))
	for _, raw := range rawOps {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errs.Validation(op, reqCtx.IsolateID, "each op must be an object")
		}
		opType, _ := entry["type"].(string)
		if !allowedOps[opType] {
			return nil, errs.Validation(op, reqCtx.IsolateID, "unknown drawing primitive: "+opType)
		}
		opParams, _ := entry["params"].(map[string]interface{})
		if opParams == nil {
			opParams = map[string]interface{}{}
		}
		ops = append(ops, Op{Type: opType, Params: opParams})
	}

	if !h.reg.appendOps(c, ops) {
		return nil, errs.Newf(errs.CodeResourceExhausted, op, reqCtx.IsolateID,
			"canvas op log full (max %d)", MaxOpsPerCanvas)
	}
	return map[string]interface{}{
		"canvas_id": c.ID,
		"ops_added": len(ops),
		"ops_total": len(c.Ops),
	}, nil
}

func (h *Handler) export(op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	c, err := h.lookup(op, params, reqCtx)
	if err != nil {
		return nil, err
	}

	format, _ := params["format"].(string)
	profile := h.perms.Get(reqCtx.IsolateID)
	if profile == nil || !formatAllowed(format, profile.Canvas.ExportFormats) {
		return nil, errs.Denied(op, reqCtx.IsolateID, "export format not permitted: "+format)
	}

	switch format {
	case "json":
		ops := make([]interface{}, len(c.Ops))
		for i, o := range c.Ops {
			ops[i] = o
		}
		return map[string]interface{}{
			"canvas_id": c.ID,
			"format":    "json",
			"width":     c.Width,
			"height":    c.Height,
			"ops":       ops,
		}, nil
	case "png", "jpeg":
		encoded, renderErr := render(c, format)
		if renderErr != nil {
			return nil, errs.Execution(op, reqCtx.IsolateID, renderErr)
		}
		return map[string]interface{}{
			"canvas_id": c.ID,
			"format":    format,
			"encoding":  "base64",
			"data":      base64.StdEncoding.EncodeToString(encoded),
			"size":      len(encoded),
		}, nil
	default:
		return nil, errs.Validation(op, reqCtx.IsolateID, "unsupported format: "+format)
	}
}

func (h *Handler) getInfo(op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	c, err := h.lookup(op, params, reqCtx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"canvas_id":  c.ID,
		"width":      c.Width,
		"height":     c.Height,
		"ops_count":  len(c.Ops),
		"created_at": c.CreatedAt,
	}, nil
}

func (h *Handler) clearOps(op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	c, err := h.lookup(op, params, reqCtx)
	if err != nil {
		return nil, err
	}
	h.reg.clear(c)
	return map[string]interface{}{"canvas_id": c.ID, "cleared": true}, nil
}

func formatAllowed(format string, allowed []string) bool {
	for _, f := range allowed {
		if f == format {
			return true
		}
	}
	return false
}
