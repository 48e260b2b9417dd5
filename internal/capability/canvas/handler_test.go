package canvas

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/logging"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

func newTestHandler() *Handler {
	perms := permissions.NewEngine(logging.NewNop())
	perms.AssignProfile("iso-1", permissions.AdvancedTier())
	perms.AssignProfile("iso-2", permissions.AdvancedTier())
	return New(perms)
}

func reqCtx(iso string) *types.Context {
	return &types.Context{IsolateID: iso}
}

func createCanvas(t *testing.T, h *Handler, iso string) string {
	t.Helper()
	data, err := h.Execute(context.Background(), "canvas.create",
		map[string]interface{}{"width": float64(64), "height": float64(64)}, reqCtx(iso))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return data["canvas_id"].(string)
}

func TestCreateAndInfo(t *testing.T) {
	h := newTestHandler()
	canvasID := createCanvas(t, h, "iso-1")

	data, err := h.Execute(context.Background(), "canvas.getInfo",
		map[string]interface{}{"canvas_id": canvasID}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("getInfo failed: %v", err)
	}
	if data["width"] != 64 || data["height"] != 64 {
		t.Errorf("Unexpected dimensions: %v", data)
	}
}

func TestPixelCeilings(t *testing.T) {
	h := newTestHandler()

	_, err := h.Execute(context.Background(), "canvas.create",
		map[string]interface{}{"width": float64(10000), "height": float64(10000)}, reqCtx("iso-1"))
	if err == nil {
		t.Fatal("Expected system pixel ceiling rejection")
	}
	if errs.CodeOf(err) != errs.CodeResourceExhausted {
		t.Errorf("Expected resource_exhausted, got %s", errs.CodeOf(err))
	}
}

func TestDrawValidatesPrimitives(t *testing.T) {
	h := newTestHandler()
	canvasID := createCanvas(t, h, "iso-1")

	_, err := h.Execute(context.Background(), "canvas.draw", map[string]interface{}{
		"canvas_id": canvasID,
		"ops": []interface{}{
			map[string]interface{}{"type": "blit", "params": map[string]interface{}{}},
		},
	}, reqCtx("iso-1"))
	if err == nil {
		t.Fatal("Expected rejection of unknown primitive")
	}

	data, err := h.Execute(context.Background(), "canvas.draw", map[string]interface{}{
		"canvas_id": canvasID,
		"ops": []interface{}{
			map[string]interface{}{"type": "rect", "params": map[string]interface{}{
				"x": float64(0), "y": float64(0), "width": float64(10), "height": float64(10), "color": "#ff0000",
			}},
			map[string]interface{}{"type": "line", "params": map[string]interface{}{
				"x1": float64(0), "y1": float64(0), "x2": float64(63), "y2": float64(63),
			}},
		},
	}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if data["ops_total"] != 2 {
		t.Errorf("Expected 2 logged ops, got %v", data["ops_total"])
	}
}

func TestExportPNG(t *testing.T) {
	h := newTestHandler()
	canvasID := createCanvas(t, h, "iso-1")

	_, err := h.Execute(context.Background(), "canvas.draw", map[string]interface{}{
		"canvas_id": canvasID,
		"ops": []interface{}{
			map[string]interface{}{"type": "circle", "params": map[string]interface{}{
				"x": float64(32), "y": float64(32), "radius": float64(10), "color": "blue",
			}},
		},
	}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	data, err := h.Execute(context.Background(), "canvas.export",
		map[string]interface{}{"canvas_id": canvasID, "format": "png"}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	raw, decodeErr := base64.StdEncoding.DecodeString(data["data"].(string))
	if decodeErr != nil {
		t.Fatalf("Expected base64 output: %v", decodeErr)
	}
	// PNG magic bytes
	if len(raw) < 8 || raw[1] != 'P' || raw[2] != 'N' || raw[3] != 'G' {
		t.Error("Expected PNG encoded output")
	}
}

func TestExportFormatGated(t *testing.T) {
	perms := permissions.NewEngine(logging.NewNop())
	profile := permissions.InteractiveTier() // png + json only
	perms.AssignProfile("iso-1", profile)
	h := New(perms)
	canvasID := createCanvas(t, h, "iso-1")

	_, err := h.Execute(context.Background(), "canvas.export",
		map[string]interface{}{"canvas_id": canvasID, "format": "jpeg"}, reqCtx("iso-1"))
	if err == nil {
		t.Fatal("Expected jpeg denial under interactive tier")
	}
	if errs.CodeOf(err) != errs.CodePermissionDenied {
		t.Errorf("Expected permission_denied, got %s", errs.CodeOf(err))
	}
}

func TestCanvasIsolation(t *testing.T) {
	h := newTestHandler()
	canvasID := createCanvas(t, h, "iso-1")

	_, err := h.Execute(context.Background(), "canvas.getInfo",
		map[string]interface{}{"canvas_id": canvasID}, reqCtx("iso-2"))
	if err == nil {
		t.Fatal("Isolate B must not access isolate A's canvas")
	}
}

func TestClearAndRelease(t *testing.T) {
	h := newTestHandler()
	canvasID := createCanvas(t, h, "iso-1")

	if _, err := h.Execute(context.Background(), "canvas.clear",
		map[string]interface{}{"canvas_id": canvasID}, reqCtx("iso-1")); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	h.ReleaseIsolate("iso-1")
	if h.reg.count() != 0 {
		t.Error("Expected all canvases released with the isolate")
	}
	if _, err := h.Execute(context.Background(), "canvas.getInfo",
		map[string]interface{}{"canvas_id": canvasID}, reqCtx("iso-1")); err == nil {
		t.Error("Expected canvas gone after release")
	}
}
