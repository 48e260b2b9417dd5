package dom

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/logging"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

func newTestHandler(t *testing.T) (*Handler, *permissions.Engine) {
	t.Helper()
	perms := permissions.NewEngine(logging.NewNop())
	perms.AssignProfile("iso-1", permissions.AdvancedTier())
	return New(perms), perms
}

func reqCtx(isolateID string) *types.Context {
	return &types.Context{IsolateID: isolateID}
}

const sampleHTML = `<html><head><title>Demo</title><style>p { color: red; }</style></head>` +
	`<body><style>h1 { margin: 0; }</style><h1 id="top">Hello</h1><p class="msg">World</p></body></html>`

func TestParseConsolidatesInlineStyles(t *testing.T) {
	h, _ := newTestHandler(t)

	data, err := h.Execute(context.Background(), "dom.parse",
		map[string]interface{}{"html": sampleHTML}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if data["title"] != "Demo" {
		t.Errorf("Expected title Demo, got %v", data["title"])
	}
	if data["style_blocks"] != 2 {
		t.Errorf("Expected 2 consolidated style blocks, got %v", data["style_blocks"])
	}

	// The body style moved into the single consolidated head block.
	out, err := h.Execute(context.Background(), "dom.update",
		map[string]interface{}{"selector": "body style"}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if out["matched"] != 0 {
		t.Errorf("Body should have no style blocks left, matched %v", out["matched"])
	}
	if html := out["html"].(string); !strings.Contains(html, "h1 { margin: 0; }") {
		t.Error("Consolidated style lost a block")
	}
}

func TestUpdateTextAndAttributes(t *testing.T) {
	h, _ := newTestHandler(t)
	mustParse(t, h)

	data, err := h.Execute(context.Background(), "dom.update", map[string]interface{}{
		"selector":   "#top",
		"text":       "Changed",
		"attributes": map[string]interface{}{"data-state": "done"},
	}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if data["matched"] != 1 {
		t.Errorf("Expected 1 match, got %v", data["matched"])
	}
	html := data["html"].(string)
	if !strings.Contains(html, ">Changed<") || !strings.Contains(html, `data-state="done"`) {
		t.Errorf("Update not applied: %s", html)
	}
}

func TestInjectedFragmentIsSanitized(t *testing.T) {
	h, _ := newTestHandler(t)
	mustParse(t, h)

	data, err := h.Execute(context.Background(), "dom.update", map[string]interface{}{
		"selector": ".msg",
		"html":     `<b>ok</b><script>steal()</script><img src=x onerror="alert(1)">`,
	}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	html := data["html"].(string)
	if !strings.Contains(html, "<b>ok</b>") {
		t.Error("Benign markup stripped")
	}
	if strings.Contains(html, "steal()") || strings.Contains(html, "onerror") {
		t.Errorf("Dangerous markup survived sanitization: %s", html)
	}
}

func TestUpdateWithoutDocumentFails(t *testing.T) {
	h, _ := newTestHandler(t)

	_, err := h.Execute(context.Background(), "dom.update",
		map[string]interface{}{"selector": "p"}, reqCtx("iso-1"))
	if err == nil {
		t.Fatal("Update without a parsed document should fail")
	}
	if errs.CodeOf(err) != errs.CodeValidation {
		t.Errorf("Expected validation error, got %s", errs.CodeOf(err))
	}
}

func TestExecuteCapturesConsoleAndValue(t *testing.T) {
	h, _ := newTestHandler(t)

	data, err := h.Execute(context.Background(), "dom.execute",
		map[string]interface{}{"script": `console.log("a", 1); console.warn("b"); 40 + 2`}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if data["value"] != int64(42) {
		t.Errorf("Expected value 42, got %v (%T)", data["value"], data["value"])
	}
	console := data["console"].([]map[string]interface{})
	if len(console) != 2 {
		t.Fatalf("Expected 2 console entries, got %d", len(console))
	}
	if console[0]["message"] != "a 1" || console[1]["level"] != "warn" {
		t.Errorf("Console capture wrong: %v", console)
	}
}

func TestExecuteInterruptsRunawayScript(t *testing.T) {
	h, perms := newTestHandler(t)
	profile := permissions.AdvancedTier()
	profile.DOM.MaxScriptTime = 50 * time.Millisecond
	perms.AssignProfile("iso-1", profile)

	_, err := h.Execute(context.Background(), "dom.execute",
		map[string]interface{}{"script": "while (true) {}"}, reqCtx("iso-1"))
	if err == nil {
		t.Fatal("Infinite loop should be interrupted")
	}
	if errs.CodeOf(err) != errs.CodeTimeout {
		t.Errorf("Expected timeout, got %s", errs.CodeOf(err))
	}
}

func TestDangerousGlobalsAbsent(t *testing.T) {
	h, _ := newTestHandler(t)

	data, err := h.Execute(context.Background(), "dom.execute",
		map[string]interface{}{"script": "typeof require + ' ' + typeof process"}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if data["value"] != "undefined undefined" {
		t.Errorf("Dangerous globals reachable: %v", data["value"])
	}
}

func TestScriptSizeCeiling(t *testing.T) {
	h, perms := newTestHandler(t)
	profile := permissions.AdvancedTier()
	profile.DOM.MaxScriptBytes = 16
	perms.AssignProfile("iso-1", profile)

	_, err := h.Execute(context.Background(), "dom.execute",
		map[string]interface{}{"script": strings.Repeat("1+", 20) + "1"}, reqCtx("iso-1"))
	if err == nil {
		t.Fatal("Oversized script should be rejected")
	}
	if errs.CodeOf(err) != errs.CodeValidation {
		t.Errorf("Expected validation error, got %s", errs.CodeOf(err))
	}
}

func TestInjectCSSAndJS(t *testing.T) {
	h, _ := newTestHandler(t)
	mustParse(t, h)

	data, err := h.Execute(context.Background(), "dom.inject_css",
		map[string]interface{}{"css": ".msg { display: none; }"}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("inject_css failed: %v", err)
	}
	if !strings.Contains(data["html"].(string), ".msg { display: none; }") {
		t.Error("CSS not injected")
	}

	data, err = h.Execute(context.Background(), "dom.inject_js",
		map[string]interface{}{"script": "var ready = true;"}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("inject_js failed: %v", err)
	}
	if !strings.Contains(data["html"].(string), "var ready = true;") {
		t.Error("Script not injected")
	}

	_, err = h.Execute(context.Background(), "dom.inject_js",
		map[string]interface{}{"script": "x = '</script>'"}, reqCtx("iso-1"))
	if err == nil {
		t.Error("Closing tag inside injected script should be rejected")
	}
}

func TestReleaseIsolateDropsDocument(t *testing.T) {
	h, _ := newTestHandler(t)
	mustParse(t, h)

	h.ReleaseIsolate("iso-1")
	_, err := h.Execute(context.Background(), "dom.update",
		map[string]interface{}{"selector": "p"}, reqCtx("iso-1"))
	if err == nil {
		t.Error("Released isolate should have no document")
	}
}

func mustParse(t *testing.T, h *Handler) {
	t.Helper()
	if _, err := h.Execute(context.Background(), "dom.parse",
		map[string]interface{}{"html": sampleHTML}, reqCtx("iso-1")); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
}
