package dom

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

const defaultScriptTimeout = 2 * time.Second

// fragmentPolicy sanitizes HTML fragments before they enter a document.
var fragmentPolicy = bluemonday.UGCPolicy()

// Handler implements the dom capability. Each isolate owns at most one
// parsed document at a time.
type Handler struct {
	perms *permissions.Engine

	mu   sync.Mutex
	docs map[string]*goquery.Document
}

// New creates a dom handler.
func New(perms *permissions.Engine) *Handler {
	return &Handler{perms: perms, docs: make(map[string]*goquery.Document)}
}

func (h *Handler) Definition() capability.Definition {
	return capability.Definition{
		Domain:      "dom",
		Name:        "DOM Capability",
		Description: "Server-side HTML parsing, mutation and scripting",
		Tools: []types.Tool{
			{ID: "dom.parse", Name: "Parse", Description: "Parse an HTML document", Parameters: []types.Parameter{
				{Name: "html", Type: "string", Required: true},
			}},
			{ID: "dom.execute", Name: "Execute", Description: "Run a script in the sandboxed VM", Parameters: []types.Parameter{
				{Name: "script", Type: "string", Required: true},
			}},
			{ID: "dom.update", Name: "Update", Description: "Modify matched elements", Parameters: []types.Parameter{
				{Name: "selector", Type: "string", Required: true},
				{Name: "text", Type: "string", Required: false},
				{Name: "html", Type: "string", Required: false},
				{Name: "attributes", Type: "object", Required: false},
			}},
			{ID: "dom.inject_css", Name: "Inject CSS", Description: "Append a style block", Parameters: []types.Parameter{
				{Name: "css", Type: "string", Required: true},
			}},
			{ID: "dom.inject_js", Name: "Inject JS", Description: "Append a script block", Parameters: []types.Parameter{
				{Name: "script", Type: "string", Required: true},
			}},
		},
	}
}

func (h *Handler) Execute(ctx context.Context, operation string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	switch operation {
	case "dom.parse":
		return h.parse(params, reqCtx)
	case "dom.execute":
		return h.executeScript(ctx, params, reqCtx)
	case "dom.update":
		return h.update(params, reqCtx)
	case "dom.inject_css":
		return h.injectCSS(params, reqCtx)
	case "dom.inject_js":
		return h.injectJS(params, reqCtx)
	default:
		return nil, errs.Validation(operation, reqCtx.IsolateID, "unknown dom operation")
	}
}

// ReleaseIsolate drops the isolate's document.
func (h *Handler) ReleaseIsolate(isolateID string) {
	h.mu.Lock()
	delete(h.docs, isolateID)
	h.mu.Unlock()
}

func (h *Handler) limits(isolateID string) permissions.DOMCapability {
	if profile := h.perms.Get(isolateID); profile != nil {
		return profile.DOM
	}
	return permissions.DOMCapability{}
}

func checkSize(op, isolateID, what string, size, limit int) error {
	if limit > 0 && size > limit {
		return errs.Validation(op, isolateID, what+" exceeds size limit")
	}
	return nil
}

// parse builds the isolate's document. Inline <style> blocks are pulled
// out of the tree and consolidated into a single block in <head>.
func (h *Handler) parse(params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	html, _ := params["html"].(string)
	if html == "" {
		return nil, errs.Validation("dom.parse", reqCtx.IsolateID, "html is required")
	}
	if err := checkSize("dom.parse", reqCtx.IsolateID, "html", len(html), h.limits(reqCtx.IsolateID).MaxHTMLBytes); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.Validation("dom.parse", reqCtx.IsolateID, "malformed html: "+err.Error())
	}

	var styles []string
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		if css := strings.TrimSpace(s.Text()); css != "" {
			styles = append(styles, css)
		}
		s.Remove()
	})
	if len(styles) > 0 {
		doc.Find("head").AppendHtml("<style>" + strings.Join(styles, "\n") + "</style>")
	}

	h.mu.Lock()
	h.docs[reqCtx.IsolateID] = doc
	h.mu.Unlock()

	return map[string]interface{}{
		"title":         doc.Find("title").First().Text(),
		"element_count": doc.Find("*").Length(),
		"style_blocks":  len(styles),
	}, nil
}

func (h *Handler) executeScript(ctx context.Context, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	script, _ := params["script"].(string)
	if script == "" {
		return nil, errs.Validation("dom.execute", reqCtx.IsolateID, "script is required")
	}
	lim := h.limits(reqCtx.IsolateID)
	if err := checkSize("dom.execute", reqCtx.IsolateID, "script", len(script), lim.MaxScriptBytes); err != nil {
		return nil, err
	}
	timeout := lim.MaxScriptTime
	if timeout <= 0 {
		timeout = defaultScriptTimeout
	}

	res, err := runScript(ctx, script, timeout)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, errs.Wrap(errs.CodeTimeout, "dom.execute", reqCtx.IsolateID, err)
		}
		return nil, errs.Execution("dom.execute", reqCtx.IsolateID, err)
	}

	console := make([]map[string]interface{}, 0, len(res.Console))
	for _, entry := range res.Console {
		console = append(console, map[string]interface{}{"level": entry.Level, "message": entry.Message})
	}
	return map[string]interface{}{"value": res.Value, "console": console}, nil
}

func (h *Handler) update(params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	selector, _ := params["selector"].(string)
	if selector == "" {
		return nil, errs.Validation("dom.update", reqCtx.IsolateID, "selector is required")
	}
	doc, err := h.document(reqCtx.IsolateID)
	if err != nil {
		return nil, err
	}

	sel := doc.Find(selector)
	if text, ok := params["text"].(string); ok {
		sel.SetText(text)
	}
	if fragment, ok := params["html"].(string); ok {
		if err := checkSize("dom.update", reqCtx.IsolateID, "html", len(fragment), h.limits(reqCtx.IsolateID).MaxHTMLBytes); err != nil {
			return nil, err
		}
		sel.SetHtml(fragmentPolicy.Sanitize(fragment))
	}
	if attrs, ok := params["attributes"].(map[string]interface{}); ok {
		for name, v := range attrs {
			value, _ := v.(string)
			sel.SetAttr(name, value)
		}
	}

	return h.render(doc, map[string]interface{}{"matched": sel.Length()})
}

func (h *Handler) injectCSS(params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	css, _ := params["css"].(string)
	if css == "" {
		return nil, errs.Validation("dom.inject_css", reqCtx.IsolateID, "css is required")
	}
	if err := checkSize("dom.inject_css", reqCtx.IsolateID, "css", len(css), h.limits(reqCtx.IsolateID).MaxCSSBytes); err != nil {
		return nil, err
	}
	if strings.Contains(strings.ToLower(css), "</style") {
		return nil, errs.Validation("dom.inject_css", reqCtx.IsolateID, "css must not contain a closing style tag")
	}
	doc, err := h.document(reqCtx.IsolateID)
	if err != nil {
		return nil, err
	}
	doc.Find("head").AppendHtml("<style>" + css + "</style>")
	return h.render(doc, map[string]interface{}{"injected": true})
}

// injectJS appends a script block to the document body. The script is
// not executed here; use dom.execute for that.
func (h *Handler) injectJS(params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	script, _ := params["script"].(string)
	if script == "" {
		return nil, errs.Validation("dom.inject_js", reqCtx.IsolateID, "script is required")
	}
	if err := checkSize("dom.inject_js", reqCtx.IsolateID, "script", len(script), h.limits(reqCtx.IsolateID).MaxScriptBytes); err != nil {
		return nil, err
	}
	if strings.Contains(strings.ToLower(script), "</script") {
		return nil, errs.Validation("dom.inject_js", reqCtx.IsolateID, "script must not contain a closing script tag")
	}
	doc, err := h.document(reqCtx.IsolateID)
	if err != nil {
		return nil, err
	}
	doc.Find("body").AppendHtml("<script>" + script + "</script>")
	return h.render(doc, map[string]interface{}{"injected": true})
}

func (h *Handler) document(isolateID string) (*goquery.Document, error) {
	h.mu.Lock()
	doc := h.docs[isolateID]
	h.mu.Unlock()
	if doc == nil {
		return nil, errs.Validation("dom", isolateID, "no document parsed; call dom.parse first")
	}
	return doc, nil
}

func (h *Handler) render(doc *goquery.Document, data map[string]interface{}) (map[string]interface{}, error) {
	html, err := doc.Html()
	if err != nil {
		return nil, errs.Execution("dom", "", err)
	}
	data["html"] = html
	return data, nil
}
