package network

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

// DefaultTimeout bounds a single outbound request when the profile does
// not specify a tighter execution limit.
const DefaultTimeout = 30 * time.Second

// Handler implements the network capability.
type Handler struct {
	client *Client
	perms  *permissions.Engine
}

// New creates a network handler.
func New(perms *permissions.Engine) *Handler {
	return &Handler{client: NewClient(DefaultTimeout), perms: perms}
}

// Definition returns capability metadata.
func (h *Handler) Definition() capability.Definition {
	return capability.Definition{
		Domain:      "network",
		Name:        "Network Access",
		Description: "Proxied HTTP requests and webhook delivery",
		Tools: []types.Tool{
			{
				ID:          "network.request",
				Name:        "HTTP Request",
				Description: "Perform an HTTP request against an allowlisted domain",
				Parameters: []types.Parameter{
					{Name: "url", Type: "string", Description: "Request URL (http/https)", Required: true},
					{Name: "method", Type: "string", Description: "HTTP method (default GET)", Required: false},
					{Name: "headers", Type: "object", Description: "Request headers", Required: false},
					{Name: "body", Type: "string", Description: "Request body", Required: false},
					{Name: "timeout_ms", Type: "number", Description: "Per-request deadline", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "network.fetch",
				Name:        "Fetch",
				Description: "Alias of network.request",
				Parameters: []types.Parameter{
					{Name: "url", Type: "string", Description: "Request URL", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "network.webhook",
				Name:        "Webhook",
				Description: "Deliver a JSON payload via POST with retries",
				Parameters: []types.Parameter{
					{Name: "url", Type: "string", Description: "Webhook URL", Required: true},
					{Name: "payload", Type: "object", Description: "JSON body", Required: true},
				},
				Returns: "object",
			},
		},
	}
}

// Execute routes a network operation.
func (h *Handler) Execute(ctx context.Context, operation string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	switch operation {
	case "network.request", "network.fetch":
		return h.request(ctx, operation, params, reqCtx)
	case "network.webhook":
		return h.deliverWebhook(ctx, operation, params, reqCtx)
	default:
		return nil, errs.Validation(operation, reqCtx.IsolateID, "unknown network operation")
	}
}

// checkURL enforces scheme and allowlist. The permission engine runs
// the same checks up front; repeating them here keeps the handler safe
// when embedded without the full pipeline.
func (h *Handler) checkURL(op, isolateID, rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errs.Validation(op, isolateID, "invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errs.Validation(op, isolateID, "url scheme must be http or https")
	}
	profile := h.perms.Get(isolateID)
	if profile == nil || !permissions.MatchDomain(u.Host, profile.Network.AllowedDomains) {
		return nil, errs.Denied(op, isolateID, "domain not in allowlist: "+u.Host)
	}
	return u, nil
}

func (h *Handler) request(ctx context.Context, op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	rawURL, _ := params["url"].(string)
	if _, err := h.checkURL(op, reqCtx.IsolateID, rawURL); err != nil {
		return nil, err
	}

	method := "GET"
	if m, ok := params["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	switch method {
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD":
	default:
		return nil, errs.Validation(op, reqCtx.IsolateID, "unsupported method: "+method)
	}

	timeout := DefaultTimeout
	if ms, ok := params["timeout_ms"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	reqCtxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := h.client.resty.R().
		SetContext(reqCtxTimeout).
		SetDoNotParseResponse(true)

	if headers, ok := params["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.SetHeader(k, s)
			}
		}
	}
	if body, ok := params["body"].(string); ok && body != "" {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, rawURL)
	if err != nil {
		return nil, errs.Execution(op, reqCtx.IsolateID, err)
	}
	defer resp.RawBody().Close()

	maxBytes := h.maxResponseBytes(reqCtx.IsolateID)
	body, err := io.ReadAll(io.LimitReader(resp.RawBody(), maxBytes+1))
	if err != nil {
		return nil, errs.Execution(op, reqCtx.IsolateID, err)
	}
	if int64(len(body)) > maxBytes {
		return nil, errs.Newf(errs.CodeValidation, op, reqCtx.IsolateID,
			"response exceeds maximum size (%d bytes)", maxBytes)
	}

	headers := make(map[string]interface{}, len(resp.Header()))
	for k, v := range resp.Header() {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return map[string]interface{}{
		"url":          rawURL,
		"status":       resp.StatusCode(),
		"headers":      headers,
		"body":         string(body),
		"content_type": resp.Header().Get("Content-Type"),
		"size":         len(body),
		"duration_ms":  time.Since(start).Milliseconds(),
	}, nil
}

// deliverWebhook forces POST-with-JSON-body semantics and rides the
// retryable client.
func (h *Handler) deliverWebhook(ctx context.Context, op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	rawURL, _ := params["url"].(string)
	if _, err := h.checkURL(op, reqCtx.IsolateID, rawURL); err != nil {
		return nil, err
	}

	payload, ok := params["payload"].(map[string]interface{})
	if !ok {
		return nil, errs.Validation(op, reqCtx.IsolateID, "payload object is required")
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return nil, errs.Validation(op, reqCtx.IsolateID, "payload is not serializable")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Execution(op, reqCtx.IsolateID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.webhook.Do(req)
	if err != nil {
		return nil, errs.Execution(op, reqCtx.IsolateID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	return map[string]interface{}{
		"url":         rawURL,
		"status":      resp.StatusCode,
		"delivered":   resp.StatusCode >= 200 && resp.StatusCode < 300,
		"duration_ms": time.Since(start).Milliseconds(),
	}, nil
}

func (h *Handler) maxResponseBytes(isolateID string) int64 {
	if profile := h.perms.Get(isolateID); profile != nil && profile.Network.MaxResponseBytes > 0 {
		return profile.Network.MaxResponseBytes
	}
	return 10 << 20
}
