package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/logging"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

func newTestHandler(allowedDomains []string) (*Handler, *permissions.Engine) {
	perms := permissions.NewEngine(logging.NewNop())
	profile := permissions.AdvancedTier()
	profile.Network.AllowedDomains = allowedDomains
	perms.AssignProfile("iso-1", profile)
	return New(perms), perms
}

func reqCtx() *types.Context {
	return &types.Context{IsolateID: "iso-1"}
}

func TestRequestAgainstAllowlistedServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	h, _ := newTestHandler([]string{"127.0.0.1"})

	data, err := h.Execute(context.Background(), "network.request",
		map[string]interface{}{"url": srv.URL}, reqCtx())
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if data["status"] != 200 {
		t.Errorf("Expected 200, got %v", data["status"])
	}
	if !strings.Contains(data["body"].(string), `"ok":true`) {
		t.Errorf("Unexpected body: %v", data["body"])
	}
}

func TestRequestDeniedOffAllowlist(t *testing.T) {
	h, _ := newTestHandler([]string{"api.example.com"})

	_, err := h.Execute(context.Background(), "network.request",
		map[string]interface{}{"url": "https://evil.test/steal"}, reqCtx())
	if err == nil {
		t.Fatal("Expected denial")
	}
	if errs.CodeOf(err) != errs.CodePermissionDenied {
		t.Errorf("Expected permission_denied, got %s", errs.CodeOf(err))
	}
}

func TestNonHTTPSchemeRejected(t *testing.T) {
	h, _ := newTestHandler([]string{"*"})

	_, err := h.Execute(context.Background(), "network.request",
		map[string]interface{}{"url": "ftp://files.example.com/x"}, reqCtx())
	if err == nil {
		t.Fatal("Expected rejection")
	}
	if errs.CodeOf(err) != errs.CodeValidation {
		t.Errorf("Expected validation error, got %s", errs.CodeOf(err))
	}
}

func TestResponseSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	h, perms := newTestHandler([]string{"127.0.0.1"})
	profile := perms.Get("iso-1")
	profile.Network.MaxResponseBytes = 1024
	perms.AssignProfile("iso-1", profile)

	_, err := h.Execute(context.Background(), "network.request",
		map[string]interface{}{"url": srv.URL}, reqCtx())
	if err == nil {
		t.Fatal("Expected size cap rejection")
	}
}

func TestWebhookPostsJSON(t *testing.T) {
	var received map[string]interface{}
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	h, _ := newTestHandler([]string{"127.0.0.1"})

	data, err := h.Execute(context.Background(), "network.webhook", map[string]interface{}{
		"url":     srv.URL,
		"payload": map[string]interface{}{"event": "deploy"},
	}, reqCtx())
	if err != nil {
		t.Fatalf("Webhook failed: %v", err)
	}
	if data["delivered"] != true {
		t.Errorf("Expected delivered, got %v", data)
	}
	if contentType != "application/json" {
		t.Errorf("Expected JSON content type, got %s", contentType)
	}
	if received["event"] != "deploy" {
		t.Errorf("Expected payload delivered, got %v", received)
	}
}

func TestWebhookRequiresPayload(t *testing.T) {
	h, _ := newTestHandler([]string{"*"})

	_, err := h.Execute(context.Background(), "network.webhook",
		map[string]interface{}{"url": "https://hooks.example.com/x"}, reqCtx())
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if errs.CodeOf(err) != errs.CodeValidation {
		t.Errorf("Expected validation, got %s", errs.CodeOf(err))
	}
}
