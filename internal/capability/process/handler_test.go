package process

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
	return New(perms), perms
}

func reqCtx(isolateID string) *types.Context {
	return &types.Context{IsolateID: isolateID}
}

func TestExecuteAllowlistedCommand(t *testing.T) {
	h, perms := newTestHandler(t)
	perms.AssignProfile("iso-1", permissions.AdvancedTier())

	data, err := h.Execute(context.Background(), "process.execute",
		map[string]interface{}{"command": "echo hi"}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := strings.TrimSpace(data["stdout"].(string)); got != "hi" {
		t.Errorf("Expected stdout 'hi', got %q", got)
	}
	if data["exit_code"] != 0 {
		t.Errorf("Expected exit code 0, got %v", data["exit_code"])
	}
}

func TestExecuteWithArgsArray(t *testing.T) {
	h, perms := newTestHandler(t)
	perms.AssignProfile("iso-1", permissions.AdvancedTier())

	data, err := h.Execute(context.Background(), "process.execute",
		map[string]interface{}{
			"command": "echo",
			"args":    []interface{}{"hi", "there"},
		}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := strings.TrimSpace(data["stdout"].(string)); got != "hi there" {
		t.Errorf("Expected stdout 'hi there', got %q", got)
	}
}

func TestArgsArrayValidatedLikeCommand(t *testing.T) {
	h, perms := newTestHandler(t)
	perms.AssignProfile("iso-1", permissions.AdvancedTier())

	for _, args := range [][]interface{}{
		{"hi | cat"},
		{"$(whoami)"},
		{"../secret"},
		{42},
	} {
		_, err := h.Execute(context.Background(), "process.execute",
			map[string]interface{}{"command": "echo", "args": args}, reqCtx("iso-1"))
		if err == nil {
			t.Errorf("Args %v should be rejected", args)
			continue
		}
		if errs.CodeOf(err) != errs.CodeValidation {
			t.Errorf("Args %v: expected validation error, got %s", args, errs.CodeOf(err))
		}
	}
}

func TestCommandOutsideAllowlistDenied(t *testing.T) {
	h, perms := newTestHandler(t)
	profile := permissions.AdvancedTier()
	profile.Process.AllowedCommands = []string{"echo"}
	perms.AssignProfile("iso-1", profile)

	_, err := h.Execute(context.Background(), "process.execute",
		map[string]interface{}{"command": "rm -rf /tmp/x"}, reqCtx("iso-1"))
	if err == nil {
		t.Fatal("Off-allowlist command should be denied")
	}
	if errs.CodeOf(err) != errs.CodePermissionDenied {
		t.Errorf("Expected permission_denied, got %s", errs.CodeOf(err))
	}
}

func TestShellMetacharactersRejected(t *testing.T) {
	h, perms := newTestHandler(t)
	perms.AssignProfile("iso-1", permissions.AdvancedTier())

	for _, cmd := range []string{
		"echo hi | cat",
		"echo hi && rm x",
		"echo $(whoami)",
		"echo hi > /tmp/out",
		"cat ../secret",
	} {
		_, err := h.Execute(context.Background(), "process.execute",
			map[string]interface{}{"command": cmd}, reqCtx("iso-1"))
		if err == nil {
			t.Errorf("Command %q should be rejected", cmd)
			continue
		}
		if errs.CodeOf(err) != errs.CodeValidation {
			t.Errorf("Command %q: expected validation error, got %s", cmd, errs.CodeOf(err))
		}
	}
}

func TestQuotedMetacharactersStillRejected(t *testing.T) {
	h, perms := newTestHandler(t)
	perms.AssignProfile("iso-1", permissions.AdvancedTier())

	// Quoting removes shell meaning but the token still carries the
	// character into the target binary, so it stays rejected.
	_, err := h.Execute(context.Background(), "process.execute",
		map[string]interface{}{"command": `echo "a|b"`}, reqCtx("iso-1"))
	if err == nil {
		t.Fatal("Quoted metacharacter should be rejected")
	}
}

func TestExecutionTimeout(t *testing.T) {
	h, perms := newTestHandler(t)
	profile := permissions.AdvancedTier()
	profile.Process.AllowedCommands = []string{"sleep"}
	profile.Process.MaxExecutionTime = 100 * time.Millisecond
	perms.AssignProfile("iso-1", profile)

	_, err := h.Execute(context.Background(), "process.execute",
		map[string]interface{}{"command": "sleep 5"}, reqCtx("iso-1"))
	if err == nil {
		t.Fatal("Long-running command should time out")
	}
	if errs.CodeOf(err) != errs.CodeTimeout {
		t.Errorf("Expected timeout, got %s", errs.CodeOf(err))
	}
}

func TestNonZeroExitIsNotAnError(t *testing.T) {
	h, perms := newTestHandler(t)
	profile := permissions.AdvancedTier()
	profile.Process.AllowedCommands = []string{"false"}
	perms.AssignProfile("iso-1", profile)

	data, err := h.Execute(context.Background(), "process.execute",
		map[string]interface{}{"command": "false"}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Non-zero exit should not fail the operation: %v", err)
	}
	if data["exit_code"] != 1 {
		t.Errorf("Expected exit code 1, got %v", data["exit_code"])
	}
}

func TestOutputTruncation(t *testing.T) {
	h, perms := newTestHandler(t)
	profile := permissions.AdvancedTier()
	profile.Process.AllowedCommands = []string{"yes", "head", "seq"}
	profile.Process.MaxOutputBytes = 64
	perms.AssignProfile("iso-1", profile)

	data, err := h.Execute(context.Background(), "process.execute",
		map[string]interface{}{"command": "seq 1 10000"}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(data["stdout"].(string)) > 64 {
		t.Errorf("Output exceeds cap: %d bytes", len(data["stdout"].(string)))
	}
	if data["truncated"] != true {
		t.Error("Expected truncated=true")
	}
}

func TestGetInfoReportsLimits(t *testing.T) {
	h, perms := newTestHandler(t)
	perms.AssignProfile("iso-1", permissions.AdvancedTier())

	data, err := h.Execute(context.Background(), "process.getInfo",
		map[string]interface{}{}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("getInfo failed: %v", err)
	}
	if data["os"] == "" {
		t.Error("Expected host os in info")
	}
	if _, ok := data["allowed_commands"]; !ok {
		t.Error("Expected allowlist in info")
	}
}
