package process

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxBytes = 1 << 20 // 1 MiB per stream
)

// metachars that would only matter under a shell; rejected anyway so an
// allowlisted binary cannot be used to smuggle shell syntax downstream.
const metachars = "|&;<>`$(){}"

// Handler executes allowlisted commands on behalf of isolates.
type Handler struct {
	perms *permissions.Engine
}

// New creates a process handler.
func New(perms *permissions.Engine) *Handler {
	return &Handler{perms: perms}
}

func (h *Handler) Definition() capability.Definition {
	return capability.Definition{
		Domain:      "process",
		Name:        "Process Capability",
		Description: "Allowlisted command execution",
		Tools: []types.Tool{
			{ID: "process.execute", Name: "Execute", Description: "Run an allowlisted command", Parameters: []types.Parameter{
				{Name: "command", Type: "string", Required: true},
				{Name: "args", Type: "array", Description: "Additional arguments", Required: false},
				{Name: "timeout_ms", Type: "number", Required: false},
			}},
			{ID: "process.getInfo", Name: "Info", Description: "Report execution limits", Parameters: nil},
		},
	}
}

func (h *Handler) Execute(ctx context.Context, operation string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	switch operation {
	case "process.execute", "process.run":
		return h.execute(ctx, params, reqCtx)
	case "process.getInfo":
		return h.getInfo(reqCtx)
	default:
		return nil, errs.Validation(operation, reqCtx.IsolateID, "unknown process operation")
	}
}

func (h *Handler) execute(ctx context.Context, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	raw, _ := params["command"].(string)
	if raw == "" {
		return nil, errs.Validation("process.execute", reqCtx.IsolateID, "command is required")
	}

	argv, err := shlex.Split(raw)
	if err != nil {
		return nil, errs.Validation("process.execute", reqCtx.IsolateID, "malformed command: "+err.Error())
	}
	if len(argv) == 0 {
		return nil, errs.Validation("process.execute", reqCtx.IsolateID, "command is empty after tokenization")
	}
	if extra, ok := params["args"].([]interface{}); ok {
		for _, a := range extra {
			arg, ok := a.(string)
			if !ok {
				return nil, errs.Validation("process.execute", reqCtx.IsolateID, "args must be strings")
			}
			argv = append(argv, arg)
		}
	}
	for _, tok := range argv {
		if err := validateToken(tok); err != nil {
			return nil, errs.Validation("process.execute", reqCtx.IsolateID, err.Error())
		}
	}

	profile := h.perms.Get(reqCtx.IsolateID)
	if profile == nil || !permissions.MatchCommand(argv[0], profile.Process.AllowedCommands) {
		return nil, errs.Denied("process.execute", reqCtx.IsolateID, "command not in allowlist: "+argv[0])
	}

	timeout := profile.Process.MaxExecutionTime
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if ms, ok := params["timeout_ms"].(float64); ok && ms > 0 {
		if requested := time.Duration(ms) * time.Millisecond; requested < timeout {
			timeout = requested
		}
	}
	maxBytes := profile.Process.MaxOutputBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	stdout := newCappedBuffer(maxBytes)
	stderr := newCappedBuffer(maxBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if cctx.Err() == context.DeadlineExceeded {
		return nil, errs.Wrap(errs.CodeTimeout, "process.execute", reqCtx.IsolateID, cctx.Err())
	}
	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// Spawn failure, e.g. binary not found on the host.
			return nil, errs.Execution("process.execute", reqCtx.IsolateID, runErr)
		}
	}

	return map[string]interface{}{
		"stdout":      stdout.String(),
		"stderr":      stderr.String(),
		"exit_code":   exitCode,
		"truncated":   stdout.Truncated() || stderr.Truncated(),
		"duration_ms": elapsed.Milliseconds(),
	}, nil
}

// validateToken rejects shell syntax and traversal in a single argv
// element. Split tokens and explicit args go through the same gate.
func validateToken(tok string) error {
	if strings.ContainsAny(tok, metachars) || strings.ContainsAny(tok, "\n\r") {
		return errors.New("shell metacharacters are not allowed")
	}
	if strings.Contains(tok, "..") {
		return errors.New("path traversal is not allowed")
	}
	return nil
}

func (h *Handler) getInfo(reqCtx *types.Context) (map[string]interface{}, error) {
	info := map[string]interface{}{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
	}
	if profile := h.perms.Get(reqCtx.IsolateID); profile != nil {
		info["allowed_commands"] = profile.Process.AllowedCommands
		info["max_output_bytes"] = profile.Process.MaxOutputBytes
		info["max_execution_ms"] = profile.Process.MaxExecutionTime.Milliseconds()
	}
	return info, nil
}
