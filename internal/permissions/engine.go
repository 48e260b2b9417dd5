package permissions

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/logging"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
)

// Window is the fixed rate-limit window.
const Window = time.Minute

// Decision is the outcome of the authorization gate.
type Decision struct {
	Allowed bool
	Reason  string
	Code    errs.Code
}

// Engine owns per-isolate profile assignment, authorization checks and
// rate-limit counters.
type Engine struct {
	log *logging.Logger

	mu          sync.Mutex
	profiles    map[string]*Profile
	counters    map[string]map[string]int // isolate id -> operation -> count
	windowStart time.Time

	now func() time.Time // injectable clock for tests
}

// NewEngine creates a permission engine.
func NewEngine(log *logging.Logger) *Engine {
	if log == nil {
		log = logging.NewNop()
	}
	e := &Engine{
		log:      log,
		profiles: make(map[string]*Profile),
		counters: make(map[string]map[string]int),
		now:      time.Now,
	}
	e.windowStart = e.now()
	return e
}

// Domain extracts the domain prefix from a dotted operation name.
func Domain(operation string) string {
	if idx := strings.Index(operation, "."); idx != -1 {
		return operation[:idx]
	}
	return operation
}

// Assign assigns a built-in tier to an isolate, overwriting any existing
// profile.
func (e *Engine) Assign(isolateID, tier string) error {
	profile := TierByName(tier)
	if profile == nil {
		return fmt.Errorf("unknown permission tier: %s", tier)
	}
	e.AssignProfile(isolateID, profile)
	return nil
}

// AssignProfile assigns a custom profile to an isolate.
func (e *Engine) AssignProfile(isolateID string, profile *Profile) {
	e.mu.Lock()
	e.profiles[isolateID] = profile
	e.mu.Unlock()
	e.log.Info("Permission profile assigned",
		zap.String("isolate_id", isolateID),
		zap.String("tier", profile.Name))
}

// Get returns the isolate's profile, or nil if none is assigned.
func (e *Engine) Get(isolateID string) *Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profiles[isolateID]
}

// Remove deletes the profile and all rate counters for an isolate. Must
// be called on sandbox termination to avoid unbounded growth.
func (e *Engine) Remove(isolateID string) {
	e.mu.Lock()
	delete(e.profiles, isolateID)
	delete(e.counters, isolateID)
	e.mu.Unlock()
}

// IsAllowed checks the profile's capability matrix against the operation
// and payload. It does not consult rate limits. Unknown operation
// domains are always denied.
func (e *Engine) IsAllowed(isolateID, operation string, payload map[string]interface{}) bool {
	profile := e.Get(isolateID)
	if profile == nil {
		return false
	}
	switch Domain(operation) {
	case "file":
		return e.fileAllowed(profile, operation, payload)
	case "network":
		return e.networkAllowed(profile, operation, payload)
	case "database":
		return e.databaseAllowed(profile, payload)
	case "process":
		return e.processAllowed(profile, payload)
	case "canvas":
		return e.canvasAllowed(profile, operation, payload)
	case "dom":
		return e.domAllowed(profile, payload)
	}
	return false
}

// CheckRateLimit compares the current window's counter against the
// domain-specific limit without incrementing it.
func (e *Engine) CheckRateLimit(isolateID, operation string) bool {
	profile := e.Get(isolateID)
	if profile == nil {
		return false
	}
	limit := rateLimitFor(profile, operation)
	if limit <= 0 {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.maybeResetLocked()
	return e.counters[isolateID][operation] < limit
}

// RecordRequest increments the isolate's counter for the operation.
// Call only after authorization succeeds.
func (e *Engine) RecordRequest(isolateID, operation string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maybeResetLocked()
	ops := e.counters[isolateID]
	if ops == nil {
		ops = make(map[string]int)
		e.counters[isolateID] = ops
	}
	ops[operation]++
}

// Validate is the single authorization gate used by every handler. It
// composes "profile exists" → IsAllowed → CheckRateLimit, short-
// circuiting with a human-readable reason on the first failure.
func (e *Engine) Validate(isolateID, operation string, payload map[string]interface{}) Decision {
	profile := e.Get(isolateID)
	if profile == nil {
		return Decision{
			Reason: fmt.Sprintf("no permission profile assigned to isolate %s", isolateID),
			Code:   errs.CodePermissionDenied,
		}
	}
	if !e.IsAllowed(isolateID, operation, payload) {
		return Decision{
			Reason: fmt.Sprintf("operation %s not permitted by profile %s", operation, profile.Name),
			Code:   errs.CodePermissionDenied,
		}
	}
	if !e.CheckRateLimit(isolateID, operation) {
		return Decision{
			Reason: fmt.Sprintf("rate limit exceeded for %s", operation),
			Code:   errs.CodeRateLimited,
		}
	}
	return Decision{Allowed: true}
}

// maybeResetLocked resets all counters when the fixed window has
// elapsed. Caller must hold e.mu.
func (e *Engine) maybeResetLocked() {
	if e.now().Sub(e.windowStart) >= Window {
		e.counters = make(map[string]map[string]int)
		e.windowStart = e.now()
	}
}

func rateLimitFor(profile *Profile, operation string) int {
	switch Domain(operation) {
	case "network":
		return profile.Network.MaxRequestsPerMinute
	case "database":
		return profile.Database.MaxQueriesPerMinute
	default:
		return profile.Global.MaxConcurrentRequests
	}
}

func (e *Engine) fileAllowed(p *Profile, operation string, payload map[string]interface{}) bool {
	if !p.File.Enabled {
		return false
	}
	path, _ := payload["path"].(string)
	if path != "" && !MatchPathPrefix(path, p.File.AllowedPaths) {
		return false
	}
	switch {
	case path == "" || strings.HasSuffix(operation, ".list"):
		// Directory listing has no extension to check.
	case strings.HasSuffix(operation, ".read") || strings.HasSuffix(operation, ".write") || strings.HasSuffix(operation, ".delete"):
		// Fail closed: an extension-less path must still clear the
		// allowlist, otherwise it slips past a restricted tier.
		if !MatchExtension(path, p.File.AllowedExtensions) {
			return false
		}
	default:
		if ext := filepath.Ext(path); ext != "" && !MatchExtension(path, p.File.AllowedExtensions) {
			return false
		}
	}
	if content, ok := payload["content"].(string); ok && p.File.MaxFileSize > 0 {
		if int64(len(content)) > p.File.MaxFileSize {
			return false
		}
	}
	return true
}

func (e *Engine) networkAllowed(p *Profile, operation string, payload map[string]interface{}) bool {
	if !p.Network.Enabled {
		return false
	}
	if strings.HasSuffix(operation, ".webhook") && !p.Network.AllowWebhooks {
		return false
	}
	rawURL, _ := payload["url"].(string)
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return MatchDomain(u.Host, p.Network.AllowedDomains)
}

func (e *Engine) databaseAllowed(p *Profile, payload map[string]interface{}) bool {
	if !p.Database.Enabled {
		return false
	}
	query, _ := payload["query"].(string)
	if query == "" {
		if qs, ok := payload["queries"].([]interface{}); ok {
			for _, q := range qs {
				switch v := q.(type) {
				case string:
					query += " " + v
				case map[string]interface{}:
					s, _ := v["query"].(string)
					query += " " + s
				}
			}
		}
	}
	upper := " " + strings.ToUpper(query) + " "
	if !p.Database.AllowWrites {
		for _, kw := range []string{" INSERT ", " UPDATE ", " DELETE ", " CREATE ", " ALTER "} {
			if strings.Contains(upper, kw) {
				return false
			}
		}
	}
	if !p.Database.AllowComplexQueries {
		if strings.Contains(upper, " JOIN ") || strings.Contains(upper, " UNION ") {
			return false
		}
	}
	return true
}

func (e *Engine) processAllowed(p *Profile, payload map[string]interface{}) bool {
	if !p.Process.Enabled {
		return false
	}
	command, _ := payload["command"].(string)
	if command == "" {
		return false
	}
	// A command string may carry arguments; only the program is checked
	// here, argument validation happens in the process handler.
	if fields := strings.Fields(command); len(fields) > 0 {
		command = fields[0]
	}
	return MatchCommand(command, p.Process.AllowedCommands)
}

func (e *Engine) canvasAllowed(p *Profile, operation string, payload map[string]interface{}) bool {
	if !p.Canvas.Enabled {
		return false
	}
	if strings.HasSuffix(operation, ".create") && p.Canvas.MaxPixels > 0 {
		width, _ := payload["width"].(float64)
		height, _ := payload["height"].(float64)
		if int(width)*int(height) > p.Canvas.MaxPixels {
			return false
		}
	}
	return true
}

func (e *Engine) domAllowed(p *Profile, payload map[string]interface{}) bool {
	if !p.DOM.Enabled {
		return false
	}
	if html, ok := payload["html"].(string); ok && p.DOM.MaxHTMLBytes > 0 && len(html) > p.DOM.MaxHTMLBytes {
		return false
	}
	if css, ok := payload["css"].(string); ok && p.DOM.MaxCSSBytes > 0 && len(css) > p.DOM.MaxCSSBytes {
		return false
	}
	if script, ok := payload["script"].(string); ok && p.DOM.MaxScriptBytes > 0 && len(script) > p.DOM.MaxScriptBytes {
		return false
	}
	return true
}
