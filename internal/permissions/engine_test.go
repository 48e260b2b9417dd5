package permissions

import (
	"testing"
	"time"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/logging"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
)

func newTestEngine() *Engine {
	return NewEngine(logging.NewNop())
}

func TestFailClosedWithoutProfile(t *testing.T) {
	e := newTestEngine()

	decision := e.Validate("iso-unknown", "file.read", map[string]interface{}{"path": "temp/a.txt"})
	if decision.Allowed {
		t.Fatal("Expected denial for isolate with no profile")
	}
	if decision.Code != errs.CodePermissionDenied {
		t.Errorf("Expected permission_denied code, got %s", decision.Code)
	}
}

func TestUnknownDomainDenied(t *testing.T) {
	e := newTestEngine()
	e.AssignProfile("iso-1", AdvancedTier())

	if e.IsAllowed("iso-1", "teleport.beam", map[string]interface{}{}) {
		t.Error("Unknown operation domain must be denied even for advanced tier")
	}
}

func TestProfileDenialIsMonotonic(t *testing.T) {
	e := newTestEngine()
	e.AssignProfile("iso-1", BasicTier())

	payload := map[string]interface{}{"command": "echo"}
	// Process is disabled in basic: denied by profile regardless of
	// rate-limit headroom.
	for i := 0; i < 5; i++ {
		if e.IsAllowed("iso-1", "process.execute", payload) {
			t.Fatal("Expected process.execute denied under basic tier")
		}
	}
}

func TestAssignOverwrites(t *testing.T) {
	e := newTestEngine()
	if err := e.Assign("iso-1", TierBasic); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	payload := map[string]interface{}{"command": "echo hi"}
	if e.IsAllowed("iso-1", "process.execute", payload) {
		t.Fatal("basic tier should deny process")
	}

	if err := e.Assign("iso-1", TierAdvanced); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if !e.IsAllowed("iso-1", "process.execute", payload) {
		t.Fatal("advanced tier should allow process")
	}
}

func TestUnknownTier(t *testing.T) {
	e := newTestEngine()
	if err := e.Assign("iso-1", "superuser"); err == nil {
		t.Error("Expected error for unknown tier")
	}
}

func TestRateLimitWindow(t *testing.T) {
	e := newTestEngine()
	profile := AdvancedTier()
	profile.Network.MaxRequestsPerMinute = 3
	e.AssignProfile("iso-1", profile)

	now := time.Now()
	e.now = func() time.Time { return now }
	e.windowStart = now

	payload := map[string]interface{}{"url": "https://example.com/data"}
	for i := 0; i < 3; i++ {
		decision := e.Validate("iso-1", "network.request", payload)
		if !decision.Allowed {
			t.Fatalf("Request %d should be allowed: %s", i+1, decision.Reason)
		}
		e.RecordRequest("iso-1", "network.request")
	}

	// The (limit+1)-th call in the same window is rejected.
	decision := e.Validate("iso-1", "network.request", payload)
	if decision.Allowed {
		t.Fatal("Expected rate limit denial")
	}
	if decision.Code != errs.CodeRateLimited {
		t.Errorf("Expected rate_limited code, got %s", decision.Code)
	}

	// After the window resets the counter restarts at zero.
	now = now.Add(Window + time.Second)
	decision = e.Validate("iso-1", "network.request", payload)
	if !decision.Allowed {
		t.Fatalf("Expected allowance after window reset: %s", decision.Reason)
	}
}

func TestRemovePurgesCounters(t *testing.T) {
	e := newTestEngine()
	e.AssignProfile("iso-1", AdvancedTier())
	e.RecordRequest("iso-1", "network.request")

	e.Remove("iso-1")

	if e.Get("iso-1") != nil {
		t.Error("Expected profile removed")
	}
	e.mu.Lock()
	_, exists := e.counters["iso-1"]
	e.mu.Unlock()
	if exists {
		t.Error("Expected counters removed")
	}
}

func TestFilePayloadValidation(t *testing.T) {
	e := newTestEngine()
	e.AssignProfile("iso-1", InteractiveTier())

	cases := []struct {
		path    string
		allowed bool
	}{
		{"uploads/a.txt", true},
		{"temp/notes.md", true},
		{"secret/a.txt", false},
		{"uploads/evil.exe", false},
	}
	for _, tc := range cases {
		got := e.IsAllowed("iso-1", "file.read", map[string]interface{}{"path": tc.path})
		if got != tc.allowed {
			t.Errorf("file.read %q: expected allowed=%v, got %v", tc.path, tc.allowed, got)
		}
	}
}

func TestExtensionlessPathDenied(t *testing.T) {
	e := newTestEngine()
	e.AssignProfile("iso-1", InteractiveTier())

	for _, op := range []string{"file.read", "file.write", "file.delete"} {
		if e.IsAllowed("iso-1", op, map[string]interface{}{"path": "uploads/payload"}) {
			t.Errorf("%s on an extension-less path must clear the allowlist", op)
		}
	}

	// Listing targets directories, which carry no extension.
	if !e.IsAllowed("iso-1", "file.list", map[string]interface{}{"path": "uploads/archive"}) {
		t.Error("file.list on a directory should be allowed")
	}

	// A wildcard allowlist admits everything, extension or not.
	e.AssignProfile("iso-2", AdvancedTier())
	if !e.IsAllowed("iso-2", "file.write", map[string]interface{}{"path": "uploads/payload"}) {
		t.Error("Wildcard extension allowlist should admit extension-less paths")
	}
}

func TestFileSizeLimit(t *testing.T) {
	e := newTestEngine()
	profile := InteractiveTier()
	profile.File.MaxFileSize = 8
	e.AssignProfile("iso-1", profile)

	small := map[string]interface{}{"path": "temp/a.txt", "content": "hi"}
	if !e.IsAllowed("iso-1", "file.write", small) {
		t.Error("Small write should be allowed")
	}

	big := map[string]interface{}{"path": "temp/a.txt", "content": "way too much content"}
	if e.IsAllowed("iso-1", "file.write", big) {
		t.Error("Oversized write should be denied")
	}
}

func TestNetworkDomainAllowlist(t *testing.T) {
	e := newTestEngine()
	e.AssignProfile("iso-1", BasicTier())

	cases := []struct {
		url     string
		allowed bool
	}{
		{"https://api.github.com/repos", true},
		{"https://cdn.jsdelivr.net/npm/pkg", true},
		{"https://evil.example.com/", false},
		{"ftp://api.github.com/", false},
	}
	for _, tc := range cases {
		got := e.IsAllowed("iso-1", "network.request", map[string]interface{}{"url": tc.url})
		if got != tc.allowed {
			t.Errorf("network.request %q: expected allowed=%v, got %v", tc.url, tc.allowed, got)
		}
	}
}

func TestWebhookFlag(t *testing.T) {
	e := newTestEngine()
	profile := InteractiveTier()
	e.AssignProfile("iso-1", profile)

	payload := map[string]interface{}{"url": "https://hooks.example.com/x"}
	if e.IsAllowed("iso-1", "network.webhook", payload) {
		t.Error("Webhook should require the allow-webhooks flag")
	}

	profile.Network.AllowWebhooks = true
	e.AssignProfile("iso-1", profile)
	if !e.IsAllowed("iso-1", "network.webhook", payload) {
		t.Error("Webhook should be allowed once flagged")
	}
}

func TestDatabaseFlags(t *testing.T) {
	e := newTestEngine()
	profile := DataTier()
	profile.Database.AllowWrites = false
	profile.Database.AllowComplexQueries = false
	e.AssignProfile("iso-1", profile)

	if e.IsAllowed("iso-1", "database.query", map[string]interface{}{"query": "INSERT INTO t (a) VALUES (1)"}) {
		t.Error("Write should require the write flag")
	}
	if e.IsAllowed("iso-1", "database.query", map[string]interface{}{"query": "SELECT * FROM a JOIN b ON a.id = b.id"}) {
		t.Error("JOIN should require the complex-query flag")
	}
	if !e.IsAllowed("iso-1", "database.query", map[string]interface{}{"query": "SELECT * FROM t"}) {
		t.Error("Plain select should be allowed")
	}
}

func TestDomainMatching(t *testing.T) {
	allowed := []string{"api.example.com", ".cdn.net", "*"}
	if !MatchDomain("api.example.com:8443", []string{"api.example.com"}) {
		t.Error("Port should be stripped before matching")
	}
	if !MatchDomain("assets.cdn.net", []string{".cdn.net"}) {
		t.Error("Suffix entry should match subdomains")
	}
	if MatchDomain("anything.org", []string{"api.example.com", ".cdn.net"}) {
		t.Error("Unlisted host should not match")
	}
	if !MatchDomain("anything.org", allowed) {
		t.Error("Wildcard should match everything")
	}
}

func TestCommandMatching(t *testing.T) {
	if !MatchCommand("/bin/echo", []string{"echo"}) {
		t.Error("Basename should match")
	}
	if !MatchCommand("ls", []string{"ls", "cat"}) {
		t.Error("Exact should match")
	}
	if MatchCommand("rm", []string{"ls", "cat"}) {
		t.Error("Unlisted command should not match")
	}
}
