package permissions

import (
	"strings"
	"time"
)

// Profile is a named permission tier: a capability matrix plus global
// limits. Tiers are data tables, not code; adding a tier is a
// configuration change.
type Profile struct {
	Name     string             `json:"name"`
	File     FileCapability     `json:"file"`
	Network  NetworkCapability  `json:"network"`
	Database DatabaseCapability `json:"database"`
	Process  ProcessCapability  `json:"process"`
	Canvas   CanvasCapability   `json:"canvas"`
	DOM      DOMCapability      `json:"dom"`
	Global   GlobalLimits       `json:"global"`
}

// FileCapability gates the file domain.
type FileCapability struct {
	Enabled           bool     `json:"enabled"`
	MaxFileSize       int64    `json:"max_file_size"`
	AllowedExtensions []string `json:"allowed_extensions"` // ".txt" form, "*" for any
	AllowedPaths      []string `json:"allowed_paths"`      // relative prefixes, "*" for any
}

// NetworkCapability gates the network domain.
type NetworkCapability struct {
	Enabled              bool     `json:"enabled"`
	AllowedDomains       []string `json:"allowed_domains"` // exact, ".suffix" or "*"
	MaxRequestsPerMinute int      `json:"max_requests_per_minute"`
	MaxResponseBytes     int64    `json:"max_response_bytes"`
	AllowWebhooks        bool     `json:"allow_webhooks"`
}

// DatabaseCapability gates the database domain.
type DatabaseCapability struct {
	Enabled             bool `json:"enabled"`
	AllowWrites         bool `json:"allow_writes"`
	AllowComplexQueries bool `json:"allow_complex_queries"` // JOIN / UNION
	MaxQueriesPerMinute int  `json:"max_queries_per_minute"`
}

// ProcessCapability gates the process domain.
type ProcessCapability struct {
	Enabled          bool          `json:"enabled"`
	AllowedCommands  []string      `json:"allowed_commands"` // exact, basename or "*"
	MaxOutputBytes   int64         `json:"max_output_bytes"`
	MaxExecutionTime time.Duration `json:"max_execution_time"`
}

// CanvasCapability gates the canvas domain.
type CanvasCapability struct {
	Enabled       bool     `json:"enabled"`
	MaxPixels     int      `json:"max_pixels"` // width * height
	ExportFormats []string `json:"export_formats"`
}

// DOMCapability gates the dom domain.
type DOMCapability struct {
	Enabled        bool          `json:"enabled"`
	MaxHTMLBytes   int           `json:"max_html_bytes"`
	MaxCSSBytes    int           `json:"max_css_bytes"`
	MaxScriptBytes int           `json:"max_script_bytes"`
	MaxScriptTime  time.Duration `json:"max_script_time"`
}

// GlobalLimits apply across domains.
type GlobalLimits struct {
	MaxMemoryMB           int           `json:"max_memory_mb"`
	MaxExecutionTime      time.Duration `json:"max_execution_time"`
	MaxConcurrentRequests int           `json:"max_concurrent_requests"`
	StorageQuotaMB        int           `json:"storage_quota_mb"`
}

// MatchDomain reports whether host matches an allowlist entry.
// Entries match exactly, by dot-suffix (".example.com" matches any
// subdomain), or wildcard "*".
func MatchDomain(host string, allowed []string) bool {
	host = strings.ToLower(host)
	// Strip port if present
	if idx := strings.LastIndex(host, ":"); idx != -1 && !strings.Contains(host[idx:], "]") {
		host = host[:idx]
	}
	for _, entry := range allowed {
		entry = strings.ToLower(entry)
		switch {
		case entry == "*":
			return true
		case strings.HasPrefix(entry, "."):
			if strings.HasSuffix(host, entry) || host == strings.TrimPrefix(entry, ".") {
				return true
			}
		case host == entry:
			return true
		case strings.HasSuffix(host, "."+entry):
			return true
		}
	}
	return false
}

// MatchCommand reports whether a command matches an allowlist entry:
// exact path, basename, or wildcard "*".
func MatchCommand(command string, allowed []string) bool {
	base := command
	if idx := strings.LastIndex(base, "/"); idx != -1 {
		base = base[idx+1:]
	}
	for _, entry := range allowed {
		if entry == "*" || entry == command || entry == base {
			return true
		}
	}
	return false
}

// MatchExtension reports whether a filename's extension is allowed.
func MatchExtension(name string, allowed []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range allowed {
		if ext == "*" {
			return true
		}
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// MatchPathPrefix reports whether a relative path sits under an allowed
// prefix.
func MatchPathPrefix(path string, allowed []string) bool {
	for _, prefix := range allowed {
		if prefix == "*" {
			return true
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
