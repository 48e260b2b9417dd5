package permissions

import "time"

// Built-in tier names, ascending privilege.
const (
	TierBasic       = "basic"
	TierInteractive = "interactive"
	TierData        = "data"
	TierAdvanced    = "advanced"
)

// Tiers returns the built-in permission tiers. Each call returns fresh
// copies so callers can tweak a profile without mutating the table.
func Tiers() map[string]*Profile {
	return map[string]*Profile{
		TierBasic:       BasicTier(),
		TierInteractive: InteractiveTier(),
		TierData:        DataTier(),
		TierAdvanced:    AdvancedTier(),
	}
}

// TierByName resolves a built-in tier, or nil for unknown names.
func TierByName(name string) *Profile {
	switch name {
	case TierBasic:
		return BasicTier()
	case TierInteractive:
		return InteractiveTier()
	case TierData:
		return DataTier()
	case TierAdvanced:
		return AdvancedTier()
	}
	return nil
}

// BasicTier allows read-only network access to a small allowlist plus
// DOM drafting. No file, database, process or canvas access.
func BasicTier() *Profile {
	return &Profile{
		Name: TierBasic,
		File: FileCapability{Enabled: false},
		Network: NetworkCapability{
			Enabled:              true,
			AllowedDomains:       []string{"api.github.com", ".jsdelivr.net", ".googleapis.com"},
			MaxRequestsPerMinute: 10,
			MaxResponseBytes:     1 << 20, // 1MB
			AllowWebhooks:        false,
		},
		Database: DatabaseCapability{Enabled: false},
		Process:  ProcessCapability{Enabled: false},
		Canvas:   CanvasCapability{Enabled: false},
		DOM: DOMCapability{
			Enabled:        true,
			MaxHTMLBytes:   256 << 10,
			MaxCSSBytes:    64 << 10,
			MaxScriptBytes: 64 << 10,
			MaxScriptTime:  2 * time.Second,
		},
		Global: GlobalLimits{
			MaxMemoryMB:           64,
			MaxExecutionTime:      5 * time.Second,
			MaxConcurrentRequests: 20,
			StorageQuotaMB:        0,
		},
	}
}

// InteractiveTier adds file read/write/delete under temp/ and uploads/,
// any network domain, and canvas rendering.
func InteractiveTier() *Profile {
	return &Profile{
		Name: TierInteractive,
		File: FileCapability{
			Enabled:           true,
			MaxFileSize:       5 << 20, // 5MB
			AllowedExtensions: []string{".txt", ".json", ".csv", ".md", ".html", ".css", ".js", ".svg", ".png", ".jpg"},
			AllowedPaths:      []string{"temp/", "uploads/"},
		},
		Network: NetworkCapability{
			Enabled:              true,
			AllowedDomains:       []string{"*"},
			MaxRequestsPerMinute: 30,
			MaxResponseBytes:     5 << 20,
			AllowWebhooks:        false,
		},
		Database: DatabaseCapability{Enabled: false},
		Process:  ProcessCapability{Enabled: false},
		Canvas: CanvasCapability{
			Enabled:       true,
			MaxPixels:     1920 * 1080,
			ExportFormats: []string{"png", "json"},
		},
		DOM: DOMCapability{
			Enabled:        true,
			MaxHTMLBytes:   512 << 10,
			MaxCSSBytes:    128 << 10,
			MaxScriptBytes: 128 << 10,
			MaxScriptTime:  3 * time.Second,
		},
		Global: GlobalLimits{
			MaxMemoryMB:           128,
			MaxExecutionTime:      10 * time.Second,
			MaxConcurrentRequests: 40,
			StorageQuotaMB:        50,
		},
	}
}

// DataTier adds database access with writes and complex queries, and a
// larger file quota.
func DataTier() *Profile {
	p := InteractiveTier()
	p.Name = TierData
	p.File.MaxFileSize = 20 << 20 // 20MB
	p.Database = DatabaseCapability{
		Enabled:             true,
		AllowWrites:         true,
		AllowComplexQueries: true,
		MaxQueriesPerMinute: 60,
	}
	p.Network.MaxRequestsPerMinute = 60
	p.Network.MaxResponseBytes = 10 << 20
	p.Global.MaxMemoryMB = 256
	p.Global.MaxConcurrentRequests = 60
	p.Global.StorageQuotaMB = 200
	return p
}

// AdvancedTier is near-unrestricted, for trusted operators.
func AdvancedTier() *Profile {
	return &Profile{
		Name: TierAdvanced,
		File: FileCapability{
			Enabled:           true,
			MaxFileSize:       100 << 20,
			AllowedExtensions: []string{"*"},
			AllowedPaths:      []string{"*"},
		},
		Network: NetworkCapability{
			Enabled:              true,
			AllowedDomains:       []string{"*"},
			MaxRequestsPerMinute: 300,
			MaxResponseBytes:     50 << 20,
			AllowWebhooks:        true,
		},
		Database: DatabaseCapability{
			Enabled:             true,
			AllowWrites:         true,
			AllowComplexQueries: true,
			MaxQueriesPerMinute: 600,
		},
		Process: ProcessCapability{
			Enabled:          true,
			AllowedCommands:  []string{"*"},
			MaxOutputBytes:   10 << 20,
			MaxExecutionTime: 30 * time.Second,
		},
		Canvas: CanvasCapability{
			Enabled:       true,
			MaxPixels:     4096 * 4096,
			ExportFormats: []string{"png", "jpeg", "json"},
		},
		DOM: DOMCapability{
			Enabled:        true,
			MaxHTMLBytes:   4 << 20,
			MaxCSSBytes:    1 << 20,
			MaxScriptBytes: 1 << 20,
			MaxScriptTime:  10 * time.Second,
		},
		Global: GlobalLimits{
			MaxMemoryMB:           1024,
			MaxExecutionTime:      60 * time.Second,
			MaxConcurrentRequests: 200,
			StorageQuotaMB:        2048,
		},
	}
}
