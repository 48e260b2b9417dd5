package file

import (
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
)

// validatePath rejects traversal attempts before any path touches the
// filesystem. These checks hold for every tier, including advanced.
func validatePath(operation, isolateID, path string) error {
	if path == "" {
		return errs.Validation(operation, isolateID, "path is required")
	}
	if strings.Contains(path, "..") {
		return errs.Validation(operation, isolateID, "path cannot contain .. components")
	}
	if strings.Contains(path, "\\") {
		return errs.Validation(operation, isolateID, "path cannot contain backslashes")
	}
	if strings.HasPrefix(path, "/") {
		return errs.Validation(operation, isolateID, "path must be relative")
	}
	return nil
}

// resolve maps a validated relative path into the isolate's scoped
// directory under the storage root.
func (h *Handler) resolve(isolateID, path string) string {
	return filepath.Join(h.root, isolateID, filepath.Clean(path))
}
