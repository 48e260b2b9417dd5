package file

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/utils"
)

// Info represents file metadata returned by list and info.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	IsDir     bool      `json:"is_dir"`
	Mode      string    `json:"mode"`
	Modified  time.Time `json:"modified"`
	Extension string    `json:"extension,omitempty"`
	MimeType  string    `json:"mime_type,omitempty"`
	Checksum  string    `json:"checksum,omitempty"`
}

// Handler implements the file capability.
type Handler struct {
	root  string
	perms *permissions.Engine
}

// New creates a file handler rooted at the given storage directory.
func New(root string, perms *permissions.Engine) *Handler {
	return &Handler{root: root, perms: perms}
}

// Definition returns capability metadata.
func (h *Handler) Definition() capability.Definition {
	return capability.Definition{
		Domain:      "file",
		Name:        "File Access",
		Description: "Sandboxed file operations under a per-isolate directory",
		Tools: []types.Tool{
			{
				ID:          "file.read",
				Name:        "Read File",
				Description: "Read file contents",
				Parameters: []types.Parameter{
					{Name: "path", Type: "string", Description: "Relative file path", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "file.write",
				Name:        "Write File",
				Description: "Write data to file (overwrites existing)",
				Parameters: []types.Parameter{
					{Name: "path", Type: "string", Description: "Relative file path", Required: true},
					{Name: "content", Type: "string", Description: "Data to write", Required: true},
					{Name: "create_dirs", Type: "boolean", Description: "Create parent directories", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "file.delete",
				Name:        "Delete File",
				Description: "Delete a file or empty directory",
				Parameters: []types.Parameter{
					{Name: "path", Type: "string", Description: "Relative path", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "file.list",
				Name:        "List Directory",
				Description: "List directory entries, optionally recursive",
				Parameters: []types.Parameter{
					{Name: "path", Type: "string", Description: "Relative directory path", Required: false},
					{Name: "recursive", Type: "boolean", Description: "Walk subdirectories", Required: false},
				},
				Returns: "array",
			},
			{
				ID:          "file.info",
				Name:        "File Info",
				Description: "Stat a file with mime detection and content checksum",
				Parameters: []types.Parameter{
					{Name: "path", Type: "string", Description: "Relative path", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "file.exists",
				Name:        "Check Existence",
				Description: "Check whether a path exists",
				Parameters: []types.Parameter{
					{Name: "path", Type: "string", Description: "Relative path", Required: true},
				},
				Returns: "boolean",
			},
		},
	}
}

// Execute routes a file operation.
func (h *Handler) Execute(ctx context.Context, operation string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	switch operation {
	case "file.read":
		return h.read(operation, params, reqCtx)
	case "file.write":
		return h.write(operation, params, reqCtx)
	case "file.delete":
		return h.delete(operation, params, reqCtx)
	case "file.list":
		return h.list(operation, params, reqCtx)
	case "file.info":
		return h.info(operation, params, reqCtx)
	case "file.exists":
		return h.exists(operation, params, reqCtx)
	default:
		return nil, errs.Validation(operation, reqCtx.IsolateID, "unknown file operation")
	}
}

func (h *Handler) read(op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	path, _ := params["path"].(string)
	if err := validatePath(op, reqCtx.IsolateID, path); err != nil {
		return nil, err
	}

	full := h.resolve(reqCtx.IsolateID, path)
	stat, err := os.Stat(full)
	if err != nil {
		return nil, errs.Execution(op, reqCtx.IsolateID, err)
	}
	if max := h.maxFileSize(reqCtx.IsolateID); max > 0 && stat.Size() > max {
		return nil, errs.Newf(errs.CodeValidation, op, reqCtx.IsolateID,
			"file exceeds maximum size (%d > %d bytes)", stat.Size(), max)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, errs.Execution(op, reqCtx.IsolateID, err)
	}
	return map[string]interface{}{
		"path":    path,
		"content": string(data),
		"size":    stat.Size(),
	}, nil
}

func (h *Handler) write(op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	path, _ := params["path"].(string)
	if err := validatePath(op, reqCtx.IsolateID, path); err != nil {
		return nil, err
	}
	content, ok := params["content"].(string)
	if !ok {
		return nil, errs.Validation(op, reqCtx.IsolateID, "content is required")
	}

	full := h.resolve(reqCtx.IsolateID, path)
	// Directory creation is opt-in per write call.
	if createDirs, _ := params["create_dirs"].(bool); createDirs {
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, errs.Execution(op, reqCtx.IsolateID, err)
		}
	}

	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return nil, errs.Execution(op, reqCtx.IsolateID, err)
	}
	return map[string]interface{}{
		"path":    path,
		"written": true,
		"bytes":   len(content),
	}, nil
}

func (h *Handler) delete(op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	path, _ := params["path"].(string)
	if err := validatePath(op, reqCtx.IsolateID, path); err != nil {
		return nil, err
	}

	full := h.resolve(reqCtx.IsolateID, path)
	if err := os.Remove(full); err != nil {
		return nil, errs.Execution(op, reqCtx.IsolateID, err)
	}
	return map[string]interface{}{"path": path, "deleted": true}, nil
}

func (h *Handler) list(op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	path, _ := params["path"].(string)
	if path != "" {
		if err := validatePath(op, reqCtx.IsolateID, path); err != nil {
			return nil, err
		}
	}
	recursive, _ := params["recursive"].(bool)

	base := filepath.Join(h.root, reqCtx.IsolateID)
	full := base
	if path != "" {
		full = h.resolve(reqCtx.IsolateID, path)
	}

	var entries []Info
	if recursive {
		conf := fastwalk.Config{Follow: false}
		err := fastwalk.Walk(&conf, full, func(p string, d fs.DirEntry, err error) error {
			if err != nil || p == full {
				return nil
			}
			fi, statErr := d.Info()
			if statErr != nil {
				return nil
			}
			rel, _ := filepath.Rel(base, p)
			entries = append(entries, infoFrom(rel, fi))
			return nil
		})
		if err != nil {
			return nil, errs.Execution(op, reqCtx.IsolateID, err)
		}
	} else {
		dirEntries, err := os.ReadDir(full)
		if err != nil {
			return nil, errs.Execution(op, reqCtx.IsolateID, err)
		}
		for _, d := range dirEntries {
			fi, statErr := d.Info()
			if statErr != nil {
				continue
			}
			rel := d.Name()
			if path != "" {
				rel = filepath.Join(path, d.Name())
			}
			entries = append(entries, infoFrom(rel, fi))
		}
	}

	items := make([]interface{}, len(entries))
	for i, e := range entries {
		items[i] = e
	}
	return map[string]interface{}{
		"path":    path,
		"entries": items,
		"count":   len(entries),
	}, nil
}

func (h *Handler) info(op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	path, _ := params["path"].(string)
	if err := validatePath(op, reqCtx.IsolateID, path); err != nil {
		return nil, err
	}

	full := h.resolve(reqCtx.IsolateID, path)
	stat, err := os.Stat(full)
	if err != nil {
		return nil, errs.Execution(op, reqCtx.IsolateID, err)
	}

	info := infoFrom(path, stat)
	if !stat.IsDir() {
		if mime, detectErr := mimetype.DetectFile(full); detectErr == nil {
			info.MimeType = mime.String()
		}
		if sum, hashErr := utils.HashFile(full); hashErr == nil {
			info.Checksum = sum
		}
	}
	return map[string]interface{}{"info": info}, nil
}

func (h *Handler) exists(op string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	path, _ := params["path"].(string)
	if err := validatePath(op, reqCtx.IsolateID, path); err != nil {
		return nil, err
	}

	_, err := os.Stat(h.resolve(reqCtx.IsolateID, path))
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return nil, errs.Execution(op, reqCtx.IsolateID, err)
	}
	return map[string]interface{}{"path": path, "exists": exists}, nil
}

func (h *Handler) maxFileSize(isolateID string) int64 {
	if profile := h.perms.Get(isolateID); profile != nil {
		return profile.File.MaxFileSize
	}
	return 0
}

func infoFrom(relPath string, fi os.FileInfo) Info {
	info := Info{
		Name:     fi.Name(),
		Path:     relPath,
		Size:     fi.Size(),
		IsDir:    fi.IsDir(),
		Mode:     fi.Mode().String(),
		Modified: fi.ModTime(),
	}
	if !fi.IsDir() {
		info.Extension = strings.ToLower(filepath.Ext(fi.Name()))
	}
	return info
}
