package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/logging"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/utils"
)

func newTestHandler(t *testing.T) (*Handler, *permissions.Engine, string) {
	t.Helper()
	root := t.TempDir()
	perms := permissions.NewEngine(logging.NewNop())
	return New(root, perms), perms, root
}

func reqCtx(isolateID string) *types.Context {
	return &types.Context{IsolateID: isolateID}
}

func TestTraversalRejectedRegardlessOfTier(t *testing.T) {
	h, perms, _ := newTestHandler(t)
	perms.AssignProfile("iso-1", permissions.AdvancedTier())

	for _, path := range []string{"../etc/passwd", "a/../../b", "a\\b.txt", "/etc/passwd"} {
		_, err := h.Execute(context.Background(), "file.read",
			map[string]interface{}{"path": path}, reqCtx("iso-1"))
		if err == nil {
			t.Errorf("Path %q should be rejected", path)
			continue
		}
		if errs.CodeOf(err) != errs.CodeValidation {
			t.Errorf("Path %q: expected validation error, got %s", path, errs.CodeOf(err))
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	h, perms, root := newTestHandler(t)
	perms.AssignProfile("iso-1", permissions.InteractiveTier())

	ctx := context.Background()
	data, err := h.Execute(ctx, "file.write", map[string]interface{}{
		"path":        "uploads/a.txt",
		"content":     "hello",
		"create_dirs": true,
	}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if data["written"] != true {
		t.Error("Expected written=true")
	}

	// The file lands under the isolate's scoped directory.
	if _, statErr := os.Stat(filepath.Join(root, "iso-1", "uploads", "a.txt")); statErr != nil {
		t.Fatalf("Expected scoped file on disk: %v", statErr)
	}

	data, err = h.Execute(ctx, "file.read", map[string]interface{}{"path": "uploads/a.txt"}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if data["content"] != "hello" {
		t.Errorf("Expected 'hello', got %v", data["content"])
	}
}

func TestWriteWithoutDirsFails(t *testing.T) {
	h, perms, _ := newTestHandler(t)
	perms.AssignProfile("iso-1", permissions.InteractiveTier())

	_, err := h.Execute(context.Background(), "file.write", map[string]interface{}{
		"path":    "uploads/deep/a.txt",
		"content": "x",
	}, reqCtx("iso-1"))
	if err == nil {
		t.Fatal("Expected failure without create_dirs")
	}
	if errs.CodeOf(err) != errs.CodeExecution {
		t.Errorf("Expected execution error, got %s", errs.CodeOf(err))
	}
}

func TestIsolateScoping(t *testing.T) {
	h, perms, _ := newTestHandler(t)
	perms.AssignProfile("iso-a", permissions.InteractiveTier())
	perms.AssignProfile("iso-b", permissions.InteractiveTier())

	ctx := context.Background()
	_, err := h.Execute(ctx, "file.write", map[string]interface{}{
		"path": "temp/x.txt", "content": "secret", "create_dirs": true,
	}, reqCtx("iso-a"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := h.Execute(ctx, "file.exists", map[string]interface{}{"path": "temp/x.txt"}, reqCtx("iso-b"))
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if data["exists"] != false {
		t.Error("Isolate B must not see isolate A's files")
	}
}

func TestDeleteAndExists(t *testing.T) {
	h, perms, _ := newTestHandler(t)
	perms.AssignProfile("iso-1", permissions.InteractiveTier())
	ctx := context.Background()

	_, err := h.Execute(ctx, "file.write", map[string]interface{}{
		"path": "temp/gone.txt", "content": "x", "create_dirs": true,
	}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if _, err := h.Execute(ctx, "file.delete", map[string]interface{}{"path": "temp/gone.txt"}, reqCtx("iso-1")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	data, err := h.Execute(ctx, "file.exists", map[string]interface{}{"path": "temp/gone.txt"}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if data["exists"] != false {
		t.Error("Expected file gone after delete")
	}
}

func TestListRecursive(t *testing.T) {
	h, perms, _ := newTestHandler(t)
	perms.AssignProfile("iso-1", permissions.InteractiveTier())
	ctx := context.Background()

	for _, p := range []string{"temp/a.txt", "temp/sub/b.txt"} {
		if _, err := h.Execute(ctx, "file.write", map[string]interface{}{
			"path": p, "content": "x", "create_dirs": true,
		}, reqCtx("iso-1")); err != nil {
			t.Fatalf("Write %s failed: %v", p, err)
		}
	}

	data, err := h.Execute(ctx, "file.list", map[string]interface{}{
		"path": "temp/", "recursive": true,
	}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	// a.txt, sub/, sub/b.txt
	if data["count"].(int) < 3 {
		t.Errorf("Expected at least 3 entries, got %v", data["count"])
	}
}

func TestInfoDetectsMime(t *testing.T) {
	h, perms, _ := newTestHandler(t)
	perms.AssignProfile("iso-1", permissions.InteractiveTier())
	ctx := context.Background()

	_, err := h.Execute(ctx, "file.write", map[string]interface{}{
		"path": "temp/doc.json", "content": `{"a":1}`, "create_dirs": true,
	}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := h.Execute(ctx, "file.info", map[string]interface{}{"path": "temp/doc.json"}, reqCtx("iso-1"))
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	info := data["info"].(Info)
	if info.Extension != ".json" {
		t.Errorf("Expected .json extension, got %s", info.Extension)
	}
	if info.MimeType == "" {
		t.Error("Expected mime detection")
	}
	if info.Checksum != utils.HashString(`{"a":1}`) {
		t.Errorf("Checksum mismatch: %s", info.Checksum)
	}
}

func TestReadSizeCap(t *testing.T) {
	h, perms, _ := newTestHandler(t)
	profile := permissions.InteractiveTier()
	profile.File.MaxFileSize = 4
	perms.AssignProfile("iso-1", profile)
	ctx := context.Background()

	// Bypass write-side size check by writing directly.
	full := h.resolve("iso-1", "temp/big.txt")
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("longer than four"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := h.Execute(ctx, "file.read", map[string]interface{}{"path": "temp/big.txt"}, reqCtx("iso-1"))
	if err == nil {
		t.Fatal("Expected size cap rejection")
	}
	if errs.CodeOf(err) != errs.CodeValidation {
		t.Errorf("Expected validation error, got %s", errs.CodeOf(err))
	}
}
