package database

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/capability"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/types"
)

// Handler executes tenant-scoped SQL against the shared store.
type Handler struct {
	store Store
}

// New creates a database handler over store.
func New(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Definition() capability.Definition {
	return capability.Definition{
		Domain:      "database",
		Name:        "Database Capability",
		Description: "Tenant-isolated SQL storage",
		Tools: []types.Tool{
			{ID: "database.query", Name: "Query", Description: "Execute a single scoped statement", Parameters: []types.Parameter{
				{Name: "query", Type: "string", Required: true},
				{Name: "args", Type: "array", Required: false},
			}},
			{ID: "database.transaction", Name: "Transaction", Description: "Execute statements atomically", Parameters: []types.Parameter{
				{Name: "queries", Type: "array", Required: true},
			}},
			{ID: "database.getInfo", Name: "Info", Description: "List tables and counts", Parameters: nil},
		},
	}
}

func (h *Handler) Execute(ctx context.Context, operation string, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	switch operation {
	case "database.query":
		return h.query(ctx, params, reqCtx)
	case "database.transaction":
		return h.transaction(ctx, params, reqCtx)
	case "database.getInfo":
		return h.getInfo(ctx)
	default:
		return nil, errs.Validation(operation, reqCtx.IsolateID, "unknown database operation")
	}
}

func (h *Handler) query(ctx context.Context, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	raw, _ := params["query"].(string)
	if raw == "" {
		return nil, errs.Validation("database.query", reqCtx.IsolateID, "query is required")
	}
	rw, err := Rewrite(raw, reqCtx.IsolateID, argList(params["args"]))
	if err != nil {
		return nil, errs.Validation("database.query", reqCtx.IsolateID, err.Error())
	}
	if rw.Kind == KindSelect {
		rows, err := h.store.Query(ctx, rw.Query, rw.Args...)
		if err != nil {
			return nil, errs.Wrap(errs.CodeExecution, "database.query", reqCtx.IsolateID, err)
		}
		return map[string]interface{}{"rows": rows, "count": len(rows)}, nil
	}
	affected, err := h.store.Exec(ctx, rw.Query, rw.Args...)
	if err != nil {
		return nil, errs.Wrap(errs.CodeExecution, "database.query", reqCtx.IsolateID, err)
	}
	return map[string]interface{}{"rows_affected": affected}, nil
}

// transaction rewrites every statement up front so a malformed entry
// fails the whole batch before any side effect, then runs the batch as
// one atomic unit.
func (h *Handler) transaction(ctx context.Context, params map[string]interface{}, reqCtx *types.Context) (map[string]interface{}, error) {
	entries, ok := params["queries"].([]interface{})
	if !ok || len(entries) == 0 {
		return nil, errs.Validation("database.transaction", reqCtx.IsolateID, "queries is required")
	}

	rewritten := make([]*Rewritten, 0, len(entries))
	for i, entry := range entries {
		raw, args, err := parseEntry(entry)
		if err != nil {
			return nil, errs.Validation("database.transaction", reqCtx.IsolateID, fmt.Sprintf("query %d: %v", i, err))
		}
		rw, err := Rewrite(raw, reqCtx.IsolateID, args)
		if err != nil {
			return nil, errs.Validation("database.transaction", reqCtx.IsolateID, fmt.Sprintf("query %d: %v", i, err))
		}
		rewritten = append(rewritten, rw)
	}

	tx, err := h.store.Begin(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.CodeExecution, "database.transaction", reqCtx.IsolateID, err)
	}
	results := make([]map[string]interface{}, 0, len(rewritten))
	for i, rw := range rewritten {
		var step map[string]interface{}
		if rw.Kind == KindSelect {
			rows, qerr := tx.Query(ctx, rw.Query, rw.Args...)
			if qerr != nil {
				err = fmt.Errorf("query %d: %w", i, qerr)
				break
			}
			step = map[string]interface{}{"rows": rows, "count": len(rows)}
		} else {
			affected, xerr := tx.Exec(ctx, rw.Query, rw.Args...)
			if xerr != nil {
				err = fmt.Errorf("query %d: %w", i, xerr)
				break
			}
			step = map[string]interface{}{"rows_affected": affected}
		}
		results = append(results, step)
	}
	if err != nil {
		tx.Rollback()
		return nil, errs.Wrap(errs.CodeExecution, "database.transaction", reqCtx.IsolateID, fmt.Errorf("rolled back: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.CodeExecution, "database.transaction", reqCtx.IsolateID, err)
	}
	return map[string]interface{}{"committed": true, "results": results}, nil
}

func (h *Handler) getInfo(ctx context.Context) (map[string]interface{}, error) {
	tables, err := h.store.Tables(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.CodeExecution, "database.getInfo", "", err)
	}
	if tables == nil {
		tables = []string{}
	}
	return map[string]interface{}{"tables": tables, "count": len(tables)}, nil
}

// parseEntry accepts either a bare statement string or an object with
// query plus optional args.
func parseEntry(entry interface{}) (string, []interface{}, error) {
	switch v := entry.(type) {
	case string:
		if v == "" {
			return "", nil, fmt.Errorf("empty query")
		}
		return v, nil, nil
	case map[string]interface{}:
		raw, _ := v["query"].(string)
		if raw == "" {
			return "", nil, fmt.Errorf("query is required")
		}
		return raw, argList(v["args"]), nil
	default:
		return "", nil, fmt.Errorf("unsupported entry type %T", entry)
	}
}

func argList(v interface{}) []interface{} {
	args, _ := v.([]interface{})
	return args
}
