package database

import (
	"fmt"
	"regexp"
	"strings"
)

// TenantColumn is the discriminator column injected into every
// statement. Isolate queries may never reference it directly.
const TenantColumn = "isolate_id"

// Kind classifies a statement after rewriting so the handler knows
// whether to fetch rows or report affected counts.
type Kind int

const (
	KindSelect Kind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindCreate
)

// IsWrite reports whether the statement mutates data or schema.
func (k Kind) IsWrite() bool { return k != KindSelect }

var (
	reCommentMarker = regexp.MustCompile(`--|/\*`)
	reExecToken     = regexp.MustCompile(`(?i)\b(exec|execute|xp_\w+|sp_\w+)\b`)
	reDropStmt      = regexp.MustCompile(`(?i)\bdrop\s+(database|table|schema)\b`)
	reTruncate      = regexp.MustCompile(`(?i)\btruncate\b`)
	reTenantRef     = regexp.MustCompile(`(?i)\b` + TenantColumn + `\b`)
	reComplex       = regexp.MustCompile(`(?i)\b(join|union)\b`)

	reWhere  = regexp.MustCompile(`(?i)\bwhere\b`)
	reTailer = regexp.MustCompile(`(?i)\b(group\s+by|order\s+by|having|limit)\b`)

	reInsert = regexp.MustCompile(`(?i)^insert\s+into\s+([\w."]+)\s*\(([^)]+)\)\s*values\s*\((.+)\)$`)
	reCreate = regexp.MustCompile(`(?i)^create\s+table\s+(?:if\s+not\s+exists\s+)?[\w."]+\s*\(.+\)$`)
)

// Rewritten is the result of scoping a statement to one isolate.
type Rewritten struct {
	Query   string
	Args    []interface{}
	Kind    Kind
	Complex bool
}

// Rewrite validates a raw statement and scopes it to the given isolate.
// The returned args slice includes the injected isolate id at the
// position matching its placeholder.
func Rewrite(query, isolateID string, args []interface{}) (*Rewritten, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("empty query")
	}
	q = strings.TrimSuffix(q, ";")
	if strings.Contains(q, ";") {
		return nil, fmt.Errorf("statement separators are not allowed")
	}
	if reCommentMarker.MatchString(q) {
		return nil, fmt.Errorf("comment markers are not allowed")
	}
	if reExecToken.MatchString(q) {
		return nil, fmt.Errorf("procedural execution is not allowed")
	}
	if reDropStmt.MatchString(q) {
		return nil, fmt.Errorf("destructive DDL is not allowed")
	}
	if reTruncate.MatchString(q) {
		return nil, fmt.Errorf("TRUNCATE is not allowed")
	}
	if reTenantRef.MatchString(q) {
		return nil, fmt.Errorf("column %q is reserved", TenantColumn)
	}

	kind, err := classify(q)
	if err != nil {
		return nil, err
	}

	out := &Rewritten{Kind: kind, Complex: reComplex.MatchString(q)}
	switch kind {
	case KindSelect, KindUpdate, KindDelete:
		out.Query, out.Args = injectPredicate(q, isolateID, args)
	case KindInsert:
		out.Query, out.Args, err = injectInsert(q, isolateID, args)
		if err != nil {
			return nil, err
		}
	case KindCreate:
		out.Query, err = injectColumn(q)
		if err != nil {
			return nil, err
		}
		out.Args = args
	}
	return out, nil
}

func classify(q string) (Kind, error) {
	head := strings.ToLower(firstWord(q))
	switch head {
	case "select":
		return KindSelect, nil
	case "insert":
		return KindInsert, nil
	case "update":
		return KindUpdate, nil
	case "delete":
		return KindDelete, nil
	case "create":
		if !reCreate.MatchString(q) {
			return 0, fmt.Errorf("only CREATE TABLE is allowed")
		}
		return KindCreate, nil
	default:
		return 0, fmt.Errorf("unsupported statement %q", head)
	}
}

func firstWord(q string) string {
	for i, r := range q {
		if r == ' ' || r == '\t' || r == '\n' {
			return q[:i]
		}
	}
	return q
}

// injectPredicate adds the tenant predicate to a SELECT, UPDATE or
// DELETE. When the statement already has a WHERE clause the predicate
// is AND-merged in front of it; otherwise a new clause is appended
// before any trailing GROUP BY / ORDER BY / LIMIT.
func injectPredicate(q, isolateID string, args []interface{}) (string, []interface{}) {
	if loc := reWhere.FindStringIndex(q); loc != nil {
		insertAt := loc[1]
		rewritten := q[:insertAt] + " " + TenantColumn + " = ? AND (" + strings.TrimSpace(q[insertAt:])
		// Close the grouping before any tail clause so ORDER BY and
		// friends stay outside the parenthesized condition.
		tail := ""
		if tl := reTailer.FindStringIndex(rewritten[insertAt:]); tl != nil {
			cut := insertAt + tl[0]
			tail = " " + rewritten[cut:]
			rewritten = strings.TrimSpace(rewritten[:cut])
		}
		rewritten += ")" + tail
		return rewritten, spliceArg(q[:loc[1]], isolateID, args)
	}
	if loc := reTailer.FindStringIndex(q); loc != nil {
		rewritten := q[:loc[0]] + "WHERE " + TenantColumn + " = ? " + q[loc[0]:]
		return rewritten, spliceArg(q[:loc[0]], isolateID, args)
	}
	return q + " WHERE " + TenantColumn + " = ?", append(append([]interface{}{}, args...), isolateID)
}

// spliceArg inserts the isolate id into args at the index matching the
// number of placeholders preceding the injection point.
func spliceArg(prefix, isolateID string, args []interface{}) []interface{} {
	n := strings.Count(prefix, "?")
	if n > len(args) {
		n = len(args)
	}
	out := make([]interface{}, 0, len(args)+1)
	out = append(out, args[:n]...)
	out = append(out, isolateID)
	out = append(out, args[n:]...)
	return out
}

// injectInsert appends the tenant column and its value to a single-row
// INSERT. Multi-row inserts and inserts without an explicit column list
// are rejected rather than guessed at.
func injectInsert(q, isolateID string, args []interface{}) (string, []interface{}, error) {
	m := reInsert.FindStringSubmatch(q)
	if m == nil {
		return "", nil, fmt.Errorf("INSERT requires an explicit column list and a single VALUES tuple")
	}
	table, cols, vals := m[1], m[2], m[3]
	if strings.Contains(vals, ")") || strings.Contains(vals, "(") {
		return "", nil, fmt.Errorf("multi-row INSERT is not allowed")
	}
	rewritten := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, ?)", table, strings.TrimSpace(cols), TenantColumn, strings.TrimSpace(vals))
	return rewritten, append(append([]interface{}{}, args...), isolateID), nil
}

// injectColumn adds the tenant discriminator to a CREATE TABLE body.
func injectColumn(q string) (string, error) {
	idx := strings.LastIndex(q, ")")
	if idx < 0 {
		return "", fmt.Errorf("malformed CREATE TABLE")
	}
	return q[:idx] + ", " + TenantColumn + " TEXT NOT NULL" + q[idx:], nil
}
