// Package dml recognizes and rewrites top-level data-changing statements.
//
// Recognition is deliberately shallow: enough to classify a statement, find
// its target table, and locate top-level clauses. Anything it cannot place
// with confidence is reported as such so callers can fail closed instead of
// guessing.
package dml

import (
	"regexp"
	"strings"

	"github.com/griotdb/griot/internal/ident"
)

// Kind classifies a recognized statement.
type Kind int

const (
	Insert Kind = iota
	Update
	Delete
	Truncate
	// Merge is recognized only so callers can reject it: its row effects
	// cannot be attributed to a single action.
	Merge
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	case Truncate:
		return "TRUNCATE"
	case Merge:
		return "MERGE"
	}
	return "UNKNOWN"
}

// Statement describes a recognized top-level DML statement.
type Statement struct {
	Kind   Kind
	Schema string // "" when unqualified
	Table  string
	Tables [][2]string // truncate targets, in statement order

	HasReturning bool
	// Returning holds the caller's RETURNING list when it is a plain column
	// list (or ["*"]). Nil when absent or when the list contains expressions.
	Returning []string

	// WhereClause is an update's top-level WHERE text, without the keyword
	// and with its original placeholder numbers. Empty when there is none.
	WhereClause string

	// HasTableExpr marks UPDATE ... FROM and DELETE ... USING.
	HasTableExpr bool
	// HasConflictUpdate marks INSERT ... ON CONFLICT ... DO UPDATE.
	HasConflictUpdate bool

	SQL         string
	returningAt int // byte offset of the RETURNING keyword, -1 when absent
}

var (
	reInsert   = regexp.MustCompile(`(?is)^\s*(?:with\b.*?\)\s*)?insert\s+into\s+([^\s(]+)`)
	reUpdate   = regexp.MustCompile(`(?is)^\s*(?:with\b.*?\)\s*)?update\s+(?:only\s+)?([^\s(]+)`)
	reDelete   = regexp.MustCompile(`(?is)^\s*(?:with\b.*?\)\s*)?delete\s+from\s+(?:only\s+)?([^\s(]+)`)
	reMerge    = regexp.MustCompile(`(?is)^\s*(?:with\b.*?\)\s*)?merge\s+into\s+([^\s(]+)`)
	reTruncate = regexp.MustCompile(`(?is)^\s*truncate\s+(?:table\s+)?(.+)$`)
)

// Parse recognizes a single top-level DML statement. It returns false for
// anything else (queries, DDL, unparseable text); such statements pass
// through uncaptured and unmodified.
func Parse(sql string) (*Statement, bool) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, false
	}

	if m := reTruncate.FindStringSubmatch(trimmed); len(m) == 2 {
		return parseTruncate(sql, m[1])
	}

	var st *Statement
	switch {
	case reInsert.MatchString(trimmed):
		st = &Statement{Kind: Insert, SQL: sql}
		st.Schema, st.Table = splitTarget(reInsert.FindStringSubmatch(trimmed)[1])
	case reUpdate.MatchString(trimmed):
		st = &Statement{Kind: Update, SQL: sql}
		st.Schema, st.Table = splitTarget(reUpdate.FindStringSubmatch(trimmed)[1])
	case reDelete.MatchString(trimmed):
		st = &Statement{Kind: Delete, SQL: sql}
		st.Schema, st.Table = splitTarget(reDelete.FindStringSubmatch(trimmed)[1])
	case reMerge.MatchString(trimmed):
		st = &Statement{Kind: Merge, SQL: sql}
		st.Schema, st.Table = splitTarget(reMerge.FindStringSubmatch(trimmed)[1])
		return st, true
	default:
		return nil, false
	}
	if st.Table == "" {
		return nil, false
	}

	st.returningAt = -1
	words := topLevelWords(sql)
	setAt := -1
	for i, w := range words {
		switch w.text {
		case "set":
			if st.Kind == Update && setAt < 0 {
				setAt = w.start
			}
		case "from":
			// An update's own top-level FROM appears after SET. The FROM of
			// DELETE FROM is consumed by the prefix match, so any further
			// top-level FROM on a delete is a table expression too.
			if st.Kind == Update && setAt >= 0 && st.returningAt < 0 {
				st.HasTableExpr = true
			}
		case "using":
			if st.Kind == Delete && st.returningAt < 0 {
				st.HasTableExpr = true
			}
		case "conflict":
			if st.Kind == Insert && i > 0 && words[i-1].text == "on" {
				for j := i + 1; j < len(words)-1; j++ {
					if words[j].text == "do" {
						st.HasConflictUpdate = words[j+1].text == "update"
						break
					}
				}
			}
		case "returning":
			if st.returningAt < 0 {
				st.returningAt = w.start
				st.HasReturning = true
			}
		}
	}

	if st.Kind == Update {
		st.WhereClause = whereText(sql, words, st.returningAt)
	}
	if st.HasReturning {
		st.Returning = parseReturningList(returningListText(sql, st.returningAt))
	}
	return st, true
}

func parseTruncate(sql, rest string) (*Statement, bool) {
	st := &Statement{Kind: Truncate, SQL: sql, returningAt: -1}
	// Names run until a trailing modifier keyword.
	words := topLevelWords(rest)
	end := len(rest)
	for _, w := range words {
		switch w.text {
		case "restart", "continue", "cascade", "restrict":
			if w.start < end {
				end = w.start
			}
		}
	}
	for _, item := range splitTopLevel(rest[:end], ',') {
		item = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(item), ";"))
		item = strings.TrimSuffix(item, "*")
		lower := strings.ToLower(item)
		if strings.HasPrefix(lower, "only ") {
			item = strings.TrimSpace(item[len("only "):])
		}
		if item == "" {
			continue
		}
		schema, table := splitTarget(item)
		if table == "" {
			return nil, false
		}
		st.Tables = append(st.Tables, [2]string{schema, table})
	}
	if len(st.Tables) == 0 {
		return nil, false
	}
	st.Schema, st.Table = st.Tables[0][0], st.Tables[0][1]
	return st, true
}

// whereText extracts the text of an update's top-level WHERE clause, ending
// at RETURNING when present.
func whereText(sql string, words []word, returningAt int) string {
	whereAt, whereEnd := -1, -1
	for _, w := range words {
		if w.text == "where" && (returningAt < 0 || w.start < returningAt) {
			whereAt, whereEnd = w.start, w.end
		}
	}
	if whereAt < 0 {
		return ""
	}
	end := len(sql)
	if returningAt >= 0 {
		end = returningAt
	}
	clause := strings.TrimSpace(sql[whereEnd:end])
	return strings.TrimSpace(strings.TrimSuffix(clause, ";"))
}

func returningListText(sql string, returningAt int) string {
	if returningAt < 0 {
		return ""
	}
	rest := strings.TrimSpace(sql[returningAt+len("returning"):])
	return strings.TrimSpace(strings.TrimSuffix(rest, ";"))
}

var rePlainColumn = regexp.MustCompile(`^(?:[A-Za-z_][A-Za-z0-9_$]*|"(?:[^"]|"")+")(?:\.(?:[A-Za-z_][A-Za-z0-9_$]*|"(?:[^"]|"")+"))?$`)

// parseReturningList accepts only plain column lists: bare or quoted names,
// optionally qualified, or a lone *. Anything else returns nil.
func parseReturningList(list string) []string {
	if list == "" {
		return nil
	}
	if strings.TrimSpace(list) == "*" {
		return []string{"*"}
	}
	items := splitTopLevel(list, ',')
	cols := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if !rePlainColumn.MatchString(item) {
			return nil
		}
		parts := ident.Split(item)
		cols = append(cols, parts[len(parts)-1])
	}
	return cols
}

// WithReturningAll returns the statement rewritten to RETURNING *, replacing
// any caller RETURNING list.
func (s *Statement) WithReturningAll() string {
	if s.returningAt >= 0 {
		return s.SQL[:s.returningAt] + "RETURNING *"
	}
	out, _ := AppendReturningAll(s.SQL)
	return out
}

// AppendReturningAll appends "RETURNING *" to the statement, re-attaching a
// trailing semicolon if one was present.
func AppendReturningAll(q string) (string, bool) {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return q, false
	}
	hasSemicolon := false
	for strings.HasSuffix(trimmed, ";") {
		hasSemicolon = true
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-1])
	}
	if trimmed == "" {
		return q, false
	}
	var b strings.Builder
	b.WriteString(trimmed)
	b.WriteString("\nRETURNING *")
	if hasSemicolon {
		b.WriteString(";")
	}
	return b.String(), true
}

var rePlaceholder = regexp.MustCompile(`\$(\d+)`)

// RenumberPlaceholders rewrites expr's $n placeholders into a compact $1..$k
// sequence and returns the original indexes (1-based) in their new order, so
// callers can project the matching argument subset.
func RenumberPlaceholders(expr string) (string, []int) {
	var order []int
	seen := map[string]int{}
	out := rePlaceholder.ReplaceAllStringFunc(expr, func(m string) string {
		n, ok := seen[m]
		if !ok {
			var orig int
			for _, c := range m[1:] {
				orig = orig*10 + int(c-'0')
			}
			order = append(order, orig)
			n = len(order)
			seen[m] = n
		}
		return "$" + itoa(n)
	})
	return out, order
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits [8]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

func splitTarget(token string) (schema, table string) {
	parts := ident.Split(token)
	switch len(parts) {
	case 1:
		return "", parts[0]
	case 2:
		return parts[0], parts[1]
	case 3: // database.schema.table
		return parts[1], parts[2]
	}
	return "", ""
}
