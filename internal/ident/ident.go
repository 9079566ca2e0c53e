// Package ident handles PostgreSQL identifier quoting and splitting.
package ident

import "strings"

// Split splits a possibly schema-qualified identifier into its parts. Quoted
// parts keep their exact spelling; unquoted parts are folded to lower case
// the way the server folds them.
func Split(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var parts []string
	var buf strings.Builder
	inQuotes := false
	quoted := false
	flush := func() {
		part := strings.TrimSpace(buf.String())
		if !quoted {
			part = strings.ToLower(part)
		}
		parts = append(parts, part)
		buf.Reset()
		quoted = false
	}
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				buf.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
			quoted = true
		case '.':
			if inQuotes {
				buf.WriteRune(r)
				continue
			}
			flush()
		default:
			buf.WriteRune(r)
		}
	}
	flush()
	return parts
}

// Quote quotes a single identifier part.
func Quote(part string) string {
	return `"` + strings.ReplaceAll(part, `"`, `""`) + `"`
}

// QuoteQualified renders identifier parts as a quoted, dot-joined SQL
// identifier.
func QuoteQualified(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = Quote(p)
	}
	return strings.Join(quoted, ".")
}
