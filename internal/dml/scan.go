package dml

import "strings"

// word is a lowercased bare word found at paren depth zero, outside quotes
// and comments, with its byte offsets in the original text.
type word struct {
	text  string
	start int
	end   int
}

// topLevelWords scans sql and returns every top-level bare word. The scanner
// tracks parentheses, single-quoted strings (including '' escapes and E''
// backslash escapes loosely), double-quoted identifiers, dollar-quoted
// strings, line comments, and block comments (which nest).
func topLevelWords(sql string) []word {
	var words []word
	depth := 0
	i := 0
	n := len(sql)
	for i < n {
		c := sql[i]
		switch {
		case c == '(':
			depth++
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			i++
		case c == '\'':
			i = skipSingleQuoted(sql, i)
		case c == '"':
			i = skipDoubleQuoted(sql, i)
		case c == '$':
			if end, ok := dollarQuoteEnd(sql, i); ok {
				i = end
			} else {
				i++ // placeholder or lone $
				for i < n && sql[i] >= '0' && sql[i] <= '9' {
					i++
				}
			}
		case c == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && sql[i+1] == '*':
			i = skipBlockComment(sql, i)
		case isWordStart(c):
			start := i
			for i < n && isWordChar(sql[i]) {
				i++
			}
			if depth == 0 {
				words = append(words, word{
					text:  strings.ToLower(sql[start:i]),
					start: start,
					end:   i,
				})
			}
		default:
			i++
		}
	}
	return words
}

// splitTopLevel splits s on sep occurrences at paren depth zero outside
// quotes and comments.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	i := 0
	n := len(s)
	for i < n {
		c := s[i]
		switch {
		case c == '(':
			depth++
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			i++
		case c == '\'':
			i = skipSingleQuoted(s, i)
		case c == '"':
			i = skipDoubleQuoted(s, i)
		case c == '$':
			if end, ok := dollarQuoteEnd(s, i); ok {
				i = end
			} else {
				i++
			}
		case c == '-' && i+1 < n && s[i+1] == '-':
			for i < n && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && s[i+1] == '*':
			i = skipBlockComment(s, i)
		case c == sep && depth == 0:
			parts = append(parts, s[last:i])
			i++
			last = i
		default:
			i++
		}
	}
	parts = append(parts, s[last:])
	return parts
}

func skipSingleQuoted(s string, i int) int {
	i++ // opening quote
	n := len(s)
	for i < n {
		if s[i] == '\'' {
			if i+1 < n && s[i+1] == '\'' {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return n
}

func skipDoubleQuoted(s string, i int) int {
	i++
	n := len(s)
	for i < n {
		if s[i] == '"' {
			if i+1 < n && s[i+1] == '"' {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return n
}

// dollarQuoteEnd reports whether s[i:] opens a dollar-quoted string ($$ or
// $tag$) and, if so, returns the offset just past its closing delimiter. A
// digit after the $ is a placeholder, never a tag.
func dollarQuoteEnd(s string, i int) (int, bool) {
	n := len(s)
	j := i + 1
	if j < n && isTagStart(s[j]) {
		for j < n && isTagChar(s[j]) {
			j++
		}
	}
	if j >= n || s[j] != '$' {
		return 0, false
	}
	delim := s[i : j+1]
	rest := strings.Index(s[j+1:], delim)
	if rest < 0 {
		return n, true
	}
	return j + 1 + rest + len(delim), true
}

func skipBlockComment(s string, i int) int {
	n := len(s)
	level := 0
	for i < n {
		if i+1 < n && s[i] == '/' && s[i+1] == '*' {
			level++
			i += 2
			continue
		}
		if i+1 < n && s[i] == '*' && s[i+1] == '/' {
			level--
			i += 2
			if level == 0 {
				return i
			}
			continue
		}
		i++
	}
	return n
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9') || c == '$'
}

func isTagStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isTagChar(c byte) bool {
	return isTagStart(c) || (c >= '0' && c <= '9')
}
