// Package sqlscript processes dropped SQL script files: it splits a script
// into statements and delegates execution to the database executor.
package sqlscript

import "strings"

// Split breaks a script into individual statements on semicolons, honoring
// line comments, block comments, and single-quoted literals. Comment-only
// and empty fragments are dropped.
func Split(content string) []string {
	var stmts []string
	var current strings.Builder

	const (
		stateNormal = iota
		stateLineComment
		stateBlockComment
		stateQuoted
	)
	state := stateNormal

	runes := []rune(content)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateLineComment:
			current.WriteRune(c)
			if c == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			current.WriteRune(c)
			if c == '*' && next == '/' {
				current.WriteRune(next)
				i++
				state = stateNormal
			}
		case stateQuoted:
			current.WriteRune(c)
			if c == '\'' {
				// Doubled quote is an escaped quote inside the literal.
				if next == '\'' {
					current.WriteRune(next)
					i++
				} else {
					state = stateNormal
				}
			}
		default:
			switch {
			case c == '-' && next == '-':
				current.WriteRune(c)
				state = stateLineComment
			case c == '/' && next == '*':
				current.WriteRune(c)
				state = stateBlockComment
			case c == '\'':
				current.WriteRune(c)
				state = stateQuoted
			case c == ';':
				appendStatement(&stmts, current.String())
				current.Reset()
			default:
				current.WriteRune(c)
			}
		}
	}
	appendStatement(&stmts, current.String())
	return stmts
}

// appendStatement adds a fragment if it contains anything executable.
func appendStatement(stmts *[]string, fragment string) {
	trimmed := strings.TrimSpace(fragment)
	if trimmed == "" || isCommentOnly(trimmed) {
		return
	}
	*stmts = append(*stmts, trimmed)
}

func isCommentOnly(s string) bool {
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		if s == "" {
			return true
		}
		if strings.HasPrefix(s, "--") {
			idx := strings.IndexByte(s, '\n')
			if idx < 0 {
				return true
			}
			s = s[idx+1:]
			continue
		}
		if strings.HasPrefix(s, "/*") {
			idx := strings.Index(s, "*/")
			if idx < 0 {
				return true
			}
			s = s[idx+2:]
			continue
		}
		return false
	}
}
