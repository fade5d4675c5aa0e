// Package dbexec classifies and executes SQL scripts with the transaction
// policy appropriate to their statement kinds.
package dbexec

import (
	"strings"

	"github.com/spoolhouse/sqlspool/internal/core/domain"
)

// StatementKind is the classification of a single SQL statement.
type StatementKind string

const (
	KindDDL   StatementKind = "ddl"
	KindDML   StatementKind = "dml"
	KindOther StatementKind = "other"
)

var ddlKeywords = map[string]bool{
	"CREATE": true, "ALTER": true, "DROP": true, "TRUNCATE": true,
}

var dmlKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true,
}

// ClassifyStatement determines the kind of one statement from its first
// keyword, ignoring leading whitespace and comments.
func ClassifyStatement(stmt string) StatementKind {
	word := firstKeyword(stmt)
	switch {
	case ddlKeywords[word]:
		return KindDDL
	case dmlKeywords[word]:
		return KindDML
	default:
		return KindOther
	}
}

// ClassifyScript determines the transaction policy class of a whole script.
// Statements of neither kind execute like DDL, so they count as DDL here.
func ClassifyScript(stmts []string) domain.ScriptKind {
	if len(stmts) == 0 {
		return domain.ScriptEmpty
	}

	hasDDL, hasDML := false, false
	for _, stmt := range stmts {
		if ClassifyStatement(stmt) == KindDML {
			hasDML = true
		} else {
			hasDDL = true
		}
	}

	switch {
	case hasDDL && hasDML:
		return domain.ScriptMixed
	case hasDML:
		return domain.ScriptDMLOnly
	default:
		return domain.ScriptDDLOnly
	}
}

// firstKeyword returns the first SQL word of stmt, upper-cased, after
// skipping whitespace and line/block comments.
func firstKeyword(stmt string) string {
	s := stmt
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		if strings.HasPrefix(s, "--") {
			idx := strings.IndexByte(s, '\n')
			if idx < 0 {
				return ""
			}
			s = s[idx+1:]
			continue
		}
		if strings.HasPrefix(s, "/*") {
			idx := strings.Index(s, "*/")
			if idx < 0 {
				return ""
			}
			s = s[idx+2:]
			continue
		}
		break
	}

	end := 0
	for end < len(s) {
		c := s[end]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '(' || c == ';' {
			break
		}
		end++
	}
	return strings.ToUpper(s[:end])
}
