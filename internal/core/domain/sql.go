package domain

// ScriptKind classifies a whole SQL script by the statements it contains.
type ScriptKind string

const (
	ScriptDDLOnly ScriptKind = "ddl_only"
	ScriptDMLOnly ScriptKind = "dml_only"
	ScriptMixed   ScriptKind = "mixed"
	ScriptEmpty   ScriptKind = "empty"
)

// SQLExecutionResult is the transient outcome of executing one SQL script.
//
// SuccessfulStatements counts statements whose effects are durable after the
// call: for a rolled-back DML-only script it is 0 even if several statements
// ran before the failing one. The attempted count lives in the error message.
type SQLExecutionResult struct {
	Filename             string
	Success              bool
	ErrorMessage         string
	ExecutionTimeMs      int64
	SuccessfulStatements int
	FailedStatement      string
	FailedIndex          int // 1-based position of the failing statement, 0 if none
	Kind                 ScriptKind
}
