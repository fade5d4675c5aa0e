package loaderlog

import (
	"reflect"
	"testing"
)

const cleanLog = `SQL*Loader: Release 19.0.0.0.0 - Production on Mon Mar 3 10:15:00 2025

Control File:   employees.ctl
Data File:      employees.dat

Table "HR"."EMPLOYEES":
  1250 Rows successfully loaded.
  0 Rows not loaded due to data errors.
  0 Rows not loaded because all WHEN clauses were failed.
  0 Rows not loaded because all fields were null.

Run began on Mon Mar 03 10:15:00 2025
Run ended on Mon Mar 03 10:15:02 2025
`

const rejectedLog = `SQL*Loader: Release 19.0.0.0.0 - Production

Table EMPLOYEES:
  1200 Rows successfully loaded.
  48 Rows not loaded due to data errors.
  2 Rows not loaded because all WHEN clauses were failed.
  0 Rows not loaded because all fields were null.
`

const oraLog = `SQL*Loader: Release 19.0.0.0.0 - Production

ORA-01400: cannot insert NULL into ("HR"."EMPLOYEES"."ID")
ORA-02291: integrity constraint (HR.FK_DEPT) violated

Table EMPLOYEES:
  0 Rows successfully loaded.
  10 Rows not loaded due to data errors.
`

func TestParse_CleanLoad(t *testing.T) {
	report := Parse(cleanLog)
	if !report.IsLoaderLog {
		t.Fatal("expected loader log detected")
	}
	if report.TableName != "HR.EMPLOYEES" {
		t.Errorf("table = %q, want HR.EMPLOYEES", report.TableName)
	}
	if report.RowsLoaded != 1250 {
		t.Errorf("loaded = %d, want 1250", report.RowsLoaded)
	}
	if report.RowsRejected != 0 {
		t.Errorf("rejected = %d, want 0", report.RowsRejected)
	}
	if report.RowsDiscarded != 0 {
		t.Errorf("discarded = %d, want 0", report.RowsDiscarded)
	}
	if len(report.ORAErrors) != 0 {
		t.Errorf("unexpected ORA errors: %v", report.ORAErrors)
	}
}

func TestParse_RejectedRows(t *testing.T) {
	report := Parse(rejectedLog)
	if !report.IsLoaderLog {
		t.Fatal("expected loader log detected")
	}
	if report.TableName != "EMPLOYEES" {
		t.Errorf("table = %q, want EMPLOYEES", report.TableName)
	}
	if report.RowsLoaded != 1200 {
		t.Errorf("loaded = %d, want 1200", report.RowsLoaded)
	}
	if report.RowsRejected != 48 {
		t.Errorf("rejected = %d, want 48", report.RowsRejected)
	}
	if report.RowsDiscarded != 2 {
		t.Errorf("discarded = %d, want 2", report.RowsDiscarded)
	}
}

func TestParse_ORAErrors(t *testing.T) {
	report := Parse(oraLog)
	want := []string{
		`ORA-01400: cannot insert NULL into ("HR"."EMPLOYEES"."ID")`,
		"ORA-02291: integrity constraint (HR.FK_DEPT) violated",
	}
	if !reflect.DeepEqual(report.ORAErrors, want) {
		t.Errorf("ORA errors = %v, want %v", report.ORAErrors, want)
	}
	if report.RowsRejected != 10 {
		t.Errorf("rejected = %d, want 10", report.RowsRejected)
	}
}

func TestParse_NotALoaderLog(t *testing.T) {
	report := Parse("just some application log\nnothing to see here\n")
	if report.IsLoaderLog {
		t.Error("plain text must not be detected as a loader log")
	}
}

func TestParse_EmptyContent(t *testing.T) {
	if report := Parse(""); report.IsLoaderLog {
		t.Error("empty content must not be detected as a loader log")
	}
}
