// Package loaderlog processes SQL*Loader log files dropped after bulk
// loads: it parses the load counters and records a load report.
package loaderlog

import (
	"regexp"
	"strconv"
	"strings"
)

// Report holds the counters parsed from one loader log.
type Report struct {
	IsLoaderLog   bool
	TableName     string
	RowsLoaded    int64
	RowsRejected  int64
	RowsDiscarded int64
	ORAErrors     []string
}

var (
	tableRe     = regexp.MustCompile(`(?m)^Table\s+"?([A-Za-z0-9_$."]+?)"?:\s*$`)
	loadedRe    = regexp.MustCompile(`(?m)^\s*(\d+)\s+Rows?\s+successfully\s+loaded`)
	rejectedRe  = regexp.MustCompile(`(?m)^\s*(\d+)\s+Rows?\s+not\s+loaded\s+due\s+to\s+data\s+errors`)
	discardWhen = regexp.MustCompile(`(?m)^\s*(\d+)\s+Rows?\s+not\s+loaded\s+because\s+all\s+WHEN\s+clauses\s+were\s+failed`)
	discardNull = regexp.MustCompile(`(?m)^\s*(\d+)\s+Rows?\s+not\s+loaded\s+because\s+all\s+fields\s+were\s+null`)
	oraRe       = regexp.MustCompile(`(?m)^(ORA-\d{5}:.*)$`)
)

// Parse extracts the load report from a loader log. Files without the
// loader banner are reported as not being loader logs at all.
func Parse(content string) Report {
	var report Report

	if !strings.Contains(content, "SQL*Loader") {
		return report
	}
	report.IsLoaderLog = true

	if m := tableRe.FindStringSubmatch(content); m != nil {
		report.TableName = strings.ReplaceAll(m[1], `"`, "")
	}
	report.RowsLoaded = firstCount(loadedRe, content)
	report.RowsRejected = firstCount(rejectedRe, content)
	report.RowsDiscarded = firstCount(discardWhen, content) + firstCount(discardNull, content)

	for _, m := range oraRe.FindAllStringSubmatch(content, -1) {
		report.ORAErrors = append(report.ORAErrors, strings.TrimSpace(m[1]))
	}
	return report
}

func firstCount(re *regexp.Regexp, content string) int64 {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
