package sqlscript

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "single statement no semicolon",
			content: "SELECT 1",
			want:    []string{"SELECT 1"},
		},
		{
			name:    "two statements",
			content: "CREATE TABLE t (id INT);\nINSERT INTO t VALUES (1);",
			want: []string{
				"CREATE TABLE t (id INT)",
				"INSERT INTO t VALUES (1)",
			},
		},
		{
			name:    "semicolon inside quoted literal",
			content: "INSERT INTO t (v) VALUES ('a;b');\nDELETE FROM t;",
			want: []string{
				"INSERT INTO t (v) VALUES ('a;b')",
				"DELETE FROM t",
			},
		},
		{
			name:    "doubled quote escape",
			content: "INSERT INTO t (v) VALUES ('it''s; fine');",
			want:    []string{"INSERT INTO t (v) VALUES ('it''s; fine')"},
		},
		{
			name:    "semicolon inside line comment",
			content: "SELECT 1 -- trailing; not a split\n;\nSELECT 2;",
			want: []string{
				"SELECT 1 -- trailing; not a split",
				"SELECT 2",
			},
		},
		{
			name:    "semicolon inside block comment",
			content: "SELECT 1 /* a; b */;",
			want:    []string{"SELECT 1 /* a; b */"},
		},
		{
			name:    "comment-only fragments dropped",
			content: "-- header comment\n;\n/* block */;\nINSERT INTO t VALUES (1);",
			want:    []string{"INSERT INTO t VALUES (1)"},
		},
		{
			name:    "empty fragments dropped",
			content: ";;;\n  ;\n",
			want:    nil,
		},
		{
			name:    "empty input",
			content: "",
			want:    nil,
		},
		{
			name:    "whitespace trimmed",
			content: "   CREATE TABLE t (id INT)   ;   ",
			want:    []string{"CREATE TABLE t (id INT)"},
		},
		{
			name:    "statement with leading comment kept whole",
			content: "-- create the table\nCREATE TABLE t (id INT);",
			want:    []string{"-- create the table\nCREATE TABLE t (id INT)"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Split(tc.content)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Split(%q) = %#v, want %#v", tc.content, got, tc.want)
			}
		})
	}
}
