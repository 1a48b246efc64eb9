package db

import (
	"strings"
	"testing"
)

func TestWithMySQLParams(t *testing.T) {
	got := withMySQLParams("user:pass@tcp(localhost:3306)/tracewire")
	if !strings.Contains(got, "parseTime=true") || !strings.Contains(got, "multiStatements=true") {
		t.Fatalf("params not appended: %s", got)
	}
	if !strings.Contains(got, "?") {
		t.Fatalf("missing query separator: %s", got)
	}

	// An explicit parseTime setting is left alone.
	got = withMySQLParams("u:p@tcp(h)/d?parseTime=false")
	if strings.Contains(got, "parseTime=true") {
		t.Fatalf("caller's parseTime overridden: %s", got)
	}
	if !strings.Contains(got, "multiStatements=true") {
		t.Fatalf("multiStatements not appended: %s", got)
	}
}
