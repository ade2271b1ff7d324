package infra

import (
	"os"
	"strings"
	"testing"
)

func TestSplitSQLDropsCommentsAndBlanks(t *testing.T) {
	in := `-- header
CREATE TABLE a (id INT);

-- between
CREATE INDEX b ON a (id);
`
	stmts := SplitSQL(StripSQLComments(in))
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (id INT)" {
		t.Errorf("unexpected first statement %q", stmts[0])
	}
}

func TestMigrationFileParses(t *testing.T) {
	path, err := MigrationPath()
	if err != nil {
		t.Fatalf("locate migration: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	stmts := SplitSQL(StripSQLComments(string(content)))
	if len(stmts) == 0 {
		t.Fatal("migration has no statements")
	}
	var found bool
	for _, s := range stmts {
		if strings.Contains(s, "dispatch_assignments_claimed_uniq") {
			found = true
		}
	}
	if !found {
		t.Error("claimed uniqueness index missing from migration")
	}
}
