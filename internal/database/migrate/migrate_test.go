package migrate

import (
	"testing"
	"testing/fstest"
)

func TestSplitStatements(t *testing.T) {
	content := `-- identities
CREATE TABLE a (
    id INT PRIMARY KEY
);

CREATE INDEX idx_a ON a (id);
-- trailing comment
INSERT INTO a VALUES (1)`

	stmts := SplitStatements(content)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (\n    id INT PRIMARY KEY\n);" {
		t.Errorf("unexpected first statement %q", stmts[0])
	}
	if stmts[2] != "INSERT INTO a VALUES (1)" {
		t.Errorf("unexpected last statement %q", stmts[2])
	}
}

func TestSplitStatements_Empty(t *testing.T) {
	if got := SplitStatements("\n-- nothing here\n\n"); len(got) != 0 {
		t.Errorf("expected no statements, got %q", got)
	}
}

func TestPendingFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"002_attendance.sql": {Data: []byte("SELECT 1;")},
		"001_initial.sql":    {Data: []byte("SELECT 1;")},
		"003_extra.sql":      {Data: []byte("SELECT 1;")},
		"README.md":          {Data: []byte("docs")},
	}

	files, err := pendingFiles(fsys, map[string]bool{"001_initial.sql": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"002_attendance.sql", "003_extra.sql"}
	if len(files) != len(want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("file %d: expected %s, got %s", i, want[i], files[i])
		}
	}
}

func TestDialectPlaceholders(t *testing.T) {
	if got := Postgres.Placeholder(2); got != "$2" {
		t.Errorf("expected $2, got %s", got)
	}
	if got := MySQL.Placeholder(2); got != "?" {
		t.Errorf("expected ?, got %s", got)
	}
	if got := SQLite.Placeholder(1); got != "?" {
		t.Errorf("expected ?, got %s", got)
	}
}
