package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := Postgres()
	if err != nil {
		t.Fatalf("Postgres() failed: %v", err)
	}
	if len(pg) != 2 || pg[0].Name != "001_metadata.sql" || pg[1].Name != "002_label_runs.sql" {
		t.Errorf("unexpected postgres migrations: %+v", names(pg))
	}

	ch, err := Clickhouse()
	if err != nil {
		t.Fatalf("Clickhouse() failed: %v", err)
	}
	if len(ch) != 2 || ch[0].Name != "001_telemetry.sql" || ch[1].Name != "002_fault_labels.sql" {
		t.Errorf("unexpected clickhouse migrations: %+v", names(ch))
	}

	for _, m := range ch {
		stmts, err := m.Statements()
		if err != nil {
			t.Fatalf("%s: %v", m.Name, err)
		}
		if len(stmts) == 0 {
			t.Errorf("%s: no statements", m.Name)
		}
		for _, s := range stmts {
			if !strings.HasPrefix(strings.ToUpper(s), "CREATE") {
				t.Errorf("%s: unexpected statement %q", m.Name, s)
			}
		}
	}
}

func TestStatements(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		want    []string
		wantErr bool
	}{
		{
			name: "comments and blank lines dropped",
			sql:  "-- header\n\nCREATE TABLE a (x Int8);\n-- between\nCREATE TABLE b (y Int8);\n",
			want: []string{"CREATE TABLE a (x Int8)", "CREATE TABLE b (y Int8)"},
		},
		{
			name: "missing trailing semicolon",
			sql:  "SELECT 1",
			want: []string{"SELECT 1"},
		},
		{
			name: "escaped quote",
			sql:  "INSERT INTO t VALUES ('it''s');",
			want: []string{"INSERT INTO t VALUES ('it''s')"},
		},
		{
			name:    "semicolon in literal",
			sql:     "INSERT INTO t VALUES ('a;b');",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Migration{Name: "x.sql", SQL: tt.sql}.Statements()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/pv_fault_lab")
	if err != nil || db != "pv_fault_lab" {
		t.Errorf("got %q, %v", db, err)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for DSN without database")
	}
}

func names(ms []Migration) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}

func TestStatements_ApostropheInComment(t *testing.T) {
	got, err := Migration{Name: "x.sql", SQL: "-- the site's clock\nCREATE TABLE a (x Int8);\nCREATE TABLE b (y Int8);"}.Statements()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 statements, got %d", len(got))
	}
}
