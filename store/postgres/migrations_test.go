package postgres

import (
	"io/fs"
	"strings"
	"testing"
)

func TestExtractUp(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no markers", "CREATE TABLE x ();", "CREATE TABLE x ();"},
		{"up only", "-- +migrate Up\nCREATE TABLE x ();", "CREATE TABLE x ();"},
		{"up and down", "-- +migrate Up\nCREATE TABLE x ();\n-- +migrate Down\nDROP TABLE x;", "CREATE TABLE x ();"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.TrimSpace(extractUp(tt.content)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmbeddedMigrationsHaveUpSections(t *testing.T) {
	entries, err := fs.ReadDir(Migrations, "migrations")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("migration files: got %d, want 3", len(entries))
	}
	for _, e := range entries {
		content, err := fs.ReadFile(Migrations, "migrations/"+e.Name())
		if err != nil {
			t.Fatal(err)
		}
		up := extractUp(string(content))
		if !strings.Contains(up, "CREATE TABLE") || strings.Contains(up, "DROP TABLE") {
			t.Errorf("%s: unexpected up section %q", e.Name(), up)
		}
	}
}
