package store

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := LoadMigrations(Migrations())
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	want := []string{"0001_documents", "0002_dictionary_words"}
	if len(migrations) != len(want) {
		t.Fatalf("got %d migrations, want %d", len(migrations), len(want))
	}
	for i, id := range want {
		if migrations[i].ID() != id {
			t.Fatalf("migration %d = %s, want %s", i, migrations[i].ID(), id)
		}
	}
	if !strings.Contains(migrations[0].Up, "documents") {
		t.Fatalf("unexpected first migration: %q", migrations[0].Up)
	}
}

func TestLoadMigrations(t *testing.T) {
	cases := []struct {
		name    string
		files   fstest.MapFS
		want    []string
		wantErr string
	}{
		{
			name: "sorted by version",
			files: fstest.MapFS{
				"0002_words.up.sql":   {Data: []byte("CREATE TABLE w ();")},
				"0002_words.down.sql": {Data: []byte("DROP TABLE w;")},
				"0001_docs.up.sql":    {Data: []byte("CREATE TABLE d ();")},
				"0001_docs.down.sql":  {Data: []byte("DROP TABLE d;")},
				"README.md":           {Data: []byte("notes")},
			},
			want: []string{"0001_docs", "0002_words"},
		},
		{
			name: "missing down",
			files: fstest.MapFS{
				"0001_docs.up.sql": {Data: []byte("CREATE TABLE d ();")},
			},
			wantErr: "both up and down",
		},
		{
			name: "empty down",
			files: fstest.MapFS{
				"0001_docs.up.sql":   {Data: []byte("CREATE TABLE d ();")},
				"0001_docs.down.sql": {Data: []byte("")},
			},
			wantErr: "both up and down",
		},
		{
			name: "two names for one version",
			files: fstest.MapFS{
				"0001_docs.up.sql":    {Data: []byte("CREATE TABLE d ();")},
				"0001_drafts.down.sql": {Data: []byte("DROP TABLE d;")},
			},
			wantErr: "two names",
		},
		{
			name:  "no migrations",
			files: fstest.MapFS{"notes.txt": {Data: []byte("x")}},
			want:  []string{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LoadMigrations(tc.files)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("error = %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadMigrations() error = %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d migrations, want %d", len(got), len(tc.want))
			}
			for i, id := range tc.want {
				if got[i].ID() != id {
					t.Fatalf("migration %d = %s, want %s", i, got[i].ID(), id)
				}
			}
		})
	}
}
