package logging

import "testing"

func TestNew(t *testing.T) {
	cases := []struct {
		name     string
		level    string
		encoding string
		wantErr  bool
	}{
		{name: "json info", level: "info", encoding: "json"},
		{name: "default encoding", level: "DEBUG", encoding: ""},
		{name: "console", level: "warn", encoding: "console"},
		{name: "bad level", level: "loud", encoding: "json", wantErr: true},
		{name: "bad encoding", level: "info", encoding: "xml", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := New(tc.level, tc.encoding)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if logger == nil {
				t.Fatal("expected logger")
			}
		})
	}
}

func TestLevelFilters(t *testing.T) {
	logger := Must("warn", "json")
	if logger.Desugar().Core().Enabled(-1) {
		t.Fatal("debug should be disabled at warn")
	}
}
