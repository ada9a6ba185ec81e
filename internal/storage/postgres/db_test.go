package postgres

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"migrations/001_initial.sql", 1, false},
		{"migrations/012_add_index.sql", 12, false},
		{"002_predictions.sql", 2, false},
		{"migrations/readme.sql", 0, true},
		{"migrations/abc_x.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := parseVersion(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseVersion(%q) error = %v; wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseVersion(%q) = %d; want %d", tt.name, got, tt.want)
		}
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	for _, name := range []string{"migrations/001_initial.sql", "migrations/002_predictions.sql"} {
		data, err := migrationsFS.ReadFile(name)
		if err != nil {
			t.Errorf("ReadFile(%s) error = %v", name, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}
