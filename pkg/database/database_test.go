package database

import (
	"testing"

	"gorm.io/gorm/logger"
)

func TestDialectorFor(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"postgres", Config{Driver: "postgres", Host: "db", Port: 5432}, "postgres", false},
		{"mysql", Config{Driver: "mysql", Host: "db", Port: 3306}, "mysql", false},
		{"sqlite", Config{Driver: "sqlite", FilePath: ":memory:"}, "sqlite", false},
		{"unknown", Config{Driver: "oracle"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := dialectorFor(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if d.Name() != tt.want {
				t.Errorf("dialector = %q, want %q", d.Name(), tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	if parseLogLevel("warn") != logger.Warn {
		t.Error("warn")
	}
	if parseLogLevel("") != logger.Silent {
		t.Error("default should be silent")
	}
}
