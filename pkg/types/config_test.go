package types

import (
	"errors"
	"testing"
)

func TestStoreConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  StoreConfig
		wantErr error
	}{
		{
			name:    "empty data dir returns ErrDataDirEmpty",
			config:  StoreConfig{DataDir: ""},
			wantErr: ErrDataDirEmpty,
		},
		{
			name:    "db name with separator is rejected",
			config:  StoreConfig{DataDir: "/tmp/data", DBName: "../x.db"},
			wantErr: ErrDBNameInvalid,
		},
		{
			name:    "valid config with default db name",
			config:  StoreConfig{DataDir: "/tmp/data"},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStoreConfigFileName(t *testing.T) {
	if got := (StoreConfig{DataDir: "x"}).FileName(); got != DefaultDBName {
		t.Errorf("FileName() = %q, want %q", got, DefaultDBName)
	}
	if got := (StoreConfig{DataDir: "x", DBName: "a.db"}).FileName(); got != "a.db" {
		t.Errorf("FileName() = %q, want a.db", got)
	}
}
