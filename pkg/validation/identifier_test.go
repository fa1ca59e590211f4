package validation

import (
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		ident   string
		wantErr bool
	}{
		// Valid identifiers
		{"simple", "main", false},
		{"exported", "Run", false},
		{"underscore prefix", "_run", false},
		{"with digits", "step2", false},

		// Invalid identifiers
		{"empty", "", true},
		{"leading digit", "2step", true},
		{"keyword", "func", true},
		{"keyword range", "range", true},
		{"blank", "_", true},
		{"space", "run it", true},
		{"injection attempt", "main() {}\nfunc evil", true},
		{"unicode", "répondre", true},
		{"dot", "fmt.Println", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.ident)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.ident, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePackageName(t *testing.T) {
	if err := ValidatePackageName("graphs"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidatePackageName("package"); err == nil {
		t.Error("expected error for keyword package name")
	}
}

func TestValidateImportPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"stdlib", "fmt", false},
		{"nested stdlib", "encoding/json", false},
		{"module path", "github.com/google/uuid", false},
		{"major version", "github.com/dgraph-io/badger/v4", false},
		{"tilde and underscore", "example.com/~user/my_pkg", false},
		{"inner dots", "gopkg.in/yaml.v3", false},

		{"empty", "", true},
		{"quote injection", `fmt"; "os`, true},
		{"leading slash", "/fmt", true},
		{"trailing slash", "fmt/", true},
		{"double slash", "a//b", true},
		{"dot dot", "a/../b", true},
		{"dot", "./local", true},
		{"leading dot element", "example.com/.hidden", true},
		{"leading dot first element", ".config/pkg", true},
		{"space", "my pkg", true},
		{"newline", "fmt\nos", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImportPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImportPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateImportPaths(t *testing.T) {
	tests := []struct {
		name    string
		paths   []string
		wantErr bool
	}{
		{"all valid", []string{"fmt", "strings", "math"}, false},
		{"one invalid", []string{"fmt", "bad path", "math"}, true},
		{"empty slice", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImportPaths(tt.paths)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImportPaths(%v) error = %v, wantErr %v", tt.paths, err, tt.wantErr)
			}
		})
	}
}
