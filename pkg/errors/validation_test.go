package errors

import (
	"strings"
	"testing"
)

func TestValidatePackageID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid unity", "com.unity.textmeshpro", false},
		{"valid with dash", "com.unity.render-pipelines.universal", false},
		{"valid with underscore", "com.acme.my_tool", false},
		{"valid two segments", "acme.tools", false},

		{"empty", "", true},
		{"too long", "com." + strings.Repeat("a", 220), true},
		{"single segment", "textmeshpro", true},
		{"uppercase", "com.Unity.TextMeshPro", true},
		{"slash", "com.foo/bar", true},
		{"backslash", `com.foo\bar`, true},
		{"control char", "com.foo\x01bar", true},
		{"trailing dot", "com.foo.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePackageID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePackageID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPackage) {
				t.Errorf("ValidatePackageID(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidPackage)
			}
		})
	}
}

func TestValidateAssetID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"project asset", "Assets/Materials/x.mat", false},
		{"package asset", "Packages/com.foo/Runtime/a.prefab", false},
		{"dots in name", "Assets/a..b.asset", false},

		{"empty", "", true},
		{"absolute", "/Assets/x.mat", true},
		{"traversal", "Packages/com.foo/../com.bar/x.asset", true},
		{"backslash", `Assets\x.mat`, true},
		{"null byte", "Assets/x\x00.mat", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAssetID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAssetID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
