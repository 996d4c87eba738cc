package core

import (
	"strings"
	"testing"
)

// ============================================================================
// SecureFilename
// ============================================================================

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "people.csv", "people.csv"},
		{"accents decomposed", "naïve.csv", "naive.csv"},
		{"compatibility forms", "ｒｅｐｏｒｔ.csv", "report.csv"},
		{"path traversal", "../../etc/passwd", "etc_passwd"},
		{"windows path", `C:\Users\me\data.csv`, "C_Users_me_data.csv"},
		{"whitespace collapses", "my   report.csv", "my_report.csv"},
		{"only dots", "...", ""},
		{"only symbols", "★☆.", ""},
		{"leading dot trimmed", ".hidden.csv", "hidden.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecureFilename(tt.in); got != tt.want {
				t.Errorf("SecureFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSecureFilename_Length(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantLen int
		wantExt string
	}{
		{"under limit", strings.Repeat("a", 240) + ".csv", 244, ".csv"},
		{"at limit", strings.Repeat("a", 251) + ".csv", 255, ".csv"},
		{"over limit keeps extension", strings.Repeat("a", 296) + ".csv", 255, ".csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SecureFilename(tt.in)
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
			if !strings.HasSuffix(got, tt.wantExt) {
				t.Errorf("SecureFilename() = %q, want suffix %q", got, tt.wantExt)
			}
		})
	}
}

func TestTruncateKeepExt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"keeps extension", "abcdefgh.csv", 8, "abcd.csv"},
		{"no extension", "abcdefgh", 4, "abcd"},
		{"long suffix is not an extension", "ab." + strings.Repeat("x", 20), 6, "ab.xxx"},
		{"leading dot is not an extension", ".abcdefgh", 4, ".abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateKeepExt(tt.in, tt.n); got != tt.want {
				t.Errorf("truncateKeepExt(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}
