package utils

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase",
			input:    "hello",
			expected: "hello",
		},
		{
			name:     "mixed case with spaces",
			input:    "Hello World",
			expected: "hello-world",
		},
		{
			name:     "special characters removed",
			input:    "Auth & Sessions!",
			expected: "auth--sessions",
		},
		{
			name:     "dots removed",
			input:    "v2.1 API",
			expected: "v21-api",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestBackupPath(t *testing.T) {
	at := time.Date(2025, 3, 9, 14, 5, 7, 0, time.UTC)

	tests := []struct {
		name     string
		id       string
		title    string
		expected string
	}{
		{
			name:     "with title",
			id:       "2.1",
			title:    "User Auth",
			expected: filepath.Join("out", "2.1-user-auth-20250309-140507.json"),
		},
		{
			name:     "title without slug characters",
			id:       "3",
			title:    "!!",
			expected: filepath.Join("out", "3-20250309-140507.json"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BackupPath("out", tt.id, tt.title, at); got != tt.expected {
				t.Errorf("BackupPath() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	if !FileExists(dir) {
		t.Errorf("FileExists(%q) = false, want true", dir)
	}
	if FileExists(filepath.Join(dir, "missing")) {
		t.Error("FileExists(missing) = true, want false")
	}
}
