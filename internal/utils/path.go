package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Slugify converts a name to a file-name-safe slug
// Example: "Critical Bug Fixes" -> "critical-bug-fixes"
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	var result strings.Builder
	result.Grow(len(slug))
	for _, c := range slug {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			result.WriteRune(c)
		}
	}
	return result.String()
}

// FileExists checks if a file exists at the given path
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// BackupPath builds the path of a generated-document backup
// Format: {outputDir}/{id}-{slugified-title}-{YYYYMMDD-HHMMSS}.json
func BackupPath(outputDir, id, title string, at time.Time) string {
	name := id
	if slug := Slugify(title); slug != "" {
		name += "-" + slug
	}
	return filepath.Join(outputDir, fmt.Sprintf("%s-%s.json", name, at.Format("20060102-150405")))
}
