package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"text/template"
)

// Prompt names.
const (
	Task      = "task"
	Validate  = "validate"
	Breakdown = "breakdown"
)

//go:embed templates/*.md
var embeddedPrompts embed.FS

var funcs = template.FuncMap{
	"join": join,
	"def":  def,
}

// Names lists the embedded prompts.
func Names() []string {
	entries, _ := fs.ReadDir(embeddedPrompts, "templates")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	return names
}

// Get returns the embedded prompt template source.
func Get(name string) (string, error) {
	// Normalize name
	if !strings.HasSuffix(name, ".md") {
		name = name + ".md"
	}

	content, err := embeddedPrompts.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("prompt %s not found: %w", name, err)
	}
	return string(content), nil
}

// GetForWorkspace returns prompt source, checking {workspaceDir}/prompts
// first then the embedded copy.
func GetForWorkspace(workspaceDir, name string) (string, error) {
	if !strings.HasSuffix(name, ".md") {
		name = name + ".md"
	}

	if workspaceDir != "" {
		localPath := filepath.Join(workspaceDir, "prompts", name)
		if content, err := os.ReadFile(localPath); err == nil {
			return string(content), nil
		}
	}

	return Get(name)
}

// Render executes the named prompt with data.
func Render(workspaceDir, name string, data any) (string, error) {
	src, err := GetForWorkspace(workspaceDir, name)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(name).Funcs(funcs).Parse(src)
	if err != nil {
		return "", fmt.Errorf("prompt %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// join joins any slice with sep.
func join(v any, sep string) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return fmt.Sprint(v)
	}
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(rv.Index(i).Interface())
	}
	return strings.Join(parts, sep)
}

// def returns fallback when v prints as the empty string.
func def(fallback string, v any) string {
	if v == nil {
		return fallback
	}
	if s := fmt.Sprint(v); s != "" {
		return s
	}
	return fallback
}
