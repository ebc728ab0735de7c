// Package logs keeps a markdown transcript of every executed task: what
// the agent produced and what the validation pass said about it.
package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DirName is the transcript directory inside the output dir.
const DirName = "transcripts"

// Entry is one task execution.
type Entry struct {
	PhaseID  string
	Title    string
	RunID    string
	Result   string
	Started  time.Time
	Elapsed  time.Duration
	Output   string
	Feedback string
	Error    string
}

// TranscriptInfo describes a stored transcript.
type TranscriptInfo struct {
	PhaseID string
	Path    string
	Time    time.Time
}

// Transcripts reads and writes transcripts under one directory.
type Transcripts struct {
	dir string
}

// NewTranscripts stores transcripts under outputDir/transcripts.
func NewTranscripts(outputDir string) *Transcripts {
	return &Transcripts{dir: filepath.Join(outputDir, DirName)}
}

// Dir returns the transcript directory.
func (t *Transcripts) Dir() string {
	return t.dir
}

// Write stores e as markdown and returns the file path. Files are named
// {date}-{time}-{phase}.md so that a directory listing is chronological.
func (t *Transcripts) Write(e Entry) (string, error) {
	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create transcript directory: %w", err)
	}
	if e.Started.IsZero() {
		e.Started = time.Now()
	}

	name := fmt.Sprintf("%s-%s.md", e.Started.Format("2006-01-02-15-04-05"), fileSafe(e.PhaseID))
	path := filepath.Join(t.dir, name)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Task %s: %s\n\n", e.PhaseID, e.Title)
	fmt.Fprintf(&sb, "Started: %s\n", e.Started.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Duration: %s\n", e.Elapsed.Round(time.Second))
	fmt.Fprintf(&sb, "Result: %s\n", e.Result)
	if e.RunID != "" {
		fmt.Fprintf(&sb, "Run: `%s`\n", e.RunID)
	}
	sb.WriteString("\n---\n\n")

	if e.Error != "" {
		sb.WriteString("## ERROR\n\n")
		sb.WriteString(e.Error)
		sb.WriteString("\n\n---\n\n")
	}
	if e.Output != "" {
		sb.WriteString("## CLAUDE\n\n")
		sb.WriteString(strings.TrimSpace(e.Output))
		sb.WriteString("\n\n---\n\n")
	}
	if e.Feedback != "" {
		sb.WriteString("## VALIDATION\n\n")
		sb.WriteString(strings.TrimSpace(e.Feedback))
		sb.WriteString("\n\n---\n\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("cannot write transcript: %w", err)
	}
	return path, nil
}

// List returns the stored transcripts, oldest first. A phase id limits
// the list to that phase. A missing directory yields an empty list.
func (t *Transcripts) List(phaseID string) ([]TranscriptInfo, error) {
	entries, err := os.ReadDir(t.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read transcript directory: %w", err)
	}

	var slug string
	if phaseID != "" {
		slug = fileSafe(phaseID)
	}

	var out []TranscriptInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		info, ok := parseName(entry.Name())
		if !ok {
			continue
		}
		if slug != "" && info.PhaseID != slug {
			continue
		}
		info.Path = filepath.Join(t.dir, entry.Name())
		out = append(out, info)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out, nil
}

// Latest returns the most recent transcript, optionally for one phase.
func (t *Transcripts) Latest(phaseID string) (*TranscriptInfo, error) {
	list, err := t.List(phaseID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		if phaseID != "" {
			return nil, fmt.Errorf("no transcripts found for phase %s", phaseID)
		}
		return nil, fmt.Errorf("no transcripts found")
	}
	return &list[len(list)-1], nil
}

// fileSafe keeps letters, digits, dots and dashes of a phase id and
// replaces everything else with an underscore.
func fileSafe(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		}
		return '_'
	}, id)
}

// parseName splits "2006-01-02-15-04-05-<id>.md".
func parseName(name string) (TranscriptInfo, bool) {
	const stamp = "2006-01-02-15-04-05"
	base := strings.TrimSuffix(name, ".md")
	if len(base) <= len(stamp)+1 || base[len(stamp)] != '-' {
		return TranscriptInfo{}, false
	}
	ts, err := time.ParseInLocation(stamp, base[:len(stamp)], time.Local)
	if err != nil {
		return TranscriptInfo{}, false
	}
	return TranscriptInfo{PhaseID: base[len(stamp)+1:], Time: ts}, true
}
