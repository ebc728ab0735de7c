package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/daydemir/gass/internal/types"
)

func TestProgressBar(t *testing.T) {
	d := NewWriter(&bytes.Buffer{}, true, 80)

	tests := []struct {
		done, total int
		want        string
	}{
		{0, 0, "░░░░░░░░░░   0% (0/0)"},
		{1, 2, "█████░░░░░  50% (1/2)"},
		{3, 3, "██████████ 100% (3/3)"},
	}
	for _, tt := range tests {
		if got := d.ProgressBar(tt.done, tt.total, 10); got != tt.want {
			t.Errorf("ProgressBar(%d, %d) = %q, want %q", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestPhaseLine(t *testing.T) {
	var buf bytes.Buffer
	d := NewWriter(&buf, true, 80)

	d.Phase(1, "2.1", "Backend", types.StatusCompleted, "(2 sub-phases)")
	d.Phase(0, "3", "Deploy", types.StatusPending, "")

	want := "  ✓ 2.1 Backend (2 sub-phases)\n○ 3 Deploy\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBoxFitsWidth(t *testing.T) {
	var buf bytes.Buffer
	d := NewWriter(&buf, true, 40)
	d.Box("GASS", "hello")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	for _, l := range lines {
		if n := len([]rune(l)); n != 40 {
			t.Errorf("line %q has width %d", l, n)
		}
	}
}

func TestSummaryAlignsLabels(t *testing.T) {
	var buf bytes.Buffer
	d := NewWriter(&buf, true, 80)
	d.Summary("Batch", Row{"Total", "3"}, Row{"Needs revision", "1"})

	out := buf.String()
	if !strings.Contains(out, "Total:"+strings.Repeat(" ", 11)+"3") {
		t.Errorf("labels not aligned:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("a  b\nc", 10); got != "a b c" {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("abcdefghijkl", 8); got != "abcde..." {
		t.Errorf("Truncate = %q", got)
	}
}
