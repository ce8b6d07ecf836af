package translator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderBar(t *testing.T) {
	tests := []struct {
		processed, total int
		filled           int
		suffix           string
	}{
		{17, 40, 17, "| 42.5% (17/40)"},
		{0, 3, 0, "| 0.0% (0/3)"},
		{1, 3, 13, "| 33.3% (1/3)"},
		{3, 3, 40, "| 100.0% (3/3)"},
		{0, 0, 40, "| 100.0% (0/0)"},
	}
	for _, tt := range tests {
		want := "|" + strings.Repeat("█", tt.filled) + strings.Repeat("-", 40-tt.filled) + tt.suffix
		assert.Equal(t, want, RenderBar(tt.processed, tt.total))
	}
}

func TestProgressBar_NonInteractive(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressBar(&buf)
	p.Update(1, 2)
	p.Update(2, 2)
	p.Finish()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Progress: |"))
	assert.True(t, strings.HasSuffix(lines[1], "100.0% (2/2)"))
}

func TestProgressBar_InteractiveRedraws(t *testing.T) {
	var buf bytes.Buffer
	p := &ProgressBar{w: &buf, interactive: true}
	p.Update(1, 2)
	p.Update(2, 2)
	p.Printf("done")

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "\r"))
	assert.True(t, strings.HasSuffix(out, "(2/2)\ndone\n"))
}
