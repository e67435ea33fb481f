package tools

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeProber answers probes from canned data.
type fakeProber struct {
	versions map[Tool]string
	fail     map[Tool]bool
}

func (f *fakeProber) Probe(_ context.Context, tool Tool) (string, error) {
	if f.fail[tool] {
		return "", errors.New("executable file not found in $PATH")
	}
	return f.versions[tool], nil
}

func TestDetect_AllAvailable(t *testing.T) {
	p := &fakeProber{versions: map[Tool]string{
		ToolQPDF:        "qpdf version 11.9.0",
		ToolGhostscript: "10.03.1",
	}}
	d := NewDetector(p, slog.Default())

	avail, versions := d.Detect(context.Background())

	assert.Len(t, avail, len(AllTools))
	for _, tool := range AllTools {
		assert.True(t, avail[tool], "tool %s", tool)
	}
	assert.Equal(t, "qpdf version 11.9.0", versions[ToolQPDF])
	assert.Equal(t, "10.03.1", versions[ToolGhostscript])
}

func TestDetect_FailedProbeMeansUnavailable(t *testing.T) {
	p := &fakeProber{
		versions: map[Tool]string{ToolQPDF: "qpdf version 11.9.0"},
		fail:     map[Tool]bool{ToolGhostscript: true, ToolMagick: true},
	}
	d := NewDetector(p, slog.Default())

	avail, versions := d.Detect(context.Background())

	assert.True(t, avail[ToolQPDF])
	assert.False(t, avail[ToolGhostscript])
	assert.False(t, avail[ToolMagick])
	_, ok := versions[ToolGhostscript]
	assert.False(t, ok, "no version for an unavailable tool")
}

func TestDetect_EveryToolMissingStillReturns(t *testing.T) {
	fail := make(map[Tool]bool, len(AllTools))
	for _, tool := range AllTools {
		fail[tool] = true
	}
	d := NewDetector(&fakeProber{fail: fail}, slog.Default())

	avail, versions := d.Detect(context.Background())

	assert.Len(t, avail, len(AllTools))
	for _, tool := range AllTools {
		assert.False(t, avail[tool])
	}
	assert.Empty(t, versions)
}
