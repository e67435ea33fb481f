package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func blockers(n int) []Issue {
	out := make([]Issue, n)
	for i := range out {
		out[i] = Issue{Severity: SeverityBlocker, Code: CodeStructureError, Message: "broken xref"}
	}
	return out
}

func warnings(n int) []Issue {
	out := make([]Issue, n)
	for i := range out {
		out[i] = Issue{Severity: SeverityWarning, Code: CodeFontNotEmbedded, Message: "font not embedded"}
	}
	return out
}

func infos(n int) []Issue {
	out := make([]Issue, n)
	for i := range out {
		out[i] = Issue{Severity: SeverityInfo, Code: CodeMarginalDPI, Message: "dpi below 300"}
	}
	return out
}

func TestScore_NoIssuesIsPerfect(t *testing.T) {
	assert.Equal(t, 100.0, Score(nil))
	assert.Equal(t, 100.0, Score([]Issue{}))
}

func TestScore_Weights(t *testing.T) {
	assert.Equal(t, 90.0, Score(blockers(1)), "one blocker costs 10")
	assert.Equal(t, 90.0, Score(warnings(5)), "five warnings cost 10")
	assert.Equal(t, 98.5, Score(infos(3)), "three infos cost 1.5")
}

func TestScore_ClampedToZero(t *testing.T) {
	assert.Equal(t, 0.0, Score(blockers(11)))
	assert.Equal(t, 0.0, Score(append(blockers(10), warnings(50)...)))
}

func TestScore_MonotonicallyNonIncreasing(t *testing.T) {
	issues := []Issue{}
	prev := Score(issues)
	add := []Issue{
		{Severity: SeverityInfo, Code: CodeMarginalDPI},
		{Severity: SeverityWarning, Code: CodeLowDPI},
		{Severity: SeverityBlocker, Code: CodeNormalizationFailed},
		{Severity: SeverityWarning, Code: CodeToolMissing},
		{Severity: SeverityBlocker, Code: CodeStructureError},
	}
	for _, is := range add {
		issues = append(issues, is)
		s := Score(issues)
		assert.LessOrEqual(t, s, prev, "adding %s must not raise the score", is.Severity)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 100.0)
		prev = s
	}
}

func TestScore_Reproducible(t *testing.T) {
	issues := append(append(blockers(2), warnings(3)...), infos(4)...)
	assert.Equal(t, Score(issues), Score(issues), "same issues must yield the same score")
	assert.Equal(t, 100.0-(20+6+2), Score(issues))
}

func TestCountIssues(t *testing.T) {
	issues := append(append(blockers(1), warnings(2)...), infos(3)...)
	c := CountIssues(issues)
	assert.Equal(t, IssueCounts{Blocker: 1, Warning: 2, Info: 3}, c)
}
