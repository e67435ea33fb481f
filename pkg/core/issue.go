package core

// Severity ranks how much an issue compromises print readiness.
type Severity string

const (
	SeverityBlocker Severity = "BLOCKER"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Issue codes emitted by the normalizer and the pipeline checks.
const (
	CodeLowDPI              = "LOW_DPI"
	CodeMarginalDPI         = "MARGINAL_DPI"
	CodeRGBColorSpace       = "RGB_COLORSPACE"
	CodePSDFlattened        = "PSD_FLATTENED"
	CodeNormalizationFailed = "NORMALIZATION_FAILED"
	CodeUnsupportedFormat   = "UNSUPPORTED_FORMAT"
	CodeAICompatibility     = "AI_PDFX4_RECOMMENDED"
	CodeToolMissing         = "TOOL_MISSING"
	CodeStructureError      = "STRUCTURE_ERROR"
	CodeStructureWarning    = "STRUCTURE_WARNING"
	CodeMetadataFailed      = "METADATA_FAILED"
	CodeFontNotEmbedded     = "FONT_NOT_EMBEDDED"
	CodeFontCheckFailed     = "FONT_CHECK_FAILED"
	CodeProofRenderFailed   = "PROOF_RENDER_FAILED"
	CodeAutoFixFailed       = "AUTO_FIX_FAILED"
	CodeAutoFixUnavailable  = "AUTO_FIX_UNAVAILABLE"
)

// Issue is a single problem (or observation) found in a file. Issues are
// value types: stages append to a slice they received and hand the longer
// slice to the next stage. Select issue types are additionally persisted as
// Findings.
type Issue struct {
	Severity Severity       `json:"severity"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Page     int            `json:"page,omitempty"`
	BBox     []float64      `json:"bbox,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// IssueCounts aggregates issues by severity.
type IssueCounts struct {
	Blocker int `json:"blocker"`
	Warning int `json:"warning"`
	Info    int `json:"info"`
}

// CountIssues tallies a slice of issues by severity.
func CountIssues(issues []Issue) IssueCounts {
	var c IssueCounts
	for _, is := range issues {
		switch is.Severity {
		case SeverityBlocker:
			c.Blocker++
		case SeverityWarning:
			c.Warning++
		case SeverityInfo:
			c.Info++
		}
	}
	return c
}

// Score computes the 0-100 health score for a set of issues:
// 100 minus 10 per blocker, 2 per warning, 0.5 per info, clamped to [0, 100].
// The same issues always produce the same score.
func Score(issues []Issue) float64 {
	c := CountIssues(issues)
	s := 100 - (10*float64(c.Blocker) + 2*float64(c.Warning) + 0.5*float64(c.Info))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
