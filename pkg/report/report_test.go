package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/preflight/pkg/core"
)

func sampleReport() *Report {
	r := New("123e4567-e89b-12d3-a456-426614174000", core.ModeCheck)
	r.Input = Input{Filename: "brochure.pdf", SizeBytes: 4096, PageCount: 2}
	r.Issues = []core.Issue{
		{Severity: core.SeverityWarning, Code: core.CodeFontNotEmbedded, Message: "Arial-Bold is not embedded"},
	}
	r.Analysis = Analysis{
		PageCount:     2,
		PageSizes:     []PageSize{{WidthPts: 612, HeightPts: 792}, {WidthPts: 612, HeightPts: 792}},
		FontsEmbedded: false,
	}
	r.ToolAvailability = map[string]bool{"qpdf": true, "gs": false}
	r.ToolVersions = map[string]string{"qpdf": "qpdf version 11.9.0"}
	r.Finalize()
	return r
}

func TestReport_MarshalValidates(t *testing.T) {
	data, err := sampleReport().Marshal()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "prepress_report_v1", decoded["version"])
}

func TestReport_FinalizeComputesSummary(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, 98.0, r.Summary.Score, "one warning costs 2")
	assert.Equal(t, core.IssueCounts{Warning: 1}, r.Summary.Counts)
}

func TestReport_FixBlockRoundTrip(t *testing.T) {
	r := sampleReport()
	r.Fix = &Fix{
		Before:  Snapshot{Score: 84, Counts: core.IssueCounts{Warning: 8}},
		After:   Snapshot{Score: 100, Counts: core.IssueCounts{}},
		Applied: []string{"normalize_via_ghostscript"},
	}
	data, err := r.Marshal()
	require.NoError(t, err)

	var back Report
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Fix)
	assert.Equal(t, 84.0, back.Fix.Before.Score)
	assert.Equal(t, []string{"normalize_via_ghostscript"}, back.Fix.Applied)
}

func TestValidate_RejectsWrongVersion(t *testing.T) {
	r := sampleReport()
	r.Version = "prepress_report_v2"
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Error(t, Validate(data))
}

func TestValidate_RejectsMissingSummary(t *testing.T) {
	assert.Error(t, Validate([]byte(`{"version":"prepress_report_v1","jobId":"x","mode":"check"}`)))
}

func TestValidate_RejectsBadSeverity(t *testing.T) {
	r := sampleReport()
	r.Issues = []core.Issue{{Severity: "FATAL", Code: "X", Message: "nope"}}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Error(t, Validate(data))
}

func TestValidate_ToleratesUnknownFields(t *testing.T) {
	data, err := sampleReport().Marshal()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	m["futureField"] = "added in v1.3"
	extended, err := json.Marshal(m)
	require.NoError(t, err)

	assert.NoError(t, Validate(extended), "contract evolution is additive")
}
