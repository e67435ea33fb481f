package normalize

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/preflight/pkg/core"
	"github.com/printforge/preflight/pkg/tools"
)

// fakeRunner satisfies tools.Runner with canned behavior; only the raster
// methods matter to the normalizer.
type fakeRunner struct {
	info        *tools.RasterInfo
	infoErr     error
	convertErr  error
	convertedTo []byte
}

func (f *fakeRunner) Probe(context.Context, tools.Tool) (string, error) { return "", nil }
func (f *fakeRunner) ValidateStructure(context.Context, string) (*tools.StructureResult, error) {
	return &tools.StructureResult{}, nil
}
func (f *fakeRunner) ExtractMetadata(context.Context, string) (*tools.PDFMetadata, error) {
	return &tools.PDFMetadata{}, nil
}
func (f *fakeRunner) ListFonts(context.Context, string) ([]tools.FontInfo, error) { return nil, nil }
func (f *fakeRunner) RenderProof(context.Context, string, string, int) error      { return nil }
func (f *fakeRunner) Repair(context.Context, string, string) error                { return nil }

func (f *fakeRunner) RasterToPDF(_ context.Context, _ string, outPath string, _ bool) error {
	if f.convertErr != nil {
		return f.convertErr
	}
	out := f.convertedTo
	if out == nil {
		out = []byte("%PDF-1.4 converted")
	}
	return os.WriteFile(outPath, out, 0o644)
}

func (f *fakeRunner) RasterInfo(context.Context, string) (*tools.RasterInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func allAvailable() tools.Availability {
	avail := make(tools.Availability)
	for _, tool := range tools.AllTools {
		avail[tool] = true
	}
	return avail
}

func findIssue(issues []core.Issue, code string) *core.Issue {
	for i := range issues {
		if issues[i].Code == code {
			return &issues[i]
		}
	}
	return nil
}

func TestNormalize_PDFPassthroughIsByteIdentical(t *testing.T) {
	n := New(&fakeRunner{}, allAvailable(), nil)
	data := []byte("%PDF-1.7\nsome pdf content")

	res := n.Normalize(context.Background(), t.TempDir(), data, "application/pdf", "flyer.pdf")

	assert.Equal(t, FormatPDF, res.OriginalFormat)
	assert.Equal(t, FormatPDF, res.NormalizedFormat)
	assert.Equal(t, data, res.Normalized, "passthrough must not touch the bytes")
	assert.Empty(t, res.Issues)
}

func TestNormalize_AIPassthroughWithAdvisory(t *testing.T) {
	n := New(&fakeRunner{}, allAvailable(), nil)
	data := []byte("%PDF-1.6\nillustrator content")

	res := n.Normalize(context.Background(), t.TempDir(), data, "", "logo.ai")

	assert.Equal(t, FormatAI, res.OriginalFormat)
	assert.Equal(t, FormatPDF, res.NormalizedFormat)
	assert.Equal(t, data, res.Normalized)
	advisory := findIssue(res.Issues, core.CodeAICompatibility)
	require.NotNil(t, advisory)
	assert.Equal(t, core.SeverityInfo, advisory.Severity)
}

func TestNormalize_LowDPIJPEG(t *testing.T) {
	runner := &fakeRunner{info: &tools.RasterInfo{Width: 800, Height: 600, DPI: 72, ColorSpace: "sRGB"}}
	n := New(runner, allAvailable(), nil)
	data := append([]byte{0xFF, 0xD8, 0xFF}, []byte("jpeg body")...)

	res := n.Normalize(context.Background(), t.TempDir(), data, "image/jpeg", "test.jpg")

	assert.Equal(t, FormatJPEG, res.OriginalFormat)
	assert.Equal(t, FormatPDF, res.NormalizedFormat)
	assert.NotNil(t, res.Normalized)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, 72.0, res.Metadata.DPI)

	low := findIssue(res.Issues, core.CodeLowDPI)
	require.NotNil(t, low, "72 DPI must warn")
	assert.Equal(t, core.SeverityWarning, low.Severity)

	rgb := findIssue(res.Issues, core.CodeRGBColorSpace)
	require.NotNil(t, rgb)
	assert.Equal(t, core.SeverityInfo, rgb.Severity)
}

func TestNormalize_MarginalDPIIsInfo(t *testing.T) {
	runner := &fakeRunner{info: &tools.RasterInfo{Width: 2000, Height: 2000, DPI: 200, ColorSpace: "CMYK"}}
	n := New(runner, allAvailable(), nil)

	res := n.Normalize(context.Background(), t.TempDir(), pngBytes, "image/png", "scan.png")

	assert.Nil(t, findIssue(res.Issues, core.CodeLowDPI))
	marginal := findIssue(res.Issues, core.CodeMarginalDPI)
	require.NotNil(t, marginal)
	assert.Equal(t, core.SeverityInfo, marginal.Severity)
	assert.Nil(t, findIssue(res.Issues, core.CodeRGBColorSpace), "CMYK is fine")
}

func TestNormalize_ConverterUnavailableIsBlocker(t *testing.T) {
	avail := allAvailable()
	avail[tools.ToolMagick] = false
	n := New(&fakeRunner{}, avail, nil)

	res := n.Normalize(context.Background(), t.TempDir(), pngBytes, "image/png", "scan.png")

	assert.Equal(t, Format(""), res.NormalizedFormat)
	assert.Nil(t, res.Normalized)
	blocker := findIssue(res.Issues, core.CodeNormalizationFailed)
	require.NotNil(t, blocker)
	assert.Equal(t, core.SeverityBlocker, blocker.Severity)

	missing := findIssue(res.Issues, core.CodeToolMissing)
	require.NotNil(t, missing)
	assert.Equal(t, core.SeverityWarning, missing.Severity)
}

func TestNormalize_ConversionFailureIsBlocker(t *testing.T) {
	runner := &fakeRunner{convertErr: errors.New("decode error")}
	n := New(runner, allAvailable(), nil)

	res := n.Normalize(context.Background(), t.TempDir(), jpegBytes, "image/jpeg", "broken.jpg")

	assert.Nil(t, res.Normalized)
	require.NotNil(t, findIssue(res.Issues, core.CodeNormalizationFailed))
}

func TestNormalize_PSDFlattenedWarning(t *testing.T) {
	runner := &fakeRunner{info: &tools.RasterInfo{Width: 3000, Height: 3000, DPI: 300, ColorSpace: "CMYK"}}
	n := New(runner, allAvailable(), nil)

	res := n.Normalize(context.Background(), t.TempDir(), psdBytes, "", "artwork.psd")

	assert.Equal(t, FormatPSD, res.OriginalFormat)
	assert.Equal(t, FormatPDF, res.NormalizedFormat)
	flattened := findIssue(res.Issues, core.CodePSDFlattened)
	require.NotNil(t, flattened)
	assert.Equal(t, core.SeverityWarning, flattened.Severity)
}

func TestNormalize_PSDConversionFailureHasNoFlattenWarning(t *testing.T) {
	runner := &fakeRunner{convertErr: errors.New("cannot flatten")}
	n := New(runner, allAvailable(), nil)

	res := n.Normalize(context.Background(), t.TempDir(), psdBytes, "", "artwork.psd")

	assert.Nil(t, res.Normalized)
	assert.Nil(t, findIssue(res.Issues, core.CodePSDFlattened))
	assert.NotNil(t, findIssue(res.Issues, core.CodeNormalizationFailed))
}

func TestNormalize_UnsupportedFormat(t *testing.T) {
	n := New(&fakeRunner{}, allAvailable(), nil)

	res := n.Normalize(context.Background(), t.TempDir(), []byte("GIF89a..."), "image/gif", "anim.gif")

	assert.Equal(t, FormatUnknown, res.OriginalFormat)
	assert.Nil(t, res.Normalized)
	blocker := findIssue(res.Issues, core.CodeUnsupportedFormat)
	require.NotNil(t, blocker)
	assert.Equal(t, core.SeverityBlocker, blocker.Severity)
}

func TestNormalize_MetadataFailureDoesNotBlockConversion(t *testing.T) {
	runner := &fakeRunner{infoErr: errors.New("identify crashed")}
	n := New(runner, allAvailable(), nil)

	res := n.Normalize(context.Background(), t.TempDir(), jpegBytes, "image/jpeg", "photo.jpg")

	assert.Equal(t, FormatPDF, res.NormalizedFormat)
	assert.NotNil(t, res.Normalized)
	assert.Nil(t, res.Metadata)
}
