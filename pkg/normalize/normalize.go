package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/printforge/preflight/pkg/core"
	"github.com/printforge/preflight/pkg/tools"
)

// DPI thresholds for raster inputs. Below the warning floor print output is
// visibly degraded; between the two the result is usable but soft.
const (
	WarnDPIBelow     = 150
	MarginalDPIBelow = 300
)

// Metadata captures what could be learned about a raster input.
type Metadata struct {
	DPI        float64 `json:"dpi,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	ColorSpace string  `json:"colorSpace,omitempty"`
}

// Result is the per-format normalization contract. NormalizedFormat is
// FormatPDF on success and empty when no PDF could be produced; Normalized
// is nil in that case. Normalize never fails outright: problems surface as
// issues.
type Result struct {
	OriginalFormat   Format
	NormalizedFormat Format
	Normalized       []byte
	Notes            []string
	Issues           []core.Issue
	Metadata         *Metadata
}

var sourceExt = map[Format]string{
	FormatJPEG: ".jpg",
	FormatPNG:  ".png",
	FormatTIFF: ".tif",
	FormatPSD:  ".psd",
}

// Normalizer converts uploads to PDF via the raster converter tool.
type Normalizer struct {
	runner tools.Runner
	avail  tools.Availability
	log    *slog.Logger
}

// New creates a Normalizer. The availability map decides up front whether
// conversion is even attempted.
func New(runner tools.Runner, avail tools.Availability, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{runner: runner, avail: avail, log: logger}
}

// Normalize detects the format of data and produces a PDF in scratchDir.
func (n *Normalizer) Normalize(ctx context.Context, scratchDir string, data []byte, contentType, filename string) *Result {
	format := Detect(data, contentType, filename)
	res := &Result{OriginalFormat: format}

	switch format {
	case FormatPDF:
		res.NormalizedFormat = FormatPDF
		res.Normalized = data
		res.Notes = append(res.Notes, "PDF input used as-is")

	case FormatAI:
		// Illustrator files carry a full PDF stream; analyze that directly.
		res.NormalizedFormat = FormatPDF
		res.Normalized = data
		res.Notes = append(res.Notes, "Illustrator file analyzed via its embedded PDF stream")
		res.Issues = append(res.Issues, core.Issue{
			Severity: core.SeverityInfo,
			Code:     core.CodeAICompatibility,
			Message:  "exporting as PDF/X-4 from Illustrator gives more predictable print results",
		})

	case FormatJPEG, FormatPNG, FormatTIFF:
		n.convertRaster(ctx, scratchDir, data, format, false, res)

	case FormatPSD:
		n.convertRaster(ctx, scratchDir, data, format, true, res)
		if res.NormalizedFormat == FormatPDF {
			res.Issues = append(res.Issues, core.Issue{
				Severity: core.SeverityWarning,
				Code:     core.CodePSDFlattened,
				Message:  "Photoshop file was flattened; layers and editability are lost in the print file",
			})
			res.Notes = append(res.Notes, "PSD flattened to a single layer during conversion")
		}

	default:
		res.Issues = append(res.Issues, core.Issue{
			Severity: core.SeverityBlocker,
			Code:     core.CodeUnsupportedFormat,
			Message:  fmt.Sprintf("unsupported input format for %q; supply PDF, JPG, PNG, TIFF, AI, or PSD", filename),
		})
	}

	return res
}

// convertRaster writes the source to scratch, captures raster metadata, and
// converts to a single-page PDF. Converter absence or failure is a blocker:
// nothing downstream can run without a PDF.
func (n *Normalizer) convertRaster(ctx context.Context, scratchDir string, data []byte, format Format, flatten bool, res *Result) {
	if !n.avail[tools.ToolMagick] {
		res.Issues = append(res.Issues,
			core.Issue{
				Severity: core.SeverityWarning,
				Code:     core.CodeToolMissing,
				Message:  fmt.Sprintf("%s is not installed; raster inputs cannot be converted", tools.ToolMagick),
				Meta:     map[string]any{"tool": string(tools.ToolMagick)},
			},
			core.Issue{
				Severity: core.SeverityBlocker,
				Code:     core.CodeNormalizationFailed,
				Message:  "raster converter is not installed; cannot produce a print-ready PDF from this input",
			})
		return
	}

	srcPath := filepath.Join(scratchDir, "source"+sourceExt[format])
	outPath := filepath.Join(scratchDir, "normalized.pdf")
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		n.failConversion(res, err)
		return
	}
	if err := os.WriteFile(srcPath, data, 0o644); err != nil {
		n.failConversion(res, err)
		return
	}

	// Metadata capture is best-effort; a failed identify does not block the
	// conversion itself.
	if info, err := n.runner.RasterInfo(ctx, srcPath); err != nil {
		n.log.Warn("raster metadata unavailable", "format", format, "error", err)
	} else {
		res.Metadata = &Metadata{
			DPI:        info.DPI,
			Width:      info.Width,
			Height:     info.Height,
			ColorSpace: info.ColorSpace,
		}
		res.Issues = append(res.Issues, dpiIssues(info)...)
	}

	if err := n.runner.RasterToPDF(ctx, srcPath, outPath, flatten); err != nil {
		n.failConversion(res, err)
		return
	}
	converted, err := os.ReadFile(outPath)
	if err != nil {
		n.failConversion(res, err)
		return
	}

	res.NormalizedFormat = FormatPDF
	res.Normalized = converted
	res.Notes = append(res.Notes, fmt.Sprintf("%s converted to PDF for analysis", format))
}

func (n *Normalizer) failConversion(res *Result, err error) {
	n.log.Warn("normalization failed", "format", res.OriginalFormat, "error", err)
	res.Issues = append(res.Issues, core.Issue{
		Severity: core.SeverityBlocker,
		Code:     core.CodeNormalizationFailed,
		Message:  fmt.Sprintf("could not convert %s input to PDF: %v", res.OriginalFormat, err),
	})
}

// dpiIssues grades resolution and color space for print.
func dpiIssues(info *tools.RasterInfo) []core.Issue {
	var issues []core.Issue
	if info.DPI > 0 {
		switch {
		case info.DPI < WarnDPIBelow:
			issues = append(issues, core.Issue{
				Severity: core.SeverityWarning,
				Code:     core.CodeLowDPI,
				Message:  fmt.Sprintf("image resolution is %.0f DPI; print output will be visibly pixelated below %d DPI", info.DPI, WarnDPIBelow),
				Meta:     map[string]any{"dpi": info.DPI},
			})
		case info.DPI < MarginalDPIBelow:
			issues = append(issues, core.Issue{
				Severity: core.SeverityInfo,
				Code:     core.CodeMarginalDPI,
				Message:  fmt.Sprintf("image resolution is %.0f DPI; %d DPI is recommended for crisp print output", info.DPI, MarginalDPIBelow),
				Meta:     map[string]any{"dpi": info.DPI},
			})
		}
	}
	if colorSpaceIsRGB(info.ColorSpace) {
		issues = append(issues, core.Issue{
			Severity: core.SeverityInfo,
			Code:     core.CodeRGBColorSpace,
			Message:  "image is in an RGB color space; colors will shift when converted to CMYK for print",
		})
	}
	return issues
}

func colorSpaceIsRGB(cs string) bool {
	switch cs {
	case "RGB", "sRGB", "scRGB", "RGBA", "sRGBA":
		return true
	}
	return false
}
