// Package tools wraps the optional external binaries the pipeline leans on.
// Every invocation is out-of-process, bounded by a timeout and an output
// cap, and every wrapper is substitutable with a fake in tests.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/printforge/preflight/pkg/core"
)

// Tool names the optional external binaries.
type Tool string

const (
	ToolQPDF        Tool = "qpdf"     // structural validator
	ToolPDFInfo     Tool = "pdfinfo"  // metadata extractor
	ToolPDFFonts    Tool = "pdffonts" // font extractor
	ToolGhostscript Tool = "gs"       // repair tool
	ToolPDFToPPM    Tool = "pdftoppm" // page renderer
	ToolMagick      Tool = "magick"   // raster converter
)

// AllTools lists every probe target.
var AllTools = []Tool{ToolQPDF, ToolPDFInfo, ToolPDFFonts, ToolGhostscript, ToolPDFToPPM, ToolMagick}

// StructureResult is the outcome of structural validation.
type StructureResult struct {
	Errors   []string
	Warnings []string
}

// PageSize is one page's media box in points.
type PageSize struct {
	WidthPts  float64 `json:"widthPts"`
	HeightPts float64 `json:"heightPts"`
}

// PDFMetadata is what the metadata extractor reports.
type PDFMetadata struct {
	PageCount int
	PageSizes []PageSize
}

// FontInfo is one font row from the font extractor.
type FontInfo struct {
	Name     string
	Type     string
	Embedded bool
	Subset   bool
}

// RasterInfo describes a raster image prior to normalization.
type RasterInfo struct {
	Width      int
	Height     int
	DPI        float64
	ColorSpace string
}

// Runner is the capability set the pipeline consumes: one method per tool
// operation, all fail-soft at the call site.
type Runner interface {
	// Probe checks a tool with a short version-style invocation and returns
	// its version string.
	Probe(ctx context.Context, tool Tool) (string, error)

	ValidateStructure(ctx context.Context, pdfPath string) (*StructureResult, error)
	ExtractMetadata(ctx context.Context, pdfPath string) (*PDFMetadata, error)
	ListFonts(ctx context.Context, pdfPath string) ([]FontInfo, error)
	RenderProof(ctx context.Context, pdfPath, outPNG string, dpi int) error
	Repair(ctx context.Context, inPath, outPath string) error
	RasterToPDF(ctx context.Context, inPath, outPath string, flatten bool) error
	RasterInfo(ctx context.Context, path string) (*RasterInfo, error)
}

const (
	// DefaultTimeout bounds one tool invocation.
	DefaultTimeout = 180 * time.Second

	// DefaultMaxOutput caps captured stdout/stderr per stream (4MB).
	DefaultMaxOutput = 4 << 20

	// probeTimeout bounds a version probe.
	probeTimeout = 5 * time.Second
)

// ExecRunner runs the real binaries.
type ExecRunner struct {
	Timeout   time.Duration
	MaxOutput int64
	log       *slog.Logger
}

// NewExecRunner creates a runner with the given invocation timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewExecRunner(timeout time.Duration, logger *slog.Logger) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{Timeout: timeout, MaxOutput: DefaultMaxOutput, log: logger}
}

// capWriter keeps at most max bytes and silently drops the rest, so a
// runaway tool cannot exhaust memory.
type capWriter struct {
	buf bytes.Buffer
	max int64
}

func (w *capWriter) Write(p []byte) (int, error) {
	remaining := w.max - int64(w.buf.Len())
	if remaining > 0 {
		if int64(len(p)) > remaining {
			w.buf.Write(p[:remaining])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}

// run executes one command under the runner's timeout with capped output.
// A timeout surfaces as an ordinary execution error; callers treat both the
// same way under the fail-soft contract.
func (r *ExecRunner) run(ctx context.Context, timeout time.Duration, name string, args ...string) (stdout, stderr []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	out := &capWriter{max: r.MaxOutput}
	errb := &capWriter{max: r.MaxOutput}
	cmd.Stdout = out
	cmd.Stderr = errb

	err = cmd.Run()
	dur := time.Since(start)

	if err != nil {
		r.log.Debug("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
		)
		return out.buf.Bytes(), errb.buf.Bytes(), core.NewToolError(name, errb.buf.String(), err)
	}

	r.log.Debug("exec ok",
		"cmd", name,
		"args", strings.Join(args, " "),
		"duration_ms", dur.Milliseconds(),
		"stdout_bytes", out.buf.Len(),
	)
	return out.buf.Bytes(), errb.buf.Bytes(), nil
}

// probe invocations per tool. Poppler utilities print their version on
// stderr; the others use stdout.
var probeArgs = map[Tool][]string{
	ToolQPDF:        {"--version"},
	ToolPDFInfo:     {"-v"},
	ToolPDFFonts:    {"-v"},
	ToolGhostscript: {"--version"},
	ToolPDFToPPM:    {"-v"},
	ToolMagick:      {"-version"},
}

// Probe runs a short version invocation. Any failure means unavailable.
func (r *ExecRunner) Probe(ctx context.Context, tool Tool) (string, error) {
	args, ok := probeArgs[tool]
	if !ok {
		return "", fmt.Errorf("tools: unknown tool %q", tool)
	}
	stdout, stderr, err := r.run(ctx, probeTimeout, string(tool), args...)
	if err != nil {
		return "", err
	}
	return parseVersion(stdout, stderr), nil
}

// ValidateStructure runs `qpdf --check`. A clean exit means no findings;
// exit status 3 means warnings only; anything else is reported as errors.
func (r *ExecRunner) ValidateStructure(ctx context.Context, pdfPath string) (*StructureResult, error) {
	stdout, stderr, err := r.run(ctx, r.Timeout, string(ToolQPDF), "--check", pdfPath)
	combined := append(stdout, stderr...)
	if err != nil {
		var exitErr *exec.ExitError
		if asExitError(err, &exitErr) {
			return parseQPDFCheck(combined, exitErr.ExitCode()), nil
		}
		// The binary itself failed to run.
		return nil, err
	}
	return parseQPDFCheck(combined, 0), nil
}

// ExtractMetadata runs `pdfinfo -f 1 -l -1` for the page count and per-page
// sizes in points.
func (r *ExecRunner) ExtractMetadata(ctx context.Context, pdfPath string) (*PDFMetadata, error) {
	stdout, _, err := r.run(ctx, r.Timeout, string(ToolPDFInfo), "-f", "1", "-l", "-1", pdfPath)
	if err != nil {
		return nil, err
	}
	return parsePDFInfo(stdout), nil
}

// ListFonts runs `pdffonts` and parses its table.
func (r *ExecRunner) ListFonts(ctx context.Context, pdfPath string) ([]FontInfo, error) {
	stdout, _, err := r.run(ctx, r.Timeout, string(ToolPDFFonts), pdfPath)
	if err != nil {
		return nil, err
	}
	return parsePDFFonts(stdout), nil
}

// RenderProof rasterizes the first page to a PNG at the given DPI.
func (r *ExecRunner) RenderProof(ctx context.Context, pdfPath, outPNG string, dpi int) error {
	prefix := strings.TrimSuffix(outPNG, ".png")
	_, _, err := r.run(ctx, r.Timeout, string(ToolPDFToPPM),
		"-png", "-r", fmt.Sprintf("%d", dpi), "-f", "1", "-l", "1", "-singlefile",
		pdfPath, prefix)
	return err
}

// Repair re-distills the PDF through Ghostscript: fonts force-embedded,
// color space preserved, PDF 1.4 target, no auto-rotate.
func (r *ExecRunner) Repair(ctx context.Context, inPath, outPath string) error {
	_, _, err := r.run(ctx, r.Timeout, string(ToolGhostscript),
		"-dBATCH", "-dNOPAUSE", "-dQUIET",
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dEmbedAllFonts=true",
		"-dSubsetFonts=true",
		"-dAutoRotatePages=/None",
		"-dColorConversionStrategy=/LeaveColorUnchanged",
		"-sOutputFile="+outPath,
		inPath)
	return err
}

// RasterToPDF converts a raster input to a single-page PDF, optionally
// flattening layered formats first.
func (r *ExecRunner) RasterToPDF(ctx context.Context, inPath, outPath string, flatten bool) error {
	args := []string{inPath}
	if flatten {
		args = append(args, "-flatten")
	}
	args = append(args, outPath)
	_, _, err := r.run(ctx, r.Timeout, string(ToolMagick), args...)
	return err
}

// RasterInfo reads dimensions, resolution, and color space via
// `magick identify`.
func (r *ExecRunner) RasterInfo(ctx context.Context, path string) (*RasterInfo, error) {
	stdout, _, err := r.run(ctx, r.Timeout, string(ToolMagick),
		"identify", "-format", "%w %h %x %y %[units] %[colorspace]", path)
	if err != nil {
		return nil, err
	}
	info, perr := parseIdentify(string(stdout))
	if perr != nil {
		return nil, core.NewToolError(string(ToolMagick), string(stdout), perr)
	}
	return info, nil
}
