package tools

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

func asExitError(err error, target **exec.ExitError) bool {
	return errors.As(err, target)
}

// parseVersion extracts the first non-empty line from a version probe.
// Poppler tools report on stderr, the rest on stdout.
func parseVersion(stdout, stderr []byte) string {
	for _, stream := range [][]byte{stdout, stderr} {
		sc := bufio.NewScanner(bytes.NewReader(stream))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line != "" {
				return line
			}
		}
	}
	return ""
}

// parseQPDFCheck folds qpdf --check output into errors and warnings.
// Exit 0 is a clean file, exit 3 is warnings only, anything else puts the
// reported lines on the error side.
func parseQPDFCheck(output []byte, exitCode int) *StructureResult {
	res := &StructureResult{}
	sc := bufio.NewScanner(bytes.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "warning:"):
			res.Warnings = append(res.Warnings, strings.TrimSpace(line[len("warning:"):]))
		case strings.HasPrefix(lower, "error:"):
			res.Errors = append(res.Errors, strings.TrimSpace(line[len("error:"):]))
		case strings.Contains(lower, "error"):
			res.Errors = append(res.Errors, line)
		}
	}
	if exitCode != 0 && exitCode != 3 && len(res.Errors) == 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("qpdf exited with status %d", exitCode))
	}
	return res
}

var (
	pdfinfoPages    = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)
	pdfinfoPageSize = regexp.MustCompile(`(?m)^Page\s+\d+\s+size:\s+([\d.]+)\s+x\s+([\d.]+)\s+pts`)
)

// parsePDFInfo reads `pdfinfo -f 1 -l -1` output: the total page count plus
// one "Page N size: W x H pts" line per page.
func parsePDFInfo(output []byte) *PDFMetadata {
	meta := &PDFMetadata{}
	if m := pdfinfoPages.FindSubmatch(output); m != nil {
		meta.PageCount, _ = strconv.Atoi(string(m[1]))
	}
	for _, m := range pdfinfoPageSize.FindAllSubmatch(output, -1) {
		w, _ := strconv.ParseFloat(string(m[1]), 64)
		h, _ := strconv.ParseFloat(string(m[2]), 64)
		meta.PageSizes = append(meta.PageSizes, PageSize{WidthPts: w, HeightPts: h})
	}
	return meta
}

// pdffontsTypes is the closed set of type strings pdffonts prints, longest
// first so suffix matching is unambiguous.
var pdffontsTypes = []string{
	"CID TrueType (OT)",
	"CID Type 0C (OT)",
	"CID TrueType",
	"CID Type 0C",
	"CID Type 0",
	"TrueType (OT)",
	"Type 1C (OT)",
	"TrueType",
	"Type 1C",
	"Type 1",
	"Type 3",
}

// splitFontNameType splits the tokens left of the encoding column into font
// name and type. Both may contain spaces, but the type comes from a closed
// set, so it is matched as a suffix; the name is everything before it.
func splitFontNameType(head string) (name, typ string) {
	for _, t := range pdffontsTypes {
		if head == t {
			return "", t
		}
		if strings.HasSuffix(head, " "+t) {
			return strings.TrimSpace(head[:len(head)-len(t)]), t
		}
	}
	// Unknown type string; keep the last token as the type.
	if i := strings.LastIndex(head, " "); i >= 0 {
		return head[:i], head[i+1:]
	}
	return head, ""
}

// parsePDFFonts reads the pdffonts table. Columns from the right are fixed
// (encoding emb sub uni object ID); the name on the left may contain
// spaces, so fields are taken relative to the row's tail.
func parsePDFFonts(output []byte) []FontInfo {
	var fonts []FontInfo
	sc := bufio.NewScanner(bytes.NewReader(output))
	inTable := false
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "----") {
			inTable = true
			continue
		}
		if !inTable || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 7 {
			continue
		}
		// ... emb sub uni object ID  → emb is the fifth field from the end.
		emb := fields[len(fields)-5]
		sub := fields[len(fields)-4]
		name, typ := splitFontNameType(strings.Join(fields[:len(fields)-6], " "))
		fonts = append(fonts, FontInfo{
			Name:     name,
			Type:     typ,
			Embedded: emb == "yes",
			Subset:   sub == "yes",
		})
	}
	return fonts
}

// parseIdentify reads `magick identify -format "%w %h %x %y %[units] %[colorspace]"`.
// Resolution units of PixelsPerCentimeter are converted to DPI.
func parseIdentify(output string) (*RasterInfo, error) {
	fields := strings.Fields(strings.TrimSpace(output))
	if len(fields) < 6 {
		return nil, fmt.Errorf("unexpected identify output %q", output)
	}
	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("bad width %q", fields[0])
	}
	h, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("bad height %q", fields[1])
	}
	xres, _ := strconv.ParseFloat(fields[2], 64)
	units := fields[4]
	if strings.EqualFold(units, "PixelsPerCentimeter") {
		xres *= 2.54
	}
	return &RasterInfo{
		Width:      w,
		Height:     h,
		DPI:        xres,
		ColorSpace: fields[5],
	}, nil
}
