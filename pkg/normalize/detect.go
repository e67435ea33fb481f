// Package normalize detects an upload's real format and converts it to PDF
// for downstream analysis.
package normalize

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format is a detected input format.
type Format string

const (
	FormatPDF     Format = "pdf"
	FormatJPEG    Format = "jpg"
	FormatPNG     Format = "png"
	FormatTIFF    Format = "tiff"
	FormatAI      Format = "ai"
	FormatPSD     Format = "psd"
	FormatUnknown Format = "unknown"
)

var (
	sigPDF      = []byte("%PDF-")
	sigJPEG     = []byte{0xFF, 0xD8, 0xFF}
	sigPNG      = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	sigTIFFLE   = []byte{0x49, 0x49, 0x2A, 0x00}
	sigTIFFBE   = []byte{0x4D, 0x4D, 0x00, 0x2A}
	sigPSD      = []byte("8BPS")
	sigGIF      = []byte("GIF8")
	sigBMP      = []byte("BM")
	sigRIFF     = []byte("RIFF") // webp container
)

var mimeFormats = map[string]Format{
	"application/pdf":             FormatPDF,
	"image/jpeg":                  FormatJPEG,
	"image/jpg":                   FormatJPEG,
	"image/png":                   FormatPNG,
	"image/tiff":                  FormatTIFF,
	"image/vnd.adobe.photoshop":   FormatPSD,
	"application/x-photoshop":     FormatPSD,
	"application/illustrator":     FormatAI,
	"application/postscript":      FormatAI,
	"image/gif":                   FormatUnknown,
	"image/bmp":                   FormatUnknown,
	"image/webp":                  FormatUnknown,
}

var extFormats = map[string]Format{
	".pdf":  FormatPDF,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".psd":  FormatPSD,
	".ai":   FormatAI,
	".gif":  FormatUnknown,
	".bmp":  FormatUnknown,
	".webp": FormatUnknown,
}

// Detect identifies the input format. Confidence order: magic bytes, then
// the declared MIME type, then the filename extension. Inputs nothing
// recognizes are treated as PDF and left to structural validation to
// reject; signatures of known-but-unsupported image formats map to
// FormatUnknown instead, so they blocker out early.
func Detect(data []byte, contentType, filename string) Format {
	if f, ok := detectMagic(data, filename); ok {
		return f
	}

	mime := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if f, ok := mimeFormats[mime]; ok {
		return f
	}

	if f, ok := extFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return f
	}

	return FormatPDF
}

func detectMagic(data []byte, filename string) (Format, bool) {
	switch {
	case bytes.HasPrefix(data, sigPDF):
		// Illustrator saves as PDF; only the extension tells them apart.
		if strings.EqualFold(filepath.Ext(filename), ".ai") {
			return FormatAI, true
		}
		return FormatPDF, true
	case bytes.HasPrefix(data, sigJPEG):
		return FormatJPEG, true
	case bytes.HasPrefix(data, sigPNG):
		return FormatPNG, true
	case bytes.HasPrefix(data, sigTIFFLE), bytes.HasPrefix(data, sigTIFFBE):
		return FormatTIFF, true
	case bytes.HasPrefix(data, sigPSD):
		return FormatPSD, true
	case bytes.HasPrefix(data, sigGIF), bytes.HasPrefix(data, sigBMP), bytes.HasPrefix(data, sigRIFF):
		return FormatUnknown, true
	}
	return "", false
}
