// Package pdftext turns bundled PDF documents into ordered text runs.
package pdftext

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// Extractor returns the text runs of a PDF in page order.
type Extractor interface {
	ExtractLines(ctx context.Context, pdfPath string) ([]string, error)
}

// PdfToText extracts text with the pdftotext CLI.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractLines runs pdftotext on the file and returns its non-empty lines.
func (p *PdfToText) ExtractLines(ctx context.Context, pdfPath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-enc", "UTF-8", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "pdftext: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}
	return SplitLines(stdout.String()), nil
}

// SplitLines splits extracted text into trimmed, non-empty lines. Form feeds
// between pages count as line breaks.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\f", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Static serves fixed lines regardless of path.
type Static []string

// ExtractLines implements Extractor.
func (s Static) ExtractLines(_ context.Context, _ string) ([]string, error) {
	return append([]string(nil), s...), nil
}
