package rates

import (
	"bytes"
	"fmt"
	"io"

	pdf "github.com/ledongthuc/pdf"
)

// ExtractPDFText converts EFL PDF bytes into plain text, for the case where
// the EFL fetch collaborator (spec §6) hands back pdfBytes rather than an
// already-extracted rawText. Grounded on the teacher's
// parser_kub_pdf.go/parser_cemc_pdf.go pdf.Open+GetPlainText sequence.
func ExtractPDFText(pdfBytes []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	rc, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return buf.String(), nil
}
