package rates

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex returns the lowercase hex SHA-256 digest of b, per spec §6's
// "SHA-256 hex (lowercase) over UTF-8 bytes" hash contract.
func Sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// NewEFLDocument builds an EFLDocument from PDF bytes (or rawText) plus the
// identity extractors. Two offers whose PDFs hash identically share the
// same EFLDocument identity, per spec §3.
func NewEFLDocument(pdfBytes []byte, rawText string) (EFLDocument, error) {
	if rawText == "" && len(pdfBytes) > 0 {
		extracted, err := ExtractPDFText(pdfBytes)
		if err != nil {
			return EFLDocument{}, err
		}
		rawText = extracted
	}

	identityBytes := pdfBytes
	if len(identityBytes) == 0 {
		identityBytes = []byte(rawText)
	}

	doc := EFLDocument{
		Sha256:  Sha256Hex(identityBytes),
		RawText: rawText,
	}
	if cert, ok := ExtractPUCTCertificate(rawText); ok {
		doc.RepPuctCertificate = cert
	}
	if ver, ok := ExtractEFLVersionCode(rawText); ok {
		doc.EflVersionCode = ver
	}
	return doc, nil
}
