package orchestrator

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrExtractionNotImplemented marks file types this build cannot yet turn
// into text. Binary document formats need a dedicated parser (PDF text
// layer extraction, OOXML unzip-and-read, etc.) that is out of scope here.
var ErrExtractionNotImplemented = errors.New("orchestrator: extraction not implemented for this file type")

// allowedExtensions is the upload whitelist of spec.md §4.5 step 1.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".txt":  true,
	".md":   true,
}

// IsAllowedExtension reports whether filename carries a whitelisted
// extension, matched case-insensitively.
func IsAllowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return allowedExtensions[ext]
}

// Extractor turns raw file bytes into plain text for chunking.
type Extractor interface {
	Extract(filename string, content []byte) (string, error)
}

// PlainTextExtractor passes txt/md content through unchanged and reports
// ErrExtractionNotImplemented for every other registered extension.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(filename string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".md":
		return string(content), nil
	case ".pdf", ".doc", ".docx", ".xls", ".xlsx":
		return "", ErrExtractionNotImplemented
	default:
		return "", ErrExtractionNotImplemented
	}
}
