package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// MaxFileBytes is the default per-file size ceiling. Exports larger than
// this are rejected outright rather than partially parsed.
const MaxFileBytes = 5 * 1024 * 1024

var (
	// ErrUnsupportedFormat indicates a file extension no parser handles.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrFileTooLarge indicates the file exceeds the size ceiling.
	ErrFileTooLarge = errors.New("file too large")
)

// Parse dispatches raw file bytes to the parser for the file's extension.
// Individual malformed lines or records are skipped; the whole file fails
// only on an unsupported extension or an oversized payload.
func Parse(data []byte, filename string) ([]Message, error) {
	return ParseWithLimit(data, filename, MaxFileBytes)
}

// ParseWithLimit is Parse with an explicit size ceiling in bytes.
func ParseWithLimit(data []byte, filename string, limit int64) ([]Message, error) {
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrFileTooLarge, filename, len(data), limit)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return ParseWhatsApp(data), nil
	case ".csv":
		return ParseCSV(data), nil
	case ".json":
		return ParseJSON(data), nil
	case ".xml":
		return ParseSMSBackup(data), nil
	default:
		return nil, fmt.Errorf("%w: %s (expected .txt, .csv, .json or .xml)", ErrUnsupportedFormat, filename)
	}
}
