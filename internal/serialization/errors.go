package serialization

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// MaxRank bounds the rank accepted on load.
const MaxRank = 64

// FormatError describes malformed input. It matches
// tensor.ErrSerializationFormat with errors.Is.
type FormatError struct {
	Field   string // Part of the encoding, e.g. "kind", "rank", "payload".
	Offset  int64  // Byte offset where the problem was found.
	Details string // Additional details.
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s at byte %d: %s", tensor.ErrSerializationFormat, e.Field, e.Offset, e.Details)
}

// Unwrap returns tensor.ErrSerializationFormat.
func (e *FormatError) Unwrap() error {
	return tensor.ErrSerializationFormat
}

func formatErrorf(field string, offset int64, format string, args ...any) error {
	return &FormatError{Field: field, Offset: offset, Details: fmt.Sprintf(format, args...)}
}
