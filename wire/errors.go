package wire

import "fmt"

// FormatError indicates a malformed message: bad magic, unsupported
// version, an invalid descriptor, or an unsorted timestamp column.
// Fatal for the request; a producer/consumer contract mismatch.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("wire: format error: %s", e.Reason)
}

// TruncatedError indicates declared lengths exceed the actual payload.
type TruncatedError struct {
	Declared int
	Actual   int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("wire: truncated data: declared %d bytes, have %d", e.Declared, e.Actual)
}

// SchemaError indicates a requested column is absent from the message.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("wire: schema error: column %q not present", e.Column)
}
