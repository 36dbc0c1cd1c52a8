package value

import "errors"

// Sentinel causes for value conversion failures. Match with errors.Is.
var (
	// ErrInvalidString marks a guest string that is not valid UTF-8.
	ErrInvalidString = errors.New("string is not valid utf-8")
	// ErrNulByte marks a host string with an interior NUL byte where the
	// guest requires a NUL-terminated string.
	ErrNulByte = errors.New("string contains an interior nul byte")
	// ErrUnexpectedType marks a value whose variant cannot be used where it
	// was supplied.
	ErrUnexpectedType = errors.New("unexpected value type")
)
