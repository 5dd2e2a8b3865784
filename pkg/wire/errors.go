package wire

import "errors"

var (
	// ErrUnexpectedEOF is returned when a declared length exceeds the
	// remaining input.
	ErrUnexpectedEOF = errors.New("wire: unexpected end of input")

	// ErrTrailingBytes is returned when input remains after a payload.
	ErrTrailingBytes = errors.New("wire: trailing bytes after payload")

	// ErrFieldTooLong is returned when a string does not fit its 1-byte
	// length prefix.
	ErrFieldTooLong = errors.New("wire: field too long")

	// ErrListTooLong is returned when a list does not fit its 1-byte count.
	ErrListTooLong = errors.New("wire: list too long")

	// ErrInvalidBool is returned when a boolean byte is neither 0 nor 1.
	ErrInvalidBool = errors.New("wire: invalid boolean")

	// ErrInvalidUTF8 is returned when a name contains invalid UTF-8.
	ErrInvalidUTF8 = errors.New("wire: invalid UTF-8 string")

	// ErrUnknownType is returned for transaction types this package does
	// not encode.
	ErrUnknownType = errors.New("wire: unknown transaction type")
)
