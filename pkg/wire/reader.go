package wire

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/backkem/txpermissions/pkg/ledger"
)

// Reader consumes payload fields from a byte slice.
// Every read checks the remaining length before touching the input.
type Reader struct {
	data []byte
	off  int
}

// NewReader creates a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Done returns ErrTrailingBytes if input remains.
func (r *Reader) Done() error {
	if r.Remaining() != 0 {
		return ErrTrailingBytes
	}
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if n > r.Remaining() {
		return nil, ErrUnexpectedEOF
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Uint8 reads a single byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Bool reads a strict 0/1 byte.
func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}

// String reads a 1-byte length prefix and that many UTF-8 bytes.
func (r *Reader) String() (string, error) {
	n, err := r.Uint8()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// Fixed copies exactly len(dst) bytes into dst.
func (r *Reader) Fixed(dst []byte) error {
	b, err := r.take(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// TypeKeys reads a counted list of (type, group) pairs.
// A zero count decodes to nil (absent), not to an empty slice.
func (r *Reader) TypeKeys() ([]ledger.TypeKey, error) {
	n, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if int(n)*8 > r.Remaining() {
		return nil, ErrUnexpectedEOF
	}
	keys := make([]ledger.TypeKey, n)
	for i := range keys {
		if keys[i].Type, err = r.Uint32(); err != nil {
			return nil, err
		}
		if keys[i].Group, err = r.Uint32(); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// Strings reads a counted list of length-prefixed strings.
// A zero count decodes to nil (absent).
func (r *Reader) Strings() ([]string, error) {
	n, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if int(n) > r.Remaining() {
		return nil, ErrUnexpectedEOF
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = r.String(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
