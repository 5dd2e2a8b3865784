package wire

import (
	"encoding/binary"
	"math"

	"github.com/backkem/txpermissions/pkg/ledger"
)

// Writer appends payload fields to a byte slice.
type Writer struct {
	buf []byte
}

// NewWriter creates a Writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// PutUint8 writes a single byte.
func (w *Writer) PutUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// PutUint32 writes a little-endian uint32.
func (w *Writer) PutUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// PutBool writes 1 for true, 0 for false.
func (w *Writer) PutBool(v bool) {
	if v {
		w.PutUint8(1)
		return
	}
	w.PutUint8(0)
}

// PutString writes a 1-byte length prefix followed by the string bytes.
func (w *Writer) PutString(s string) error {
	if len(s) > math.MaxUint8 {
		return ErrFieldTooLong
	}
	w.PutUint8(uint8(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// PutFixed writes raw bytes with no prefix.
func (w *Writer) PutFixed(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutTypeKeys writes a 1-byte count followed by (type, group) pairs.
// A nil or empty list writes a zero count.
func (w *Writer) PutTypeKeys(keys []ledger.TypeKey) error {
	if len(keys) > math.MaxUint8 {
		return ErrListTooLong
	}
	w.PutUint8(uint8(len(keys)))
	for _, k := range keys {
		w.PutUint32(k.Type)
		w.PutUint32(k.Group)
	}
	return nil
}

// PutStrings writes a 1-byte count followed by length-prefixed strings.
func (w *Writer) PutStrings(list []string) error {
	if len(list) > math.MaxUint8 {
		return ErrListTooLong
	}
	w.PutUint8(uint8(len(list)))
	for _, s := range list {
		if err := w.PutString(s); err != nil {
			return err
		}
	}
	return nil
}
