package ownmapimg

import (
	"io"

	"github.com/jamesrr39/goutil/errorsx"
)

const (
	max3ByteValue = 0xffffff
)

// SectionWriter builds one section of a tile in memory.
// Writes go to the cursor position, which normally sits at the end of the section.
// SetPosition moves the cursor back to overwrite bytes that were reserved earlier.
type SectionWriter struct {
	name    string
	buf     []byte
	pos     int
	patches []*patchRequest
}

// PatchResolver produces the value of a deferred 3-byte field.
// ok is false if the value does not exist; the field is then left as it is.
type PatchResolver func() (value uint32, ok bool, err errorsx.Error)

type patchRequest struct {
	position int
	resolve  PatchResolver
}

func NewSectionWriter(name string) *SectionWriter {
	return &SectionWriter{name: name}
}

func (w *SectionWriter) Name() string {
	return w.name
}

func (w *SectionWriter) Position() int {
	return w.pos
}

// SetPosition moves the cursor. It cannot move past the end of what has been written.
func (w *SectionWriter) SetPosition(pos int) errorsx.Error {
	if pos < 0 || pos > len(w.buf) {
		return errorsx.Errorf("position %d is outside of section %q (length %d)", pos, w.name, len(w.buf))
	}

	w.pos = pos
	return nil
}

// SeekToEnd moves the cursor back to the append position
func (w *SectionWriter) SeekToEnd() {
	w.pos = len(w.buf)
}

func (w *SectionWriter) Len() int {
	return len(w.buf)
}

func (w *SectionWriter) Bytes() []byte {
	return w.buf
}

func (w *SectionWriter) write(b ...byte) {
	end := w.pos + len(b)
	if end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	copy(w.buf[w.pos:end], b)
	w.pos = end
}

func (w *SectionWriter) Put(b byte) {
	w.write(b)
}

func (w *SectionWriter) PutBytes(b []byte) {
	w.write(b...)
}

// PutChar writes a 2-byte little endian value
func (w *SectionWriter) PutChar(v uint16) {
	w.write(byte(v), byte(v>>8))
}

// Put3 writes a 3-byte little endian value
func (w *SectionWriter) Put3(v uint32) errorsx.Error {
	if v > max3ByteValue {
		return errorsx.Errorf("value 0x%x does not fit in 3 bytes (section %q, position %d)", v, w.name, w.pos)
	}

	w.write(byte(v), byte(v>>8), byte(v>>16))
	return nil
}

// PutSigned3 writes a signed value as a 3-byte two's complement little endian value
func (w *SectionWriter) PutSigned3(v int32) errorsx.Error {
	if v < -(1<<23) || v >= 1<<23 {
		return errorsx.Errorf("value %d does not fit in 3 signed bytes (section %q, position %d)", v, w.name, w.pos)
	}

	return w.Put3(uint32(v) & max3ByteValue)
}

// RequestPatch3 registers a 3-byte field at position whose value will be written by ApplyPatches.
// The field must already have been reserved.
func (w *SectionWriter) RequestPatch3(position int, resolve PatchResolver) errorsx.Error {
	if position < 0 || position+3 > len(w.buf) {
		return errorsx.Errorf("patch position %d has not been reserved in section %q (length %d)", position, w.name, len(w.buf))
	}

	w.patches = append(w.patches, &patchRequest{position, resolve})
	return nil
}

// ApplyPatches resolves all requested patches and writes their values.
// It returns how many patches were written and how many had no value.
// The cursor is returned to the end of the section afterwards.
func (w *SectionWriter) ApplyPatches() (applied int, unresolved int, err errorsx.Error) {
	defer w.SeekToEnd()

	for _, patch := range w.patches {
		value, ok, err := patch.resolve()
		if err != nil {
			return applied, unresolved, errorsx.Wrap(err, "section", w.name, "position", patch.position)
		}

		if !ok {
			unresolved++
			continue
		}

		w.pos = patch.position
		err = w.Put3(value)
		if err != nil {
			return applied, unresolved, errorsx.Wrap(err)
		}
		applied++
	}

	w.patches = nil
	return applied, unresolved, nil
}

func (w *SectionWriter) WriteTo(writer io.Writer) (int64, error) {
	n, err := writer.Write(w.buf)
	return int64(n), err
}
