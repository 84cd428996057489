package heif

import (
	"bytes"
	"testing"
)

func TestWriterBoxSizes(t *testing.T) {
	w := NewWriter(nil)
	w.StartBox(TypeIprp)
	w.StartFullBox(TypeIspe, 0, 0)
	w.Write32(640)
	w.Write32(480)
	w.EndBox()
	w.EndBox()

	want := []byte{
		0, 0, 0, 28, 'i', 'p', 'r', 'p',
		0, 0, 0, 20, 'i', 's', 'p', 'e',
		0, 0, 0, 0,
		0, 0, 0x02, 0x80,
		0, 0, 0x01, 0xE0,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got % x\nwant % x", w.Bytes(), want)
	}
}

func TestWriterLargeSize(t *testing.T) {
	w := NewWriter(nil)
	w.startBox(&BoxHeader{Type: TypeMdat, largeSize: true})
	w.WriteBytes([]byte{1, 2, 3})
	w.EndBox()
	want := []byte{0, 0, 0, 1, 'm', 'd', 'a', 't', 0, 0, 0, 0, 0, 0, 0, 19, 1, 2, 3}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got % x\nwant % x", w.Bytes(), want)
	}
}

func TestWriterPatch(t *testing.T) {
	w := NewWriter(make([]byte, 16))
	if w.Pos() != 0 {
		t.Fatalf("pos = %d", w.Pos())
	}
	w.Write8(0xFF)
	pos := w.Reserve(3)
	w.WriteString("ab")
	w.WriteUint(0, 7)
	w.WriteUint(2, 0x1234)
	w.PatchUint(pos, 3, 0xABCDEF)
	want := []byte{0xFF, 0xAB, 0xCD, 0xEF, 'a', 'b', 0, 0x12, 0x34}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got % x\nwant % x", w.Bytes(), want)
	}
}
