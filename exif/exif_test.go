package exif

import (
	"encoding/binary"
	"testing"
)

// heifExif builds an Exif item with a single-entry IFD0 holding orientation.
func heifExif(order binary.ByteOrder, orientation uint16) []byte {
	tiff := make([]byte, 8+2+12+4)
	if order == binary.LittleEndian {
		copy(tiff, "II")
	} else {
		copy(tiff, "MM")
	}
	order.PutUint16(tiff[2:], 42)
	order.PutUint32(tiff[4:], 8)
	order.PutUint16(tiff[8:], 1)
	order.PutUint16(tiff[10:], tagOrientation)
	order.PutUint16(tiff[12:], 3)
	order.PutUint32(tiff[14:], 1)
	order.PutUint16(tiff[18:], orientation)

	// 4-byte offset, then the "Exif\0\0" marker, then TIFF.
	data := []byte{0, 0, 0, 6, 'E', 'x', 'i', 'f', 0, 0}
	return append(data, tiff...)
}

func TestOrientation(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		data := heifExif(order, 6)
		got, ok := Orientation(data)
		if !ok || got != 6 {
			t.Fatalf("%v: Orientation = %d, %v", order, got, ok)
		}
		if !SetOrientation(data, 1) {
			t.Fatalf("%v: SetOrientation failed", order)
		}
		if got, _ := Orientation(data); got != 1 {
			t.Errorf("%v: after patch = %d", order, got)
		}
	}
}

func TestOrientationMissing(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"offset beyond data", []byte{0, 0, 1, 0, 'x'}},
		{"bad byte order", append([]byte{0, 0, 0, 0}, "XX*\x00\x08\x00\x00\x00"...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := Orientation(tt.data); ok {
				t.Error("found orientation")
			}
			if SetOrientation(tt.data, 1) {
				t.Error("patched orientation")
			}
		})
	}
}
