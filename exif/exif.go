// Package exif patches the orientation tag of Exif blocks stored in HEIF
// files.
package exif

import (
	"encoding/binary"

	"github.com/tetsuo/heif/heiferr"
)

const tagOrientation = 0x0112

// TIFFHeaderOffset returns the offset of the TIFF header in a HEIF Exif
// item, which starts with a 4-byte big-endian offset to it.
func TIFFHeaderOffset(data []byte) (int, error) {
	if len(data) < 4 {
		return 0, heiferr.New(heiferr.InvalidInput, heiferr.EndOfData, "exif: missing header offset")
	}
	off := uint64(binary.BigEndian.Uint32(data)) + 4
	if off+8 > uint64(len(data)) {
		return 0, heiferr.New(heiferr.InvalidInput, heiferr.EndOfData, "exif: header offset beyond data")
	}
	return int(off), nil
}

// findOrientation returns the absolute offset of the orientation value in
// tiff and its byte order.
func findOrientation(tiff []byte) (int, binary.ByteOrder, bool) {
	if len(tiff) < 8 {
		return 0, nil, false
	}
	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, nil, false
	}
	if order.Uint16(tiff[2:]) != 42 {
		return 0, nil, false
	}
	ifd := uint64(order.Uint32(tiff[4:]))
	if ifd+2 > uint64(len(tiff)) {
		return 0, nil, false
	}
	n := int(order.Uint16(tiff[ifd:]))
	for i := 0; i < n; i++ {
		entry := ifd + 2 + uint64(i)*12
		if entry+12 > uint64(len(tiff)) {
			return 0, nil, false
		}
		if order.Uint16(tiff[entry:]) != tagOrientation {
			continue
		}
		// SHORT, count 1: the value sits in the first two bytes of the value field.
		if order.Uint16(tiff[entry+2:]) != 3 || order.Uint32(tiff[entry+4:]) != 1 {
			return 0, nil, false
		}
		return int(entry + 8), order, true
	}
	return 0, nil, false
}

// Orientation returns the orientation stored in a HEIF Exif item.
func Orientation(data []byte) (int, bool) {
	off, err := TIFFHeaderOffset(data)
	if err != nil {
		return 0, false
	}
	pos, order, ok := findOrientation(data[off:])
	if !ok {
		return 0, false
	}
	return int(order.Uint16(data[off+pos:])), true
}

// SetOrientation overwrites the orientation of a HEIF Exif item in place. It
// reports false when the item has no orientation tag.
func SetOrientation(data []byte, orientation uint16) bool {
	off, err := TIFFHeaderOffset(data)
	if err != nil {
		return false
	}
	pos, order, ok := findOrientation(data[off:])
	if !ok {
		return false
	}
	order.PutUint16(data[off+pos:], orientation)
	return true
}
