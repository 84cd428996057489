// Package nal splits length-prefixed H.265 NAL unit streams and builds
// Annex-B bootstrap streams for external decoders.
package nal

import (
	"encoding/binary"

	codec "github.com/yapingcat/gomedia/go-codec"

	"github.com/tetsuo/heif/heiferr"
)

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// Type returns the H.265 NAL unit type of a unit.
func Type(unit []byte) codec.H265_NAL_TYPE {
	return codec.H265_NAL_TYPE((unit[0] >> 1) & 0x3F)
}

// Map holds the most recent NAL unit of each type.
//
// A later unit of the same type replaces an earlier one. Streams carrying
// several slices or parameter sets of one type keep only the last of them.
type Map struct {
	units map[codec.H265_NAL_TYPE][]byte
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{units: make(map[codec.H265_NAL_TYPE][]byte)}
}

// Parse ingests units, each prefixed with a 4-byte big-endian length.
func (m *Map) Parse(data []byte) error {
	if m.units == nil {
		m.units = make(map[codec.H265_NAL_TYPE][]byte)
	}
	for len(data) > 0 {
		if len(data) < 4 {
			return heiferr.New(heiferr.DecoderPluginError, heiferr.EndOfData, "nal: truncated length prefix")
		}
		size := binary.BigEndian.Uint32(data)
		data = data[4:]
		if uint64(size) > uint64(len(data)) {
			return heiferr.Newf(heiferr.DecoderPluginError, heiferr.EndOfData,
				"nal: unit of %d bytes exceeds remaining %d", size, len(data))
		}
		if size == 0 {
			continue
		}
		unit := data[:size]
		m.units[Type(unit)] = unit
		data = data[size:]
	}
	return nil
}

// Has reports whether a unit of type t was seen.
func (m *Map) Has(t codec.H265_NAL_TYPE) bool {
	_, ok := m.units[t]
	return ok
}

// Unit returns the unit of type t, or nil.
func (m *Map) Unit(t codec.H265_NAL_TYPE) []byte {
	return m.units[t]
}

// Len returns the number of distinct unit types held.
func (m *Map) Len() int { return len(m.units) }

// Clear drops all units.
func (m *Map) Clear() {
	clear(m.units)
}

// BuildAnnexB returns VPS, SPS, PPS and the IDR picture, each preceded by a
// start code. The returned slice has padding bytes of spare capacity. The map
// is cleared on success.
func (m *Map) BuildAnnexB(padding int) ([]byte, error) {
	if padding < 0 {
		return nil, heiferr.Newf(heiferr.UsageError, heiferr.InvalidParameterValue, "nal: negative padding %d", padding)
	}
	var units [][]byte
	for _, t := range []codec.H265_NAL_TYPE{codec.H265_NAL_VPS, codec.H265_NAL_SPS, codec.H265_NAL_PPS} {
		u, ok := m.units[t]
		if !ok {
			return nil, heiferr.Newf(heiferr.DecoderPluginError, heiferr.EndOfData, "nal: missing unit of type %d", t)
		}
		units = append(units, u)
	}

	idr, ok := m.units[codec.H265_NAL_SLICE_IDR_W_RADL]
	if !ok {
		idr, ok = m.units[codec.H265_NAL_SLICE_IDR_N_LP]
	}
	if !ok {
		return nil, heiferr.New(heiferr.DecoderPluginError, heiferr.EndOfData, "nal: missing IDR picture")
	}
	units = append(units, idr)

	size := 0
	for _, u := range units {
		size += len(startCode) + len(u)
	}
	out := make([]byte, 0, size+padding)
	for _, u := range units {
		out = append(out, startCode...)
		out = append(out, u...)
	}
	m.Clear()
	return out, nil
}
