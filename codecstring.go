package heif

import (
	"math/bits"
	"strconv"
)

const hexChars = "0123456789ABCDEF"

// appendHex appends v in upper-case hex without leading zeros.
func appendHex(dst []byte, v uint64) []byte {
	if v == 0 {
		return append(dst, '0')
	}
	for shift := (bits.Len64(v) - 1) &^ 3; shift >= 0; shift -= 4 {
		dst = append(dst, hexChars[v>>uint(shift)&0x0f])
	}
	return dst
}

// hevcCodecString formats the hvc1 codecs parameter, e.g. "hvc1.1.6.L93.B0".
func hevcCodecString(c *HvcCBox) string {
	buf := make([]byte, 0, 32)
	buf = append(buf, "hvc1."...)
	if c.GeneralProfileSpace > 0 {
		buf = append(buf, 'A'+c.GeneralProfileSpace-1)
	}
	buf = strconv.AppendUint(buf, uint64(c.GeneralProfileIDC), 10)
	buf = append(buf, '.')
	buf = appendHex(buf, uint64(bits.Reverse32(c.GeneralProfileCompatibilityFlags)))
	buf = append(buf, '.')
	if c.GeneralTierFlag {
		buf = append(buf, 'H')
	} else {
		buf = append(buf, 'L')
	}
	buf = strconv.AppendUint(buf, uint64(c.GeneralLevelIDC), 10)

	// Six constraint bytes, trailing zero bytes omitted.
	var cb [6]byte
	n := 0
	for i := range cb {
		cb[i] = byte(c.GeneralConstraintIndicatorFlags >> (40 - 8*uint(i)))
		if cb[i] != 0 {
			n = i + 1
		}
	}
	for _, b := range cb[:n] {
		buf = append(buf, '.')
		buf = appendHex(buf, uint64(b))
	}
	return string(buf)
}

// av1CodecString formats the av01 codecs parameter, e.g. "av01.0.04M.08".
func av1CodecString(c *Av1CBox) string {
	buf := make([]byte, 0, 16)
	buf = append(buf, "av01."...)
	buf = strconv.AppendUint(buf, uint64(c.SeqProfile), 10)
	buf = append(buf, '.')
	if c.SeqLevelIdx0 < 10 {
		buf = append(buf, '0')
	}
	buf = strconv.AppendUint(buf, uint64(c.SeqLevelIdx0), 10)
	if c.SeqTier0 {
		buf = append(buf, 'H')
	} else {
		buf = append(buf, 'M')
	}
	buf = append(buf, '.')
	depth := c.BitDepth()
	if depth < 10 {
		buf = append(buf, '0')
	}
	buf = strconv.AppendInt(buf, int64(depth), 10)
	return string(buf)
}

// CodecString returns the RFC 6381 codecs parameter of the image, or an
// empty string when it has no codec configuration.
func (h *ImageHandle) CodecString() string {
	switch {
	case childOf[*HvcCBox](h.props) != nil:
		return hevcCodecString(childOf[*HvcCBox](h.props))
	case childOf[*Av1CBox](h.props) != nil:
		return av1CodecString(childOf[*Av1CBox](h.props))
	case h.Type == ItemTypeJpeg:
		return "jpeg"
	}
	return ""
}
