package heif

import (
	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/pixels"
)

// --- hvcC ---

// HvcCArray groups the NAL units of one type.
type HvcCArray struct {
	Completeness bool
	NALType      uint8
	Units        [][]byte
}

// HvcCBox is the HEVC decoder configuration. Reserved bits are written as
// ones.
type HvcCBox struct {
	BoxHeader
	ConfigurationVersion             uint8
	GeneralProfileSpace              uint8
	GeneralTierFlag                  bool
	GeneralProfileIDC                uint8
	GeneralProfileCompatibilityFlags uint32
	GeneralConstraintIndicatorFlags  uint64
	GeneralLevelIDC                  uint8
	MinSpatialSegmentationIDC        uint16
	ParallelismType                  uint8
	ChromaFormat                     uint8
	BitDepthLuma                     uint8
	BitDepthChroma                   uint8
	AvgFrameRate                     uint16
	ConstantFrameRate                uint8
	NumTemporalLayers                uint8
	TemporalIDNested                 bool
	LengthSizeMinusOne               uint8
	Arrays                           []HvcCArray
}

func (b *HvcCBox) parse(r *Range, _ *SecurityLimits) error {
	data := r.ReadRest()
	if err := r.Err(); err != nil {
		return err
	}
	br := NewBitReader(data)
	b.ConfigurationVersion = uint8(br.Bits(8))
	b.GeneralProfileSpace = uint8(br.Bits(2))
	b.GeneralTierFlag = br.Flag()
	b.GeneralProfileIDC = uint8(br.Bits(5))
	b.GeneralProfileCompatibilityFlags = uint32(br.Bits(32))
	b.GeneralConstraintIndicatorFlags = br.Bits(48)
	b.GeneralLevelIDC = uint8(br.Bits(8))
	br.Skip(4)
	b.MinSpatialSegmentationIDC = uint16(br.Bits(12))
	br.Skip(6)
	b.ParallelismType = uint8(br.Bits(2))
	br.Skip(6)
	b.ChromaFormat = uint8(br.Bits(2))
	br.Skip(5)
	b.BitDepthLuma = uint8(br.Bits(3)) + 8
	br.Skip(5)
	b.BitDepthChroma = uint8(br.Bits(3)) + 8
	b.AvgFrameRate = uint16(br.Bits(16))
	b.ConstantFrameRate = uint8(br.Bits(2))
	b.NumTemporalLayers = uint8(br.Bits(3))
	b.TemporalIDNested = br.Flag()
	b.LengthSizeMinusOne = uint8(br.Bits(2))

	n := int(br.Bits(8))
	b.Arrays = make([]HvcCArray, 0, n)
	for range n {
		var a HvcCArray
		a.Completeness = br.Flag()
		br.Skip(1)
		a.NALType = uint8(br.Bits(6))
		units := int(br.Bits(16))
		for range units {
			size := int(br.Bits(16))
			a.Units = append(a.Units, br.ReadBytes(size))
		}
		if br.Err() != nil {
			break
		}
		b.Arrays = append(b.Arrays, a)
	}
	if err := br.Err(); err != nil {
		return heiferr.Wrap(heiferr.InvalidInput, heiferr.NoHvcCBox, err, "heif: truncated hvcC")
	}
	return nil
}

func (b *HvcCBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	w.Write8(b.ConfigurationVersion)
	w.Write8(b.GeneralProfileSpace<<6 | bit(b.GeneralTierFlag)<<5 | b.GeneralProfileIDC&0x1F)
	w.Write32(b.GeneralProfileCompatibilityFlags)
	w.WriteUint(6, b.GeneralConstraintIndicatorFlags)
	w.Write8(b.GeneralLevelIDC)
	w.Write16(0xF000 | b.MinSpatialSegmentationIDC&0x0FFF)
	w.Write8(0xFC | b.ParallelismType&3)
	w.Write8(0xFC | b.ChromaFormat&3)
	w.Write8(0xF8 | (b.BitDepthLuma-8)&7)
	w.Write8(0xF8 | (b.BitDepthChroma-8)&7)
	w.Write16(b.AvgFrameRate)
	w.Write8(b.ConstantFrameRate<<6 | (b.NumTemporalLayers&7)<<3 | bit(b.TemporalIDNested)<<2 | b.LengthSizeMinusOne&3)
	w.Write8(uint8(len(b.Arrays)))
	for _, a := range b.Arrays {
		w.Write8(bit(a.Completeness)<<7 | a.NALType&0x3F)
		w.Write16(uint16(len(a.Units)))
		for _, u := range a.Units {
			w.Write16(uint16(len(u)))
			w.WriteBytes(u)
		}
	}
	w.EndBox()
	return nil
}

func bit(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

func (b *HvcCBox) dump(d *dumper) {
	b.dumpHeader(d)
	d.field("configuration_version", "%d", b.ConfigurationVersion)
	d.field("general_profile_idc", "%d", b.GeneralProfileIDC)
	d.field("general_level_idc", "%d", b.GeneralLevelIDC)
	d.field("chroma_format", "%d", b.ChromaFormat)
	d.field("bit_depth_luma", "%d", b.BitDepthLuma)
	d.field("bit_depth_chroma", "%d", b.BitDepthChroma)
	for _, a := range b.Arrays {
		d.field("NAL array", "type=%d units=%d", a.NALType, len(a.Units))
	}
}

// Chroma returns the chroma format of the coded image.
func (b *HvcCBox) Chroma() pixels.Chroma {
	return chromaFromFormat(b.ChromaFormat)
}

func chromaFromFormat(f uint8) pixels.Chroma {
	switch f {
	case 0:
		return pixels.ChromaMonochrome
	case 1:
		return pixels.Chroma420
	case 2:
		return pixels.Chroma422
	case 3:
		return pixels.Chroma444
	}
	return pixels.ChromaUndefined
}

// HeaderNALs returns the parameter set NAL units, each with a 4-byte length
// prefix.
func (b *HvcCBox) HeaderNALs() []byte {
	var out []byte
	for _, a := range b.Arrays {
		for _, u := range a.Units {
			out = be.AppendUint32(out, uint32(len(u)))
			out = append(out, u...)
		}
	}
	return out
}

// --- av1C ---

// Av1CBox is the AV1 codec configuration.
type Av1CBox struct {
	BoxHeader
	ConfigVersion                    uint8
	SeqProfile                       uint8
	SeqLevelIdx0                     uint8
	SeqTier0                         bool
	HighBitdepth                     bool
	TwelveBit                        bool
	Monochrome                       bool
	ChromaSubsamplingX               bool
	ChromaSubsamplingY               bool
	ChromaSamplePosition             uint8
	InitialPresentationDelayPresent  bool
	InitialPresentationDelayMinusOne uint8
	ConfigOBUs                       []byte
}

func (b *Av1CBox) parse(r *Range, _ *SecurityLimits) error {
	v := r.Read8()
	if err := r.Err(); err != nil {
		return err
	}
	if v&0x80 == 0 {
		return heiferr.New(heiferr.InvalidInput, heiferr.NoAv1CBox, "heif: av1C marker bit not set")
	}
	b.ConfigVersion = v & 0x7F
	v = r.Read8()
	b.SeqProfile, b.SeqLevelIdx0 = v>>5, v&0x1F
	v = r.Read8()
	b.SeqTier0 = v&0x80 != 0
	b.HighBitdepth = v&0x40 != 0
	b.TwelveBit = v&0x20 != 0
	b.Monochrome = v&0x10 != 0
	b.ChromaSubsamplingX = v&0x08 != 0
	b.ChromaSubsamplingY = v&0x04 != 0
	b.ChromaSamplePosition = v & 3
	v = r.Read8()
	b.InitialPresentationDelayPresent = v&0x10 != 0
	b.InitialPresentationDelayMinusOne = v & 0x0F
	b.ConfigOBUs = r.ReadRest()
	return r.Err()
}

func (b *Av1CBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	w.Write8(0x80 | b.ConfigVersion&0x7F)
	w.Write8(b.SeqProfile<<5 | b.SeqLevelIdx0&0x1F)
	w.Write8(bit(b.SeqTier0)<<7 | bit(b.HighBitdepth)<<6 | bit(b.TwelveBit)<<5 | bit(b.Monochrome)<<4 |
		bit(b.ChromaSubsamplingX)<<3 | bit(b.ChromaSubsamplingY)<<2 | b.ChromaSamplePosition&3)
	w.Write8(bit(b.InitialPresentationDelayPresent)<<4 | b.InitialPresentationDelayMinusOne&0x0F)
	w.WriteBytes(b.ConfigOBUs)
	w.EndBox()
	return nil
}

func (b *Av1CBox) dump(d *dumper) {
	b.dumpHeader(d)
	d.field("seq_profile", "%d", b.SeqProfile)
	d.field("seq_level_idx_0", "%d", b.SeqLevelIdx0)
	d.field("bit depth", "%d", b.BitDepth())
	d.field("chroma", "%v", b.Chroma())
	d.field("config OBUs", "%d bytes", len(b.ConfigOBUs))
}

// BitDepth returns the luma bit depth.
func (b *Av1CBox) BitDepth() int {
	switch {
	case b.HighBitdepth && b.TwelveBit:
		return 12
	case b.HighBitdepth:
		return 10
	}
	return 8
}

// Chroma returns the chroma format of the coded image.
func (b *Av1CBox) Chroma() pixels.Chroma {
	switch {
	case b.Monochrome:
		return pixels.ChromaMonochrome
	case b.ChromaSubsamplingX && b.ChromaSubsamplingY:
		return pixels.Chroma420
	case b.ChromaSubsamplingX:
		return pixels.Chroma422
	}
	return pixels.Chroma444
}
