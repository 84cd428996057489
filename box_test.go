package heif

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/pixels"
)

// mkbox builds a compact box with the concatenated body parts.
func mkbox(typ string, body ...[]byte) []byte {
	var b []byte
	for _, p := range body {
		b = append(b, p...)
	}
	out := be.AppendUint32(nil, uint32(8+len(b)))
	out = append(out, typ...)
	return append(out, b...)
}

// mkfull builds a full box.
func mkfull(typ string, version uint8, flags uint32, body ...[]byte) []byte {
	vf := be.AppendUint32(nil, uint32(version)<<24|flags)
	return mkbox(typ, append([][]byte{vf}, body...)...)
}

func parseOne(t *testing.T, data []byte) Box {
	t.Helper()
	r := NewRange(data)
	b, err := ParseBox(r, nil)
	if err != nil {
		t.Fatalf("ParseBox: %v", err)
	}
	if !r.EOF() {
		t.Fatalf("%d bytes left after box", r.Remaining())
	}
	return b
}

func TestParseRewrite(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		check func(t *testing.T, b Box)
	}{
		{
			name: "ftyp",
			data: mkbox("ftyp", []byte("heic\x00\x00\x00\x00mif1heic")),
			check: func(t *testing.T, b Box) {
				f := b.(*FtypBox)
				if f.MajorBrand != BrandHeic || !f.HasBrand(BrandMif1) || f.HasBrand(BrandAvif) {
					t.Errorf("brands = %v %v", f.MajorBrand, f.CompatibleBrands)
				}
			},
		},
		{
			name: "iloc v1 idat item",
			data: mkfull("iloc", 1, 0, []byte{
				0x44, 0x00, // offset 4, length 4, base 0, index 0
				0x00, 0x01, // one item
				0x00, 0x07, 0x00, 0x01, 0x00, 0x00, // id 7, method 1, dref 0
				0x00, 0x01, // one extent
				0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x05,
			}),
			check: func(t *testing.T, b Box) {
				it := b.(*IlocBox).Item(7)
				if it == nil || it.ConstructionMethod != ConstructionIdatOffset {
					t.Fatalf("item = %+v", it)
				}
				if diff := cmp.Diff([]IlocExtent{{Offset: 2, Length: 5}}, it.Extents); diff != "" {
					t.Errorf("extents (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "infe v2",
			data: mkfull("infe", 2, 1, []byte{0x00, 0x03, 0x00, 0x00}, []byte("hvc1"), []byte("img\x00")),
			check: func(t *testing.T, b Box) {
				e := b.(*InfeBox)
				if e.ItemID != 3 || e.ItemType != ItemTypeHvc1 || e.Name != "img" || !e.Hidden() {
					t.Errorf("infe = %+v", e)
				}
			},
		},
		{
			name: "infe mime",
			data: mkfull("infe", 2, 0, []byte{0x00, 0x04, 0x00, 0x00}, []byte("mime"), []byte("\x00application/rdf+xml\x00")),
			check: func(t *testing.T, b Box) {
				if ct := b.(*InfeBox).ContentType; ct != "application/rdf+xml" {
					t.Errorf("content type = %q", ct)
				}
			},
		},
		{
			name: "ipma",
			data: mkfull("ipma", 0, 0, []byte{0, 0, 0, 1, 0x00, 0x01, 2, 0x81, 0x02}),
			check: func(t *testing.T, b Box) {
				want := []PropertyAssociation{{Essential: true, Index: 1}, {Index: 2}}
				if diff := cmp.Diff(want, b.(*IpmaBox).Entry(1).Associations); diff != "" {
					t.Errorf("associations (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "iref",
			data: mkfull("iref", 0, 0, mkbox("thmb", []byte{0, 2, 0, 1, 0, 1}), mkbox("cdsc", []byte{0, 3, 0, 1, 0, 1})),
			check: func(t *testing.T, b Box) {
				ir := b.(*IrefBox)
				if diff := cmp.Diff([]uint32{1}, ir.From(2, RefThumbnail)); diff != "" {
					t.Errorf("thmb (-want +got):\n%s", diff)
				}
				if ir.From(3, RefThumbnail) != nil {
					t.Error("unexpected thmb from item 3")
				}
			},
		},
		{
			name: "irot",
			data: mkbox("irot", []byte{3}),
			check: func(t *testing.T, b Box) {
				if r := b.(*IrotBox).Rotation; r != 270 {
					t.Errorf("rotation = %d", r)
				}
			},
		},
		{
			name: "colr nclx",
			data: mkbox("colr", []byte("nclx"), []byte{0, 9, 0, 16, 0, 9, 0x80}),
			check: func(t *testing.T, b Box) {
				want := &pixels.NCLX{ColourPrimaries: 9, TransferCharacteristics: 16, MatrixCoefficients: 9, FullRange: true}
				if diff := cmp.Diff(want, b.(*ColrBox).NCLX); diff != "" {
					t.Errorf("nclx (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "colr icc",
			data: mkbox("colr", []byte("prof"), []byte{1, 2, 3}),
			check: func(t *testing.T, b Box) {
				if !bytes.Equal(b.(*ColrBox).Profile, []byte{1, 2, 3}) {
					t.Error("profile not kept")
				}
			},
		},
		{
			name: "auxC",
			data: mkfull("auxC", 0, 0, []byte(AuxTypeAlphaHEVC+"\x00")),
			check: func(t *testing.T, b Box) {
				if !b.(*AuxCBox).IsAlpha() {
					t.Error("not alpha")
				}
			},
		},
		{
			name: "av1C",
			data: mkbox("av1C", []byte{0x81, 0x08, 0x4C, 0x00}),
			check: func(t *testing.T, b Box) {
				c := b.(*Av1CBox)
				if c.BitDepth() != 10 || c.Chroma() != pixels.Chroma420 {
					t.Errorf("depth %d chroma %v", c.BitDepth(), c.Chroma())
				}
				if got := av1CodecString(c); got != "av01.0.08M.10" {
					t.Errorf("codec = %q", got)
				}
			},
		},
		{
			name: "unknown",
			data: mkbox("free", []byte{1, 2, 3}),
			check: func(t *testing.T, b Box) {
				if raw, ok := b.(*RawBox); !ok || !bytes.Equal(raw.Data, []byte{1, 2, 3}) {
					t.Errorf("box = %#v", b)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := parseOne(t, tt.data)
			tt.check(t, b)
			out, err := Marshal(b)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(out, tt.data) {
				t.Errorf("rewrite:\n got % x\nwant % x", out, tt.data)
			}
		})
	}
}

func TestUUIDBox(t *testing.T) {
	id := uuid.MustParse("b6c4e5b1-a15e-4a0e-8e57-6d2f3c9c5a11")
	data := mkbox("uuid", id[:], []byte{0xAB})
	b := parseOne(t, data)
	if b.Header().UserType != id {
		t.Errorf("user type = %v", b.Header().UserType)
	}
	if b.Header().HeaderSize != 24 {
		t.Errorf("header size = %d", b.Header().HeaderSize)
	}
	out, err := Marshal(b)
	if err != nil || !bytes.Equal(out, data) {
		t.Errorf("rewrite = % x, %v", out, err)
	}
}

func TestHvcCBox(t *testing.T) {
	c := &HvcCBox{
		BoxHeader:                        BoxHeader{Type: TypeHvcC},
		ConfigurationVersion:             1,
		GeneralProfileIDC:                1,
		GeneralProfileCompatibilityFlags: 0x60000000,
		GeneralConstraintIndicatorFlags:  0xB00000000000,
		GeneralLevelIDC:                  93,
		ChromaFormat:                     1,
		BitDepthLuma:                     8,
		BitDepthChroma:                   8,
		NumTemporalLayers:                1,
		TemporalIDNested:                 true,
		LengthSizeMinusOne:               3,
		Arrays: []HvcCArray{
			{Completeness: true, NALType: 32, Units: [][]byte{{0x40, 0x01}}},
			{Completeness: true, NALType: 33, Units: [][]byte{{0x42, 0x01, 0x01}}},
		},
	}
	data, err := Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	// Reserved bits are set.
	if diff := cmp.Diff([]byte{0xF0, 0x00, 0xFC, 0xFD, 0xF8, 0xF8}, data[8+13:8+19]); diff != "" {
		t.Errorf("reserved bits (-want +got):\n%s", diff)
	}
	got := parseOne(t, data).(*HvcCBox)
	if !Equal(c, got) {
		t.Error("reparsed hvcC differs")
	}
	if got.Chroma() != pixels.Chroma420 {
		t.Errorf("chroma = %v", got.Chroma())
	}
	want := []byte{0, 0, 0, 2, 0x40, 0x01, 0, 0, 0, 3, 0x42, 0x01, 0x01}
	if !bytes.Equal(got.HeaderNALs(), want) {
		t.Errorf("header NALs = % x", got.HeaderNALs())
	}
	if s := hevcCodecString(got); s != "hvc1.1.6.L93.B0" {
		t.Errorf("codec = %q", s)
	}
}

func TestEqual(t *testing.T) {
	a := &IspeBox{BoxHeader: BoxHeader{Type: TypeIspe}, Width: 1, Height: 2}
	b := &IspeBox{BoxHeader: BoxHeader{Type: TypeIspe}, Width: 1, Height: 2}
	c := &IspeBox{BoxHeader: BoxHeader{Type: TypeIspe}, Width: 2, Height: 2}
	var nilIspe *IspeBox

	tests := []struct {
		name string
		a, b Box
		want bool
	}{
		{"same content", a, b, true},
		{"different content", a, c, false},
		{"different types", a, &IrotBox{BoxHeader: BoxHeader{Type: TypeIrot}}, false},
		{"nil and box", nil, a, false},
		{"both nil", nil, nil, false},
		{"typed nil", nilIspe, a, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindOrAppend(t *testing.T) {
	ipco := &IpcoBox{BoxHeader: BoxHeader{Type: TypeIpco}}
	ispe := func(w uint32) Box { return &IspeBox{BoxHeader: BoxHeader{Type: TypeIspe}, Width: w, Height: 1} }

	got := []int{
		ipco.FindOrAppend(ispe(10)),
		ipco.FindOrAppend(ispe(10)),
		ipco.FindOrAppend(ispe(20)),
		ipco.FindOrAppend(ispe(10)),
	}
	if diff := cmp.Diff([]int{0, 0, 1, 0}, got); diff != "" {
		t.Errorf("indices (-want +got):\n%s", diff)
	}
	if len(ipco.Children) != 2 {
		t.Errorf("children = %d", len(ipco.Children))
	}
}

func TestParseBoxErrors(t *testing.T) {
	nested := mkbox("ipco")
	for range MaxBoxNestingLevel + 5 {
		nested = mkbox("ipco", nested)
	}

	tests := []struct {
		name   string
		data   []byte
		target error
	}{
		{"depth bomb", nested, heiferr.ErrSecurityLimitExceeded},
		{"child larger than parent", mkbox("iprp", []byte{0, 0, 0, 64, 'i', 'p', 'c', 'o'}), &heiferr.Error{Code: heiferr.InvalidInput, SubCode: heiferr.InvalidBoxSize}},
		{"size below header", []byte{0, 0, 0, 4, 'f', 'r', 'e', 'e'}, &heiferr.Error{Code: heiferr.InvalidInput, SubCode: heiferr.InvalidBoxSize}},
		{"truncated header", []byte{0, 0, 0}, heiferr.ErrEndOfData},
		{"truncated ispe", mkfull("ispe", 0, 0, []byte{0, 0, 1}), heiferr.ErrEndOfData},
		{"av1C marker", mkbox("av1C", []byte{0x01, 0, 0, 0}), &heiferr.Error{Code: heiferr.InvalidInput, SubCode: heiferr.NoAv1CBox}},
		{"clap zero denominator", mkbox("clap", make([]byte, 32)), &heiferr.Error{Code: heiferr.InvalidInput}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBox(NewRange(tt.data), nil)
			if !errors.Is(err, tt.target) {
				t.Fatalf("err = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestChildLimit(t *testing.T) {
	data := mkbox("ipco", mkbox("free"), mkbox("free"), mkbox("free"))
	limits := DefaultSecurityLimits()
	limits.MaxChildrenPerBox = 2
	_, err := ParseBox(NewRange(data), &limits)
	if !errors.Is(err, heiferr.ErrSecurityLimitExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestSizeZeroBox(t *testing.T) {
	data := []byte{0, 0, 0, 0, 'm', 'd', 'a', 't', 1, 2, 3, 4}
	b := parseOne(t, data)
	if b.Header().Size != 12 {
		t.Errorf("size = %d", b.Header().Size)
	}
	out, err := Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if be.Uint32(out) != 12 {
		t.Errorf("rewritten size = %d", be.Uint32(out))
	}
}

func TestDump(t *testing.T) {
	data := mkfull("meta", 0, 0,
		mkfull("hdlr", 0, 0, make([]byte, 4), []byte("pict"), make([]byte, 12), []byte("\x00")),
		mkbox("iprp", mkbox("ipco", mkfull("ispe", 0, 0, []byte{0, 0, 0, 64, 0, 0, 0, 48}))),
	)
	var sb strings.Builder
	if err := Dump(&sb, parseOne(t, data)); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"[meta]", "  [hdlr]", "    [ispe]", "image width: 64", "index: 1"} {
		if !strings.Contains(sb.String(), want) {
			t.Errorf("dump lacks %q:\n%s", want, sb.String())
		}
	}
}
