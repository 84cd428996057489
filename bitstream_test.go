package heif

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tetsuo/heif/heiferr"
)

func TestBitReaderFields(t *testing.T) {
	br := NewBitReader([]byte{0x7F, 0xF1, 0x41, 0x87, 0x8F})
	var got []uint64
	for _, n := range []int{8, 4, 4, 3, 3, 11} {
		got = append(got, br.Bits(n))
	}
	want := []uint64{0x7F, 0x0F, 0x01, 0x02, 0x00, 0x30F}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bits (-want +got):\n%s", diff)
	}
	if br.Err() != nil {
		t.Fatal(br.Err())
	}
	if br.Remaining() != 7 {
		t.Errorf("remaining = %d, want 7", br.Remaining())
	}
}

func TestBitReaderWide(t *testing.T) {
	br := NewBitReader([]byte{0x0F, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0})
	br.Skip(4)
	if v := br.Bits(64); v != 0xF123456789ABCDEF {
		t.Errorf("Bits(64) = %#x", v)
	}
	if v := br.Bits(4); v != 0 {
		t.Errorf("tail = %#x", v)
	}
	br.Bits(1)
	if !errors.Is(br.Err(), heiferr.ErrEndOfData) {
		t.Errorf("err = %v, want end of data", br.Err())
	}
}

func TestBitReaderUVLC(t *testing.T) {
	// 1 | 010 | 011 | 00100 | 0001000
	br := NewBitReader([]byte{0b10100110, 0b01000001, 0b00000000})
	var got []uint64
	for range 5 {
		got = append(got, br.UVLC())
	}
	want := []uint64{0, 1, 2, 3, 7}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("uvlc (-want +got):\n%s", diff)
	}
}

func TestBitReaderAlign(t *testing.T) {
	br := NewBitReader([]byte{0xA0, 0x01, 0x02})
	br.Bits(3)
	if br.ReadBytes(1); br.Err() == nil {
		t.Error("unaligned ReadBytes succeeded")
	}
	br = NewBitReader([]byte{0xA0, 0x01, 0x02})
	br.Bits(3)
	br.Align()
	if diff := cmp.Diff([]byte{0x01, 0x02}, br.ReadBytes(2)); diff != "" {
		t.Errorf("bytes (-want +got):\n%s", diff)
	}
}

func TestRangeReads(t *testing.T) {
	r := NewRange([]byte{
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06,
		0x07, 0x08, 0x09, 0x0A,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00,
		'h', 'i', 0,
		0xAA, 0xBB,
	})
	if v := r.Read8(); v != 0x01 {
		t.Errorf("Read8 = %#x", v)
	}
	if v := r.Read16(); v != 0x0203 {
		t.Errorf("Read16 = %#x", v)
	}
	if v := r.Read24(); v != 0x040506 {
		t.Errorf("Read24 = %#x", v)
	}
	if v := r.Read32(); v != 0x0708090A {
		t.Errorf("Read32 = %#x", v)
	}
	if v := r.Read64(); v != 0x100 {
		t.Errorf("Read64 = %#x", v)
	}
	if s := r.ReadString(); s != "hi" {
		t.Errorf("ReadString = %q", s)
	}
	if v := r.ReadUint(0); v != 0 {
		t.Errorf("ReadUint(0) = %d", v)
	}
	if v := r.ReadUint(2); v != 0xAABB {
		t.Errorf("ReadUint(2) = %#x", v)
	}
	if !r.EOF() || r.Err() != nil {
		t.Errorf("EOF = %v, err = %v", r.EOF(), r.Err())
	}
}

func TestRangeOverrun(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(r *Range)
	}{
		{"read32", []byte{1, 2, 3}, func(r *Range) { r.Read32() }},
		{"skip", []byte{1, 2, 3}, func(r *Range) { r.Skip(4) }},
		{"unterminated string", []byte{'a', 'b'}, func(r *Range) { r.ReadString() }},
		{"bytes", []byte{1}, func(r *Range) { r.ReadBytes(2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRange(tt.data)
			tt.read(r)
			if !errors.Is(r.Err(), heiferr.ErrEndOfData) {
				t.Fatalf("err = %v, want end of data", r.Err())
			}
			if r.Read8() != 0 || r.Remaining() != 0 {
				t.Error("reads continue after error")
			}
		})
	}
}

func TestRangeErrorPropagates(t *testing.T) {
	parent := NewRange([]byte{1, 2, 3, 4, 5, 6})
	child := parent.sub(2)
	child.Read32()
	if child.Err() == nil || parent.Err() == nil {
		t.Fatalf("child err = %v, parent err = %v", child.Err(), parent.Err())
	}
	if child.Depth() != 1 {
		t.Errorf("depth = %d", child.Depth())
	}
}
