package heif

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/plugin"
)

// minimalFile returns a file with one empty meta box preceded by extra.
func minimalFile(t *testing.T, extra ...[]byte) []byte {
	t.Helper()
	f := NewFile()
	meta, err := Marshal(f.Meta())
	if err != nil {
		t.Fatal(err)
	}
	ftyp, err := Marshal(f.Ftyp())
	if err != nil {
		t.Fatal(err)
	}
	out := append([]byte(nil), ftyp...)
	for _, e := range extra {
		out = append(out, e...)
	}
	return append(out, meta...)
}

func TestReadLayout(t *testing.T) {
	free := mkbox("free", make([]byte, 100))
	data := minimalFile(t, free)
	l, err := ReadLayout(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if l.Ftyp.MajorBrand != BrandMif1 {
		t.Errorf("major brand = %v", l.Ftyp.MajorBrand)
	}
	if want := int64(l.Ftyp.Size) + int64(len(free)); l.MetaOffset != want {
		t.Errorf("meta offset = %d, want %d", l.MetaOffset, want)
	}
	if l.Meta.Child(TypeHdlr) == nil {
		t.Error("meta has no hdlr")
	}
}

func TestReadLayoutErrors(t *testing.T) {
	ftyp := mkbox("ftyp", []byte("mif1\x00\x00\x00\x00mif1"))
	tests := []struct {
		name   string
		data   []byte
		target error
	}{
		{"empty", nil, heiferr.ErrEndOfData},
		{"shorter than a header", []byte{0, 0, 0, 8, 'f'}, heiferr.ErrEndOfData},
		{"first box not ftyp", append(mkbox("free"), ftyp...), heiferr.ErrNoFtypBox},
		{"unbounded ftyp", []byte{0, 0, 0, 0, 'f', 't', 'y', 'p', 'm', 'i', 'f', '1'}, heiferr.ErrNoFtypBox},
		{"no meta", ftyp, heiferr.ErrNoMetaBox},
		{"unbounded box before meta", append(append([]byte(nil), ftyp...), 0, 0, 0, 0, 'm', 'd', 'a', 't', 1, 2), heiferr.ErrNoMetaBox},
		{"box beyond end before meta", append(append([]byte(nil), ftyp...), 0, 0, 1, 0, 'm', 'd', 'a', 't'), heiferr.ErrNoMetaBox},
		{"truncated ftyp", ftyp[:14], &heiferr.Error{Code: heiferr.InvalidInput, SubCode: heiferr.InvalidBoxSize}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadLayout(tt.data, nil)
			if !errors.Is(err, tt.target) {
				t.Fatalf("err = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestReadLayoutLargeFtyp(t *testing.T) {
	data := mkbox("ftyp", []byte("mif1\x00\x00\x00\x00"), bytes.Repeat([]byte("mif1"), 300))
	_, err := ReadLayout(data, nil)
	if heiferr.CodeOf(err) != heiferr.UnsupportedFeature {
		t.Fatalf("err = %v", err)
	}
}

// chunkReader returns at most n bytes per Read.
type chunkReader struct {
	data []byte
	n    int
	read int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := min(len(p), r.n, len(r.data))
	copy(p, r.data[:n])
	r.data = r.data[n:]
	r.read += n
	return n, nil
}

func TestReadLayoutFromStream(t *testing.T) {
	tail := mkbox("mdat", make([]byte, 1<<20))
	data := append(minimalFile(t), tail...)
	cr := &chunkReader{data: data, n: 512}
	l, err := readLayout(streamSource(NewReaderStream(cr)), nil, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	if l.Meta == nil {
		t.Fatal("no meta")
	}
	if cr.read >= len(data) {
		t.Errorf("stream read to the end (%d bytes)", cr.read)
	}
}

// largeHeader returns a box header declaring a 64-bit size.
func largeHeader(typ string, size uint64) []byte {
	out := be.AppendUint32(nil, 1)
	out = append(out, typ...)
	return be.AppendUint64(out, size)
}

func TestReadLayoutHugeSizes(t *testing.T) {
	ftyp := mkbox("ftyp", []byte("mif1\x00\x00\x00\x00mif1"))
	prefix := append(append([]byte(nil), ftyp...), mkbox("skip", make([]byte, 64<<10))...)
	tests := []struct {
		name  string
		boxes []byte
	}{
		{"huge box before meta", largeHeader("free", 1<<60)},
		{"huge meta", append(largeHeader("meta", 1<<60), 0, 0, 0, 0)},
		{"huge child in meta", append(append(largeHeader("meta", 1<<60), 0, 0, 0, 0), largeHeader("abcd", 1<<60-256)...)},
	}
	for _, tt := range tests {
		data := append(append([]byte(nil), prefix...), tt.boxes...)
		t.Run(tt.name, func(t *testing.T) {
			c := NewContextWithRegistry(plugin.NewRegistry())
			err := c.ReadFromReader(bytes.NewReader(data))
			if !errors.Is(err, heiferr.ErrSecurityLimitExceeded) {
				t.Fatalf("err = %v, want security limit", err)
			}
		})
		t.Run(tt.name+" without limits", func(t *testing.T) {
			cr := &chunkReader{data: data, n: 4096}
			_, err := readLayout(streamSource(NewReaderStream(cr)), nil, slog.Default())
			if heiferr.CodeOf(err) != heiferr.InvalidInput {
				t.Fatalf("err = %v, want invalid input", err)
			}
		})
	}
}

func TestReaderStreamChunks(t *testing.T) {
	data := bytes.Repeat([]byte{7}, 3*readChunk+10)
	s := NewReaderStream(&chunkReader{data: data, n: 1000})
	if !s.WaitForFileSize(readChunk + 1) {
		t.Fatal("stream ended early")
	}
	if s.WaitForFileSize(1 << 62) {
		t.Fatal("stream claims more bytes than it has")
	}
	p := make([]byte, 10)
	if _, err := s.ReadAt(p, int64(len(data))-10); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReadAt(p, int64(len(data))-5); err == nil {
		t.Error("read past the end succeeded")
	}
}
