package heif

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/tetsuo/heif/pixels"
	"github.com/tetsuo/heif/plugin"
)

// loadBenchFile returns the sample image, or a small generated file when it
// is not checked out.
func loadBenchFile(b *testing.B) []byte {
	b.Helper()
	data, err := os.ReadFile("testdata/sample.heic")
	if err == nil {
		return data
	}
	return encodeGray(b, 256, 256, nil)
}

func BenchmarkParseAll(b *testing.B) {
	data := loadBenchFile(b)
	b.SetBytes(int64(len(data)))

	for b.Loop() {
		if _, err := ParseAll(data, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadFromBytes(b *testing.B) {
	data := loadBenchFile(b)
	b.SetBytes(int64(len(data)))

	for b.Loop() {
		c := NewContextWithRegistry(plugin.NewRegistry())
		if err := c.ReadFromBytes(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWrite(b *testing.B) {
	c := NewContextWithRegistry(jpegRegistry(b))
	if _, err := c.EncodeImage(context.Background(), grayImage(b, 64, 64, 90), plugin.FormatJPEG, nil); err != nil {
		b.Fatal(err)
	}
	var buf bytes.Buffer

	for b.Loop() {
		buf.Reset()
		if err := c.Write(&buf); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeJPEG(b *testing.B) {
	data := encodeGray(b, 256, 256, nil)
	c := NewContextWithRegistry(jpegRegistry(b))
	if err := c.ReadFromBytes(data); err != nil {
		b.Fatal(err)
	}
	h, err := c.PrimaryImageHandle()
	if err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		if _, err := h.Decode(context.Background(), pixels.ColorspaceUndefined, pixels.ChromaUndefined, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBitReader(b *testing.B) {
	data := bytes.Repeat([]byte{0xA5, 0x3C, 0x0F, 0xF0}, 1024)
	b.SetBytes(int64(len(data)))

	for b.Loop() {
		br := NewBitReader(data)
		for br.Remaining() >= 13 {
			br.Bits(13)
		}
	}
}
