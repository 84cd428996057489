package heiferr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorIs(t *testing.T) {
	err := New(InvalidInput, NoFtypBox, "first box is moov")
	wrapped := fmt.Errorf("reading file: %w", err)

	tests := []struct {
		name   string
		target error
		want   bool
	}{
		{"same code and sub-code", ErrNoFtypBox, true},
		{"code only", &Error{Code: InvalidInput}, true},
		{"other sub-code", ErrNoMetaBox, false},
		{"other code", &Error{Code: UsageError}, false},
		{"foreign error", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(wrapped, tt.target); got != tt.want {
				t.Errorf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := Wrap(Canceled, Unspecified, context.Canceled, "decoding")
	if !errors.Is(err, context.Canceled) {
		t.Fatal("cause not reachable")
	}
	if !errors.Is(err, ErrCanceled) {
		t.Fatal("class not matched")
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{New(InvalidInput, EndOfData, "heif: need 8 bytes"), "heif: need 8 bytes (invalid input: end of data)"},
		{New(InvalidInput, NoMetaBox, ""), "heif: invalid input: no meta box"},
		{Wrap(InvalidInput, Unspecified, errors.New("short read"), "heif: stream read"), "heif: stream read (invalid input): short read"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != OK {
		t.Error("nil should be OK")
	}
	if CodeOf(errors.New("x")) != UsageError {
		t.Error("foreign errors classify as usage errors")
	}
	err := fmt.Errorf("ctx: %w", New(DecoderPluginError, EndOfData, ""))
	if CodeOf(err) != DecoderPluginError || SubCodeOf(err) != EndOfData {
		t.Errorf("got %v/%v", CodeOf(err), SubCodeOf(err))
	}
}
