// Package heiferr defines the error type shared by all heif packages.
//
// Every fallible operation returns an *Error carrying a Code (the broad class of
// failure), a SubCode (the specific cause) and a human readable message. Callers
// match on classes with errors.Is:
//
//	if errors.Is(err, &heiferr.Error{Code: heiferr.InvalidInput}) { ... }
//	if errors.Is(err, heiferr.ErrNoFtypBox) { ... }
package heiferr

import (
	"errors"
	"fmt"
)

// Code is the broad class of an error.
type Code int

const (
	OK Code = iota
	InputDoesNotExist
	InvalidInput
	UnsupportedFiletype
	UnsupportedFeature
	UsageError
	MemoryAllocationError
	DecoderPluginError
	EncoderPluginError
	EncodingError
	ColorProfileDoesNotExist
	PluginLoadingError
	Canceled
)

var codeNames = [...]string{
	OK:                       "success",
	InputDoesNotExist:        "input does not exist",
	InvalidInput:             "invalid input",
	UnsupportedFiletype:      "unsupported file type",
	UnsupportedFeature:       "unsupported feature",
	UsageError:               "usage error",
	MemoryAllocationError:    "memory allocation error",
	DecoderPluginError:       "decoder plugin error",
	EncoderPluginError:       "encoder plugin error",
	EncodingError:            "encoding error",
	ColorProfileDoesNotExist: "color profile does not exist",
	PluginLoadingError:       "plugin loading error",
	Canceled:                 "canceled",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// SubCode is the specific cause of an error.
type SubCode int

const (
	Unspecified SubCode = iota

	// Invalid input.
	EndOfData
	InvalidBoxSize
	NoFtypBox
	NoIdatBox
	NoMetaBox
	NoHdlrBox
	NoHvcCBox
	NoPitmBox
	NoIpcoBox
	NoIpmaBox
	NoIlocBox
	NoIinfBox
	NoIprpBox
	NoIrefBox
	NoPictHandler
	IpmaBoxReferencesNonexistingProperty
	NoPropertiesAssignedToItem
	NoItemData
	InvalidPixiBox
	NoAv1CBox
	SecurityLimitExceeded
	NonexistingItemReferenced
	InvalidImageSize
	AuxiliaryImageTypeUnspecified

	// Unsupported feature.
	UnsupportedDataVersion
	UnsupportedImageType
	UnsupportedCodec
	UnsupportedColorConversion
	UnsupportedItemConstructionMethod
	UnsupportedBitDepth

	// Usage errors.
	NullPointerArgument
	NonexistingImageChannelReferenced
	InvalidParameterValue
	UnsupportedPluginVersion

	// Plugin loading.
	PluginLoadingFailed
	CannotReadPluginDirectory
)

var subCodeNames = [...]string{
	Unspecified:                          "unspecified",
	EndOfData:                            "end of data",
	InvalidBoxSize:                       "invalid box size",
	NoFtypBox:                            "no ftyp box",
	NoIdatBox:                            "no idat box",
	NoMetaBox:                            "no meta box",
	NoHdlrBox:                            "no hdlr box",
	NoHvcCBox:                            "no hvcC box",
	NoPitmBox:                            "no pitm box",
	NoIpcoBox:                            "no ipco box",
	NoIpmaBox:                            "no ipma box",
	NoIlocBox:                            "no iloc box",
	NoIinfBox:                            "no iinf box",
	NoIprpBox:                            "no iprp box",
	NoIrefBox:                            "no iref box",
	NoPictHandler:                        "no pict handler",
	IpmaBoxReferencesNonexistingProperty: "ipma box references nonexisting property",
	NoPropertiesAssignedToItem:           "no properties assigned to item",
	NoItemData:                           "no item data",
	InvalidPixiBox:                       "invalid pixi box",
	NoAv1CBox:                            "no av1C box",
	SecurityLimitExceeded:                "security limit exceeded",
	NonexistingItemReferenced:            "nonexisting item referenced",
	InvalidImageSize:                     "invalid image size",
	AuxiliaryImageTypeUnspecified:        "auxiliary image type unspecified",
	UnsupportedDataVersion:               "unsupported data version",
	UnsupportedImageType:                 "unsupported image type",
	UnsupportedCodec:                     "unsupported codec",
	UnsupportedColorConversion:           "unsupported color conversion",
	UnsupportedItemConstructionMethod:    "unsupported item construction method",
	UnsupportedBitDepth:                  "unsupported bit depth",
	NullPointerArgument:                  "null pointer argument",
	NonexistingImageChannelReferenced:    "nonexisting image channel referenced",
	InvalidParameterValue:                "invalid parameter value",
	UnsupportedPluginVersion:             "unsupported plugin version",
	PluginLoadingFailed:                  "plugin loading failed",
	CannotReadPluginDirectory:            "cannot read plugin directory",
}

func (s SubCode) String() string {
	if s >= 0 && int(s) < len(subCodeNames) {
		return subCodeNames[s]
	}
	return fmt.Sprintf("subcode(%d)", int(s))
}

// Error is a structured heif error.
type Error struct {
	Code    Code
	SubCode SubCode
	Message string
	Err     error // wrapped cause, may be nil
}

// New returns an error with the given classification and message.
func New(code Code, sub SubCode, msg string) *Error {
	return &Error{Code: code, SubCode: sub, Message: msg}
}

// Newf is like New with a formatted message.
func Newf(code Code, sub SubCode, format string, args ...any) *Error {
	return &Error{Code: code, SubCode: sub, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. The cause stays reachable through errors.Unwrap.
func Wrap(code Code, sub SubCode, err error, msg string) *Error {
	return &Error{Code: code, SubCode: sub, Message: msg, Err: err}
}

// Error returns the message followed by the classification. Messages carry
// their own package prefix; an error without one falls back to "heif: ".
func (e *Error) Error() string {
	class := e.Code.String()
	if e.SubCode != Unspecified {
		class += ": " + e.SubCode.String()
	}
	var s string
	if e.Message != "" {
		s = e.Message + " (" + class + ")"
	} else {
		s = "heif: " + class
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same class. A target without
// a SubCode matches any sub-code of its Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.SubCode == Unspecified || t.SubCode == e.SubCode
}

// CodeOf returns the Code of the first *Error in err's chain, or OK for nil
// and UsageError for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return UsageError
}

// SubCodeOf returns the SubCode of the first *Error in err's chain.
func SubCodeOf(err error) SubCode {
	var e *Error
	if errors.As(err, &e) {
		return e.SubCode
	}
	return Unspecified
}

// Sentinels for errors.Is.
var (
	ErrEndOfData                  = &Error{Code: InvalidInput, SubCode: EndOfData}
	ErrNoFtypBox                  = &Error{Code: InvalidInput, SubCode: NoFtypBox}
	ErrNoMetaBox                  = &Error{Code: InvalidInput, SubCode: NoMetaBox}
	ErrSecurityLimitExceeded      = &Error{Code: InvalidInput, SubCode: SecurityLimitExceeded}
	ErrUnsupportedColorConversion = &Error{Code: UnsupportedFeature, SubCode: UnsupportedColorConversion}
	ErrUnsupportedCodec           = &Error{Code: UnsupportedFeature, SubCode: UnsupportedCodec}
	ErrCanceled                   = &Error{Code: Canceled}
)
