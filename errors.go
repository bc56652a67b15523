package jpt

import (
	"errors"
	"fmt"
)

// Kind classifies container and file errors.
type Kind string

const (
	// KindSourceNotFound means an input file could not be opened or read.
	KindSourceNotFound Kind = "source_not_found"
	// KindWriteFailed means an output file could not be created, written or renamed into place.
	KindWriteFailed Kind = "write_failed"
	// KindMalformedHeader means the input ends before the fixed header does.
	KindMalformedHeader Kind = "malformed_header"
	// KindBadMagic means the input does not start with Magic.
	KindBadMagic Kind = "bad_magic"
	// KindUnsupportedVersion means the header carries a version newer than Version.
	KindUnsupportedVersion Kind = "unsupported_version"
	// KindTruncatedPayload means a length field or payload runs past the end of the input.
	KindTruncatedPayload Kind = "truncated_payload"
	// KindPayloadTooLarge means a payload does not fit a 32-bit length field.
	KindPayloadTooLarge Kind = "payload_too_large"
)

// Sentinel errors, one per Kind, for use with errors.Is.
var (
	ErrSourceNotFound     = errors.New("source not found")
	ErrWriteFailed        = errors.New("write failed")
	ErrMalformedHeader    = errors.New("malformed container header")
	ErrBadMagic           = errors.New("bad magic")
	ErrUnsupportedVersion = errors.New("unsupported container version")
	ErrTruncatedPayload   = errors.New("truncated container")
	ErrPayloadTooLarge    = errors.New("payload too large")
)

var sentinels = map[Kind]error{
	KindSourceNotFound:     ErrSourceNotFound,
	KindWriteFailed:        ErrWriteFailed,
	KindMalformedHeader:    ErrMalformedHeader,
	KindBadMagic:           ErrBadMagic,
	KindUnsupportedVersion: ErrUnsupportedVersion,
	KindTruncatedPayload:   ErrTruncatedPayload,
	KindPayloadTooLarge:    ErrPayloadTooLarge,
}

// FormatError describes a container that cannot be parsed or produced.
// Only the fields relevant to Kind are set.
type FormatError struct {
	Kind Kind

	// Magic holds the bytes found where the magic was expected.
	Magic []byte

	// Version and MaxVersion are set for KindUnsupportedVersion.
	Version    uint8
	MaxVersion uint8

	// Field names the length field or payload that ran out of input.
	Field     string
	Declared  int64
	Available int64
}

func (e *FormatError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindMalformedHeader:
		return fmt.Sprintf("%v: need %d bytes, got %d", ErrMalformedHeader, e.Declared, e.Available)
	case KindBadMagic:
		return fmt.Sprintf("%v: expected %q, got %q", ErrBadMagic, Magic, e.Magic)
	case KindUnsupportedVersion:
		return fmt.Sprintf("%v: got %d, max supported %d", ErrUnsupportedVersion, e.Version, e.MaxVersion)
	case KindTruncatedPayload:
		return fmt.Sprintf("%v: %s declares %d bytes, %d available", ErrTruncatedPayload, e.Field, e.Declared, e.Available)
	case KindPayloadTooLarge:
		return fmt.Sprintf("%v: %s has %d bytes", ErrPayloadTooLarge, e.Field, e.Declared)
	default:
		return string(e.Kind)
	}
}

// Is matches the sentinel of the error kind.
func (e *FormatError) Is(target error) bool {
	return e != nil && sentinels[e.Kind] == target
}

// FileError wraps a file system failure with the operation and path involved.
type FileError struct {
	Op   string
	Kind Kind
	Path string
	Err  error
}

func (e *FileError) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, sentinels[e.Kind])
	if e.Path != "" {
		base += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

// Is matches the sentinel of the error kind.
func (e *FileError) Is(target error) bool {
	return e != nil && sentinels[e.Kind] == target
}

func (e *FileError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the kind of a FormatError or FileError found in the chain of err,
// or an empty Kind.
func KindOf(err error) Kind {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind
	}
	return ""
}

func truncated(field string, declared, available int64) error {
	return &FormatError{Kind: KindTruncatedPayload, Field: field, Declared: declared, Available: available}
}
