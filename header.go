package jpt

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Header is the fixed leading part of a container.
type Header struct {
	Version    uint8
	JPEGLength uint32
}

// parseHeader validates the first headerSize bytes of a container.
// Magic is checked before the version so that foreign files report bad magic.
func parseHeader(b []byte) (Header, error) {
	if len(b) < headerSize {
		return Header{}, &FormatError{Kind: KindMalformedHeader, Declared: int64(headerSize), Available: int64(len(b))}
	}
	if !bytes.Equal(b[:magicSize], []byte(Magic)) {
		return Header{}, &FormatError{Kind: KindBadMagic, Magic: append([]byte(nil), b[:magicSize]...)}
	}
	h := Header{
		Version:    b[magicSize],
		JPEGLength: binary.LittleEndian.Uint32(b[magicSize+1:]),
	}
	if h.Version > Version {
		return Header{}, &FormatError{Kind: KindUnsupportedVersion, Version: h.Version, MaxVersion: Version}
	}
	return h, nil
}

func appendHeader(dst []byte, jpegLen uint32) []byte {
	dst = append(dst, Magic...)
	dst = append(dst, Version)
	return binary.LittleEndian.AppendUint32(dst, jpegLen)
}

func payloadLength(field string, n int) (uint32, error) {
	if uint64(n) > math.MaxUint32 {
		return 0, &FormatError{Kind: KindPayloadTooLarge, Field: field, Declared: int64(n)}
	}
	return uint32(n), nil
}
