package jpt

import (
	"bufio"
	"bytes"
	"io"
)

// Info describes a container without holding its payloads.
type Info struct {
	Version    uint8  `json:"version"`
	JPEGLength uint32 `json:"jpeg_length"`
	PNGLength  uint32 `json:"png_length"`
	// Size is the number of bytes the container occupies, trailing data excluded.
	Size int64 `json:"size"`
}

// IsJPT reports whether r starts with the container magic.
// It reads at most len(Magic) bytes.
func IsJPT(r io.Reader) (bool, error) {
	var buf [magicSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if isEOF(err) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(buf[:], []byte(Magic)), nil
}

// ReadInfo streams through a container, validating the header and both declared
// lengths while discarding payload bytes.
func ReadInfo(r io.Reader) (*Info, error) {
	cr := containerReader{r: bufio.NewReader(r)}
	h, err := cr.header()
	if err != nil {
		return nil, err
	}
	if err := cr.skip(fieldJPEG, h.JPEGLength); err != nil {
		return nil, err
	}
	pngLen, err := cr.length(fieldPNGLength)
	if err != nil {
		return nil, err
	}
	if err := cr.skip(fieldPNG, pngLen); err != nil {
		return nil, err
	}
	return &Info{
		Version:    h.Version,
		JPEGLength: h.JPEGLength,
		PNGLength:  pngLen,
		Size:       int64(headerSize) + int64(h.JPEGLength) + lengthSize + int64(pngLen),
	}, nil
}

// ReadHeader reads and validates only the fixed header.
func ReadHeader(r io.Reader) (Header, error) {
	cr := containerReader{r: r}
	return cr.header()
}
