package jpt

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	fieldJPEG      = "jpeg payload"
	fieldPNGLength = "png length"
	fieldPNG       = "png payload"
)

// Merge assembles a container from JPEG and PNG payloads.
// The output depends only on the inputs; payload contents are not inspected.
func Merge(jpegData, pngData []byte) ([]byte, error) {
	jpegLen, err := payloadLength(fieldJPEG, len(jpegData))
	if err != nil {
		return nil, err
	}
	pngLen, err := payloadLength(fieldPNG, len(pngData))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerSize+len(jpegData)+lengthSize+len(pngData))
	out = appendHeader(out, jpegLen)
	out = append(out, jpegData...)
	out = binary.LittleEndian.AppendUint32(out, pngLen)
	out = append(out, pngData...)
	return out, nil
}

// Encode writes a container with JPEG and PNG payloads to w.
func Encode(w io.Writer, jpegData, pngData []byte) error {
	jpegLen, err := payloadLength(fieldJPEG, len(jpegData))
	if err != nil {
		return err
	}
	pngLen, err := payloadLength(fieldPNG, len(pngData))
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	_, _ = bw.Write(appendHeader(make([]byte, 0, headerSize), jpegLen))
	_, _ = bw.Write(jpegData)
	_, _ = bw.Write(binary.LittleEndian.AppendUint32(make([]byte, 0, lengthSize), pngLen))
	_, _ = bw.Write(pngData)
	if err := bw.Flush(); err != nil {
		return &FileError{Op: "encode", Kind: KindWriteFailed, Err: err}
	}
	return nil
}

// Split extracts JPEG and PNG payloads from a container.
// Returned slices are copies; bytes after the PNG payload are ignored.
func Split(data []byte) (jpegData, pngData []byte, err error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, nil, err
	}
	rest := data[headerSize:]

	if int64(h.JPEGLength) > int64(len(rest)) {
		return nil, nil, truncated(fieldJPEG, int64(h.JPEGLength), int64(len(rest)))
	}
	jpegData = append([]byte{}, rest[:h.JPEGLength]...)
	rest = rest[h.JPEGLength:]

	if len(rest) < lengthSize {
		return nil, nil, truncated(fieldPNGLength, lengthSize, int64(len(rest)))
	}
	pngLen := binary.LittleEndian.Uint32(rest)
	rest = rest[lengthSize:]

	if int64(pngLen) > int64(len(rest)) {
		return nil, nil, truncated(fieldPNG, int64(pngLen), int64(len(rest)))
	}
	pngData = append([]byte{}, rest[:pngLen]...)
	return jpegData, pngData, nil
}

// Decode reads a container from r once, front to back, and returns its payloads.
// Reading stops right after the PNG payload.
func Decode(r io.Reader) (jpegData, pngData []byte, err error) {
	cr := containerReader{r: r}
	if _, err := cr.header(); err != nil {
		return nil, nil, err
	}
	if jpegData, err = cr.payload(fieldJPEG, cr.hdr.JPEGLength); err != nil {
		return nil, nil, err
	}
	pngLen, err := cr.length(fieldPNGLength)
	if err != nil {
		return nil, nil, err
	}
	if pngData, err = cr.payload(fieldPNG, pngLen); err != nil {
		return nil, nil, err
	}
	return jpegData, pngData, nil
}

// containerReader consumes a container sequentially.
type containerReader struct {
	r   io.Reader
	hdr Header
}

func (cr *containerReader) header() (Header, error) {
	var buf [headerSize]byte
	n, err := io.ReadFull(cr.r, buf[:])
	if err != nil {
		if isEOF(err) {
			return Header{}, &FormatError{Kind: KindMalformedHeader, Declared: int64(headerSize), Available: int64(n)}
		}
		return Header{}, err
	}
	h, err := parseHeader(buf[:])
	if err != nil {
		return Header{}, err
	}
	cr.hdr = h
	return h, nil
}

func (cr *containerReader) length(field string) (uint32, error) {
	var buf [lengthSize]byte
	n, err := io.ReadFull(cr.r, buf[:])
	if err != nil {
		if isEOF(err) {
			return 0, truncated(field, lengthSize, int64(n))
		}
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// payload reads exactly n bytes. The buffer grows with the bytes actually
// received, not with the declared length.
func (cr *containerReader) payload(field string, n uint32) ([]byte, error) {
	var buf bytes.Buffer
	got, err := io.Copy(&buf, io.LimitReader(cr.r, int64(n)))
	if err != nil {
		return nil, err
	}
	if got < int64(n) {
		return nil, truncated(field, int64(n), got)
	}
	if n == 0 {
		return []byte{}, nil
	}
	return buf.Bytes(), nil
}

func (cr *containerReader) skip(field string, n uint32) error {
	got, err := io.CopyN(io.Discard, cr.r, int64(n))
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if got < int64(n) {
		return truncated(field, int64(n), got)
	}
	return nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
