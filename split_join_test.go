package jpt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"testing"
	"testing/iotest"
)

var (
	sampleJPEG = []byte{0xFF, 0xD8, 0xFF}
	samplePNG  = []byte{0x89, 'P', 'N', 'G'}
)

func TestMergeLayout(t *testing.T) {
	got, err := Merge(sampleJPEG, samplePNG)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	want := []byte{
		'J', 'P', 'T', 0x01,
		0x03, 0x00, 0x00, 0x00,
		0xFF, 0xD8, 0xFF,
		0x04, 0x00, 0x00, 0x00,
		0x89, 'P', 'N', 'G',
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("unexpected container\nwant: % x\ngot:  % x", want, got)
	}

	j, p, err := Split(want)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !bytes.Equal(j, sampleJPEG) || !bytes.Equal(p, samplePNG) {
		t.Fatalf("payload mismatch: jpeg % x, png % x", j, p)
	}
}

func TestMergeDeterministic(t *testing.T) {
	a, err := Merge(sampleJPEG, samplePNG)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	b, err := Merge(sampleJPEG, samplePNG)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("merge output differs between calls")
	}
}

func TestSplitMergeRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	sizes := [][2]int{{0, 0}, {0, 5}, {7, 0}, {1, 1}, {1000, 3}, {65536, 4097}}
	for _, sz := range sizes {
		j := make([]byte, sz[0])
		p := make([]byte, sz[1])
		rnd.Read(j)
		rnd.Read(p)

		container, err := Merge(j, p)
		if err != nil {
			t.Fatalf("merge %v: %v", sz, err)
		}
		if len(container) != headerSize+len(j)+lengthSize+len(p) {
			t.Fatalf("container size %d for %v", len(container), sz)
		}
		if string(container[:3]) != Magic || container[3] != Version {
			t.Fatalf("bad header % x", container[:4])
		}
		if got := binary.LittleEndian.Uint32(container[4:]); got != uint32(len(j)) {
			t.Fatalf("jpeg length field %d, want %d", got, len(j))
		}
		if got := binary.LittleEndian.Uint32(container[headerSize+len(j):]); got != uint32(len(p)) {
			t.Fatalf("png length field %d, want %d", got, len(p))
		}

		j2, p2, err := Split(container)
		if err != nil {
			t.Fatalf("split %v: %v", sz, err)
		}
		if !bytes.Equal(j, j2) || !bytes.Equal(p, p2) {
			t.Fatalf("split mismatch for %v", sz)
		}

		j3, p3, err := Decode(bytes.NewReader(container))
		if err != nil {
			t.Fatalf("decode %v: %v", sz, err)
		}
		if !bytes.Equal(j, j3) || !bytes.Equal(p, p3) {
			t.Fatalf("decode mismatch for %v", sz)
		}
	}
}

func TestEncodeMatchesMerge(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleJPEG, samplePNG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	merged, err := Merge(sampleJPEG, samplePNG)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), merged) {
		t.Fatal("encode and merge outputs differ")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncodeWriteFailed(t *testing.T) {
	err := Encode(failingWriter{}, sampleJPEG, samplePNG)
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected write failed, got %v", err)
	}
}

func TestSplitTrailingBytesIgnored(t *testing.T) {
	container, err := Merge(sampleJPEG, samplePNG)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	container = append(container, "garbage"...)

	j, p, err := Split(container)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !bytes.Equal(j, sampleJPEG) || !bytes.Equal(p, samplePNG) {
		t.Fatal("payload mismatch with trailing bytes")
	}

	r := bytes.NewReader(container)
	if _, _, err := Decode(r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	rest, _ := io.ReadAll(r)
	if string(rest) != "garbage" {
		t.Fatalf("decode consumed past the png payload, left %q", rest)
	}
}

func TestSplitErrors(t *testing.T) {
	valid, err := Merge(sampleJPEG, samplePNG)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	withVersion := func(v byte) []byte {
		b := append([]byte(nil), valid...)
		b[3] = v
		return b
	}
	withJPEGLength := func(n uint32) []byte {
		b := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint32(b[4:], n)
		return b
	}

	cases := []struct {
		name string
		data []byte
		kind Kind
		want error
	}{
		{name: "empty", data: nil, kind: KindMalformedHeader, want: ErrMalformedHeader},
		{name: "short header", data: valid[:7], kind: KindMalformedHeader, want: ErrMalformedHeader},
		{name: "short foreign", data: []byte("PNG"), kind: KindMalformedHeader, want: ErrMalformedHeader},
		{name: "bad magic", data: append([]byte("JPG"), valid[3:]...), kind: KindBadMagic, want: ErrBadMagic},
		{name: "lowercase magic", data: append([]byte("jpt"), valid[3:]...), kind: KindBadMagic, want: ErrBadMagic},
		{name: "version 2", data: withVersion(2), kind: KindUnsupportedVersion, want: ErrUnsupportedVersion},
		{name: "version 255", data: withVersion(255), kind: KindUnsupportedVersion, want: ErrUnsupportedVersion},
		{name: "jpeg length too large", data: withJPEGLength(1 << 20), kind: KindTruncatedPayload, want: ErrTruncatedPayload},
		{name: "jpeg payload cut", data: valid[:10], kind: KindTruncatedPayload, want: ErrTruncatedPayload},
		{name: "png length cut", data: valid[:13], kind: KindTruncatedPayload, want: ErrTruncatedPayload},
		{name: "png payload cut", data: valid[:len(valid)-1], kind: KindTruncatedPayload, want: ErrTruncatedPayload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			j, p, err := Split(tc.data)
			if err == nil {
				t.Fatalf("expected error, got jpeg % x png % x", j, p)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("split: expected %v, got %v", tc.want, err)
			}
			if KindOf(err) != tc.kind {
				t.Fatalf("split: kind %q, want %q", KindOf(err), tc.kind)
			}

			_, _, err = Decode(bytes.NewReader(tc.data))
			if !errors.Is(err, tc.want) {
				t.Fatalf("decode: expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSplitDiagnostics(t *testing.T) {
	_, _, err := Split([]byte("ABC\x01\x00\x00\x00\x00\x00\x00\x00\x00"))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %T", err)
	}
	if string(fe.Magic) != "ABC" {
		t.Fatalf("magic found %q", fe.Magic)
	}

	_, _, err = Split([]byte("JPT\x07\x00\x00\x00\x00\x00\x00\x00\x00"))
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %T", err)
	}
	if fe.Version != 7 || fe.MaxVersion != Version {
		t.Fatalf("version found %d max %d", fe.Version, fe.MaxVersion)
	}

	_, _, err = Split([]byte("JPT\x01\x10\x00\x00\x00abc"))
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %T", err)
	}
	if fe.Field != fieldJPEG || fe.Declared != 16 || fe.Available != 3 {
		t.Fatalf("unexpected truncation details: %+v", fe)
	}
	if fe.Error() != "truncated container: jpeg payload declares 16 bytes, 3 available" {
		t.Fatalf("unexpected message: %s", fe.Error())
	}
}

func TestDecodeForgedLength(t *testing.T) {
	// A 4 GiB declared payload over a tiny input must fail fast without reading forever.
	data := []byte("JPT\x01\xff\xff\xff\xffabc")
	_, _, err := Decode(bytes.NewReader(data))
	if !errors.Is(err, ErrTruncatedPayload) {
		t.Fatalf("expected truncated payload, got %v", err)
	}
}

func TestDecodeReadFailure(t *testing.T) {
	container, err := Merge(sampleJPEG, samplePNG)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	errDisk := errors.New("disk failure")

	for _, tc := range []struct {
		name string
		n    int
	}{
		{"header", 5},
		{"jpeg payload", headerSize + 1},
		{"png length", headerSize + len(sampleJPEG) + 2},
		{"png payload", len(container) - 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := io.MultiReader(bytes.NewReader(container[:tc.n]), iotest.ErrReader(errDisk))
			jpegData, pngData, err := Decode(r)
			if !errors.Is(err, errDisk) {
				t.Fatalf("expected read error, got %v", err)
			}
			if errors.Is(err, ErrTruncatedPayload) || errors.Is(err, ErrMalformedHeader) {
				t.Fatalf("read error reported as format error: %v", err)
			}
			if KindOf(err) != "" {
				t.Fatalf("kind %q, want none", KindOf(err))
			}
			if jpegData != nil || pngData != nil {
				t.Fatal("payloads returned on error")
			}
		})
	}
}
