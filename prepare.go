package jpt

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"golang.org/x/sync/errgroup"
)

// PrepareOptions controls how an image is transcoded into container payloads.
type PrepareOptions struct {
	// Quality is the JPEG quality in [1, 100], 0 selects the default of 95.
	Quality int
	// Width and Height set the output size; 0 on one side keeps the aspect ratio,
	// 0 on both keeps the source size.
	Width, Height uint
	Interpolation Interpolation
}

// Interpolation selects the resampling mode used when resizing.
type Interpolation int

const (
	// InterpolationNearest is nearest-neighbor sampling.
	InterpolationNearest Interpolation = iota
	// InterpolationBilinear is linear sampling.
	InterpolationBilinear
	// InterpolationBicubic is cubic sampling.
	InterpolationBicubic
	// InterpolationMitchellNetravali is Mitchell-Netravali sampling.
	InterpolationMitchellNetravali
	// InterpolationLanczos2 is Lanczos sampling with a=2.
	InterpolationLanczos2
	// InterpolationLanczos3 is Lanczos sampling with a=3.
	InterpolationLanczos3
)

var interpolationNames = map[string]Interpolation{
	"nearest":  InterpolationNearest,
	"bilinear": InterpolationBilinear,
	"bicubic":  InterpolationBicubic,
	"mitchell": InterpolationMitchellNetravali,
	"lanczos2": InterpolationLanczos2,
	"lanczos3": InterpolationLanczos3,
}

// ParseInterpolation maps a mode name such as "lanczos3" to an Interpolation.
func ParseInterpolation(name string) (Interpolation, error) {
	interp, ok := interpolationNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown interpolation %q", name)
	}
	return interp, nil
}

func (i Interpolation) resizeFunc() resize.InterpolationFunction {
	switch i {
	case InterpolationBilinear:
		return resize.Bilinear
	case InterpolationBicubic:
		return resize.Bicubic
	case InterpolationMitchellNetravali:
		return resize.MitchellNetravali
	case InterpolationLanczos2:
		return resize.Lanczos2
	case InterpolationLanczos3:
		return resize.Lanczos3
	default:
		return resize.NearestNeighbor
	}
}

func (o *PrepareOptions) quality() (int, error) {
	if o == nil || o.Quality == 0 {
		return DefaultQuality, nil
	}
	if o.Quality < 1 || o.Quality > 100 {
		return 0, fmt.Errorf("jpeg quality %d out of range [1, 100]", o.Quality)
	}
	return o.Quality, nil
}

// Prepare transcodes img into a JPEG payload with its colour channels and a
// grayscale PNG payload with its alpha channel. Images without an alpha channel
// get a fully opaque PNG of the same size.
func Prepare(img image.Image, opts *PrepareOptions) (jpegData, pngData []byte, err error) {
	if img == nil {
		return nil, nil, errors.New("image is nil")
	}
	quality, err := opts.quality()
	if err != nil {
		return nil, nil, err
	}
	if opts != nil && (opts.Width > 0 || opts.Height > 0) {
		img = resize.Resize(opts.Width, opts.Height, img, opts.Interpolation.resizeFunc())
	}

	var g errgroup.Group
	g.Go(func() error {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
		jpegData = buf.Bytes()
		return nil
	})
	g.Go(func() error {
		var buf bytes.Buffer
		if err := png.Encode(&buf, alphaMask(img)); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		pngData = buf.Bytes()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return jpegData, pngData, nil
}

// PrepareFile decodes the image at srcPath and writes its payloads to jpegPath and pngPath.
func PrepareFile(srcPath, jpegPath, pngPath string, opts *PrepareOptions) error {
	img, err := decodeSource("prepare", srcPath)
	if err != nil {
		return err
	}
	jpegData, pngData, err := Prepare(img, opts)
	if err != nil {
		return err
	}
	return writeFiles("prepare",
		staged{path: jpegPath, data: jpegData},
		staged{path: pngPath, data: pngData},
	)
}

// ConvertFile transcodes the image at srcPath and merges the result into a container at jptPath.
// Intermediate payload files live in a temporary directory that is removed on return.
func ConvertFile(srcPath, jptPath string, opts *PrepareOptions) (err error) {
	tmpDir, err := os.MkdirTemp("", "jpt-convert-")
	if err != nil {
		return &FileError{Op: "convert", Kind: KindWriteFailed, Err: err}
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil && err == nil {
			err = &FileError{Op: "convert", Kind: KindWriteFailed, Path: tmpDir, Err: rerr}
		}
	}()

	base := uuid.NewString()
	jpegPath := filepath.Join(tmpDir, base+".jpg")
	pngPath := filepath.Join(tmpDir, base+".png")
	if err := PrepareFile(srcPath, jpegPath, pngPath, opts); err != nil {
		return err
	}
	return MergeFile(jptPath, jpegPath, pngPath)
}

func decodeSource(op, path string) (image.Image, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, &FileError{Op: op, Kind: KindSourceNotFound, Path: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: decode %s: %w", op, path, err)
	}
	return img, nil
}

// hasAlpha reports whether the colour model of img can carry transparency.
func hasAlpha(img image.Image) bool {
	switch src := img.(type) {
	case *image.YCbCr, *image.Gray, *image.Gray16, *image.CMYK:
		return false
	case *image.Paletted:
		for _, c := range src.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// flatten drops alpha, keeping the straight (non-premultiplied) colour of every pixel.
func flatten(img image.Image) image.Image {
	if !hasAlpha(img) {
		return img
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			out.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return out
}

func alphaMask(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if !hasAlpha(img) {
		draw.Draw(out, out.Bounds(), image.NewUniform(color.Gray{Y: 0xff}), image.Point{}, draw.Src)
		return out
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			_, _, _, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.SetGray(x, y, color.Gray{Y: uint8(a >> 8)})
		}
	}
	return out
}
