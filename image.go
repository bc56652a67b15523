package jpt

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // Register GIF decoder for PrepareFile sources.
	"image/jpeg"
	"image/png"
	"io"

	_ "golang.org/x/image/bmp"  // Register BMP decoder for PrepareFile sources.
	_ "golang.org/x/image/tiff" // Register TIFF decoder for PrepareFile sources.
	_ "golang.org/x/image/webp" // Register WebP decoder for PrepareFile sources.
)

func init() {
	image.RegisterFormat("jpt", Magic, DecodeImage, DecodeConfig)
}

// DecodeImage reads a container and composes its payloads into one image:
// colour from the JPEG, alpha from the gray level of the PNG.
// Pixels outside the PNG bounds stay opaque.
func DecodeImage(r io.Reader) (image.Image, error) {
	jpegData, pngData, err := Decode(r)
	if err != nil {
		return nil, err
	}
	colorImg, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg payload: %w", err)
	}
	alphaImg, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decode png payload: %w", err)
	}
	return compose(colorImg, alphaImg), nil
}

// DecodeConfig returns the dimensions of the colour payload of a container.
func DecodeConfig(r io.Reader) (image.Config, error) {
	cr := containerReader{r: r}
	h, err := cr.header()
	if err != nil {
		return image.Config{}, err
	}
	cfg, err := jpeg.DecodeConfig(io.LimitReader(r, int64(h.JPEGLength)))
	if err != nil {
		return image.Config{}, fmt.Errorf("decode jpeg payload config: %w", err)
	}
	cfg.ColorModel = color.NRGBAModel
	return cfg, nil
}

// EncodeImage transcodes img with Prepare and writes the resulting container to w.
func EncodeImage(w io.Writer, img image.Image, opts *PrepareOptions) error {
	jpegData, pngData, err := Prepare(img, opts)
	if err != nil {
		return err
	}
	return Encode(w, jpegData, pngData)
}

func compose(colorImg, alphaImg image.Image) *image.NRGBA {
	cb := colorImg.Bounds()
	ab := alphaImg.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, cb.Dx(), cb.Dy()))
	for y := 0; y < cb.Dy(); y++ {
		for x := 0; x < cb.Dx(); x++ {
			r, g, b, _ := colorImg.At(cb.Min.X+x, cb.Min.Y+y).RGBA()
			a := uint8(0xff)
			if x < ab.Dx() && y < ab.Dy() {
				a = color.GrayModel.Convert(alphaImg.At(ab.Min.X+x, ab.Min.Y+y)).(color.Gray).Y
			}
			out.SetNRGBA(x, y, color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: a})
		}
	}
	return out
}
