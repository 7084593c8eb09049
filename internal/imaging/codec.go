package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/webp"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWEBP Format = "webp"
)

// Extension returns the canonical file extension, dot included.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatWEBP:
		return ".webp"
	default:
		return ""
	}
}

// Lossy reports whether the quality parameter has any effect on f.
func (f Format) Lossy() bool {
	return f == FormatJPEG || f == FormatWEBP
}

// Codec decodes and encodes images. Quality is in [1, 100] and ignored by
// lossless formats.
type Codec interface {
	Decode(r io.Reader) (image.Image, Format, error)
	Encode(w io.Writer, img image.Image, f Format, quality int) error
}

// StdCodec encodes JPEG and PNG with the standard library and WEBP with libwebp.
type StdCodec struct{}

var _ Codec = StdCodec{}

func (StdCodec) Decode(r io.Reader) (image.Image, Format, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFormat
		}
		return nil, "", err
	}

	switch Format(name) {
	case FormatJPEG, FormatPNG, FormatWEBP:
		return img, Format(name), nil
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

func (StdCodec) Encode(w io.Writer, img image.Image, f Format, quality int) error {
	quality = min(max(quality, 1), 100)

	switch f {
	case FormatJPEG:
		return jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: quality})
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case FormatWEBP:
		options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
		if err != nil {
			return fmt.Errorf("encoding options: %w", err)
		}
		return webp.Encode(w, img, options)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// flatten composites img onto white. JPEG has no alpha channel and would
// otherwise render transparent regions black.
func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}

	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// resizeToFit scales src down so its longest edge is at most maxDim,
// preserving aspect ratio. Smaller images are returned untouched.
func resizeToFit(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if w <= maxDim && h <= maxDim {
		return src
	}

	var nw, nh int
	if w >= h {
		nw, nh = maxDim, h*maxDim/w
	} else {
		nw, nh = w*maxDim/h, maxDim
	}

	dst := image.NewRGBA(image.Rect(0, 0, max(nw, 1), max(nh, 1)))

	// bilinear has a good quality / speed tradeoff
	draw.BiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	return dst
}
