package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"testing"
)

func noise(w, h int, seed uint64) *image.NRGBA {
	r := rand.New(rand.NewPCG(seed, seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.IntN(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func TestStdCodecRoundTrip(t *testing.T) {
	t.Parallel()
	src := noise(48, 32, 1)

	for _, f := range []Format{FormatJPEG, FormatPNG, FormatWEBP} {
		t.Run(string(f), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if err := (StdCodec{}).Encode(&buf, src, f, 80); err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			img, got, err := (StdCodec{}).Decode(&buf)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got != f {
				t.Errorf("detected format: got %q, want %q", got, f)
			}
			if img.Bounds() != src.Bounds() {
				t.Errorf("bounds: got %v, want %v", img.Bounds(), src.Bounds())
			}
		})
	}
}

func TestStdCodecQualityShrinksLossyOutput(t *testing.T) {
	t.Parallel()
	src := noise(128, 128, 2)

	var high, low bytes.Buffer
	if err := (StdCodec{}).Encode(&high, src, FormatJPEG, 95); err != nil {
		t.Fatal(err)
	}
	if err := (StdCodec{}).Encode(&low, src, FormatJPEG, 30); err != nil {
		t.Fatal(err)
	}

	if low.Len() >= high.Len() {
		t.Errorf("q30 produced %d bytes, q95 produced %d", low.Len(), high.Len())
	}
}

func TestStdCodecRejectsUnknownInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "plain text", data: []byte("definitely not an image")},
		{name: "gif header", data: []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")},
		{name: "empty", data: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := (StdCodec{}).Decode(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Fatalf("got %v, want %v", err, ErrUnsupportedFormat)
			}
		})
	}
}

func TestFlattenPaintsTransparencyWhite(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(0, 0, 8, 8)) // fully transparent

	var buf bytes.Buffer
	if err := (StdCodec{}).Encode(&buf, src, FormatJPEG, 90); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	img, _, err := (StdCodec{}).Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	r, g, b, _ := img.At(4, 4).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("transparent pixel encoded as %v, want near white", color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 0xff})
	}
}

func TestResizeToFit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{name: "landscape", w: 400, h: 100, max: 200, wantW: 200, wantH: 50},
		{name: "portrait", w: 100, h: 400, max: 200, wantW: 50, wantH: 200},
		{name: "square", w: 300, h: 300, max: 100, wantW: 100, wantH: 100},
		{name: "already small", w: 120, h: 80, max: 200, wantW: 120, wantH: 80},
		{name: "extreme ratio keeps a pixel", w: 1000, h: 1, max: 10, wantW: 10, wantH: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resizeToFit(image.NewGray(image.Rect(0, 0, tt.w, tt.h)), tt.max).Bounds()
			if got.Dx() != tt.wantW || got.Dy() != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", got.Dx(), got.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestProcessWithStdCodec(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := png.Encode(&buf, noise(64, 64, 3)); err != nil {
		t.Fatal(err)
	}

	fsys := newMemFS()
	fsys.put("in.png", buf.Bytes())

	res := NewPipeline(fsys).Process(context.Background(), "in.png", "out.png")
	if !res.Success {
		t.Fatalf("Process failed: %v", res.Err)
	}
	if res.Size > int64(buf.Len()) {
		t.Errorf("output %d bytes larger than input %d", res.Size, buf.Len())
	}
	if res.Format != FormatPNG {
		t.Errorf("Format: got %q, want %q", res.Format, FormatPNG)
	}

	data, _ := fsys.get("out.png")
	if _, f, err := (StdCodec{}).Decode(bytes.NewReader(data)); err != nil || f != FormatPNG {
		t.Errorf("output does not decode as png: %v %q", err, f)
	}
}
