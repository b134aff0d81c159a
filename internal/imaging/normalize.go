// Package imaging produces size-bounded derivatives of uploaded product photos.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register the webp decoder
)

// ErrDecode is returned when the uploaded bytes are not a decodable image.
var ErrDecode = errors.New("imaging: cannot decode image")

// MaxPixels bounds width*height of an accepted image. It is checked against
// the header before any pixel buffer is allocated.
const MaxPixels = 50_000_000

const (
	startQuality = 80
	qualityStep  = 10
	minQuality   = 10
)

// Options bound the server-side derivative.
type Options struct {
	MaxWidth  int
	MaxHeight int
	MaxBytes  int64
}

// DefaultOptions returns the 1600x1200, 2 MB bounds.
func DefaultOptions() Options {
	return Options{MaxWidth: 1600, MaxHeight: 1200, MaxBytes: 2 * 1024 * 1024}
}

// Result is an encoded derivative.
type Result struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
	// Quality is the JPEG quality of the last lossy re-encode, 0 if none happened.
	Quality int
}

// Normalizer resizes and re-encodes images to fit Options.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a Normalizer. Zero fields fall back to DefaultOptions.
func NewNormalizer(opts Options) *Normalizer {
	def := DefaultOptions()
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = def.MaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = def.MaxHeight
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	return &Normalizer{opts: opts}
}

// Options returns the bounds in effect.
func (n *Normalizer) Options() Options {
	return n.opts
}

// Normalize fits the image inside MaxWidth x MaxHeight without upscaling. When
// the encoded result is still larger than MaxBytes it is re-encoded as JPEG at
// decreasing quality until it fits or the quality floor is reached; the last
// attempt is returned either way.
func (n *Normalizer) Normalize(data []byte, mediaType string) (*Result, error) {
	src, format, err := decode(data)
	if err != nil {
		return nil, err
	}

	img, resized := fitInside(src, n.opts.MaxWidth, n.opts.MaxHeight)
	bounds := img.Bounds()

	res := &Result{Width: bounds.Dx(), Height: bounds.Dy()}
	if !resized && int64(len(data)) <= n.opts.MaxBytes {
		res.Data = data
		res.MediaType = mediaTypeFor(format, mediaType)
		return res, nil
	}

	res.Data, res.MediaType, err = encodeNative(img, format)
	if err != nil {
		return nil, err
	}
	if int64(len(res.Data)) <= n.opts.MaxBytes {
		return res, nil
	}

	for q := startQuality; q >= minQuality; q -= qualityStep {
		buf, err := encodeJPEG(img, q)
		if err != nil {
			return nil, err
		}
		res.Data, res.MediaType, res.Quality = buf, "image/jpeg", q
		if int64(len(buf)) <= n.opts.MaxBytes {
			break
		}
	}
	return res, nil
}

// decode reads the header first and refuses images above MaxPixels, so a
// small, highly compressed upload cannot demand a huge allocation.
func decode(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return src, format, nil
}

// fitInside scales src down so it fits within maxW x maxH, preserving the
// aspect ratio. Images that already fit are returned untouched.
func fitInside(src image.Image, maxW, maxH int) (image.Image, bool) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return src, false
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	return scaleTo(src, scaledDim(w, scale, maxW), scaledDim(h, scale, maxH)), true
}

func scaledDim(v int, scale float64, limit int) int {
	d := int(math.Round(float64(v) * scale))
	if d < 1 {
		d = 1
	}
	if limit > 0 && d > limit {
		d = limit
	}
	return d
}

func scaleTo(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// encodeNative keeps png and gif lossless; everything else becomes JPEG since
// there is no webp encoder.
func encodeNative(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("imaging: encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, "", fmt.Errorf("imaging: encode gif: %w", err)
		}
		return buf.Bytes(), "image/gif", nil
	default:
		data, err := encodeJPEG(img, jpeg.DefaultQuality)
		return data, "image/jpeg", err
	}
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("imaging: encode jpeg at quality %d: %w", quality, err)
	}
	return buf.Bytes(), nil
}

// flatten composites translucent images onto white; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

func mediaTypeFor(format, declared string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	}
	return declared
}
