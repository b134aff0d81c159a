package imaging

import (
	"bytes"
	"fmt"
	"image/png"
	"math"
)

// Client-side pre-filter bounds.
const (
	PrefilterMaxBytes = 500 * 1024
	prefilterQuality  = 70
)

// Prefilter shrinks an image before it is sent to the server. Both dimensions
// are scaled by sqrt(maxBytes/len(data)) and the result is re-encoded once at
// quality 70, so the output size only approximates maxBytes. Inputs already
// within maxBytes are returned unchanged; the browser form re-encodes them
// anyway, upscaling small photos, which this deliberately does not.
func Prefilter(data []byte, maxBytes int64) (*Result, error) {
	if maxBytes <= 0 {
		maxBytes = PrefilterMaxBytes
	}
	src, format, err := decode(data)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	if int64(len(data)) <= maxBytes {
		return &Result{Data: data, MediaType: mediaTypeFor(format, ""), Width: b.Dx(), Height: b.Dy()}, nil
	}

	factor := math.Sqrt(float64(maxBytes) / float64(len(data)))
	img := scaleTo(src, scaledDim(b.Dx(), factor, 0), scaledDim(b.Dy(), factor, 0))
	out := img.Bounds()

	// PNG has no quality knob; keep it lossless like a canvas export would.
	if format == "png" {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("imaging: encode png: %w", err)
		}
		return &Result{Data: buf.Bytes(), MediaType: "image/png", Width: out.Dx(), Height: out.Dy()}, nil
	}

	buf, err := encodeJPEG(img, prefilterQuality)
	if err != nil {
		return nil, err
	}
	return &Result{Data: buf, MediaType: "image/jpeg", Width: out.Dx(), Height: out.Dy(), Quality: prefilterQuality}, nil
}
