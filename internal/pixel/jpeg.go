package pixel

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// jpegToRGB decodes a compressed JPEG payload and repacks it as
// interleaved RGB. Cameras exposing MJPEG emit one standalone JPEG per
// capture cycle, so the stdlib decoder is sufficient.
func jpegToRGB(data []byte) (*Frame, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	out := &Frame{
		Width:  w,
		Height: h,
		Pix:    make([]byte, w*h*Channels),
	}

	// Most decoded JPEGs are YCbCr; going through RGBA first keeps a
	// single conversion path for all subsampling layouts.
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(bounds)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				rgba.Set(x, y, img.At(x, y))
			}
		}
	}

	for y := 0; y < h; y++ {
		srcRow := rgba.Pix[y*rgba.Stride:]
		dstRow := out.Pix[y*w*Channels:]
		for x := 0; x < w; x++ {
			dstRow[x*3+0] = srcRow[x*4+0]
			dstRow[x*3+1] = srcRow[x*4+1]
			dstRow[x*3+2] = srcRow[x*4+2]
		}
	}

	return out, nil
}
