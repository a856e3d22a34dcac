package pixel

import "fmt"

// nv12ToRGB converts a semi-planar NV12 buffer into packed RGB using
// integer BT.601 studio-range coefficients. The luma plane is Stride
// bytes per row; the interleaved CbCr plane starts at Stride*Height and
// holds one CbCr pair per 2x2 luma block.
func nv12ToRGB(src SourceFrame) (*Frame, error) {
	w, h := src.Width, src.Height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrDecode, w, h)
	}

	stride := src.Stride
	if stride == 0 {
		stride = w
	}
	if stride < w {
		return nil, fmt.Errorf("%w: stride %d smaller than width %d", ErrDecode, stride, w)
	}

	lumaSize := stride * h
	chromaSize := stride * ((h + 1) / 2)
	if len(src.Data) < lumaSize+chromaSize {
		return nil, fmt.Errorf("%w: buffer %d bytes, need %d for %dx%d stride %d",
			ErrDecode, len(src.Data), lumaSize+chromaSize, w, h, stride)
	}

	luma := src.Data[:lumaSize]
	chroma := src.Data[lumaSize : lumaSize+chromaSize]

	out := &Frame{
		Width:  w,
		Height: h,
		Pix:    make([]byte, w*h*Channels),
	}

	for y := 0; y < h; y++ {
		lumaRow := luma[y*stride:]
		chromaRow := chroma[(y/2)*stride:]
		dst := out.Pix[y*w*Channels:]

		for x := 0; x < w; x++ {
			c := int32(lumaRow[x]) - 16
			d := int32(chromaRow[(x/2)*2]) - 128
			e := int32(chromaRow[(x/2)*2+1]) - 128

			r := (298*c + 409*e + 128) >> 8
			g := (298*c - 100*d - 208*e + 128) >> 8
			b := (298*c + 516*d + 128) >> 8

			dst[x*3+0] = clamp8(r)
			dst[x*3+1] = clamp8(g)
			dst[x*3+2] = clamp8(b)
		}
	}

	return out, nil
}

func clamp8(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
