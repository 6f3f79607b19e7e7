package spng

import (
	"io"
)

// Decode reads a whole PNG from r and returns its header and pixels in
// format f.
func Decode(r io.Reader, f Format) (Header, []byte, error) {
	ctx := NewContext(DefaultOptions())
	if err := ctx.SetStream(r); err != nil {
		return Header{}, nil, err
	}
	return decode(ctx, f)
}

// DecodeBytes is Decode for a PNG already in memory.
func DecodeBytes(b []byte, f Format) (Header, []byte, error) {
	ctx := NewContext(DefaultOptions())
	if err := ctx.SetBuffer(b); err != nil {
		return Header{}, nil, err
	}
	return decode(ctx, f)
}

func decode(ctx *Context, f Format) (Header, []byte, error) {
	size, err := ctx.DecodedImageSize(f)
	if err != nil {
		return Header{}, nil, err
	}
	h, _ := ctx.Header()
	out := make([]byte, size)
	if err := ctx.DecodeImage(out, f, 0); err != nil {
		return Header{}, nil, err
	}
	return h, out, nil
}
