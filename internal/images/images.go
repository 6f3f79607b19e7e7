package images

import (
	"image"
	"image/color"

	"spng.adpollak.net/internal/chunk"
	"spng.adpollak.net/internal/oops"
	"spng.adpollak.net/internal/scanline"
)

// CreateImage wraps pixels decoded in format f as an image.Image. Where the
// layout already matches an image type the buffer is shared, not copied.
// Native output is supported for 8 and 16 bit grayscale and for indexed
// images, which need meta for the palette.
func CreateImage(pix []byte, f scanline.Format, ihdr chunk.IHDR, meta *chunk.Metadata) (image.Image, error) {
	width, height := int(ihdr.Width), int(ihdr.Height)
	rect := image.Rect(0, 0, width, height)
	size, ok := f.ImageSize(ihdr)
	if !ok || int64(len(pix)) != size {
		return nil, oops.New(oops.UsageError, oops.CodeBufSize, nil, "%d bytes of %s pixels for %dx%d", len(pix), f, width, height)
	}

	switch f {
	case scanline.FormatRGBA8:
		return &image.NRGBA{Pix: pix, Stride: 4 * width, Rect: rect}, nil
	case scanline.FormatRGBA16:
		return &image.NRGBA64{Pix: pix, Stride: 8 * width, Rect: rect}, nil
	case scanline.FormatG8:
		return &image.Gray{Pix: pix, Stride: width, Rect: rect}, nil
	case scanline.FormatRGB8:
		img := image.NewNRGBA(rect)
		for i, j := 0, 0; i < len(pix); i, j = i+3, j+4 {
			copy(img.Pix[j:j+3], pix[i:i+3])
			img.Pix[j+3] = 0xff
		}
		return img, nil
	case scanline.FormatGA8:
		img := image.NewNRGBA(rect)
		for i, j := 0, 0; i < len(pix); i, j = i+2, j+4 {
			y := pix[i]
			img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = y, y, y, pix[i+1]
		}
		return img, nil
	case scanline.FormatGA16:
		img := image.NewNRGBA64(rect)
		for i, j := 0, 0; i < len(pix); i, j = i+4, j+8 {
			for k := 0; k < 6; k += 2 {
				img.Pix[j+k], img.Pix[j+k+1] = pix[i], pix[i+1]
			}
			img.Pix[j+6], img.Pix[j+7] = pix[i+2], pix[i+3]
		}
		return img, nil
	case scanline.FormatNative:
		return handleNative(pix, ihdr, meta, rect)
	}
	return nil, oops.New(oops.UsageError, oops.CodeFormat, nil, "unknown output format %d", int(f))
}

func handleNative(pix []byte, ihdr chunk.IHDR, meta *chunk.Metadata, rect image.Rectangle) (image.Image, error) {
	width := rect.Dx()
	switch {
	case ihdr.ColorType == chunk.Grayscale && ihdr.BitDepth == 8:
		return &image.Gray{Pix: pix, Stride: width, Rect: rect}, nil
	case ihdr.ColorType == chunk.Grayscale && ihdr.BitDepth == 16:
		return &image.Gray16{Pix: pix, Stride: 2 * width, Rect: rect}, nil
	case ihdr.ColorType == chunk.Indexed:
		if meta == nil || meta.Palette == nil {
			return nil, oops.Newc(oops.FormatError, oops.CodeNoPLTE)
		}
		return handleIndexed(pix, ihdr, meta, rect), nil
	}
	return nil, oops.New(oops.UnsupportedFeature, oops.CodeFormat, nil, "no image type for native %d-bit %s", ihdr.BitDepth, ihdr.ColorType)
}

// handleIndexed unpacks sub-byte indices to one byte per pixel.
func handleIndexed(pix []byte, ihdr chunk.IHDR, meta *chunk.Metadata, rect image.Rectangle) *image.Paletted {
	pal := make(color.Palette, len(meta.Palette))
	for i, c := range meta.Palette {
		a := uint8(0xff)
		if meta.Transparency != nil && i < len(meta.Transparency.Alpha) {
			a = meta.Transparency.Alpha[i]
		}
		pal[i] = color.NRGBA{R: c.R, G: c.G, B: c.B, A: a}
	}

	depth := int(ihdr.BitDepth)
	if depth == 8 {
		return &image.Paletted{Pix: pix, Stride: rect.Dx(), Rect: rect, Palette: pal}
	}
	img := image.NewPaletted(rect, pal)
	stride := int(ihdr.RowBytes(ihdr.Width))
	mask := byte(1<<depth - 1)
	for y := 0; y < rect.Dy(); y++ {
		row := pix[y*stride : (y+1)*stride]
		for x := 0; x < rect.Dx(); x++ {
			bit := x * depth
			shift := 8 - depth - bit%8
			img.Pix[y*img.Stride+x] = row[bit/8] >> shift & mask
		}
	}
	return img
}
