package images

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spng.adpollak.net/internal/chunk"
	"spng.adpollak.net/internal/oops"
	"spng.adpollak.net/internal/scanline"
)

func header(w, h uint32, depth uint8, ct chunk.ColorType) chunk.IHDR {
	return chunk.IHDR{Width: w, Height: h, BitDepth: depth, ColorType: ct}
}

func TestCreateImageRGBA(t *testing.T) {
	ihdr := header(2, 1, 8, chunk.TruecolorAlpha)
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	img, err := CreateImage(pix, scanline.FormatRGBA8, ihdr, nil)
	require.NoError(t, err)
	require.IsType(t, &image.NRGBA{}, img)
	assert.Equal(t, color.NRGBA{5, 6, 7, 8}, img.At(1, 0))

	img, err = CreateImage([]byte{1, 2, 3, 4, 5, 6, 7, 8}, scanline.FormatRGBA16, header(1, 1, 16, chunk.TruecolorAlpha), nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA64{0x0102, 0x0304, 0x0506, 0x0708}, img.At(0, 0))
}

func TestCreateImageExpands(t *testing.T) {
	img, err := CreateImage([]byte{9, 8, 7}, scanline.FormatRGB8, header(1, 1, 8, chunk.Truecolor), nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{9, 8, 7, 0xff}, img.At(0, 0))

	img, err = CreateImage([]byte{40, 50}, scanline.FormatGA8, header(1, 1, 8, chunk.GrayscaleAlpha), nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{40, 40, 40, 50}, img.At(0, 0))

	img, err = CreateImage([]byte{1, 2, 3, 4}, scanline.FormatGA16, header(1, 1, 16, chunk.GrayscaleAlpha), nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA64{0x0102, 0x0102, 0x0102, 0x0304}, img.At(0, 0))
}

func TestCreateImageGray(t *testing.T) {
	ihdr := header(3, 2, 8, chunk.Grayscale)
	pix := []byte{0, 1, 2, 3, 4, 5}
	img, err := CreateImage(pix, scanline.FormatG8, ihdr, nil)
	require.NoError(t, err)
	assert.Equal(t, color.Gray{Y: 5}, img.At(2, 1))
	assert.Equal(t, color.Gray{Y: 1}, img.At(1, 0))

	img, err = CreateImage([]byte{0xab, 0xcd}, scanline.FormatNative, header(1, 1, 16, chunk.Grayscale), nil)
	require.NoError(t, err)
	assert.Equal(t, color.Gray16{Y: 0xabcd}, img.At(0, 0))
}

func TestCreateImagePaletted(t *testing.T) {
	meta := &chunk.Metadata{
		Palette:      chunk.Palette{{R: 1}, {G: 2}, {B: 3}, {R: 4, G: 4, B: 4}},
		Transparency: &chunk.Transparency{Alpha: []uint8{0x80}},
	}
	// Five 2-bit indices: 0 1 2 3 | 1, padded.
	ihdr := header(5, 1, 2, chunk.Indexed)
	img, err := CreateImage([]byte{0x1b, 0x40}, scanline.FormatNative, ihdr, meta)
	require.NoError(t, err)
	p, ok := img.(*image.Paletted)
	require.True(t, ok)
	assert.Equal(t, []uint8{0, 1, 2, 3, 1}, p.Pix)
	assert.Equal(t, color.NRGBA{R: 1, A: 0x80}, p.Palette[0])
	assert.Equal(t, color.NRGBA{B: 3, A: 0xff}, p.Palette[2])

	_, err = CreateImage([]byte{0x1b, 0x40}, scanline.FormatNative, ihdr, &chunk.Metadata{})
	assert.True(t, errors.Is(err, oops.CodeNoPLTE), "%v", err)
}

func TestCreateImageErrors(t *testing.T) {
	_, err := CreateImage(make([]byte, 3), scanline.FormatRGBA8, header(1, 1, 8, chunk.TruecolorAlpha), nil)
	assert.True(t, errors.Is(err, oops.CodeBufSize), "%v", err)

	_, err = CreateImage(make([]byte, 3), scanline.FormatNative, header(1, 1, 8, chunk.Truecolor), nil)
	assert.True(t, errors.Is(err, oops.UnsupportedFeature), "%v", err)
}
