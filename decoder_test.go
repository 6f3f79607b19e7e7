package spng_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spng.adpollak.net"
	"spng.adpollak.net/internal/pngtest"
)

func TestDecoder(t *testing.T) {
	h := pngtest.Header{Width: 3, Height: 2, Depth: 16, Color: 0, Interlace: 1}
	pix := []byte{0, 1, 0, 2, 0, 3, 1, 0, 2, 0, 3, 0}
	png := encode(h, pix, nil, 1)

	d := spng.NewDecoder(bytes.NewReader(png))
	out, r, err := d.ReadInfo()
	require.NoError(t, err)
	assert.Equal(t, spng.OutputInfo{
		Width:      3,
		Height:     2,
		Format:     spng.FormatRGBA16,
		ColorType:  spng.ColorTruecolorAlpha,
		BitDepth:   16,
		BufferSize: 3 * 2 * 8,
	}, out)
	assert.Equal(t, spng.Info{
		Width:      3,
		Height:     2,
		ColorType:  spng.ColorGrayscale,
		BitDepth:   16,
		Interlaced: true,
	}, r.Info())
	assert.Equal(t, 48, r.OutputBufferSize())

	buf := make([]byte, r.OutputBufferSize())
	require.NoError(t, r.NextFrame(buf))
	assert.Equal(t, []byte{0, 1, 0, 1, 0, 1, 0xff, 0xff}, buf[:8])
	assert.Equal(t, []byte{3, 0, 3, 0, 3, 0, 0xff, 0xff}, buf[40:])

	err = r.NextFrame(buf)
	assert.ErrorIs(t, err, spng.CodeBadState)
	assert.Equal(t, spng.StateFinished, r.Context().State())
}

func TestDecoderOutputFormat(t *testing.T) {
	h := pngtest.Header{Width: 2, Height: 1, Depth: 8, Color: 2}
	png := encode(h, []byte{10, 20, 30, 40, 50, 60}, nil, 1)

	d := spng.NewDecoder(bytes.NewReader(png))
	d.SetOutputFormat(spng.FormatG8)
	_, _, err := d.ReadInfo()
	assert.ErrorIs(t, err, spng.CodeFormat)

	d = spng.NewDecoder(bytes.NewReader(png))
	d.SetOutputFormat(spng.FormatRGB8)
	d.SetBackend(spng.BackendKlauspost)
	out, r, err := d.ReadInfo()
	require.NoError(t, err)
	assert.Equal(t, spng.ColorTruecolor, out.ColorType)
	assert.EqualValues(t, 8, out.BitDepth)
	buf := make([]byte, out.BufferSize)
	require.NoError(t, r.NextFrame(buf))
	assert.Equal(t, []byte{10, 20, 30, 40, 50, 60}, buf)

	d = spng.NewDecoder(bytes.NewReader(png))
	d.SetOutputFormat(spng.FormatNative)
	out, _, err = d.ReadInfo()
	require.NoError(t, err)
	assert.Equal(t, spng.ColorTruecolor, out.ColorType)
	assert.Equal(t, 6, out.BufferSize)
}

func TestDecoderRejects(t *testing.T) {
	h := pngtest.Header{Width: 64, Height: 64, Depth: 8, Color: 0}
	png := encode(h, make([]byte, 64*64), nil, 1)

	d := spng.NewDecoder(bytes.NewReader(png))
	d.SetDecodeFlags(spng.DecodeProgressive)
	_, _, err := d.ReadInfo()
	assert.ErrorIs(t, err, spng.CodeFlags)

	d = spng.NewDecoder(bytes.NewReader(png))
	l := spng.DefaultLimits()
	l.MaxWidth = 32
	d.SetLimits(l)
	_, _, err = d.ReadInfo()
	assert.ErrorIs(t, err, spng.CodeUserWidth)

	d = spng.NewDecoder(bytes.NewReader(png))
	_, r, err := d.ReadInfo()
	require.NoError(t, err)
	assert.ErrorIs(t, r.NextFrame(make([]byte, 10)), spng.CodeBufSize)
}
