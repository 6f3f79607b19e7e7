package spng_test

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	stdpng "image/png"
	"math/rand"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spng.adpollak.net"
	"spng.adpollak.net/internal/pngtest"
)

var allFormats = []spng.Format{
	spng.FormatRGBA8, spng.FormatRGBA16, spng.FormatRGB8,
	spng.FormatG8, spng.FormatGA8, spng.FormatGA16, spng.FormatNative,
}

var samples = map[uint8]int{0: 1, 2: 3, 3: 1, 4: 2, 6: 4}

// randomPixels fills an image with noise, keeping the padding bits at the
// end of each row zero.
func randomPixels(rng *rand.Rand, h pngtest.Header) []byte {
	bits := samples[h.Color] * int(h.Depth)
	stride := (int(h.Width)*bits + 7) / 8
	pix := make([]byte, stride*int(h.Height))
	rng.Read(pix)
	if pad := stride*8 - int(h.Width)*bits; pad > 0 {
		for y := 0; y < int(h.Height); y++ {
			pix[(y+1)*stride-1] &^= byte(1<<pad - 1)
		}
	}
	return pix
}

func randomPalette(rng *rand.Rand, depth uint8) []byte {
	plte := make([]byte, 3<<depth)
	rng.Read(plte)
	return plte
}

func encode(h pngtest.Header, pix, plte []byte, idatChunks int) []byte {
	b := pngtest.New().IHDR(h)
	if plte != nil {
		b.Chunk("PLTE", plte)
	}
	img := pngtest.Pixels(h, pix)
	return b.IDAT(pngtest.Compress(img.Filtered(pngtest.Cycle)), idatChunks).IEND().Bytes()
}

func TestDecodeSinglePixel(t *testing.T) {
	png := encode(pngtest.Header{Width: 1, Height: 1, Depth: 8, Color: 6}, []byte{255, 0, 128, 255}, nil, 1)

	h, out, err := spng.DecodeBytes(png, spng.FormatRGBA8)
	require.NoError(t, err)
	assert.EqualValues(t, 1, h.Width)
	assert.EqualValues(t, 1, h.Height)
	assert.Equal(t, spng.ColorTruecolorAlpha, h.ColorType)
	assert.Equal(t, []byte{255, 0, 128, 255}, out)

	_, out, err = spng.Decode(iotest.OneByteReader(bytes.NewReader(png)), spng.FormatRGBA16)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 255, 0, 0, 128, 128, 255, 255}, out)
}

type imageCase struct {
	name string
	h    pngtest.Header
}

func imageCases() []imageCase {
	var cases []imageCase
	sizes := [][2]uint32{{1, 1}, {2, 1}, {1, 3}, {3, 2}, {5, 5}, {9, 7}, {33, 17}}
	depths := map[uint8][]uint8{0: {1, 2, 4, 8, 16}, 2: {8, 16}, 3: {1, 2, 4, 8}, 4: {8, 16}, 6: {8, 16}}
	for _, ct := range []uint8{0, 2, 3, 4, 6} {
		for _, depth := range depths[ct] {
			for _, s := range sizes {
				h := pngtest.Header{Width: s[0], Height: s[1], Depth: depth, Color: ct}
				cases = append(cases, imageCase{
					name: fmt.Sprintf("c%d_d%d_%dx%d", ct, depth, s[0], s[1]),
					h:    h,
				})
			}
		}
	}
	return cases
}

func TestInterlacedMatchesPlain(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, tc := range imageCases() {
		t.Run(tc.name, func(t *testing.T) {
			pix := randomPixels(rng, tc.h)
			var plte []byte
			if tc.h.Color == 3 {
				plte = randomPalette(rng, tc.h.Depth)
			}
			plain := encode(tc.h, pix, plte, 1)
			ih := tc.h
			ih.Interlace = 1
			interlaced := encode(ih, pix, plte, 3)

			for _, f := range allFormats {
				want, err := decodeAll(plain, f, 0)
				if errors.Is(err, spng.CodeFormat) {
					continue
				}
				require.NoError(t, err, f.String())
				got, err := decodeAll(interlaced, f, 0)
				require.NoError(t, err, f.String())
				assert.Equal(t, want, got, f.String())
			}
		})
	}
}

func decodeAll(png []byte, f spng.Format, flags spng.DecodeFlags) ([]byte, error) {
	ctx := spng.NewContext(spng.DefaultOptions())
	if err := ctx.SetBuffer(png); err != nil {
		return nil, err
	}
	size, err := ctx.DecodedImageSize(f)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	return out, ctx.DecodeImage(out, f, flags)
}

func TestNativeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, tc := range imageCases() {
		pix := randomPixels(rng, tc.h)
		var plte []byte
		if tc.h.Color == 3 {
			plte = randomPalette(rng, tc.h.Depth)
		}
		out, err := decodeAll(encode(tc.h, pix, plte, 2), spng.FormatNative, 0)
		require.NoError(t, err, tc.name)
		assert.Equal(t, pix, out, tc.name)
	}
}

func TestDecodedImageSizeFormula(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	pixelBits := map[spng.Format]int{
		spng.FormatRGBA8: 32, spng.FormatRGBA16: 64, spng.FormatRGB8: 24,
		spng.FormatG8: 8, spng.FormatGA8: 16, spng.FormatGA16: 32,
	}
	for _, tc := range imageCases() {
		var plte []byte
		if tc.h.Color == 3 {
			plte = randomPalette(rng, 1)
		}
		png := encode(tc.h, randomPixels(rng, tc.h), plte, 1)
		ctx := spng.NewContext(spng.DefaultOptions())
		require.NoError(t, ctx.SetBuffer(png))
		for _, f := range allFormats {
			size, err := ctx.DecodedImageSize(f)
			if errors.Is(err, spng.CodeFormat) {
				continue
			}
			require.NoError(t, err)
			bits, ok := pixelBits[f]
			if !ok {
				bits = samples[tc.h.Color] * int(tc.h.Depth)
			}
			rowBytes := (int(tc.h.Width)*bits + 7) / 8
			assert.Equal(t, int(tc.h.Height)*rowBytes, size, "%s %s", tc.name, f)
		}
	}
}

func TestDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	h := pngtest.Header{Width: 31, Height: 29, Depth: 16, Color: 6, Interlace: 1}
	png := encode(h, randomPixels(rng, h), nil, 4)

	first, err := decodeAll(png, spng.FormatRGBA16, 0)
	require.NoError(t, err)
	second, err := decodeAll(png, spng.FormatRGBA16, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for _, b := range []spng.Backend{spng.BackendStd, spng.BackendKlauspost} {
		opts := spng.DefaultOptions()
		opts.Backend = b
		ctx := spng.NewContext(opts)
		require.NoError(t, ctx.SetStream(iotest.HalfReader(bytes.NewReader(png))))
		out := make([]byte, len(first))
		require.NoError(t, ctx.DecodeImage(out, spng.FormatRGBA16, 0))
		assert.Equal(t, first, out, b.Name())
	}
}

// chunkSpans lists the byte ranges covering data and CRC of each chunk.
func chunkSpans(png []byte) [][2]int {
	var spans [][2]int
	for off := 8; off+12 <= len(png); {
		n := int(png[off])<<24 | int(png[off+1])<<16 | int(png[off+2])<<8 | int(png[off+3])
		spans = append(spans, [2]int{off + 8, off + 12 + n})
		off += 12 + n
	}
	return spans
}

func TestBitFlipIsCorruptData(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	h := pngtest.Header{Width: 6, Height: 4, Depth: 8, Color: 2}
	png := encode(h, randomPixels(rng, h), nil, 2)
	want, err := decodeAll(png, spng.FormatRGBA8, 0)
	require.NoError(t, err)

	for _, span := range chunkSpans(png) {
		for i := span[0]; i < span[1]; i++ {
			bit := byte(1) << (i % 8)
			bad := bytes.Clone(png)
			bad[i] ^= bit

			_, err := decodeAll(bad, spng.FormatRGBA8, 0)
			require.Error(t, err, "byte %d", i)
			assert.True(t, errors.Is(err, spng.CorruptData), "byte %d: %v", i, err)

			// The CRC itself is all that changed; with checking off the image
			// still decodes.
			if i >= span[1]-4 {
				opts := spng.DefaultOptions()
				opts.CRCCritical, opts.CRCAncillary = spng.CRCUse, spng.CRCUse
				ctx := spng.NewContext(opts)
				require.NoError(t, ctx.SetBuffer(bad))
				out := make([]byte, len(want))
				require.NoError(t, ctx.DecodeImage(out, spng.FormatRGBA8, 0), "byte %d", i)
				assert.Equal(t, want, out)
			}
		}
	}
}

func TestOversizeHeaderRejectedEarly(t *testing.T) {
	tests := []struct {
		name string
		h    pngtest.Header
		code spng.Code
	}{
		{"width", pngtest.Header{Width: 1<<20 + 1, Height: 1, Depth: 8}, spng.CodeUserWidth},
		{"height", pngtest.Header{Width: 1, Height: 1<<20 + 1, Depth: 8}, spng.CodeUserHeight},
		{"decoded size", pngtest.Header{Width: 1 << 20, Height: 1 << 20, Depth: 16, Color: 6}, spng.CodeDecodedSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No image data follows: reading past IHDR would be an IoError.
			png := pngtest.New().IHDR(tt.h).Bytes()
			ctx := spng.NewContext(spng.DefaultOptions())
			require.NoError(t, ctx.SetBuffer(png))
			err := ctx.ReadInfo()
			assert.True(t, errors.Is(err, spng.LimitExceeded), "%v", err)
			assert.True(t, errors.Is(err, tt.code), "%v", err)
			assert.Equal(t, spng.StateError, ctx.State())
		})
	}
}

func TestMissingPalette(t *testing.T) {
	h := pngtest.Header{Width: 2, Height: 2, Depth: 8, Color: 3}
	png := encode(h, make([]byte, 4), nil, 1)
	_, _, err := spng.DecodeBytes(png, spng.FormatRGBA8)
	assert.True(t, errors.Is(err, spng.FormatError), "%v", err)
	assert.True(t, errors.Is(err, spng.CodeNoPLTE), "%v", err)
}

func TestPaletteIndexOutOfRange(t *testing.T) {
	h := pngtest.Header{Width: 2, Height: 1, Depth: 8, Color: 3}
	png := encode(h, []byte{0, 2}, []byte{1, 2, 3, 4, 5, 6}, 1)
	_, _, err := spng.DecodeBytes(png, spng.FormatRGBA8)
	assert.True(t, errors.Is(err, spng.CorruptData), "%v", err)
	assert.True(t, errors.Is(err, spng.CodePLTEIndex), "%v", err)
}

func TestEmptyPassesConsumeNoRows(t *testing.T) {
	for _, size := range [][2]uint32{{1, 1}, {2, 1}, {1, 2}, {3, 3}, {4, 1}} {
		h := pngtest.Header{Width: size[0], Height: size[1], Depth: 8, Color: 0, Interlace: 1}
		pix := make([]byte, size[0]*size[1])
		for i := range pix {
			pix[i] = byte(i + 1)
		}
		name := fmt.Sprintf("%dx%d", size[0], size[1])

		out, err := decodeAll(encode(h, pix, nil, 1), spng.FormatG8, 0)
		require.NoError(t, err, name)
		assert.Equal(t, pix, out, name)

		// One more row than the non-empty passes need is extra data.
		img := pngtest.Pixels(h, pix)
		data := append(img.Filtered(pngtest.Fixed(0)), 0, 0)
		png := pngtest.New().IHDR(h).IDAT(pngtest.Compress(data), 1).IEND().Bytes()
		_, err = decodeAll(png, spng.FormatG8, 0)
		assert.True(t, errors.Is(err, spng.CodeIDATStream), "%s: %v", name, err)
	}
}

func TestTruncatedImageData(t *testing.T) {
	h := pngtest.Header{Width: 8, Height: 8, Depth: 8, Color: 0}
	img := pngtest.Pixels(h, make([]byte, 64))
	data := img.Filtered(pngtest.Fixed(0))
	png := pngtest.New().IHDR(h).IDAT(pngtest.Compress(data[:len(data)-3]), 1).IEND().Bytes()

	_, err := decodeAll(png, spng.FormatG8, 0)
	assert.True(t, errors.Is(err, spng.CorruptData), "%v", err)
	assert.True(t, errors.Is(err, spng.CodeIDATTooShort), "%v", err)
}

func TestTruncatedFile(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	h := pngtest.Header{Width: 4, Height: 4, Depth: 8, Color: 6}
	png := encode(h, randomPixels(rng, h), nil, 1)

	for _, n := range []int{0, 5, 20, 40, len(png) - 13, len(png) - 1} {
		_, _, err := spng.Decode(bytes.NewReader(png[:n]), spng.FormatRGBA8)
		assert.True(t, errors.Is(err, spng.IoError), "%d: %v", n, err)
	}
}

func TestInvalidFilter(t *testing.T) {
	h := pngtest.Header{Width: 1, Height: 1, Depth: 8}
	png := pngtest.New().IHDR(h).IDAT(pngtest.Compress([]byte{5, 0}), 1).IEND().Bytes()
	_, err := decodeAll(png, spng.FormatG8, 0)
	assert.True(t, errors.Is(err, spng.CodeFilter), "%v", err)
}

func TestAgainstImagePNG(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rect := image.Rect(0, 0, 13, 7)

	nrgba := image.NewNRGBA(rect)
	rng.Read(nrgba.Pix)

	gray16 := image.NewGray16(rect)
	rng.Read(gray16.Pix)

	palette := color.Palette{
		color.NRGBA{255, 0, 0, 255},
		color.NRGBA{0, 255, 0, 128},
		color.NRGBA{0, 0, 255, 0},
	}
	paletted := image.NewPaletted(rect, palette)
	for i := range paletted.Pix {
		paletted.Pix[i] = uint8(rng.Intn(len(palette)))
	}

	tests := []struct {
		name   string
		img    image.Image
		format spng.Format
		want   func(x, y int) []byte
	}{
		{"nrgba", nrgba, spng.FormatRGBA8, func(x, y int) []byte {
			return nrgba.Pix[nrgba.PixOffset(x, y):][:4]
		}},
		{"gray16", gray16, spng.FormatRGBA16, func(x, y int) []byte {
			g := gray16.Pix[gray16.PixOffset(x, y):][:2]
			return []byte{g[0], g[1], g[0], g[1], g[0], g[1], 0xff, 0xff}
		}},
		{"gray16 ga16", gray16, spng.FormatGA16, func(x, y int) []byte {
			g := gray16.Pix[gray16.PixOffset(x, y):][:2]
			return []byte{g[0], g[1], 0xff, 0xff}
		}},
		{"paletted", paletted, spng.FormatRGBA8, func(x, y int) []byte {
			c := palette[paletted.ColorIndexAt(x, y)].(color.NRGBA)
			return []byte{c.R, c.G, c.B, c.A}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, stdpng.Encode(&buf, tt.img))

			h, out, err := spng.Decode(&buf, tt.format)
			require.NoError(t, err)
			require.EqualValues(t, rect.Dx(), h.Width)

			var want []byte
			for y := 0; y < rect.Dy(); y++ {
				for x := 0; x < rect.Dx(); x++ {
					want = append(want, tt.want(x, y)...)
				}
			}
			assert.Equal(t, want, out)
		})
	}
}

func TestDecodeFlags(t *testing.T) {
	h := pngtest.Header{Width: 2, Height: 1, Depth: 8, Color: 2}
	png := pngtest.New().
		IHDR(h).
		Chunk("gAMA", []byte{0, 1, 0x86, 0xa0}).
		Chunk("tRNS", []byte{0, 10, 0, 20, 0, 30}).
		Chunk("bKGD", []byte{0, 1, 0, 2, 0, 3}).
		IDAT(pngtest.Compress([]byte{0, 10, 20, 30, 0, 0, 0}), 1).
		IEND().Bytes()

	out, err := decodeAll(png, spng.FormatRGBA8, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 255, 0, 0, 0, 255}, out)

	out, err = decodeAll(png, spng.FormatRGBA8, spng.DecodeTransparency)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 0, 0, 0, 0, 255}, out)

	out, err = decodeAll(png, spng.FormatRGBA8, spng.DecodeTransparency|spng.DecodeBackground)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 255, 0, 0, 0, 255}, out)

	out, err = decodeAll(png, spng.FormatRGB8, spng.DecodeGamma)
	require.NoError(t, err)
	assert.Greater(t, out[0], byte(10))
	assert.Equal(t, byte(0), out[3])

	_, err = decodeAll(png, spng.FormatNative, spng.DecodeGamma)
	assert.True(t, errors.Is(err, spng.CodeFlags), "%v", err)
}

func TestBackgroundMaskedToBitDepth(t *testing.T) {
	h := pngtest.Header{Width: 2, Height: 1, Depth: 1, Color: 0}
	img := pngtest.Pixels(h, []byte{0x40})
	png := pngtest.New().
		IHDR(h).
		Chunk("tRNS", []byte{0, 0}).
		// Gray 5 does not fit in one bit; only the low bit counts.
		Chunk("bKGD", []byte{0, 5}).
		IDAT(pngtest.Compress(img.Filtered(pngtest.Fixed(0))), 1).
		IEND().Bytes()

	out, err := decodeAll(png, spng.FormatG8, spng.DecodeTransparency|spng.DecodeBackground)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff}, out)

	ctx := spng.NewContext(spng.DefaultOptions())
	require.NoError(t, ctx.SetBuffer(png))
	bg, err := ctx.Background()
	require.NoError(t, err)
	assert.EqualValues(t, 1, bg.Gray)
}
