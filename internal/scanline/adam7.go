package scanline

import (
	"math"

	"spng.adpollak.net/internal/chunk"
)

// Pass is one sub-image of the decompressed data: the whole image when not
// interlaced, else one Adam7 pass.
type Pass struct {
	Index          int
	XStart, YStart uint32
	XStep, YStep   uint32
	Width, Height  uint32
}

var adam7 = [7][4]uint32{
	{0, 0, 8, 8},
	{4, 0, 8, 8},
	{0, 4, 4, 8},
	{2, 0, 4, 4},
	{0, 2, 2, 4},
	{1, 0, 2, 2},
	{0, 1, 1, 2},
}

func reduced(size, start, step uint32) uint32 {
	if size <= start {
		return 0
	}
	return (size - start + step - 1) / step
}

// Passes lists the passes that carry data, in stream order. Empty Adam7
// passes are left out since they have no rows in the stream.
func Passes(ihdr chunk.IHDR) []Pass {
	if !ihdr.Interlaced() {
		return []Pass{{XStep: 1, YStep: 1, Width: ihdr.Width, Height: ihdr.Height}}
	}
	passes := make([]Pass, 0, len(adam7))
	for i, g := range adam7 {
		p := Pass{
			Index:  i,
			XStart: g[0], YStart: g[1],
			XStep: g[2], YStep: g[3],
			Width:  reduced(ihdr.Width, g[0], g[2]),
			Height: reduced(ihdr.Height, g[1], g[3]),
		}
		if p.Width == 0 || p.Height == 0 {
			continue
		}
		passes = append(passes, p)
	}
	return passes
}

// Row maps a row of the pass to its row in the full image.
func (p Pass) Row(y uint32) uint32 {
	return p.YStart + y*p.YStep
}

// InflatedSize is the exact number of bytes the zlib stream must yield: a
// filter byte plus the packed row, for every row of every non-empty pass.
// ok is false when the size does not fit in an int64.
func InflatedSize(ihdr chunk.IHDR) (n int64, ok bool) {
	for _, p := range Passes(ihdr) {
		row := 1 + ihdr.RowBytes(p.Width)
		if int64(p.Height) > math.MaxInt64/row {
			return 0, false
		}
		size := int64(p.Height) * row
		if n > math.MaxInt64-size {
			return 0, false
		}
		n += size
	}
	return n, true
}

// Scatter copies a converted pass row into its columns of an image row.
// pixelBits is the output pixel size.
func Scatter(dst, src []byte, p Pass, pixelBits int) {
	if p.XStep == 1 && p.XStart == 0 {
		copy(dst, src[:(int(p.Width)*pixelBits+7)/8])
		return
	}
	if pixelBits%8 == 0 {
		n := pixelBits / 8
		for i := 0; i < int(p.Width); i++ {
			x := int(p.XStart) + i*int(p.XStep)
			copy(dst[x*n:(x+1)*n], src[i*n:(i+1)*n])
		}
		return
	}
	mask := byte(1)<<pixelBits - 1
	for i := 0; i < int(p.Width); i++ {
		x := int(p.XStart) + i*int(p.XStep)
		sbit, dbit := i*pixelBits, x*pixelBits
		v := src[sbit/8] >> (8 - pixelBits - sbit%8) & mask
		shift := 8 - pixelBits - dbit%8
		dst[dbit/8] = dst[dbit/8]&^(mask<<shift) | v<<shift
	}
}
