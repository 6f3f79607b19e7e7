// Package scanline turns inflated PNG image data back into pixels:
// unfiltering, Adam7 geometry, sample expansion and conversion to an
// output layout.
package scanline

import (
	"fmt"
	"math"

	"spng.adpollak.net/internal/chunk"
	"spng.adpollak.net/internal/oops"
)

// Format is an output pixel layout. 16-bit formats are big-endian.
type Format int

const (
	FormatRGBA8 Format = iota + 1
	FormatRGBA16
	FormatRGB8
	FormatG8
	FormatGA8
	FormatGA16
	// FormatNative is the image's own packed layout, unfiltered and
	// deinterlaced but otherwise untouched.
	FormatNative
)

var formatNames = map[Format]string{
	FormatRGBA8:  "rgba8",
	FormatRGBA16: "rgba16",
	FormatRGB8:   "rgb8",
	FormatG8:     "g8",
	FormatGA8:    "ga8",
	FormatGA16:   "ga16",
	FormatNative: "native",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat accepts the names printed by String.
func ParseFormat(s string) (Format, bool) {
	for f, name := range formatNames {
		if name == s {
			return f, true
		}
	}
	return 0, false
}

// Check reports whether an image described by ihdr can be decoded to f.
func (f Format) Check(ihdr chunk.IHDR) error {
	switch f {
	case FormatRGBA8, FormatRGBA16, FormatRGB8, FormatNative:
		return nil
	case FormatG8, FormatGA8:
		if ihdr.ColorType.IsGray() && ihdr.BitDepth <= 8 {
			return nil
		}
	case FormatGA16:
		if ihdr.ColorType.IsGray() {
			return nil
		}
	default:
		return oops.New(oops.UsageError, oops.CodeFormat, nil, "unknown output format %d", int(f))
	}
	return oops.New(oops.UsageError, oops.CodeFormat, nil, "%s output from %d-bit %s", f, ihdr.BitDepth, ihdr.ColorType)
}

// PixelBits is the size of one output pixel in bits.
func (f Format) PixelBits(ihdr chunk.IHDR) int {
	switch f {
	case FormatRGBA8:
		return 32
	case FormatRGBA16:
		return 64
	case FormatRGB8:
		return 24
	case FormatG8:
		return 8
	case FormatGA8:
		return 16
	case FormatGA16:
		return 32
	}
	return ihdr.BitsPerPixel()
}

// RowBytes is the size of an output row of width pixels.
func (f Format) RowBytes(ihdr chunk.IHDR, width uint32) int64 {
	return (int64(width)*int64(f.PixelBits(ihdr)) + 7) / 8
}

// ImageSize is the size of the whole output image. ok is false when it
// does not fit in an int.
func (f Format) ImageSize(ihdr chunk.IHDR) (size int64, ok bool) {
	row := f.RowBytes(ihdr, ihdr.Width)
	if row != 0 && int64(ihdr.Height) > math.MaxInt64/row {
		return 0, false
	}
	size = row * int64(ihdr.Height)
	return size, size <= math.MaxInt
}

// Flags select optional processing during decode.
type Flags uint

const (
	// Transparency turns a tRNS color key into alpha for grayscale and
	// truecolor images. Palette transparency is always applied.
	Transparency Flags = 1 << iota
	// Gamma applies the gAMA chunk to color channels.
	Gamma
	// Background composites over the bKGD color, leaving opaque pixels.
	Background
	// Progressive prepares for row by row decoding.
	Progressive
)

const allFlags = Transparency | Gamma | Background | Progressive

// Check rejects unknown bits and corrections that have no meaning for f.
func (fl Flags) Check(f Format) error {
	if fl&^allFlags != 0 {
		return oops.New(oops.UsageError, oops.CodeFlags, nil, "unknown flags %#x", uint(fl&^allFlags))
	}
	if f == FormatNative && fl&(Gamma|Background) != 0 {
		return oops.New(oops.UsageError, oops.CodeFlags, nil, "gamma and background need a converted format")
	}
	return nil
}
