package chunk

import (
	"encoding/binary"
	"fmt"

	"spng.adpollak.net/internal/oops"
)

// Chunk defines the chunk layout as specified by PNG datastream structure.
type Chunk struct {
	Length uint32    // A four-byte unsigned integer giving the number of bytes in the chunk's data field.
	Type   ChunkType // A sequence of four bytes defining the chunk type.
	Data   []byte    // The data bytes of the relevant chunk type; can be zero length.
	Crc    uint32    // A four-byte CRC (Cyclic Redundancy Code) calculated on the preceding bytes in the chunk.
	// Includes chunk type and data, but NOT length.
}

// ChunkType is the four-byte chunk tag. Bit 5 of each byte carries a
// property: ancillary, private, reserved and safe-to-copy.
type ChunkType [4]byte

func (c ChunkType) String() string {
	return string(c[:])
}

// IsCritical determines if a chunk is a Ancillary or Critical type.
func (c ChunkType) IsCritical() bool {
	return c[0]&0x20 == 0
}

func (c ChunkType) IsPublic() bool {
	return c[1]&0x20 == 0
}

func (c ChunkType) IsReservedValid() bool {
	return c[2]&0x20 == 0
}

func (c ChunkType) IsSafeToCopy() bool {
	return c[3]&0x20 != 0
}

// Valid reports whether every byte is an ASCII letter.
func (c ChunkType) Valid() bool {
	for _, b := range c {
		if !(b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z') {
			return false
		}
	}
	return true
}

var (
	// NOTE: Critical chunks
	ChunkIHDR = ChunkType{'I', 'H', 'D', 'R'}
	ChunkPLTE = ChunkType{'P', 'L', 'T', 'E'}
	ChunkIDAT = ChunkType{'I', 'D', 'A', 'T'}
	ChunkIEND = ChunkType{'I', 'E', 'N', 'D'}

	// NOTE:  Ancillary chunks
	ChunkcHRM = ChunkType{'c', 'H', 'R', 'M'}
	ChunkgAMA = ChunkType{'g', 'A', 'M', 'A'}
	ChunkiCCP = ChunkType{'i', 'C', 'C', 'P'}
	ChunksBIT = ChunkType{'s', 'B', 'I', 'T'}
	ChunksRGB = ChunkType{'s', 'R', 'G', 'B'}
	ChunkbKGD = ChunkType{'b', 'K', 'G', 'D'}
	ChunkhIST = ChunkType{'h', 'I', 'S', 'T'}
	ChunktRNS = ChunkType{'t', 'R', 'N', 'S'}
	ChunkpHYs = ChunkType{'p', 'H', 'Y', 's'}
	ChunksPLT = ChunkType{'s', 'P', 'L', 'T'}
	ChunktIME = ChunkType{'t', 'I', 'M', 'E'}
	ChunkiTXt = ChunkType{'i', 'T', 'X', 't'}
	ChunktEXt = ChunkType{'t', 'E', 'X', 't'}
	ChunkzTXt = ChunkType{'z', 'T', 'X', 't'}
	ChunkoFFs = ChunkType{'o', 'F', 'F', 's'}
	ChunkeXIf = ChunkType{'e', 'X', 'I', 'f'}
)

type ColorType uint8

const (
	Grayscale      ColorType = 0
	Truecolor      ColorType = 2
	Indexed        ColorType = 3
	GrayscaleAlpha ColorType = 4
	TruecolorAlpha ColorType = 6
)

func (c ColorType) String() string {
	switch c {
	case Grayscale:
		return "grayscale"
	case Truecolor:
		return "truecolor"
	case Indexed:
		return "indexed"
	case GrayscaleAlpha:
		return "grayscale+alpha"
	case TruecolorAlpha:
		return "truecolor+alpha"
	}
	return fmt.Sprintf("color type %d", uint8(c))
}

// Samples is the number of samples per pixel as stored in the file.
func (c ColorType) Samples() int {
	switch c {
	case Grayscale, Indexed:
		return 1
	case GrayscaleAlpha:
		return 2
	case Truecolor:
		return 3
	case TruecolorAlpha:
		return 4
	}
	return 0
}

func (c ColorType) HasAlpha() bool {
	return c == GrayscaleAlpha || c == TruecolorAlpha
}

func (c ColorType) IsGray() bool {
	return c == Grayscale || c == GrayscaleAlpha
}

const (
	InterlaceNone  uint8 = 0
	InterlaceAdam7 uint8 = 1
)

// maxDimension is the largest width or height a PNG may declare.
const maxDimension = 1<<31 - 1

type IHDR struct {
	Width             uint32
	Height            uint32
	BitDepth          uint8
	ColorType         ColorType
	CompressionMethod uint8
	FilterMethod      uint8
	InterlaceMethod   uint8
}

// BitsPerPixel is the packed size of one pixel in the file.
func (h IHDR) BitsPerPixel() int {
	return h.ColorType.Samples() * int(h.BitDepth)
}

// BytesPerPixel is the filter distance: bytes per complete pixel, rounded
// up to one for sub-byte depths.
func (h IHDR) BytesPerPixel() int {
	return (h.BitsPerPixel() + 7) / 8
}

// RowBytes is the packed size of a row of width pixels, without the
// filter-type byte.
func (h IHDR) RowBytes(width uint32) int64 {
	return (int64(width)*int64(h.BitsPerPixel()) + 7) / 8
}

func (h IHDR) Interlaced() bool {
	return h.InterlaceMethod == InterlaceAdam7
}

// HandleIHDR parses and validates an IHDR payload. Dimension limits are
// applied by the parser, which knows them.
func HandleIHDR(data []byte) (IHDR, error) {
	if len(data) != 13 {
		return IHDR{}, oops.New(oops.FormatError, oops.CodeIHDRSize, nil, "invalid length for IHDR: %d", len(data))
	}
	ihdr := IHDR{
		Width:             binary.BigEndian.Uint32(data[0:4]),
		Height:            binary.BigEndian.Uint32(data[4:8]),
		BitDepth:          data[8],
		ColorType:         ColorType(data[9]),
		CompressionMethod: data[10],
		FilterMethod:      data[11],
		InterlaceMethod:   data[12],
	}
	return ihdr, ihdr.validate()
}

func (h IHDR) validate() error {
	if h.Width == 0 || h.Width > maxDimension {
		return oops.New(oops.FormatError, oops.CodeWidth, nil, "width %d", h.Width)
	}
	if h.Height == 0 || h.Height > maxDimension {
		return oops.New(oops.FormatError, oops.CodeHeight, nil, "height %d", h.Height)
	}

	switch h.BitDepth {
	case 1, 2, 4, 8, 16:
	default:
		return oops.New(oops.FormatError, oops.CodeBitDepth, nil, "bit depth %d", h.BitDepth)
	}

	var depthOK bool
	switch h.ColorType {
	case Grayscale:
		depthOK = true
	case Indexed:
		depthOK = h.BitDepth <= 8
	case Truecolor, GrayscaleAlpha, TruecolorAlpha:
		depthOK = h.BitDepth >= 8
	default:
		return oops.New(oops.FormatError, oops.CodeColorType, nil, "color type %d", uint8(h.ColorType))
	}
	if !depthOK {
		return oops.New(oops.UnsupportedFeature, oops.CodeBitDepth, nil, "bit depth %d with %s", h.BitDepth, h.ColorType)
	}

	if h.CompressionMethod != 0 {
		return oops.New(oops.UnsupportedFeature, oops.CodeCompressionMethod, nil, "compression method %d", h.CompressionMethod)
	}
	if h.FilterMethod != 0 {
		return oops.New(oops.UnsupportedFeature, oops.CodeFilterMethod, nil, "filter method %d", h.FilterMethod)
	}
	if h.InterlaceMethod > InterlaceAdam7 {
		return oops.New(oops.UnsupportedFeature, oops.CodeInterlaceMethod, nil, "interlace method %d", h.InterlaceMethod)
	}
	return nil
}
