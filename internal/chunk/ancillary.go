package chunk

import (
	"bytes"
	"encoding/binary"

	"spng.adpollak.net/internal/oops"
)

type RGB struct {
	R, G, B uint8
}

// Palette is the PLTE chunk.
type Palette []RGB

func ParsePLTE(data []byte, ihdr IHDR) (Palette, error) {
	if len(data) == 0 || len(data)%3 != 0 || len(data) > 3*256 {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "PLTE length %d", len(data))
	}
	n := len(data) / 3
	if ihdr.ColorType == Indexed && n > 1<<ihdr.BitDepth {
		return nil, oops.New(oops.FormatError, oops.CodePLTE, nil, "%d palette entries for bit depth %d", n, ihdr.BitDepth)
	}
	plte := make(Palette, n)
	for i := range plte {
		plte[i] = RGB{data[3*i], data[3*i+1], data[3*i+2]}
	}
	return plte, nil
}

// Transparency is the tRNS chunk. Which fields are meaningful depends on
// the color type: Gray for grayscale, Red/Green/Blue for truecolor and
// Alpha (one entry per leading palette entry) for indexed images.
type Transparency struct {
	Gray             uint16
	Red, Green, Blue uint16
	Alpha            []uint8
}

func ParseTRNS(data []byte, ihdr IHDR, plte Palette) (*Transparency, error) {
	switch ihdr.ColorType {
	case Grayscale:
		if len(data) != 2 {
			return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "tRNS length %d", len(data))
		}
		return &Transparency{Gray: binary.BigEndian.Uint16(data)}, nil
	case Truecolor:
		if len(data) != 6 {
			return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "tRNS length %d", len(data))
		}
		return &Transparency{
			Red:   binary.BigEndian.Uint16(data[0:]),
			Green: binary.BigEndian.Uint16(data[2:]),
			Blue:  binary.BigEndian.Uint16(data[4:]),
		}, nil
	case Indexed:
		if plte == nil {
			return nil, oops.Newc(oops.FormatError, oops.CodeTRNSNoPLTE)
		}
		if len(data) == 0 || len(data) > len(plte) {
			return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "tRNS has %d entries for %d palette entries", len(data), len(plte))
		}
		return &Transparency{Alpha: append([]uint8(nil), data...)}, nil
	}
	return nil, oops.New(oops.FormatError, oops.CodeTRNSColorType, nil, "tRNS with %s", ihdr.ColorType)
}

// Background is the bKGD chunk, in the image's own sample depth.
type Background struct {
	Gray             uint16
	Red, Green, Blue uint16
	Index            uint8
}

// ParseBKGD keeps only the low BitDepth bits of gray and RGB samples, so
// an out of range value cannot exceed the sample range.
func ParseBKGD(data []byte, ihdr IHDR, plte Palette) (*Background, error) {
	mask := uint16(0xffff)
	if ihdr.BitDepth < 16 {
		mask = 1<<ihdr.BitDepth - 1
	}
	switch ihdr.ColorType {
	case Grayscale, GrayscaleAlpha:
		if len(data) != 2 {
			return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "bKGD length %d", len(data))
		}
		return &Background{Gray: binary.BigEndian.Uint16(data) & mask}, nil
	case Truecolor, TruecolorAlpha:
		if len(data) != 6 {
			return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "bKGD length %d", len(data))
		}
		return &Background{
			Red:   binary.BigEndian.Uint16(data[0:]) & mask,
			Green: binary.BigEndian.Uint16(data[2:]) & mask,
			Blue:  binary.BigEndian.Uint16(data[4:]) & mask,
		}, nil
	}
	if plte == nil {
		return nil, oops.Newc(oops.FormatError, oops.CodeBKGDNoPLTE)
	}
	if len(data) != 1 {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "bKGD length %d", len(data))
	}
	if int(data[0]) >= len(plte) {
		return nil, oops.New(oops.CorruptData, oops.CodeBKGDPLTEIndex, nil, "bKGD index %d with %d palette entries", data[0], len(plte))
	}
	return &Background{Index: data[0]}, nil
}

type Histogram []uint16

func ParseHIST(data []byte, plte Palette) (Histogram, error) {
	if plte == nil {
		return nil, oops.Newc(oops.FormatError, oops.CodeHISTNoPLTE)
	}
	if len(data) != 2*len(plte) {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "hIST length %d for %d palette entries", len(data), len(plte))
	}
	hist := make(Histogram, len(plte))
	for i := range hist {
		hist[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return hist, nil
}

// Chromaticities is the cHRM chunk in the PNG's fixed-point form
// (value * 100000).
type Chromaticities struct {
	WhitePointX, WhitePointY uint32
	RedX, RedY               uint32
	GreenX, GreenY           uint32
	BlueX, BlueY             uint32
}

func ParseCHRM(data []byte) (*Chromaticities, error) {
	if len(data) != 32 {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "cHRM length %d", len(data))
	}
	var v [8]uint32
	for i := range v {
		v[i] = binary.BigEndian.Uint32(data[4*i:])
		if v[i] > maxDimension {
			return nil, oops.New(oops.FormatError, oops.CodeCHRM, nil, "cHRM value %d", v[i])
		}
	}
	return &Chromaticities{v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7]}, nil
}

// Float returns the chromaticities as x,y pairs: white, red, green, blue.
func (c *Chromaticities) Float() [8]float64 {
	raw := [8]uint32{c.WhitePointX, c.WhitePointY, c.RedX, c.RedY, c.GreenX, c.GreenY, c.BlueX, c.BlueY}
	var out [8]float64
	for i, v := range raw {
		out[i] = float64(v) / 100_000.0
	}
	return out
}

type SRGB struct {
	RenderingIntent uint8
}

func ParseSRGB(data []byte) (*SRGB, error) {
	if len(data) != 1 {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "sRGB length %d", len(data))
	}
	if data[0] > 3 {
		return nil, oops.New(oops.FormatError, oops.CodeSRGB, nil, "rendering intent %d", data[0])
	}
	return &SRGB{RenderingIntent: data[0]}, nil
}

type SignificantBits struct {
	Gray             uint8
	Red, Green, Blue uint8
	Alpha            uint8
}

func ParseSBIT(data []byte, ihdr IHDR) (*SignificantBits, error) {
	want := map[ColorType]int{Grayscale: 1, Truecolor: 3, Indexed: 3, GrayscaleAlpha: 2, TruecolorAlpha: 4}[ihdr.ColorType]
	if len(data) != want {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "sBIT length %d", len(data))
	}
	depth := ihdr.BitDepth
	if ihdr.ColorType == Indexed {
		depth = 8
	}
	for _, b := range data {
		if b == 0 || b > depth {
			return nil, oops.New(oops.FormatError, oops.CodeSBIT, nil, "%d significant bits at depth %d", b, depth)
		}
	}
	var s SignificantBits
	switch ihdr.ColorType {
	case Grayscale:
		s.Gray = data[0]
	case GrayscaleAlpha:
		s.Gray, s.Alpha = data[0], data[1]
	case Truecolor, Indexed:
		s.Red, s.Green, s.Blue = data[0], data[1], data[2]
	case TruecolorAlpha:
		s.Red, s.Green, s.Blue, s.Alpha = data[0], data[1], data[2], data[3]
	}
	return &s, nil
}

type PhysicalDims struct {
	PixelsPerUnitX, PixelsPerUnitY uint32
	UnitSpecifier                  uint8 // 0 unknown, 1 metre
}

func ParsePHYS(data []byte) (*PhysicalDims, error) {
	if len(data) != 9 {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "pHYs length %d", len(data))
	}
	p := &PhysicalDims{
		PixelsPerUnitX: binary.BigEndian.Uint32(data[0:]),
		PixelsPerUnitY: binary.BigEndian.Uint32(data[4:]),
		UnitSpecifier:  data[8],
	}
	if p.UnitSpecifier > 1 || p.PixelsPerUnitX > maxDimension || p.PixelsPerUnitY > maxDimension {
		return nil, oops.Newc(oops.FormatError, oops.CodePHYS)
	}
	return p, nil
}

type Offset struct {
	X, Y          int32
	UnitSpecifier uint8 // 0 pixel, 1 micrometre
}

func ParseOFFS(data []byte) (*Offset, error) {
	if len(data) != 9 {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "oFFs length %d", len(data))
	}
	o := &Offset{
		X:             int32(binary.BigEndian.Uint32(data[0:])),
		Y:             int32(binary.BigEndian.Uint32(data[4:])),
		UnitSpecifier: data[8],
	}
	if o.UnitSpecifier > 1 || o.X == -1<<31 || o.Y == -1<<31 {
		return nil, oops.Newc(oops.FormatError, oops.CodeOFFS)
	}
	return o, nil
}

type ModTime struct {
	Year                 uint16
	Month, Day           uint8
	Hour, Minute, Second uint8
}

func ParseTIME(data []byte) (*ModTime, error) {
	if len(data) != 7 {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "tIME length %d", len(data))
	}
	t := &ModTime{
		Year:   binary.BigEndian.Uint16(data),
		Month:  data[2],
		Day:    data[3],
		Hour:   data[4],
		Minute: data[5],
		Second: data[6],
	}
	if t.Month == 0 || t.Month > 12 || t.Day == 0 || t.Day > 31 || t.Hour > 23 || t.Minute > 59 || t.Second > 60 {
		return nil, oops.New(oops.FormatError, oops.CodeTime, nil, "%+v", *t)
	}
	return t, nil
}

type Exif struct {
	Data []byte
}

func ParseEXIF(data []byte) (*Exif, error) {
	if len(data) < 4 {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "eXIf length %d", len(data))
	}
	if !bytes.HasPrefix(data, []byte("II\x2a\x00")) && !bytes.HasPrefix(data, []byte("MM\x00\x2a")) {
		return nil, oops.Newc(oops.FormatError, oops.CodeExif)
	}
	return &Exif{Data: append([]byte(nil), data...)}, nil
}

type SPLTEntry struct {
	Red, Green, Blue, Alpha uint16
	Frequency               uint16
}

// SuggestedPalette is one sPLT chunk.
type SuggestedPalette struct {
	Name        string
	SampleDepth uint8
	Entries     []SPLTEntry
}

func ParseSPLT(data []byte) (*SuggestedPalette, error) {
	name, rest, err := splitKeyword(data, oops.CodeSPLTName)
	if err != nil {
		return nil, err
	}
	if len(rest) < 1 {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "sPLT %q truncated", name)
	}
	depth := rest[0]
	rest = rest[1:]

	var entrySize int
	switch depth {
	case 8:
		entrySize = 6
	case 16:
		entrySize = 10
	default:
		return nil, oops.New(oops.FormatError, oops.CodeSPLTDepth, nil, "sample depth %d", depth)
	}
	if len(rest)%entrySize != 0 {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "sPLT %q length", name)
	}

	sp := &SuggestedPalette{Name: name, SampleDepth: depth, Entries: make([]SPLTEntry, len(rest)/entrySize)}
	for i := range sp.Entries {
		e := rest[i*entrySize:]
		if depth == 8 {
			sp.Entries[i] = SPLTEntry{uint16(e[0]), uint16(e[1]), uint16(e[2]), uint16(e[3]), binary.BigEndian.Uint16(e[4:])}
		} else {
			sp.Entries[i] = SPLTEntry{
				Red:       binary.BigEndian.Uint16(e[0:]),
				Green:     binary.BigEndian.Uint16(e[2:]),
				Blue:      binary.BigEndian.Uint16(e[4:]),
				Alpha:     binary.BigEndian.Uint16(e[6:]),
				Frequency: binary.BigEndian.Uint16(e[8:]),
			}
		}
	}
	return sp, nil
}

// ICCProfile is the iCCP chunk with the profile already decompressed.
type ICCProfile struct {
	Name    string
	Profile []byte
}
