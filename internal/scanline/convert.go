package scanline

import (
	"encoding/binary"

	"spng.adpollak.net/internal/chunk"
	"spng.adpollak.net/internal/oops"
)

// Converter turns unfiltered rows in the image's own layout into rows of
// the output format. It is built once per decode.
type Converter struct {
	ihdr   chunk.IHDR
	format Format

	palette [256][4]uint16
	entries int

	// Color key in source depth, when Transparency applies.
	keyed            bool
	keyGray          uint16
	keyR, keyG, keyB uint16

	// Background color at 16 bits, when Background applies.
	composite    bool
	bg, bgG, bgB uint16

	// Gamma table indexed by output sample.
	lut []uint16
}

// NewConverter prepares conversion for one image. meta may omit any
// chunk; corrections whose chunk is absent are skipped.
func NewConverter(ihdr chunk.IHDR, f Format, flags Flags, meta *chunk.Metadata) (*Converter, error) {
	if err := f.Check(ihdr); err != nil {
		return nil, err
	}
	if err := flags.Check(f); err != nil {
		return nil, err
	}
	if meta == nil {
		meta = &chunk.Metadata{}
	}
	c := &Converter{ihdr: ihdr, format: f}

	if ihdr.ColorType == chunk.Indexed {
		c.entries = len(meta.Palette)
		for i, e := range meta.Palette {
			c.palette[i] = [4]uint16{uint16(e.R) * 257, uint16(e.G) * 257, uint16(e.B) * 257, 0xffff}
		}
		if trns := meta.Transparency; trns != nil {
			for i, a := range trns.Alpha {
				c.palette[i][3] = uint16(a) * 257
			}
		}
	}

	if trns := meta.Transparency; trns != nil && flags&Transparency != 0 && !ihdr.ColorType.HasAlpha() && ihdr.ColorType != chunk.Indexed {
		c.keyed = true
		c.keyGray, c.keyR, c.keyG, c.keyB = trns.Gray, trns.Red, trns.Green, trns.Blue
	}

	if bkgd := meta.Background; bkgd != nil && flags&Background != 0 {
		c.composite = true
		switch {
		case ihdr.ColorType == chunk.Indexed:
			e := c.palette[bkgd.Index]
			c.bg, c.bgG, c.bgB = e[0], e[1], e[2]
		case ihdr.ColorType.IsGray():
			g := c.scale(bkgd.Gray)
			c.bg, c.bgG, c.bgB = g, g, g
		default:
			c.bg, c.bgG, c.bgB = c.scale(bkgd.Red), c.scale(bkgd.Green), c.scale(bkgd.Blue)
		}
	}

	if gama := meta.Gamma; gama != nil && flags&Gamma != 0 {
		switch f {
		case FormatRGBA8, FormatRGB8:
			c.lut = gama.LUT(8)
		case FormatRGBA16:
			c.lut = gama.LUT(16)
		}
	}
	return c, nil
}

// scale widens a sample of the source bit depth to 16 bits by bit
// replication.
func (c *Converter) scale(v uint16) uint16 {
	switch c.ihdr.BitDepth {
	case 1:
		return v * 0xffff
	case 2:
		return v * 0x5555
	case 4:
		return v * 0x1111
	case 8:
		return v * 0x101
	}
	return v
}

// sample reads sample i of a packed row in source depth.
func (c *Converter) sample(row []byte, i int) uint16 {
	switch depth := int(c.ihdr.BitDepth); depth {
	case 8:
		return uint16(row[i])
	case 16:
		return binary.BigEndian.Uint16(row[2*i:])
	default:
		bit := i * depth
		return uint16(row[bit/8]>>(8-depth-bit%8)) & (1<<depth - 1)
	}
}

// pixel returns pixel x as 16-bit RGBA.
func (c *Converter) pixel(row []byte, x int) (r, g, b, a uint16, err error) {
	a = 0xffff
	switch c.ihdr.ColorType {
	case chunk.Grayscale:
		v := c.sample(row, x)
		if c.keyed && v == c.keyGray {
			a = 0
		}
		r = c.scale(v)
		g, b = r, r
	case chunk.GrayscaleAlpha:
		r = c.scale(c.sample(row, 2*x))
		g, b = r, r
		a = c.scale(c.sample(row, 2*x+1))
	case chunk.Truecolor:
		sr, sg, sb := c.sample(row, 3*x), c.sample(row, 3*x+1), c.sample(row, 3*x+2)
		if c.keyed && sr == c.keyR && sg == c.keyG && sb == c.keyB {
			a = 0
		}
		r, g, b = c.scale(sr), c.scale(sg), c.scale(sb)
	case chunk.TruecolorAlpha:
		r, g, b = c.scale(c.sample(row, 4*x)), c.scale(c.sample(row, 4*x+1)), c.scale(c.sample(row, 4*x+2))
		a = c.scale(c.sample(row, 4*x+3))
	case chunk.Indexed:
		idx := int(c.sample(row, x))
		if idx >= c.entries {
			return 0, 0, 0, 0, oops.New(oops.CorruptData, oops.CodePLTEIndex, nil, "palette index %d of %d", idx, c.entries)
		}
		e := c.palette[idx]
		r, g, b, a = e[0], e[1], e[2], e[3]
	}
	if c.composite && a != 0xffff {
		r, g, b = blend(r, c.bg, a), blend(g, c.bgG, a), blend(b, c.bgB, a)
		a = 0xffff
	}
	return r, g, b, a, nil
}

func blend(fg, bg, a uint16) uint16 {
	return uint16((uint32(fg)*uint32(a) + uint32(bg)*uint32(0xffff-a) + 0x7fff) / 0xffff)
}

func (c *Converter) gamma8(v uint16) byte {
	if c.lut == nil {
		return byte(v >> 8)
	}
	return byte(c.lut[v>>8])
}

func (c *Converter) gamma16(v uint16) uint16 {
	if c.lut == nil {
		return v
	}
	return c.lut[v]
}

// Convert writes width converted pixels from src, an unfiltered row in the
// image's own layout, to dst.
func (c *Converter) Convert(dst, src []byte, width uint32) error {
	if c.format == FormatNative {
		return c.native(dst, src, width)
	}
	for x := 0; x < int(width); x++ {
		r, g, b, a, err := c.pixel(src, x)
		if err != nil {
			return err
		}
		switch c.format {
		case FormatRGBA8:
			dst[4*x] = c.gamma8(r)
			dst[4*x+1] = c.gamma8(g)
			dst[4*x+2] = c.gamma8(b)
			dst[4*x+3] = byte(a >> 8)
		case FormatRGBA16:
			binary.BigEndian.PutUint16(dst[8*x:], c.gamma16(r))
			binary.BigEndian.PutUint16(dst[8*x+2:], c.gamma16(g))
			binary.BigEndian.PutUint16(dst[8*x+4:], c.gamma16(b))
			binary.BigEndian.PutUint16(dst[8*x+6:], a)
		case FormatRGB8:
			dst[3*x] = c.gamma8(r)
			dst[3*x+1] = c.gamma8(g)
			dst[3*x+2] = c.gamma8(b)
		case FormatG8:
			dst[x] = byte(r >> 8)
		case FormatGA8:
			dst[2*x] = byte(r >> 8)
			dst[2*x+1] = byte(a >> 8)
		case FormatGA16:
			binary.BigEndian.PutUint16(dst[4*x:], r)
			binary.BigEndian.PutUint16(dst[4*x+2:], a)
		}
	}
	return nil
}

func (c *Converter) native(dst, src []byte, width uint32) error {
	n := c.ihdr.RowBytes(width)
	copy(dst, src[:n])
	if c.ihdr.ColorType != chunk.Indexed {
		return nil
	}
	for x := 0; x < int(width); x++ {
		if idx := int(c.sample(src, x)); idx >= c.entries {
			return oops.New(oops.CorruptData, oops.CodePLTEIndex, nil, "palette index %d of %d", idx, c.entries)
		}
	}
	return nil
}
