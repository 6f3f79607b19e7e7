package spng

import (
	"io"

	"github.com/rs/zerolog"

	"spng.adpollak.net/internal/oops"
)

// Info describes the PNG as stored.
type Info struct {
	Width      uint32
	Height     uint32
	ColorType  ColorType
	BitDepth   uint8
	Interlaced bool
}

// OutputInfo describes the decoded pixels NextFrame writes.
type OutputInfo struct {
	Width     uint32
	Height    uint32
	Format    Format
	ColorType ColorType
	BitDepth  uint8
	// BufferSize is the exact size of the buffer NextFrame needs.
	BufferSize int
}

// Decoder is the simple way in: configure, call ReadInfo, then decode the
// frame through the returned Reader.
type Decoder struct {
	r      io.Reader
	opts   Options
	flags  DecodeFlags
	format Format
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, opts: DefaultOptions()}
}

func (d *Decoder) SetLimits(l Limits) { d.opts.Limits = l }

func (d *Decoder) SetDecodeFlags(f DecodeFlags) { d.flags = f }

// SetOutputFormat overrides the default of RGBA16 for 16-bit images and
// RGBA8 otherwise.
func (d *Decoder) SetOutputFormat(f Format) { d.format = f }

func (d *Decoder) SetBackend(b Backend) { d.opts.Backend = b }

func (d *Decoder) SetLogger(l zerolog.Logger) { d.opts.Logger = l }

// ReadInfo reads everything up to the image data.
func (d *Decoder) ReadInfo() (OutputInfo, *Reader, error) {
	if d.flags&DecodeProgressive != 0 {
		return OutputInfo{}, nil, oops.New(oops.UsageError, oops.CodeFlags, nil, "progressive decoding needs a Context")
	}
	ctx := NewContext(d.opts)
	if err := ctx.SetStream(d.r); err != nil {
		return OutputInfo{}, nil, err
	}
	h, err := ctx.Header()
	if err != nil {
		return OutputInfo{}, nil, err
	}

	format := d.format
	if format == 0 {
		format = FormatRGBA8
		if h.BitDepth == 16 {
			format = FormatRGBA16
		}
	}
	size, err := ctx.DecodedImageSize(format)
	if err != nil {
		return OutputInfo{}, nil, err
	}

	out := OutputInfo{Width: h.Width, Height: h.Height, Format: format, BufferSize: size}
	out.ColorType, out.BitDepth = outputLayout(format, h)
	r := &Reader{
		ctx:    ctx,
		format: format,
		flags:  d.flags,
		size:   size,
		info: Info{
			Width:      h.Width,
			Height:     h.Height,
			ColorType:  h.ColorType,
			BitDepth:   h.BitDepth,
			Interlaced: h.Interlaced(),
		},
	}
	return out, r, nil
}

func outputLayout(f Format, h Header) (ColorType, uint8) {
	switch f {
	case FormatRGBA8:
		return ColorTruecolorAlpha, 8
	case FormatRGBA16:
		return ColorTruecolorAlpha, 16
	case FormatRGB8:
		return ColorTruecolor, 8
	case FormatG8:
		return ColorGrayscale, 8
	case FormatGA8:
		return ColorGrayscaleAlpha, 8
	case FormatGA16:
		return ColorGrayscaleAlpha, 16
	}
	return h.ColorType, h.BitDepth
}

// Reader decodes the frame announced by Decoder.ReadInfo.
type Reader struct {
	ctx    *Context
	format Format
	flags  DecodeFlags
	size   int
	info   Info
}

// Info describes the input image.
func (r *Reader) Info() Info { return r.info }

func (r *Reader) OutputBufferSize() int { return r.size }

// Context exposes the underlying context, for metadata getters.
func (r *Reader) Context() *Context { return r.ctx }

// NextFrame decodes the image into buf, which must be OutputBufferSize
// bytes. A PNG has a single frame, so a second call fails.
func (r *Reader) NextFrame(buf []byte) error {
	return r.ctx.DecodeImage(buf, r.format, r.flags)
}
