package spng

import (
	"io"

	"github.com/rs/zerolog"

	"spng.adpollak.net/internal/chunk"
	"spng.adpollak.net/internal/inflate"
	"spng.adpollak.net/internal/oops"
	"spng.adpollak.net/internal/scanline"
	"spng.adpollak.net/internal/source"
)

type (
	Header           = chunk.IHDR
	ColorType        = chunk.ColorType
	Palette          = chunk.Palette
	RGB              = chunk.RGB
	Transparency     = chunk.Transparency
	Gamma            = chunk.GAMA
	Background       = chunk.Background
	Histogram        = chunk.Histogram
	Chromaticities   = chunk.Chromaticities
	SRGB             = chunk.SRGB
	SignificantBits  = chunk.SignificantBits
	ICCProfile       = chunk.ICCProfile
	PhysicalDims     = chunk.PhysicalDims
	SuggestedPalette = chunk.SuggestedPalette
	ModTime          = chunk.ModTime
	Offset           = chunk.Offset
	Exif             = chunk.Exif
	Text             = chunk.Text
	UnknownChunk     = chunk.UnknownChunk
	ChunkType        = chunk.ChunkType
)

const (
	ColorGrayscale      = chunk.Grayscale
	ColorTruecolor      = chunk.Truecolor
	ColorIndexed        = chunk.Indexed
	ColorGrayscaleAlpha = chunk.GrayscaleAlpha
	ColorTruecolorAlpha = chunk.TruecolorAlpha
)

type State int

const (
	StateStart State = iota
	StateHeaderParsed
	StateAncillaryRead
	StateStreamingBody
	StateFinished
	StateError
)

var stateNames = [...]string{"start", "header parsed", "ancillary read", "streaming body", "finished", "error"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// RowInfo describes the row the next DecodeRow or DecodeScanline call
// produces.
type RowInfo struct {
	ScanlineIndex uint32 // index within the current pass
	RowNum        uint32 // row of the full image
	Pass          int    // Adam7 pass, 0 when not interlaced
	Filter        byte
}

// Context decodes one PNG. Chunks are read lazily: getters read up to the
// image data, DecodeImage reads the rest. A Context must not be shared
// between goroutines, and after any error it only reports that error.
type Context struct {
	opts  Options
	log   zerolog.Logger
	src   source.Source
	state State
	err   error

	parser   *chunk.Parser
	ihdr     chunk.IHDR
	inflated int64 // size of the zlib stream's output

	format Format
	conv   *scanline.Converter
	stream *inflate.Stream
	passes []scanline.Pass
	pass   int    // index into passes
	row    uint32 // row within the pass
	cur    []byte // filter byte and filtered row, fetched ahead
	prev   []byte // previous unfiltered row of the pass, with a spare leading byte
	line   []byte // converted row before scattering
}

// NewContext starts a decode with opts. A zero Options is usable: zero
// Limits mean DefaultLimits and a nil Backend the default backend.
func NewContext(opts Options) *Context {
	if opts.Backend == nil {
		opts.Backend = inflate.Default
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	return &Context{opts: opts, log: opts.Logger}
}

func (c *Context) State() State { return c.state }

func (c *Context) setState(s State) {
	c.log.Debug().Stringer("from", c.state).Stringer("to", s).Msg("state")
	c.state = s
}

// fail moves the context to the error state, keeping the first error.
func (c *Context) fail(err error) error {
	if c.state != StateError {
		c.log.Debug().Err(err).Stringer("state", c.state).Msg("decode failed")
		c.err = err
		c.state = StateError
	}
	return err
}

func (c *Context) badState(format string, args ...interface{}) error {
	if c.state == StateError {
		return oops.New(oops.UsageError, oops.CodeBadState, c.err, "context failed earlier")
	}
	return oops.New(oops.UsageError, oops.CodeBadState, nil, format, args...)
}

func (c *Context) setSource(s source.Source) error {
	if c.state != StateStart || c.src != nil {
		return oops.New(oops.UsageError, oops.CodeBufSet, nil, "input already set")
	}
	c.src = s
	return nil
}

// SetBuffer decodes from an in-memory PNG.
func (c *Context) SetBuffer(b []byte) error {
	if b == nil {
		return oops.New(oops.UsageError, oops.CodeInvalidArg, nil, "nil buffer")
	}
	return c.setSource(source.NewBuffer(b))
}

// SetStream decodes from r, reading only as much as each step needs.
func (c *Context) SetStream(r io.Reader) error {
	if r == nil {
		return oops.New(oops.UsageError, oops.CodeInvalidArg, nil, "nil reader")
	}
	return c.setSource(source.NewStream(r))
}

func (c *Context) checkOptionState() error {
	if c.state != StateStart {
		return c.badState("options are fixed once reading starts")
	}
	return nil
}

func (c *Context) SetImageLimits(width, height uint32) error {
	if err := c.checkOptionState(); err != nil {
		return err
	}
	if width == 0 || height == 0 || width > 1<<31-1 || height > 1<<31-1 {
		return oops.New(oops.UsageError, oops.CodeInvalidArg, nil, "image limits %dx%d", width, height)
	}
	c.opts.Limits.MaxWidth, c.opts.Limits.MaxHeight = width, height
	return nil
}

func (c *Context) ImageLimits() (width, height uint32) {
	return c.opts.Limits.MaxWidth, c.opts.Limits.MaxHeight
}

// SetChunkLimits sets the largest chunk and the ancillary cache size.
func (c *Context) SetChunkLimits(chunkSize uint32, cacheSize int64) error {
	if err := c.checkOptionState(); err != nil {
		return err
	}
	if chunkSize > chunk.MaxLength || cacheSize < 0 {
		return oops.New(oops.UsageError, oops.CodeInvalidArg, nil, "chunk limits %d, %d", chunkSize, cacheSize)
	}
	c.opts.Limits.MaxChunkSize, c.opts.Limits.MaxCacheSize = chunkSize, cacheSize
	return nil
}

func (c *Context) ChunkLimits() (chunkSize uint32, cacheSize int64) {
	return c.opts.Limits.MaxChunkSize, c.opts.Limits.MaxCacheSize
}

// SetCRCAction sets the CRC policy for critical and ancillary chunks.
// Critical chunks cannot be discarded.
func (c *Context) SetCRCAction(critical, ancillary CRCAction) error {
	if err := c.checkOptionState(); err != nil {
		return err
	}
	if critical == CRCDiscard || critical < CRCError || critical > CRCUse || ancillary < CRCError || ancillary > CRCUse {
		return oops.New(oops.UsageError, oops.CodeInvalidArg, nil, "CRC actions %d, %d", critical, ancillary)
	}
	c.opts.CRCCritical, c.opts.CRCAncillary = critical, ancillary
	return nil
}

func (c *Context) CRCAction() (critical, ancillary CRCAction) {
	return c.opts.CRCCritical, c.opts.CRCAncillary
}

// ReadInfo reads the header and every chunk before the image data. It is
// called by the getters and DecodeImage when needed; calling it again is a
// no-op.
func (c *Context) ReadInfo() error {
	switch c.state {
	case StateStart:
	case StateError:
		return c.badState("")
	default:
		return nil
	}
	if c.src == nil {
		return oops.New(oops.UsageError, oops.CodeBufSet, nil, "no input set")
	}

	c.parser = chunk.NewParser(c.src, c.opts.parserOptions())
	ihdr, err := c.parser.ReadHeader()
	if err != nil {
		return c.fail(err)
	}
	c.ihdr = ihdr
	c.setState(StateHeaderParsed)

	size, ok := scanline.InflatedSize(ihdr)
	if !ok {
		return c.fail(oops.New(oops.LimitExceeded, oops.CodeOverflow, nil, "image data size of %dx%d overflows", ihdr.Width, ihdr.Height))
	}
	if size > c.opts.Limits.MaxDecodedSize {
		return c.fail(oops.New(oops.LimitExceeded, oops.CodeDecodedSize, nil, "%d bytes of image data over limit %d", size, c.opts.Limits.MaxDecodedSize))
	}
	c.inflated = size

	if err := c.parser.ReadAncillary(); err != nil {
		return c.fail(err)
	}
	c.setState(StateAncillaryRead)
	return nil
}

func (c *Context) meta() (*chunk.Metadata, error) {
	if err := c.ReadInfo(); err != nil {
		return nil, err
	}
	return &c.parser.Meta, nil
}

func (c *Context) Header() (Header, error) {
	if err := c.ReadInfo(); err != nil {
		return Header{}, err
	}
	return c.ihdr, nil
}

func (c *Context) Palette() (Palette, error) {
	m, err := c.meta()
	if err != nil {
		return nil, err
	}
	if m.Palette == nil {
		return nil, ErrNoChunk
	}
	return m.Palette, nil
}

// getter returns the chunk picked from the metadata, or ErrNoChunk.
func getter[T any](c *Context, pick func(*chunk.Metadata) *T) (T, error) {
	var zero T
	m, err := c.meta()
	if err != nil {
		return zero, err
	}
	v := pick(m)
	if v == nil {
		return zero, ErrNoChunk
	}
	return *v, nil
}

func (c *Context) Transparency() (Transparency, error) {
	return getter(c, func(m *chunk.Metadata) *Transparency { return m.Transparency })
}

func (c *Context) Gamma() (Gamma, error) {
	return getter(c, func(m *chunk.Metadata) *Gamma { return m.Gamma })
}

func (c *Context) Background() (Background, error) {
	return getter(c, func(m *chunk.Metadata) *Background { return m.Background })
}

func (c *Context) Histogram() (Histogram, error) {
	m, err := c.meta()
	if err != nil {
		return nil, err
	}
	if m.Histogram == nil {
		return nil, ErrNoChunk
	}
	return m.Histogram, nil
}

func (c *Context) Chromaticities() (Chromaticities, error) {
	return getter(c, func(m *chunk.Metadata) *Chromaticities { return m.Chromaticities })
}

func (c *Context) SRGB() (SRGB, error) {
	return getter(c, func(m *chunk.Metadata) *SRGB { return m.SRGB })
}

func (c *Context) SignificantBits() (SignificantBits, error) {
	return getter(c, func(m *chunk.Metadata) *SignificantBits { return m.SignificantBits })
}

func (c *Context) ICCProfile() (ICCProfile, error) {
	return getter(c, func(m *chunk.Metadata) *ICCProfile { return m.ICCProfile })
}

func (c *Context) PhysicalDims() (PhysicalDims, error) {
	return getter(c, func(m *chunk.Metadata) *PhysicalDims { return m.PhysicalDims })
}

func (c *Context) SuggestedPalettes() ([]SuggestedPalette, error) {
	m, err := c.meta()
	if err != nil {
		return nil, err
	}
	if len(m.SuggestedPalettes) == 0 {
		return nil, ErrNoChunk
	}
	return m.SuggestedPalettes, nil
}

// ModTime may be stored after the image data, so it is only certain to be
// found once decoding finished.
func (c *Context) ModTime() (ModTime, error) {
	return getter(c, func(m *chunk.Metadata) *ModTime { return m.ModTime })
}

func (c *Context) Offset() (Offset, error) {
	return getter(c, func(m *chunk.Metadata) *Offset { return m.Offset })
}

func (c *Context) Exif() (Exif, error) {
	return getter(c, func(m *chunk.Metadata) *Exif { return m.Exif })
}

// Texts returns tEXt, zTXt and iTXt chunks in file order. Like ModTime,
// chunks after the image data show up once decoding finished.
func (c *Context) Texts() ([]Text, error) {
	m, err := c.meta()
	if err != nil {
		return nil, err
	}
	if len(m.Texts) == 0 {
		return nil, ErrNoChunk
	}
	return m.Texts, nil
}

// UnknownChunks returns the retained unknown ancillary chunks. Nothing is
// retained unless Options.KeepUnknownChunks is set.
func (c *Context) UnknownChunks() ([]UnknownChunk, error) {
	m, err := c.meta()
	if err != nil {
		return nil, err
	}
	if len(m.Unknown) == 0 {
		return nil, ErrNoChunk
	}
	return m.Unknown, nil
}

// DecodedImageSize is the buffer size DecodeImage needs for format f,
// known from the header alone.
func (c *Context) DecodedImageSize(f Format) (int, error) {
	if err := c.ReadInfo(); err != nil {
		return 0, err
	}
	if err := f.Check(c.ihdr); err != nil {
		return 0, err
	}
	size, ok := f.ImageSize(c.ihdr)
	if !ok {
		return 0, oops.New(oops.LimitExceeded, oops.CodeOverflow, nil, "%s image size overflows", f)
	}
	if size > c.opts.Limits.MaxDecodedSize {
		return 0, oops.New(oops.LimitExceeded, oops.CodeDecodedSize, nil, "%d byte %s image over limit %d", size, f, c.opts.Limits.MaxDecodedSize)
	}
	return int(size), nil
}

// DecodeImage decodes the whole image into out, which must be exactly
// DecodedImageSize(f) bytes. With DecodeProgressive nothing is decoded
// yet; out is ignored and rows are read with DecodeRow. DecodeImage may be
// called once.
func (c *Context) DecodeImage(out []byte, f Format, flags DecodeFlags) error {
	if err := c.ReadInfo(); err != nil {
		return err
	}
	if c.state != StateAncillaryRead {
		return c.badState("image already decoded")
	}
	size, err := c.DecodedImageSize(f)
	if err != nil {
		return c.fail(err)
	}
	if flags&DecodeProgressive == 0 && len(out) != size {
		return c.fail(oops.New(oops.UsageError, oops.CodeBufSize, nil, "buffer is %d bytes, need %d", len(out), size))
	}
	if err := c.prepare(f, flags); err != nil {
		return c.fail(err)
	}
	if flags&DecodeProgressive != 0 {
		return nil
	}

	stride := int(f.RowBytes(c.ihdr, c.ihdr.Width))
	for c.state == StateStreamingBody {
		y := c.passes[c.pass].Row(c.row)
		if err := c.DecodeRow(out[int(y)*stride : (int(y)+1)*stride]); err != nil {
			return err
		}
	}
	return nil
}

// prepare sizes the scratch buffers and opens the image data.
func (c *Context) prepare(f Format, flags DecodeFlags) error {
	conv, err := scanline.NewConverter(c.ihdr, f, flags, &c.parser.Meta)
	if err != nil {
		return err
	}
	r, err := c.parser.IDATReader()
	if err != nil {
		return err
	}
	c.format = f
	c.conv = conv
	c.stream = inflate.NewStream(c.opts.Backend, r, c.inflated)
	c.passes = scanline.Passes(c.ihdr)

	rowBytes := c.ihdr.RowBytes(c.ihdr.Width)
	c.cur = make([]byte, 1+rowBytes)
	c.prev = make([]byte, 1+rowBytes)
	c.line = make([]byte, f.RowBytes(c.ihdr, c.ihdr.Width))
	c.log.Debug().
		Stringer("format", f).
		Uint("flags", uint(flags)).
		Str("backend", c.opts.Backend.Name()).
		Int("passes", len(c.passes)).
		Msg("decoding image data")

	c.setState(StateStreamingBody)
	return c.fetch()
}

// fetch pulls the filter byte and filtered bytes of the next scanline.
func (c *Context) fetch() error {
	p := c.passes[c.pass]
	n := c.ihdr.RowBytes(p.Width)
	return c.stream.Pull(c.cur[:1+n])
}

// advance moves past the scanline just decoded, fetching the next one or
// reading the end of the file.
func (c *Context) advance() error {
	c.cur, c.prev = c.prev, c.cur
	c.row++
	if c.row == c.passes[c.pass].Height {
		c.row = 0
		c.pass++
		clear(c.prev)
	}
	if c.pass < len(c.passes) {
		return c.fetch()
	}

	if err := c.stream.Finish(); err != nil {
		return err
	}
	if err := c.parser.ReadTrailer(); err != nil {
		return err
	}
	c.setState(StateFinished)
	return nil
}

// decodeLine unfilters and converts the fetched scanline into c.line.
func (c *Context) decodeLine() (scanline.Pass, error) {
	if c.state == StateFinished {
		return scanline.Pass{}, io.EOF
	}
	if c.state != StateStreamingBody {
		return scanline.Pass{}, c.badState("DecodeImage with DecodeProgressive must come first")
	}
	p := c.passes[c.pass]
	n := c.ihdr.RowBytes(p.Width)
	if err := scanline.Unfilter(c.cur[0], c.cur[1:1+n], c.prev[1:1+n], c.ihdr.BytesPerPixel()); err != nil {
		return p, c.fail(err)
	}
	if err := c.conv.Convert(c.line, c.cur[1:1+n], p.Width); err != nil {
		return p, c.fail(err)
	}
	return p, nil
}

func (c *Context) checkRowBuffer(out []byte) error {
	if want := int(c.format.RowBytes(c.ihdr, c.ihdr.Width)); len(out) < want {
		return oops.New(oops.UsageError, oops.CodeBufSize, nil, "row buffer is %d bytes, need %d", len(out), want)
	}
	return nil
}

// DecodeRow decodes the next scanline into out, which must hold a full
// image row. For interlaced images the scanline's pixels are scattered to
// their columns, so out should be the caller's copy of row RowInfo().RowNum.
// After the last row it returns io.EOF.
func (c *Context) DecodeRow(out []byte) error {
	if c.state == StateStreamingBody {
		if err := c.checkRowBuffer(out); err != nil {
			return c.fail(err)
		}
	}
	p, err := c.decodeLine()
	if err != nil {
		return err
	}
	scanline.Scatter(out, c.line, p, c.format.PixelBits(c.ihdr))
	if err := c.advance(); err != nil {
		return c.fail(err)
	}
	return nil
}

// DecodeScanline decodes the next scanline into out without
// deinterlacing: pixels of a pass are written next to each other.
func (c *Context) DecodeScanline(out []byte) error {
	if c.state == StateStreamingBody {
		if err := c.checkRowBuffer(out); err != nil {
			return c.fail(err)
		}
	}
	p, err := c.decodeLine()
	if err != nil {
		return err
	}
	copy(out, c.line[:c.format.RowBytes(c.ihdr, p.Width)])
	if err := c.advance(); err != nil {
		return c.fail(err)
	}
	return nil
}

// RowInfo describes the next row. It returns io.EOF once every row was
// decoded.
func (c *Context) RowInfo() (RowInfo, error) {
	switch c.state {
	case StateFinished:
		return RowInfo{}, io.EOF
	case StateStreamingBody:
	default:
		return RowInfo{}, c.badState("no row decoding in progress")
	}
	p := c.passes[c.pass]
	return RowInfo{
		ScanlineIndex: c.row,
		RowNum:        p.Row(c.row),
		Pass:          p.Index,
		Filter:        c.cur[0],
	}, nil
}
