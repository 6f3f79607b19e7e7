package chunk

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/snksoft/crc"

	"spng.adpollak.net/internal/inflate"
	"spng.adpollak.net/internal/oops"
	"spng.adpollak.net/internal/source"
)

// 137 80 78 71 13 10 26 10
const Signature = "\x89\x50\x4E\x47\x0D\x0A\x1A\x0A"

// MaxLength is the largest chunk length the format allows.
const MaxLength = 1<<31 - 1

// CRCAction says what to do when a chunk's CRC does not match.
type CRCAction int

const (
	CRCError   CRCAction = iota // fail with CorruptData
	CRCDiscard                  // drop the chunk (ancillary chunks only)
	CRCUse                      // ignore the mismatch
)

type Options struct {
	MaxWidth, MaxHeight uint32
	MaxChunkSize        uint32
	// MaxCacheSize bounds the bytes kept for ancillary data: text,
	// profiles, palettes suggestions, eXIf and retained unknown chunks.
	MaxCacheSize int64

	CRCCritical, CRCAncillary CRCAction

	KeepUnknown         bool
	Lenient             bool
	SkipUnknownCritical bool

	Backend inflate.Backend
	Logger  zerolog.Logger
}

// UnknownChunk is an ancillary chunk the decoder does not interpret, kept
// verbatim when requested.
type UnknownChunk struct {
	Type      ChunkType
	Data      []byte
	AfterIDAT bool
}

// Metadata holds everything parsed from chunks other than IHDR and IDAT.
// Nil fields were not present.
type Metadata struct {
	Palette           Palette
	Transparency      *Transparency
	Gamma             *GAMA
	Background        *Background
	Histogram         Histogram
	Chromaticities    *Chromaticities
	SRGB              *SRGB
	SignificantBits   *SignificantBits
	ICCProfile        *ICCProfile
	PhysicalDims      *PhysicalDims
	SuggestedPalettes []SuggestedPalette
	ModTime           *ModTime
	Offset            *Offset
	Exif              *Exif
	Texts             []Text
	Unknown           []UnknownChunk
}

// Decoding stage.
// The PNG specification says that the IHDR, PLTE (if present), tRNS (if
// present), IDAT and IEND chunks must appear in that order. There may be
// multiple IDAT chunks, and IDAT chunks must be sequential (i.e. they may not
// have any other chunks between them).
// https://www.w3.org/TR/PNG/#5ChunkOrdering
type stage int

const (
	stageStart stage = iota
	stageSeenIHDR
	stageSeenIDAT
	stageAfterIDAT
	stageSeenIEND
)

type chunkHeader struct {
	length uint32
	typ    ChunkType
}

// Parser walks the chunk stream. It is driven in three steps: ReadHeader,
// ReadAncillary (up to the first IDAT), then IDATReader followed by
// ReadTrailer.
type Parser struct {
	src  source.Source
	opts Options
	log  zerolog.Logger

	crc32 *crc.Hash
	ihdr  IHDR
	Meta  Metadata

	stage   stage
	seen    map[ChunkType]bool
	cached  int64
	pending *chunkHeader
	idat    *idatReader
}

var crcTable = crc.NewTable(crc.CRC32)

func NewParser(src source.Source, opts Options) *Parser {
	if opts.Backend == nil {
		opts.Backend = inflate.Default
	}
	return &Parser{
		src:   src,
		opts:  opts,
		log:   opts.Logger,
		crc32: crc.NewHashWithTable(crcTable),
		seen:  make(map[ChunkType]bool),
	}
}

func (p *Parser) IHDR() IHDR { return p.ihdr }

// IsPng determines if the stream is a PNG by examining the PNG signature.
func (p *Parser) IsPng() error {
	var signature [8]byte
	if err := p.src.ReadFull(signature[:]); err != nil {
		return err
	}
	if string(signature[:]) != Signature {
		return oops.New(oops.FormatError, oops.CodeSignature, nil, "signature mismatch: got %x, expected %x", signature, Signature)
	}
	p.log.Debug().Msg("validated PNG signature")
	return nil
}

// ReadHeader reads the signature and the IHDR chunk, applying the width and
// height limits before anything sized by them is allocated.
func (p *Parser) ReadHeader() (IHDR, error) {
	if p.stage != stageStart {
		return IHDR{}, oops.New(oops.UsageError, oops.CodeBadState, nil, "header already read")
	}
	if err := p.IsPng(); err != nil {
		return IHDR{}, err
	}
	h, err := p.readChunkHeader()
	if err != nil {
		return IHDR{}, err
	}
	if h.typ != ChunkIHDR {
		return IHDR{}, oops.New(oops.FormatError, oops.CodeNoIHDR, nil, "first chunk is %s", h.typ)
	}
	if h.length != 13 {
		return IHDR{}, oops.New(oops.FormatError, oops.CodeIHDRSize, nil, "invalid length for IHDR: %d", h.length)
	}
	c, ok, err := p.readChunkBody(h)
	if err != nil {
		return IHDR{}, err
	}
	if !ok {
		return IHDR{}, oops.Newc(oops.CorruptData, oops.CodeChunkCRC)
	}
	ihdr, err := HandleIHDR(c.Data)
	if err != nil {
		return IHDR{}, err
	}
	if ihdr.Width > p.opts.MaxWidth {
		return IHDR{}, oops.New(oops.LimitExceeded, oops.CodeUserWidth, nil, "width %d over limit %d", ihdr.Width, p.opts.MaxWidth)
	}
	if ihdr.Height > p.opts.MaxHeight {
		return IHDR{}, oops.New(oops.LimitExceeded, oops.CodeUserHeight, nil, "height %d over limit %d", ihdr.Height, p.opts.MaxHeight)
	}

	p.ihdr = ihdr
	p.stage = stageSeenIHDR
	p.seen[ChunkIHDR] = true
	p.log.Debug().
		Uint32("width", ihdr.Width).
		Uint32("height", ihdr.Height).
		Uint8("bitDepth", ihdr.BitDepth).
		Stringer("colorType", ihdr.ColorType).
		Uint8("interlace", ihdr.InterlaceMethod).
		Msg("parsed IHDR")
	return ihdr, nil
}

// ReadAncillary consumes chunks until the first IDAT chunk header, which is
// left pending so that no image data is touched.
func (p *Parser) ReadAncillary() error {
	if p.stage != stageSeenIHDR {
		return oops.New(oops.UsageError, oops.CodeBadState, nil, "ancillary chunks already read")
	}
	for {
		h, err := p.readChunkHeader()
		if err != nil {
			return err
		}
		switch h.typ {
		case ChunkIHDR:
			return oops.New(oops.FormatError, oops.CodeChunkPos, nil, "second IHDR")
		case ChunkIEND:
			return oops.New(oops.FormatError, oops.CodeChunkPos, nil, "IEND before IDAT")
		case ChunkIDAT:
			if p.ihdr.ColorType == Indexed && p.Meta.Palette == nil {
				return oops.Newc(oops.FormatError, oops.CodeNoPLTE)
			}
			p.pending = &h
			p.stage = stageSeenIDAT
			return nil
		}
		if err := p.handle(h); err != nil {
			return err
		}
	}
}

// ReadTrailer runs after the image data has been inflated. It checks that
// no IDAT bytes are left over and parses chunks up to IEND.
func (p *Parser) ReadTrailer() error {
	if p.stage == stageSeenIEND {
		return nil
	}
	if p.idat == nil {
		return oops.New(oops.UsageError, oops.CodeBadState, nil, "image data not read")
	}
	var tmp [1]byte
	n, err := p.idat.Read(tmp[:])
	if n > 0 {
		return oops.New(oops.CorruptData, oops.CodeIDATStream, nil, "IDAT data after end of zlib stream")
	}
	if err != nil && err != io.EOF {
		return err
	}

	for {
		var h chunkHeader
		if p.pending != nil {
			h, p.pending = *p.pending, nil
		} else if h, err = p.readChunkHeader(); err != nil {
			return err
		}
		switch h.typ {
		case ChunkIEND:
			return p.readIEND(h)
		case ChunkIDAT:
			return oops.New(oops.FormatError, oops.CodeChunkPos, nil, "IDAT after non-IDAT chunk")
		case ChunkIHDR, ChunkPLTE:
			return oops.New(oops.FormatError, oops.CodeChunkPos, nil, "%s after IDAT", h.typ)
		}
		if err := p.handle(h); err != nil {
			return err
		}
	}
}

func (p *Parser) readIEND(h chunkHeader) error {
	if h.length != 0 {
		return oops.New(oops.FormatError, oops.CodeIEND, nil, "bad IEND length %d", h.length)
	}
	if _, ok, err := p.readChunkBody(h); err != nil {
		return err
	} else if !ok {
		return oops.Newc(oops.CorruptData, oops.CodeChunkCRC)
	}
	p.stage = stageSeenIEND
	p.log.Debug().Msg("reached IEND")
	return nil
}

// readChunkHeader reads the length and type fields of the next chunk.
//
//	+------------+ +------------+ +------------+ +-------+
//	|   LENGTH   | | CHUNK TYPE | | CHUNK DATA | |  CRC  |
//	+------------+ +------------+ +------------+ +-------+
func (p *Parser) readChunkHeader() (chunkHeader, error) {
	var buf [8]byte
	if err := p.src.ReadFull(buf[:]); err != nil {
		return chunkHeader{}, err
	}
	h := chunkHeader{length: binary.BigEndian.Uint32(buf[0:4])}
	copy(h.typ[:], buf[4:8])

	if h.length > MaxLength {
		return h, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "chunk length %d", h.length)
	}
	if !h.typ.Valid() {
		return h, oops.New(oops.FormatError, oops.CodeChunkType, nil, "chunk type %q", h.typ[:])
	}
	if h.length > p.opts.MaxChunkSize {
		return h, oops.New(oops.LimitExceeded, oops.CodeChunkLimits, nil, "%s chunk of %d bytes over limit %d", h.typ, h.length, p.opts.MaxChunkSize)
	}
	p.log.Debug().
		Stringer("type", h.typ).
		Uint32("length", h.length).
		Int64("offset", p.src.Offset()-8).
		Msg("chunk")
	return h, nil
}

func (p *Parser) crcAction(t ChunkType) CRCAction {
	if t.IsCritical() {
		return p.opts.CRCCritical
	}
	return p.opts.CRCAncillary
}

// readChunkBody reads the payload and CRC of a chunk whose header was just
// read. ok is false when the CRC did not match and the chunk should be
// dropped.
func (p *Parser) readChunkBody(h chunkHeader) (c *Chunk, ok bool, err error) {
	data := make([]byte, h.length)
	if err := p.src.ReadFull(data); err != nil {
		return nil, false, err
	}
	p.crc32.Reset()
	p.crc32.Update(h.typ[:])
	p.crc32.Update(data)
	c = &Chunk{Length: h.length, Type: h.typ, Data: data}
	c.Crc, ok, err = p.verifyChecksum(h.typ)
	return c, ok, err
}

// skipChunk discards a chunk's payload in small pieces, still checking the
// CRC so that corruption anywhere in the stream is reported.
func (p *Parser) skipChunk(h chunkHeader) error {
	var ignored [4096]byte
	p.crc32.Reset()
	p.crc32.Update(h.typ[:])
	for length := h.length; length > 0; {
		n := min(len(ignored), int(length))
		if err := p.src.ReadFull(ignored[:n]); err != nil {
			return err
		}
		p.crc32.Update(ignored[:n])
		length -= uint32(n)
	}
	_, _, err := p.verifyChecksum(h.typ)
	return err
}

// verifyChecksum reads the stored CRC and compares it with the running
// hash over type and data.
func (p *Parser) verifyChecksum(t ChunkType) (stored uint32, ok bool, err error) {
	var buf [4]byte
	if err := p.src.ReadFull(buf[:]); err != nil {
		return 0, false, err
	}
	stored = binary.BigEndian.Uint32(buf[:])
	computed := p.crc32.CRC32()
	if stored == computed {
		return stored, true, nil
	}
	switch p.crcAction(t) {
	case CRCUse:
		p.log.Debug().Stringer("type", t).Msg("ignoring CRC mismatch")
		return stored, true, nil
	case CRCDiscard:
		p.log.Warn().Stringer("type", t).Msg("discarding chunk with bad CRC")
		return stored, false, nil
	}
	return stored, false, oops.New(oops.CorruptData, oops.CodeChunkCRC, nil, "%s: stored %08x, calculated %08x", t, stored, computed)
}

// budget reserves n bytes of the ancillary cache.
func (p *Parser) budget(n int) error {
	if p.cached+int64(n) > p.opts.MaxCacheSize {
		return oops.New(oops.LimitExceeded, oops.CodeChunkLimits, nil, "ancillary data exceeds cache limit %d", p.opts.MaxCacheSize)
	}
	p.cached += int64(n)
	return nil
}

// inflate decompresses text and profile payloads within what is left of
// the cache budget.
func (p *Parser) inflate(data []byte) ([]byte, error) {
	out, err := inflate.Inflate(p.opts.Backend, data, p.opts.MaxCacheSize-p.cached)
	if err != nil {
		return nil, err
	}
	return out, p.budget(len(out))
}

func (p *Parser) handle(h chunkHeader) error {
	r, known := rules[h.typ]
	if !known {
		return p.handleUnknown(h)
	}

	if err := p.checkOrder(h.typ, r); err != nil {
		return err
	}
	c, ok, err := p.readChunkBody(h)
	if err != nil {
		return err
	}
	p.seen[h.typ] = true
	if !ok {
		return nil
	}

	err = r.parse(p, c)
	if err == nil {
		return nil
	}
	var typed *oops.Error
	lenient := p.opts.Lenient && !h.typ.IsCritical() && errors.As(err, &typed) &&
		(typed.Kind == oops.FormatError || typed.Kind == oops.CorruptData)
	if !lenient {
		return err
	}
	p.log.Warn().Err(err).Stringer("type", h.typ).Msg("malformed ancillary chunk treated as unknown")
	delete(p.seen, h.typ)
	return p.keepUnknown(c)
}

func (p *Parser) checkOrder(t ChunkType, r rule) error {
	if r.dup != oops.CodeNone && p.seen[t] {
		return oops.Newc(oops.FormatError, r.dup)
	}
	if p.stage >= stageSeenIDAT && r.preIDAT {
		return oops.New(oops.FormatError, oops.CodeChunkPos, nil, "%s after IDAT", t)
	}
	if r.prePLTE && p.seen[ChunkPLTE] {
		return oops.New(oops.FormatError, oops.CodeChunkPos, nil, "%s after PLTE", t)
	}
	return nil
}

func (p *Parser) handleUnknown(h chunkHeader) error {
	if h.typ.IsCritical() {
		if !p.opts.SkipUnknownCritical {
			return oops.New(oops.UnsupportedFeature, oops.CodeUnknownCritical, nil, "chunk %s", h.typ)
		}
		p.log.Warn().Stringer("type", h.typ).Msg("skipping unknown critical chunk")
		return p.skipChunk(h)
	}
	if !p.opts.KeepUnknown {
		p.log.Trace().
			Stringer("type", h.typ).
			Bool("public", h.typ.IsPublic()).
			Bool("reserved_ok", h.typ.IsReservedValid()).
			Bool("safe_to_copy", h.typ.IsSafeToCopy()).
			Msg("skipping unknown chunk")
		return p.skipChunk(h)
	}
	c, ok, err := p.readChunkBody(h)
	if err != nil || !ok {
		return err
	}
	return p.keepUnknown(c)
}

func (p *Parser) keepUnknown(c *Chunk) error {
	if !p.opts.KeepUnknown {
		return nil
	}
	if err := p.budget(len(c.Data)); err != nil {
		return err
	}
	p.Meta.Unknown = append(p.Meta.Unknown, UnknownChunk{
		Type:      c.Type,
		Data:      c.Data,
		AfterIDAT: p.stage >= stageSeenIDAT,
	})
	return nil
}

type rule struct {
	parse   func(p *Parser, c *Chunk) error
	dup     oops.Code // non-zero when the chunk may appear only once
	prePLTE bool
	preIDAT bool
}

var rules = map[ChunkType]rule{
	ChunkPLTE: {parse: (*Parser).handlePLTE, dup: oops.CodeDupPLTE, preIDAT: true},
	ChunkcHRM: {parse: (*Parser).handleCHRM, dup: oops.CodeDupCHRM, prePLTE: true, preIDAT: true},
	ChunkgAMA: {parse: (*Parser).handleGAMA, dup: oops.CodeDupGAMA, prePLTE: true, preIDAT: true},
	ChunkiCCP: {parse: (*Parser).handleICCP, dup: oops.CodeDupICCP, prePLTE: true, preIDAT: true},
	ChunksBIT: {parse: (*Parser).handleSBIT, dup: oops.CodeDupSBIT, prePLTE: true, preIDAT: true},
	ChunksRGB: {parse: (*Parser).handleSRGB, dup: oops.CodeDupSRGB, prePLTE: true, preIDAT: true},
	ChunkbKGD: {parse: (*Parser).handleBKGD, dup: oops.CodeDupBKGD, preIDAT: true},
	ChunkhIST: {parse: (*Parser).handleHIST, dup: oops.CodeDupHIST, preIDAT: true},
	ChunktRNS: {parse: (*Parser).handleTRNS, dup: oops.CodeDupTRNS, preIDAT: true},
	ChunkpHYs: {parse: (*Parser).handlePHYS, dup: oops.CodeDupPHYS, preIDAT: true},
	ChunkoFFs: {parse: (*Parser).handleOFFS, dup: oops.CodeDupOFFS, preIDAT: true},
	ChunksPLT: {parse: (*Parser).handleSPLT, preIDAT: true},
	ChunktIME: {parse: (*Parser).handleTIME, dup: oops.CodeDupTIME},
	ChunkeXIf: {parse: (*Parser).handleEXIF, dup: oops.CodeDupEXIF},
	ChunktEXt: {parse: (*Parser).handleTEXT},
	ChunkzTXt: {parse: (*Parser).handleZTXT},
	ChunkiTXt: {parse: (*Parser).handleITXT},
}

func (p *Parser) handlePLTE(c *Chunk) error {
	if p.ihdr.ColorType.IsGray() {
		return oops.New(oops.FormatError, oops.CodeChunkPos, nil, "PLTE in %s image", p.ihdr.ColorType)
	}
	for _, after := range []ChunkType{ChunktRNS, ChunkbKGD, ChunkhIST} {
		if p.seen[after] {
			return oops.New(oops.FormatError, oops.CodeChunkPos, nil, "PLTE after %s", after)
		}
	}
	plte, err := ParsePLTE(c.Data, p.ihdr)
	if err != nil {
		return err
	}
	p.Meta.Palette = plte
	return nil
}

func (p *Parser) handleTRNS(c *Chunk) error {
	trns, err := ParseTRNS(c.Data, p.ihdr, p.Meta.Palette)
	if err != nil {
		return err
	}
	p.Meta.Transparency = trns
	return nil
}

func (p *Parser) handleGAMA(c *Chunk) error {
	gama, err := ParseGAMA(c.Data)
	if err != nil {
		return err
	}
	p.Meta.Gamma = gama
	return nil
}

func (p *Parser) handleBKGD(c *Chunk) error {
	bkgd, err := ParseBKGD(c.Data, p.ihdr, p.Meta.Palette)
	if err != nil {
		return err
	}
	p.Meta.Background = bkgd
	return nil
}

func (p *Parser) handleHIST(c *Chunk) error {
	hist, err := ParseHIST(c.Data, p.Meta.Palette)
	if err != nil {
		return err
	}
	if err := p.budget(len(c.Data)); err != nil {
		return err
	}
	p.Meta.Histogram = hist
	return nil
}

func (p *Parser) handleCHRM(c *Chunk) error {
	chrm, err := ParseCHRM(c.Data)
	if err != nil {
		return err
	}
	p.Meta.Chromaticities = chrm
	return nil
}

func (p *Parser) handleSRGB(c *Chunk) error {
	srgb, err := ParseSRGB(c.Data)
	if err != nil {
		return err
	}
	p.Meta.SRGB = srgb
	return nil
}

func (p *Parser) handleSBIT(c *Chunk) error {
	sbit, err := ParseSBIT(c.Data, p.ihdr)
	if err != nil {
		return err
	}
	p.Meta.SignificantBits = sbit
	return nil
}

func (p *Parser) handleICCP(c *Chunk) error {
	iccp, err := ParseICCP(c.Data, p.inflate)
	if err != nil {
		return err
	}
	p.Meta.ICCProfile = iccp
	return nil
}

func (p *Parser) handlePHYS(c *Chunk) error {
	phys, err := ParsePHYS(c.Data)
	if err != nil {
		return err
	}
	p.Meta.PhysicalDims = phys
	return nil
}

func (p *Parser) handleOFFS(c *Chunk) error {
	offs, err := ParseOFFS(c.Data)
	if err != nil {
		return err
	}
	p.Meta.Offset = offs
	return nil
}

func (p *Parser) handleSPLT(c *Chunk) error {
	splt, err := ParseSPLT(c.Data)
	if err != nil {
		return err
	}
	for _, other := range p.Meta.SuggestedPalettes {
		if other.Name == splt.Name {
			return oops.New(oops.FormatError, oops.CodeSPLTDupName, nil, "sPLT %q", splt.Name)
		}
	}
	if err := p.budget(len(c.Data)); err != nil {
		return err
	}
	p.Meta.SuggestedPalettes = append(p.Meta.SuggestedPalettes, *splt)
	return nil
}

func (p *Parser) handleTIME(c *Chunk) error {
	t, err := ParseTIME(c.Data)
	if err != nil {
		return err
	}
	p.Meta.ModTime = t
	return nil
}

func (p *Parser) handleEXIF(c *Chunk) error {
	exif, err := ParseEXIF(c.Data)
	if err != nil {
		return err
	}
	if err := p.budget(len(exif.Data)); err != nil {
		return err
	}
	p.Meta.Exif = exif
	return nil
}

func (p *Parser) handleTEXT(c *Chunk) error {
	return p.addText(ParseTEXT(c.Data))
}

func (p *Parser) handleZTXT(c *Chunk) error {
	return p.addText(ParseZTXT(c.Data, p.inflate))
}

func (p *Parser) handleITXT(c *Chunk) error {
	return p.addText(ParseITXT(c.Data, p.inflate))
}

func (p *Parser) addText(t *Text, err error) error {
	if err != nil {
		return err
	}
	// Decompressed text was charged while inflating.
	if !t.CompressionFlag {
		if err := p.budget(len(t.Text)); err != nil {
			return err
		}
	}
	p.Meta.Texts = append(p.Meta.Texts, *t)
	return nil
}
