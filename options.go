package spng

import (
	"github.com/rs/zerolog"

	"spng.adpollak.net/internal/chunk"
	"spng.adpollak.net/internal/inflate"
	"spng.adpollak.net/internal/scanline"
)

// Format is the pixel layout written by the decoder.
type Format = scanline.Format

const (
	FormatRGBA8  = scanline.FormatRGBA8
	FormatRGBA16 = scanline.FormatRGBA16
	FormatRGB8   = scanline.FormatRGB8
	FormatG8     = scanline.FormatG8
	FormatGA8    = scanline.FormatGA8
	FormatGA16   = scanline.FormatGA16
	FormatNative = scanline.FormatNative
)

// ParseFormat looks up a format by its String name, such as "rgba8".
func ParseFormat(s string) (Format, bool) { return scanline.ParseFormat(s) }

// DecodeFlags select optional processing in DecodeImage.
type DecodeFlags = scanline.Flags

const (
	DecodeTransparency = scanline.Transparency
	DecodeGamma        = scanline.Gamma
	DecodeBackground   = scanline.Background
	DecodeProgressive  = scanline.Progressive
)

// CRCAction says what happens to a chunk whose CRC does not match.
type CRCAction = chunk.CRCAction

const (
	CRCError   = chunk.CRCError
	CRCDiscard = chunk.CRCDiscard
	CRCUse     = chunk.CRCUse
)

// Backend is a zlib implementation.
type Backend = inflate.Backend

var (
	BackendStd       = inflate.Std
	BackendKlauspost = inflate.Klauspost
)

// BackendByName resolves "std" or "klauspost".
func BackendByName(name string) (Backend, bool) { return inflate.ByName(name) }

type Limits struct {
	MaxWidth  uint32
	MaxHeight uint32
	// MaxChunkSize bounds the length of any one chunk.
	MaxChunkSize uint32
	// MaxCacheSize bounds the ancillary data kept in memory, counting
	// decompressed text and profiles.
	MaxCacheSize int64
	// MaxDecodedSize bounds both the inflated image data and the output
	// buffer.
	MaxDecodedSize int64
}

func DefaultLimits() Limits {
	return Limits{
		MaxWidth:       1 << 20,
		MaxHeight:      1 << 20,
		MaxChunkSize:   1 << 26,
		MaxCacheSize:   1 << 26,
		MaxDecodedSize: 1 << 30,
	}
}

type Options struct {
	Limits Limits

	CRCCritical  CRCAction
	CRCAncillary CRCAction

	// KeepUnknownChunks stores unknown ancillary chunks for UnknownChunks.
	KeepUnknownChunks bool
	// LenientAncillary treats a malformed ancillary chunk as unknown
	// instead of failing.
	LenientAncillary bool
	// SkipUnknownCritical skips unknown critical chunks instead of failing.
	SkipUnknownCritical bool

	// Backend defaults to BackendKlauspost when nil.
	Backend Backend
	// Logger receives chunk and state events at debug and trace level. The
	// zero Logger discards them.
	Logger zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		Limits:       DefaultLimits(),
		CRCCritical:  CRCError,
		CRCAncillary: CRCError,
		Backend:      inflate.Default,
		Logger:       zerolog.Nop(),
	}
}

func (o Options) parserOptions() chunk.Options {
	return chunk.Options{
		MaxWidth:            o.Limits.MaxWidth,
		MaxHeight:           o.Limits.MaxHeight,
		MaxChunkSize:        o.Limits.MaxChunkSize,
		MaxCacheSize:        o.Limits.MaxCacheSize,
		CRCCritical:         o.CRCCritical,
		CRCAncillary:        o.CRCAncillary,
		KeepUnknown:         o.KeepUnknownChunks,
		Lenient:             o.LenientAncillary,
		SkipUnknownCritical: o.SkipUnknownCritical,
		Backend:             o.Backend,
		Logger:              o.Logger,
	}
}
