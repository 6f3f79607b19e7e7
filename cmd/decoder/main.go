package main

import (
	"os"

	"github.com/spf13/cobra"

	"spng.adpollak.net"
	"spng.adpollak.net/internal/logging"
	"spng.adpollak.net/internal/oops"
)

// settings holds the flags shared by every command.
type settings struct {
	maxWidth    uint32
	maxHeight   uint32
	maxChunk    uint32
	noCRC       bool
	keepUnknown bool
	lenient     bool
	backend     string
	format      string
	gamma       bool
	trns        bool
	background  bool
	logLevel    string
}

var cfg settings

func main() {
	rootCommand := &cobra.Command{
		Use:          "decoder",
		Short:        "Inspect and decode PNG files",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.SetLevel(cfg.logLevel)
		},
	}

	limits := spng.DefaultLimits()
	flags := rootCommand.PersistentFlags()
	flags.Uint32Var(&cfg.maxWidth, "max-width", limits.MaxWidth, "largest accepted image width")
	flags.Uint32Var(&cfg.maxHeight, "max-height", limits.MaxHeight, "largest accepted image height")
	flags.Uint32Var(&cfg.maxChunk, "max-chunk", limits.MaxChunkSize, "largest accepted chunk length")
	flags.BoolVar(&cfg.noCRC, "no-crc", false, "use chunks whose CRC does not match")
	flags.BoolVar(&cfg.keepUnknown, "keep-unknown", false, "keep unknown ancillary chunks")
	flags.BoolVar(&cfg.lenient, "lenient", false, "treat malformed ancillary chunks as unknown")
	flags.StringVar(&cfg.backend, "backend", "klauspost", "zlib implementation: std or klauspost")
	flags.StringVar(&cfg.format, "format", "", "output format: rgba8, rgba16, rgb8, g8, ga8, ga16 or native")
	flags.BoolVar(&cfg.gamma, "gamma", false, "apply gAMA")
	flags.BoolVar(&cfg.trns, "trns", false, "apply the tRNS color key")
	flags.BoolVar(&cfg.background, "background", false, "composite over bKGD")
	flags.StringVar(&cfg.logLevel, "log-level", "info", "trace, debug, info, warn or error")

	rootCommand.AddCommand(infoCommand(), chunksCommand(), decodeCommand(), rowsCommand())

	if err := rootCommand.Execute(); err != nil {
		logging.Error().Err(err).Msg("decoder failed")
		os.Exit(1)
	}
}

func (s settings) options() (spng.Options, error) {
	opts := spng.DefaultOptions()
	opts.Limits.MaxWidth = s.maxWidth
	opts.Limits.MaxHeight = s.maxHeight
	opts.Limits.MaxChunkSize = s.maxChunk
	if s.noCRC {
		opts.CRCCritical, opts.CRCAncillary = spng.CRCUse, spng.CRCUse
	}
	opts.KeepUnknownChunks = s.keepUnknown
	opts.LenientAncillary = s.lenient

	b, ok := spng.BackendByName(s.backend)
	if !ok {
		return opts, oops.New(oops.UsageError, oops.CodeInvalidArg, nil, "unknown backend %q", s.backend)
	}
	opts.Backend = b
	opts.Logger = logging.GlobalLogger().With().Str("backend", b.Name()).Logger()
	return opts, nil
}

func (s settings) decodeFlags() spng.DecodeFlags {
	var f spng.DecodeFlags
	if s.trns {
		f |= spng.DecodeTransparency
	}
	if s.gamma {
		f |= spng.DecodeGamma
	}
	if s.background {
		f |= spng.DecodeBackground
	}
	return f
}

// outputFormat picks the --format flag, or the widest RGBA format the
// image needs.
func (s settings) outputFormat(h spng.Header) (spng.Format, error) {
	if s.format == "" {
		if h.BitDepth == 16 {
			return spng.FormatRGBA16, nil
		}
		return spng.FormatRGBA8, nil
	}
	f, ok := spng.ParseFormat(s.format)
	if !ok {
		return 0, oops.New(oops.UsageError, oops.CodeFormat, nil, "unknown format %q", s.format)
	}
	return f, nil
}

// open starts a Context on the named file. The caller closes the file.
func open(path string) (*spng.Context, *os.File, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, nil, err
	}
	logging.Debug().Str("file", path).Str("backend", opts.Backend.Name()).Msg("opening")
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, oops.New(oops.IoError, oops.CodeIO, err, "open %s", path)
	}
	ctx := spng.NewContext(opts)
	if err := ctx.SetStream(file); err != nil {
		file.Close()
		return nil, nil, err
	}
	return ctx, file, nil
}
