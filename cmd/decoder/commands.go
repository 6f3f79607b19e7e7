package main

import (
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/snksoft/crc"
	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"

	"spng.adpollak.net"
	"spng.adpollak.net/internal/chunk"
	"spng.adpollak.net/internal/images"
	"spng.adpollak.net/internal/logging"
	"spng.adpollak.net/internal/oops"
)

func infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Print the image header and output size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, file, err := open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			h, err := ctx.Header()
			if err != nil {
				return err
			}
			f, err := cfg.outputFormat(h)
			if err != nil {
				return err
			}
			size, err := ctx.DecodedImageSize(f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %dx%d %d-bit %s\n", args[0], h.Width, h.Height, h.BitDepth, h.ColorType)
			fmt.Fprintf(out, "interlaced: %t\n", h.Interlaced())
			fmt.Fprintf(out, "%s output: %d bytes\n", f, size)
			return nil
		},
	}
}

func chunksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chunks <file>",
		Short: "Decode a file and print its ancillary chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, file, err := open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			// Decode to reach chunks stored after the image data.
			size, err := ctx.DecodedImageSize(spng.FormatNative)
			if err != nil {
				return err
			}
			if err := ctx.DecodeImage(make([]byte, size), spng.FormatNative, 0); err != nil {
				return err
			}
			printChunks(cmd.OutOrStdout(), ctx)
			return nil
		},
	}
}

func printChunks(w io.Writer, ctx *spng.Context) {
	h, _ := ctx.Header()
	fmt.Fprintf(w, "IHDR  %dx%d %d-bit %s\n", h.Width, h.Height, h.BitDepth, h.ColorType)
	if v, err := ctx.Palette(); err == nil {
		fmt.Fprintf(w, "PLTE  %d entries\n", len(v))
	}
	if v, err := ctx.Transparency(); err == nil {
		fmt.Fprintf(w, "tRNS  %+v\n", v)
	}
	if v, err := ctx.Gamma(); err == nil {
		fmt.Fprintf(w, "gAMA  %d\n", v.Gamma)
	}
	if v, err := ctx.Chromaticities(); err == nil {
		c := v.Float()
		fmt.Fprintf(w, "cHRM  white %.4f,%.4f red %.4f,%.4f green %.4f,%.4f blue %.4f,%.4f\n",
			c[0], c[1], c[2], c[3], c[4], c[5], c[6], c[7])
	}
	if v, err := ctx.SRGB(); err == nil {
		fmt.Fprintf(w, "sRGB  %+v\n", v)
	}
	if v, err := ctx.ICCProfile(); err == nil {
		fmt.Fprintf(w, "iCCP  %q, %d bytes\n", v.Name, len(v.Profile))
	}
	if v, err := ctx.SignificantBits(); err == nil {
		fmt.Fprintf(w, "sBIT  %+v\n", v)
	}
	if v, err := ctx.Background(); err == nil {
		fmt.Fprintf(w, "bKGD  %+v\n", v)
	}
	if v, err := ctx.Histogram(); err == nil {
		fmt.Fprintf(w, "hIST  %d entries\n", len(v))
	}
	if v, err := ctx.PhysicalDims(); err == nil {
		fmt.Fprintf(w, "pHYs  %+v\n", v)
	}
	if v, err := ctx.SuggestedPalettes(); err == nil {
		for _, p := range v {
			fmt.Fprintf(w, "sPLT  %q, %d-bit, %d entries\n", p.Name, p.SampleDepth, len(p.Entries))
		}
	}
	if v, err := ctx.Offset(); err == nil {
		fmt.Fprintf(w, "oFFs  %+v\n", v)
	}
	if v, err := ctx.Exif(); err == nil {
		fmt.Fprintf(w, "eXIf  %d bytes\n", len(v.Data))
	}
	if v, err := ctx.ModTime(); err == nil {
		fmt.Fprintf(w, "tIME  %04d-%02d-%02d %02d:%02d:%02d\n", v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Second)
	}
	if v, err := ctx.Texts(); err == nil {
		for _, t := range v {
			fmt.Fprintf(w, "%s  %s: %q\n", t.Type, t.Keyword, t.Text)
		}
	}
	if v, err := ctx.UnknownChunks(); err == nil {
		for _, c := range v {
			fmt.Fprintf(w, "%s  %d bytes\n", c.Type, len(c.Data))
		}
	}
}

func decodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <in.png> <out.png|out.bmp|out.raw>",
		Short: "Decode an image and write it out",
		Long:  "Decode an image and write it out. The output extension picks the encoder; .raw writes the decoded buffer as is.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, file, err := open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			h, err := ctx.Header()
			if err != nil {
				return err
			}
			f, err := cfg.outputFormat(h)
			if err != nil {
				return err
			}
			size, err := ctx.DecodedImageSize(f)
			if err != nil {
				return err
			}
			pix := make([]byte, size)
			if err := ctx.DecodeImage(pix, f, cfg.decodeFlags()); err != nil {
				return err
			}
			return writeImage(args[1], pix, f, ctx)
		},
	}
}

func writeImage(path string, pix []byte, f spng.Format, ctx *spng.Context) error {
	out, err := os.Create(path)
	if err != nil {
		return oops.New(oops.IoError, oops.CodeIO, err, "create %s", path)
	}
	defer out.Close()

	if ext := strings.ToLower(filepath.Ext(path)); ext == ".raw" {
		_, err = out.Write(pix)
	} else {
		h, _ := ctx.Header()
		var meta chunk.Metadata
		meta.Palette, _ = ctx.Palette()
		if trns, err := ctx.Transparency(); err == nil {
			meta.Transparency = &trns
		}
		img, ierr := images.CreateImage(pix, f, h, &meta)
		if ierr != nil {
			return ierr
		}
		switch ext {
		case ".png":
			err = png.Encode(out, img)
		case ".bmp":
			err = bmp.Encode(out, img)
		default:
			return oops.New(oops.UsageError, oops.CodeInvalidArg, nil, "no encoder for %q", ext)
		}
	}
	if err != nil {
		return oops.New(oops.IoError, oops.CodeIO, err, "write %s", path)
	}
	if err := out.Close(); err != nil {
		return oops.New(oops.IoError, oops.CodeIO, err, "close %s", path)
	}
	logging.Info().Str("file", path).Stringer("format", f).Int("bytes", len(pix)).Msg("wrote image")
	return nil
}

func rowsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rows <file>",
		Short: "Decode row by row, printing each row's CRC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, file, err := open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			h, err := ctx.Header()
			if err != nil {
				return err
			}
			f, err := cfg.outputFormat(h)
			if err != nil {
				return err
			}
			size, err := ctx.DecodedImageSize(f)
			if err != nil {
				return err
			}
			if err := ctx.DecodeImage(nil, f, cfg.decodeFlags()|spng.DecodeProgressive); err != nil {
				return err
			}

			// Interlaced rows fill in pass by pass, so each line shows the
			// row as it stands after that scanline.
			pix := make([]byte, size)
			stride := size / int(h.Height)
			out := cmd.OutOrStdout()
			for {
				info, err := ctx.RowInfo()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				row := pix[int(info.RowNum)*stride : int(info.RowNum+1)*stride]
				if err := ctx.DecodeRow(row); err != nil {
					return err
				}
				fmt.Fprintf(out, "pass %d row %4d filter %d crc %08x\n",
					info.Pass, info.RowNum, info.Filter, crc.CalculateCRC(crc.CRC32, row))
			}
		},
	}
}
