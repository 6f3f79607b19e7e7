// Package pngtest builds PNG files byte by byte for tests, including
// malformed ones that no encoder would write.
package pngtest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"

	"github.com/snksoft/crc"
)

const Signature = "\x89PNG\r\n\x1a\n"

// Builder accumulates a PNG datastream.
type Builder struct {
	buf bytes.Buffer
}

// New starts a datastream with the signature already written.
func New() *Builder {
	b := &Builder{}
	b.buf.WriteString(Signature)
	return b
}

// Raw appends bytes as they are.
func (b *Builder) Raw(p []byte) *Builder {
	b.buf.Write(p)
	return b
}

// Chunk appends a chunk with a correct CRC.
func (b *Builder) Chunk(typ string, data []byte) *Builder {
	return b.Raw(Chunk(typ, data))
}

func (b *Builder) IHDR(h Header) *Builder {
	return b.Chunk("IHDR", h.Bytes())
}

// IDAT splits data over n IDAT chunks of roughly equal size. Empty chunks
// are written when data is shorter than n.
func (b *Builder) IDAT(data []byte, n int) *Builder {
	if n < 1 {
		n = 1
	}
	step := (len(data) + n - 1) / n
	for i := 0; i < n; i++ {
		lo := min(i*step, len(data))
		hi := min(lo+step, len(data))
		b.Chunk("IDAT", data[lo:hi])
	}
	return b
}

func (b *Builder) IEND() *Builder {
	return b.Chunk("IEND", nil)
}

func (b *Builder) Bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}

// Chunk frames data as length, type, data and CRC.
func Chunk(typ string, data []byte) []byte {
	out := make([]byte, 8, 12+len(data))
	binary.BigEndian.PutUint32(out, uint32(len(data)))
	copy(out[4:], typ)
	out = append(out, data...)
	sum := crc.CalculateCRC(crc.CRC32, out[4:])
	return binary.BigEndian.AppendUint32(out, uint32(sum))
}

// Compress zlib-compresses p.
func Compress(p []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(p)
	zw.Close()
	return buf.Bytes()
}

// Header is the content of an IHDR chunk.
type Header struct {
	Width, Height uint32
	Depth, Color  uint8
	Interlace     uint8
}

func (h Header) Bytes() []byte {
	out := make([]byte, 13)
	binary.BigEndian.PutUint32(out[0:], h.Width)
	binary.BigEndian.PutUint32(out[4:], h.Height)
	out[8] = h.Depth
	out[9] = h.Color
	out[12] = h.Interlace
	return out
}

func (h Header) bitsPerPixel() int {
	samples := map[uint8]int{0: 1, 2: 3, 3: 1, 4: 2, 6: 4}[h.Color]
	return samples * int(h.Depth)
}

func (h Header) rowBytes(width uint32) int {
	return (int(width)*h.bitsPerPixel() + 7) / 8
}

// Image is a PNG image held as packed, unfiltered rows in file order.
type Image struct {
	Header
	Rows [][]byte
}

// Pixels builds an image whose rows are taken from pix, rowBytes at a
// time.
func Pixels(h Header, pix []byte) Image {
	img := Image{Header: h}
	stride := h.rowBytes(h.Width)
	for y := 0; y < int(h.Height); y++ {
		img.Rows = append(img.Rows, pix[y*stride:(y+1)*stride])
	}
	return img
}

// Filtered returns the filtered scanlines of the image, pass by pass when
// the header asks for Adam7. filter picks the filter type of each row.
func (img Image) Filtered(filter func(pass, y int) byte) []byte {
	var out []byte
	if img.Interlace == 0 {
		return appendFiltered(out, img.Rows, img.bitsPerPixel(), 0, filter)
	}
	for pass, p := range adam7 {
		rows := img.pass(p)
		if len(rows) == 0 || len(rows[0]) == 0 {
			continue
		}
		out = appendFiltered(out, rows, img.bitsPerPixel(), pass, filter)
	}
	return out
}

// Encode returns a complete PNG with the image data in n IDAT chunks.
func (img Image) Encode(filter func(pass, y int) byte, n int) []byte {
	return New().IHDR(img.Header).IDAT(Compress(img.Filtered(filter)), n).IEND().Bytes()
}

// Fixed uses the same filter type for every row.
func Fixed(f byte) func(int, int) byte {
	return func(int, int) byte { return f }
}

// Cycle rotates through all five filter types.
func Cycle(pass, y int) byte {
	return byte((pass + y) % 5)
}

var adam7 = [7]struct{ x0, y0, dx, dy int }{
	{0, 0, 8, 8},
	{4, 0, 8, 8},
	{0, 4, 4, 8},
	{2, 0, 4, 4},
	{0, 2, 2, 4},
	{1, 0, 2, 2},
	{0, 1, 1, 2},
}

// pass extracts the reduced image of one Adam7 pass.
func (img Image) pass(p struct{ x0, y0, dx, dy int }) [][]byte {
	w := (int(img.Width) - p.x0 + p.dx - 1) / p.dx
	h := (int(img.Height) - p.y0 + p.dy - 1) / p.dy
	if w <= 0 || h <= 0 {
		return nil
	}
	bpp := img.bitsPerPixel()
	rows := make([][]byte, h)
	for y := range rows {
		src := img.Rows[p.y0+y*p.dy]
		dst := make([]byte, img.rowBytes(uint32(w)))
		for x := 0; x < w; x++ {
			copyBits(dst, x*bpp, src, (p.x0+x*p.dx)*bpp, bpp)
		}
		rows[y] = dst
	}
	return rows
}

func copyBits(dst []byte, dstBit int, src []byte, srcBit int, n int) {
	if n%8 == 0 {
		copy(dst[dstBit/8:dstBit/8+n/8], src[srcBit/8:])
		return
	}
	for i := 0; i < n; i++ {
		s, d := srcBit+i, dstBit+i
		bit := src[s/8] >> (7 - s%8) & 1
		dst[d/8] |= bit << (7 - d%8)
	}
}

func appendFiltered(out []byte, rows [][]byte, bitsPerPixel, pass int, filter func(pass, y int) byte) []byte {
	bpp := max(1, bitsPerPixel/8)
	prev := make([]byte, len(rows[0]))
	for y, row := range rows {
		ft := filter(pass, y)
		out = append(out, ft)
		for i, x := range row {
			var a, b, c byte
			if i >= bpp {
				a = row[i-bpp]
				c = prev[i-bpp]
			}
			b = prev[i]
			switch ft {
			case 1:
				x -= a
			case 2:
				x -= b
			case 3:
				x -= byte((int(a) + int(b)) / 2)
			case 4:
				x -= paeth(a, b, c)
			}
			out = append(out, x)
		}
		prev = row
	}
	return out
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
