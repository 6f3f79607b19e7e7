// Package inflate decompresses the zlib stream carried by IDAT chunks (and
// by zTXt, iTXt and iCCP payloads). Decompression is pulled in arbitrary
// sized pieces so that only about one row is held in memory at a time.
package inflate

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"errors"
	"io"

	kzlib "github.com/klauspost/compress/zlib"

	"spng.adpollak.net/internal/oops"
)

// Backend is a zlib implementation. Backends differ in speed only; every
// backend must produce the same bytes for the same input.
type Backend interface {
	Name() string
	NewReader(r io.Reader) (io.ReadCloser, error)
}

type stdBackend struct{}

func (stdBackend) Name() string { return "std" }

func (stdBackend) NewReader(r io.Reader) (io.ReadCloser, error) {
	return zlib.NewReader(r)
}

type klauspostBackend struct{}

func (klauspostBackend) Name() string { return "klauspost" }

func (klauspostBackend) NewReader(r io.Reader) (io.ReadCloser, error) {
	return kzlib.NewReader(r)
}

var (
	Std       Backend = stdBackend{}
	Klauspost Backend = klauspostBackend{}
)

// Default is used when no backend was chosen.
var Default = Klauspost

// ByName resolves a backend name as accepted on the command line.
func ByName(name string) (Backend, bool) {
	switch name {
	case "std", "stdlib":
		return Std, true
	case "klauspost", "":
		return Klauspost, true
	}
	return nil, false
}

// Stream pulls decompressed bytes out of a compressed source. The total
// number of bytes that may be pulled is fixed up front.
type Stream struct {
	src     io.Reader
	backend Backend
	zr      io.ReadCloser
	budget  int64
	pulled  int64
}

// NewStream prepares to inflate src, allowing exactly budget output bytes.
// The zlib header is not read until the first Pull.
func NewStream(backend Backend, src io.Reader, budget int64) *Stream {
	if backend == nil {
		backend = Default
	}
	return &Stream{src: src, backend: backend, budget: budget}
}

// Remaining is the number of bytes still owed by the stream.
func (s *Stream) Remaining() int64 { return s.budget - s.pulled }

// Pull fills p with the next len(p) decompressed bytes.
func (s *Stream) Pull(p []byte) error {
	if int64(len(p)) > s.Remaining() {
		return oops.New(oops.CorruptData, oops.CodeIDATStream, nil, "pull of %d bytes exceeds the %d remaining", len(p), s.Remaining())
	}
	if s.zr == nil {
		zr, err := s.backend.NewReader(s.src)
		if err != nil {
			return streamErr(err)
		}
		s.zr = zr
	}
	n, err := io.ReadFull(s.zr, p)
	s.pulled += int64(n)
	if err != nil {
		return streamErr(err)
	}
	return nil
}

// Finish checks that the compressed stream ends where the image data ends,
// which also makes the backend verify the Adler-32 trailer.
func (s *Stream) Finish() error {
	if s.Remaining() != 0 {
		return oops.New(oops.CorruptData, oops.CodeIDATTooShort, nil, "%d bytes of image data never read", s.Remaining())
	}
	if s.zr == nil {
		return nil
	}
	var tmp [1]byte
	n, err := io.ReadFull(s.zr, tmp[:])
	if n != 0 {
		return oops.Newc(oops.CorruptData, oops.CodeIDATStream)
	}
	if err != io.EOF && err != io.ErrUnexpectedEOF {
		return streamErr(err)
	}
	return s.Close()
}

func (s *Stream) Close() error {
	if s.zr == nil {
		return nil
	}
	err := s.zr.Close()
	s.zr = nil
	if err != nil {
		return streamErr(err)
	}
	return nil
}

// Inflate decompresses a whole zlib buffer, failing once more than limit
// bytes come out.
func Inflate(backend Backend, data []byte, limit int64) ([]byte, error) {
	if backend == nil {
		backend = Default
	}
	zr, err := backend.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, streamErr(err)
	}
	defer zr.Close()

	var out bytes.Buffer
	n, err := io.Copy(&out, io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, streamErr(err)
	}
	if n > limit {
		return nil, oops.New(oops.LimitExceeded, oops.CodeChunkLimits, nil, "decompressed data exceeds %d bytes", limit)
	}
	return out.Bytes(), nil
}

// streamErr classifies a decompression failure. Errors already typed by
// the chunk layer (CRC mismatches, I/O) pass through untouched.
func streamErr(err error) error {
	var typed *oops.Error
	if errors.As(err, &typed) {
		return err
	}
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return oops.New(oops.CorruptData, oops.CodeIDATTooShort, err, "zlib stream truncated")
	case isCorrupt(err):
		return oops.New(oops.CorruptData, oops.CodeZlib, err, "zlib stream")
	}
	return oops.New(oops.CorruptData, oops.CodeZlib, err, "inflate")
}

func isCorrupt(err error) bool {
	var ce flate.CorruptInputError
	if errors.As(err, &ce) {
		return true
	}
	return errors.Is(err, zlib.ErrChecksum) || errors.Is(err, zlib.ErrHeader) || errors.Is(err, zlib.ErrDictionary) ||
		errors.Is(err, kzlib.ErrChecksum) || errors.Is(err, kzlib.ErrHeader) || errors.Is(err, kzlib.ErrDictionary)
}
