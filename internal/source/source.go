// Package source hides where PNG bytes come from. A Source either hands
// over exactly the bytes asked for or fails; short reads never leak out.
package source

import (
	"bufio"
	"errors"
	"io"

	"spng.adpollak.net/internal/oops"
)

type Source interface {
	// ReadFull fills p completely. Running out of input is an IoError with
	// CodeEOF, any other read failure an IoError with CodeIO.
	ReadFull(p []byte) error
	// Offset is the number of bytes consumed so far.
	Offset() int64
}

// Buffer reads from an in-memory PNG.
type Buffer struct {
	data []byte
	idx  int64
}

func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Next returns the next n bytes without copying. The slice aliases the
// underlying buffer.
func (b *Buffer) Next(n int) ([]byte, error) {
	if n < 0 || b.idx+int64(n) > int64(len(b.data)) {
		return nil, eof(b.idx, int64(n))
	}
	b.idx += int64(n)
	return b.data[b.idx-int64(n) : b.idx], nil
}

func (b *Buffer) ReadFull(p []byte) error {
	src, err := b.Next(len(p))
	if err != nil {
		return err
	}
	copy(p, src)
	return nil
}

func (b *Buffer) Offset() int64 { return b.idx }

// Stream reads from a pull-based io.Reader, looping until each request is
// satisfied.
type Stream struct {
	r   *bufio.Reader
	off int64
}

func NewStream(r io.Reader) *Stream {
	if br, ok := r.(*bufio.Reader); ok {
		return &Stream{r: br}
	}
	return &Stream{r: bufio.NewReaderSize(r, 32*1024)}
}

func (s *Stream) ReadFull(p []byte) error {
	n, err := io.ReadFull(s.r, p)
	s.off += int64(n)
	if err != nil {
		return readErr(err, s.off, int64(len(p)-n))
	}
	return nil
}

func (s *Stream) Offset() int64 { return s.off }

func readErr(err error, off, missing int64) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return oops.New(oops.IoError, oops.CodeEOF, io.ErrUnexpectedEOF, "%d bytes missing at offset %d", missing, off)
	}
	return oops.New(oops.IoError, oops.CodeIO, err, "read failed at offset %d", off)
}

func eof(off, n int64) error {
	return oops.New(oops.IoError, oops.CodeEOF, io.ErrUnexpectedEOF, "%d bytes requested at offset %d", n, off)
}
