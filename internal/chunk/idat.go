package chunk

import (
	"io"

	"spng.adpollak.net/internal/oops"
)

// idatReader presents a run of consecutive IDAT chunks as one stream of
// compressed bytes. Each chunk's CRC is checked as its last byte is
// consumed. The header of the chunk following the run is kept for
// ReadTrailer.
//
// It implements io.ByteReader so the inflater reads no further than the
// end of the zlib stream.
type idatReader struct {
	p         *Parser
	remaining uint32 // unread bytes of the current chunk
	buf       [4096]byte
	r, w      int
	done      bool
	chunks    int
}

// IDATReader returns the reader over the image data. It may be called once,
// after ReadAncillary.
func (p *Parser) IDATReader() (io.Reader, error) {
	if p.stage != stageSeenIDAT || p.pending == nil || p.idat != nil {
		return nil, oops.New(oops.UsageError, oops.CodeBadState, nil, "image data not at hand")
	}
	h := *p.pending
	p.pending = nil
	p.idat = &idatReader{p: p}
	p.idat.start(h)
	return p.idat, nil
}

func (d *idatReader) start(h chunkHeader) {
	d.remaining = h.length
	d.chunks++
	d.p.crc32.Reset()
	d.p.crc32.Update(h.typ[:])
}

// fill makes at least one byte available, moving to the next IDAT chunk
// when the current one is used up.
func (d *idatReader) fill() error {
	for d.remaining == 0 {
		if d.done {
			return io.EOF
		}
		if err := d.next(); err != nil {
			return err
		}
	}
	n := min(len(d.buf), int(d.remaining))
	if err := d.p.src.ReadFull(d.buf[:n]); err != nil {
		return err
	}
	d.p.crc32.Update(d.buf[:n])
	d.remaining -= uint32(n)
	d.r, d.w = 0, n
	return nil
}

// next finishes the current chunk and reads the following header.
func (d *idatReader) next() error {
	_, ok, err := d.p.verifyChecksum(ChunkIDAT)
	if err != nil {
		return err
	}
	if !ok {
		return oops.New(oops.CorruptData, oops.CodeChunkCRC, nil, "IDAT")
	}
	h, err := d.p.readChunkHeader()
	if err != nil {
		return err
	}
	if h.typ != ChunkIDAT {
		d.p.pending = &h
		d.p.stage = stageAfterIDAT
		d.done = true
		d.p.log.Debug().Int("chunks", d.chunks).Msg("end of image data")
		return io.EOF
	}
	d.start(h)
	return nil
}

func (d *idatReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if d.r == d.w {
		if err := d.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, d.buf[d.r:d.w])
	d.r += n
	return n, nil
}

func (d *idatReader) ReadByte() (byte, error) {
	if d.r == d.w {
		if err := d.fill(); err != nil {
			return 0, err
		}
	}
	c := d.buf[d.r]
	d.r++
	return c, nil
}
