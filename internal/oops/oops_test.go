package oops

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("errors.Is kind", func(t *testing.T) {
		err := New(CorruptData, CodeChunkCRC, nil, "chunk %s", "IDAT")
		assert.True(t, errors.Is(err, CorruptData))
		assert.False(t, errors.Is(err, FormatError))
	})
	t.Run("errors.Is code", func(t *testing.T) {
		err := Newc(LimitExceeded, CodeChunkLimits)
		assert.True(t, errors.Is(err, CodeChunkLimits))
		assert.False(t, errors.Is(err, CodeChunkCRC))
	})
	t.Run("errors.Is wrapped", func(t *testing.T) {
		err := New(IoError, CodeEOF, io.ErrUnexpectedEOF, "reading chunk header")
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	})
	t.Run("errors.As", func(t *testing.T) {
		var wrapped error = New(UsageError, CodeBufSize, nil, "want %d bytes", 4)
		wrapped = errors.Join(wrapped, errors.New("other"))
		var e *Error
		assert.True(t, errors.As(wrapped, &e))
		assert.Equal(t, CodeBufSize, e.Code)
	})
}

func TestErrorString(t *testing.T) {
	err := Newc(FormatError, CodeSignature)
	assert.Equal(t, "png: format error: invalid signature", err.Error())

	err = New(IoError, CodeIO, errors.New("disk on fire"), "reading %d bytes", 8)
	assert.Equal(t, "png: i/o error: reading 8 bytes: disk on fire", err.Error())
}

func TestStackPointsAtCaller(t *testing.T) {
	err := Newc(CorruptData, CodeFilter)
	if assert.NotEmpty(t, err.Stack) {
		assert.True(t, strings.HasSuffix(err.Stack[0].Function, "TestStackPointsAtCaller"), err.Stack[0].Function)
	}
}
