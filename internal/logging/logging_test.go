package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spng.adpollak.net/internal/oops"
)

func TestSetLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	require.NoError(t, SetLevel(""))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	err := SetLevel("loud")
	assert.True(t, errors.Is(err, oops.CodeInvalidArg), "%v", err)
}

func TestConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(NewConsoleWriter(&buf))
	logger.Info().Str("chunk", "IHDR").Msg("parsed")
	assert.Contains(t, buf.String(), "parsed")
	assert.Contains(t, buf.String(), "IHDR")
}

func TestHelpersUseGlobalLogger(t *testing.T) {
	saved := *GlobalLogger()
	defer func() { *GlobalLogger() = saved }()

	var buf bytes.Buffer
	*GlobalLogger() = zerolog.New(&buf)
	Info().Str("file", "a.png").Msg("wrote image")
	Debug().Msg("opening")
	assert.Contains(t, buf.String(), `"message":"wrote image"`)
	assert.Contains(t, buf.String(), `"file":"a.png"`)
	assert.Contains(t, buf.String(), `"message":"opening"`)
}
