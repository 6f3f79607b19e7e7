package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBKGDMasksToDepth(t *testing.T) {
	gray := IHDR{Width: 1, Height: 1, BitDepth: 2, ColorType: Grayscale}
	bg, err := ParseBKGD([]byte{0xff, 0xfe}, gray, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, bg.Gray)

	rgb := IHDR{Width: 1, Height: 1, BitDepth: 8, ColorType: Truecolor}
	bg, err = ParseBKGD([]byte{1, 10, 0, 20, 0xff, 30}, rgb, nil)
	require.NoError(t, err)
	assert.Equal(t, Background{Red: 10, Green: 20, Blue: 30}, *bg)

	rgb.BitDepth = 16
	bg, err = ParseBKGD([]byte{1, 10, 0, 20, 0xff, 30}, rgb, nil)
	require.NoError(t, err)
	assert.Equal(t, Background{Red: 0x010a, Green: 20, Blue: 0xff1e}, *bg)
}

func TestChromaticitiesFloat(t *testing.T) {
	c := Chromaticities{
		WhitePointX: 31270, WhitePointY: 32900,
		RedX: 64000, RedY: 33000,
		GreenX: 30000, GreenY: 60000,
		BlueX: 15000, BlueY: 6000,
	}
	f := c.Float()
	assert.InDelta(t, 0.3127, f[0], 1e-9)
	assert.InDelta(t, 0.329, f[1], 1e-9)
	assert.InDelta(t, 0.64, f[2], 1e-9)
	assert.InDelta(t, 0.06, f[7], 1e-9)
}
