package chunk

import (
	"encoding/binary"
	"math"

	"spng.adpollak.net/internal/oops"
)

// ScreenGamma is the display exponent assumed when applying gAMA.
const ScreenGamma = 2.2

type GAMA struct {
	Gamma uint32 // Encoded as a four-byte unsigned integer, representing Gamma * 100000
}

func ParseGAMA(data []byte) (*GAMA, error) {
	if len(data) != 4 {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "gAMA length must be 4 bytes; got: %d", len(data))
	}

	// NOTE: don't forget the data in the datastream MUST be converted to big endian
	gamma := binary.BigEndian.Uint32(data)
	if gamma == 0 || gamma > maxDimension {
		return nil, oops.New(oops.FormatError, oops.CodeGAMA, nil, "gAMA value %d", gamma)
	}

	return &GAMA{Gamma: gamma}, nil
}

// ConvertGamma converts the Image gamma value to a float64.
func (g *GAMA) ConvertGamma() float64 {
	return float64(g.Gamma) / 100_000.0
}

// LUT builds the decoder gamma table for samples of the given bit depth
// (8 or 16), as specified in 13.13 with the display exponent folded in.
func (g *GAMA) LUT(bitDepth uint8) []uint16 {
	maxValue := math.Pow(2, float64(bitDepth)) - 1
	exponent := 1.0 / (g.ConvertGamma() * ScreenGamma)

	lut := make([]uint16, int(maxValue)+1)
	for i := range lut {
		sample := float64(i) / maxValue
		displayOutput := math.Pow(sample, exponent)
		lut[i] = uint16(math.Round(displayOutput * maxValue))
	}
	return lut
}
