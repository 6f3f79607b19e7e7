package scanline

import (
	"spng.adpollak.net/internal/oops"
)

// Filter types, https://www.w3.org/TR/PNG/#9Filter-types
const (
	FilterNone byte = iota
	FilterSub
	FilterUp
	FilterAverage
	FilterPaeth
)

// Unfilter reverses filter ft in place on cur. prev is the previous
// reconstructed row of the same pass (all zeros for the first row). bpp is
// the filter distance in bytes.
func Unfilter(ft byte, cur, prev []byte, bpp int) error {
	switch ft {
	case FilterNone:
	case FilterSub:
		for i := bpp; i < len(cur); i++ {
			cur[i] += cur[i-bpp]
		}
	case FilterUp:
		for i := range cur {
			cur[i] += prev[i]
		}
	case FilterAverage:
		for i := 0; i < bpp && i < len(cur); i++ {
			cur[i] += prev[i] / 2
		}
		for i := bpp; i < len(cur); i++ {
			cur[i] += byte((int(cur[i-bpp]) + int(prev[i])) / 2)
		}
	case FilterPaeth:
		for i := 0; i < bpp && i < len(cur); i++ {
			cur[i] += prev[i]
		}
		for i := bpp; i < len(cur); i++ {
			cur[i] += paeth(cur[i-bpp], prev[i], prev[i-bpp])
		}
	default:
		return oops.New(oops.CorruptData, oops.CodeFilter, nil, "filter type %d", ft)
	}
	return nil
}

// paeth picks whichever of left, up and upper-left is closest to
// left+up-upperLeft, preferring left, then up.
func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
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
