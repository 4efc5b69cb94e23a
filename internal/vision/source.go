package vision

import (
	"image"

	"github.com/couchcryptid/air-quality-service/internal/domain"
)

// hsv8 is an HSV triple on the 8-bit scale: H in [0,180), S and V in [0,255].
type hsv8 struct {
	h, s, v uint8
}

// hsvRange is an inclusive box in 8-bit HSV space.
type hsvRange struct {
	lo, hi hsv8
}

func (r hsvRange) contains(p hsv8) bool {
	return p.h >= r.lo.h && p.h <= r.hi.h &&
		p.s >= r.lo.s && p.s <= r.hi.s &&
		p.v >= r.lo.v && p.v <= r.hi.v
}

// Colour ranges for source classification.
var (
	smokeRange = hsvRange{lo: hsv8{0, 0, 100}, hi: hsv8{180, 50, 255}}
	dustRange  = hsvRange{lo: hsv8{10, 50, 50}, hi: hsv8{30, 255, 255}}
	fireRange  = hsvRange{lo: hsv8{0, 100, 100}, hi: hsv8{10, 255, 255}}
)

// Classification thresholds, as fractions of the image area.
const (
	fireFraction    = 0.10
	smokeFraction   = 0.30
	dustFraction    = 0.20
	vehicleFraction = 0.10
)

// toHSV converts 8-bit RGB to 8-bit HSV with hue halved to fit a byte.
func toHSV(r, g, b uint8) hsv8 {
	rf, gf, bf := float64(r), float64(g), float64(b)
	maxC := max(rf, gf, bf)
	minC := min(rf, gf, bf)
	diff := maxC - minC

	var s float64
	if maxC > 0 {
		s = 255 * diff / maxC
	}

	var h float64
	if diff > 0 {
		switch maxC {
		case rf:
			h = 60 * (gf - bf) / diff
		case gf:
			h = 120 + 60*(bf-rf)/diff
		default:
			h = 240 + 60*(rf-gf)/diff
		}
		if h < 0 {
			h += 360
		}
	}

	hb := int(h/2 + 0.5)
	if hb >= 180 {
		hb -= 180
	}
	return hsv8{h: uint8(hb), s: uint8(s + 0.5), v: uint8(maxC)}
}

// sourceFractions returns the share of pixels in the smoke, dust and fire ranges.
func (rs *raster) sourceFractions() (smoke, dust, fire float64) {
	var ns, nd, nf int
	for i := range rs.size() {
		p := rs.hsv(i)
		if smokeRange.contains(p) {
			ns++
		}
		if dustRange.contains(p) {
			nd++
		}
		if fireRange.contains(p) {
			nf++
		}
	}
	total := float64(rs.size())
	return float64(ns) / total, float64(nd) / total, float64(nf) / total
}

func (rs *raster) classify() domain.PollutionSource {
	smoke, dust, fire := rs.sourceFractions()
	switch {
	case fire > fireFraction:
		return domain.SourceFire
	case smoke > smokeFraction:
		return domain.SourceSmoke
	case dust > dustFraction:
		return domain.SourceDust
	case smoke > vehicleFraction:
		return domain.SourceVehicle
	default:
		return domain.SourceUnknown
	}
}

// ClassifySource labels the dominant pollution source from colour
// statistics. It is deterministic and returns UNKNOWN for empty images.
func ClassifySource(img image.Image) domain.PollutionSource {
	rs, err := newRaster(img)
	if err != nil {
		return domain.SourceUnknown
	}
	return rs.classify()
}
