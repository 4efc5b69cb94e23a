package vision

import (
	"image"
	"math"
)

// Frame analysis ranges. Smoke here is brighter than in ClassifySource and
// the dust box is narrower, tuned for live camera frames.
var (
	frameSmokeRange = hsvRange{lo: hsv8{0, 0, 180}, hi: hsv8{180, 50, 255}}
	frameDustRange  = hsvRange{lo: hsv8{15, 30, 100}, hi: hsv8{35, 150, 255}}
)

const (
	smokeDetectedPct = 5.0
	minRegionArea    = 1000
	maxRegions       = 10
	// maxFrameRise is the AQI rise attributed to a fully smoky frame.
	maxFrameRise = 150
)

// SmokeRegion is the bounding box of a connected smoke area.
type SmokeRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
	Area   int `json:"area"`
}

// SmokeAnalysis is the result of scanning a single camera frame.
type SmokeAnalysis struct {
	Detected    bool          `json:"smoke_detected"`
	Percentage  float64       `json:"smoke_percentage"`
	Intensity   float64       `json:"smoke_intensity"`
	Haziness    float64       `json:"haziness_score"`
	Regions     []SmokeRegion `json:"smoke_regions"`
	RegionCount int           `json:"num_regions"`
}

// DetectSmoke measures how much of a frame is smoke or dust coloured and
// locates the larger connected regions. Up to ten regions larger than 1000
// pixels are returned in scan order; RegionCount reports all of them.
func DetectSmoke(img image.Image) (SmokeAnalysis, error) {
	rs, err := newRaster(img)
	if err != nil {
		return SmokeAnalysis{Regions: []SmokeRegion{}}, err
	}

	mask := make([]bool, rs.size())
	hits := 0
	for i := range mask {
		p := rs.hsv(i)
		if frameSmokeRange.contains(p) || frameDustRange.contains(p) {
			mask[i] = true
			hits++
		}
	}
	pct := float64(hits) / float64(rs.size()) * 100

	haze := sharpnessHaze(laplacianVariance(rs.gray(), rs.w, rs.h))
	regions := connectedRegions(mask, rs.w, rs.h, minRegionArea)

	out := SmokeAnalysis{
		Detected:    pct > smokeDetectedPct,
		Percentage:  pct,
		Intensity:   math.Min(1, pct/100*0.7+haze*0.3),
		Haziness:    round3(haze),
		Regions:     regions,
		RegionCount: len(regions),
	}
	if len(out.Regions) > maxRegions {
		out.Regions = out.Regions[:maxRegions]
	}
	return out, nil
}

// Rounded returns a copy for display: intensity to three decimals and
// percentage to one. Rise and level are derived from the unrounded values.
func (a SmokeAnalysis) Rounded() SmokeAnalysis {
	a.Intensity = round3(a.Intensity)
	a.Percentage = math.Round(a.Percentage*10) / 10
	return a
}

// FrameRise converts smoke intensity into an AQI rise.
func FrameRise(intensity float64) int {
	return int(intensity * maxFrameRise)
}

// SmokeLevel buckets smoke intensity for display.
func SmokeLevel(intensity float64) string {
	switch {
	case intensity > 0.7:
		return "SEVERE"
	case intensity > 0.5:
		return "HIGH"
	case intensity > 0.3:
		return "MODERATE"
	case intensity > 0.1:
		return "LOW"
	default:
		return "CLEAN"
	}
}

// connectedRegions labels 8-connected true cells of mask and returns the
// bounding boxes of components whose pixel count exceeds minArea.
func connectedRegions(mask []bool, w, h, minArea int) []SmokeRegion {
	seen := make([]bool, len(mask))
	regions := []SmokeRegion{}
	var stack []int

	for start := range mask {
		if !mask[start] || seen[start] {
			continue
		}
		seen[start] = true
		stack = append(stack[:0], start)
		minX, minY, maxX, maxY := w, h, -1, -1
		area := 0

		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			area++
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					j := ny*w + nx
					if mask[j] && !seen[j] {
						seen[j] = true
						stack = append(stack, j)
					}
				}
			}
		}

		if area > minArea {
			regions = append(regions, SmokeRegion{
				X:      minX,
				Y:      minY,
				Width:  maxX - minX + 1,
				Height: maxY - minY + 1,
				Area:   area,
			})
		}
	}
	return regions
}
