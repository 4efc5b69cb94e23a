package vision

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Haziness tuning.
const (
	// NeutralHaziness is substituted when an image cannot be analyzed.
	NeutralHaziness = 0.5

	sharpnessScale    = 500.0
	brightThreshold   = 180.0
	contrastCeiling   = 30.0
	brightHazePenalty = 0.3
)

// ComputeHaziness scores an image from 0 (sharp) to 1 (hazy) using the
// variance of its Laplacian. Bright low-contrast images get a flat penalty.
// The score is rounded to three decimals.
func ComputeHaziness(img image.Image) (float64, error) {
	rs, err := newRaster(img)
	if err != nil {
		return NeutralHaziness, err
	}
	return rs.haziness(), nil
}

func (rs *raster) haziness() float64 {
	gray := rs.gray()
	h := sharpnessHaze(laplacianVariance(gray, rs.w, rs.h))

	mean, std := stat.PopMeanStdDev(gray, nil)
	if mean > brightThreshold && std < contrastCeiling {
		h = math.Min(1, h+brightHazePenalty)
	}
	return round3(h)
}

// sharpnessHaze maps Laplacian variance onto [0,1], low variance being hazy.
func sharpnessHaze(variance float64) float64 {
	return 1 - math.Min(1, variance/sharpnessScale)
}

// laplacianVariance applies the 4-neighbour Laplacian with reflect-101
// borders and returns the population variance of the response.
func laplacianVariance(gray []float64, w, h int) float64 {
	resp := make([]float64, len(gray))
	for y := range h {
		up, down := reflect101(y-1, h), reflect101(y+1, h)
		for x := range w {
			left, right := reflect101(x-1, w), reflect101(x+1, w)
			resp[y*w+x] = gray[y*w+left] + gray[y*w+right] + gray[up*w+x] + gray[down*w+x] - 4*gray[y*w+x]
		}
	}
	_, variance := stat.PopMeanVariance(resp, nil)
	return variance
}

// reflect101 mirrors an out-of-range index without repeating the edge:
// -1 -> 1, n -> n-2.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*n - 2 - i
	}
	return i
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
