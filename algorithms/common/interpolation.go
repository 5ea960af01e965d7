package common

import "math"

// ParabolicPeak fits a parabola through three neighbouring samples, the
// middle one at offset 0, and returns the offset of its vertex and the
// interpolated height there. A flat neighbourhood has its curvature bumped
// by one so the offset stays bounded.
func ParabolicPeak(left, center, right float64) (shift, height float64) {
	avg := 0.5 * (right - left)
	curve := 2*center - right - left
	if math.Abs(curve) < Tiny {
		curve++
	}
	shift = avg / curve
	return shift, center + 0.5*avg*shift
}
