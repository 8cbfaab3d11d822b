// Package common contains small helpers shared across the engine packages. They are plain functions and values,
// not interface-wrapped structs.
package common

import "math"

// WeightEpsilon is the tolerance used when comparing blend weights.
const WeightEpsilon float32 = 1e-4

// Clamp restricts v to the closed interval [lo, hi].
//
// Parameters:
//   - v: the value to clamp
//   - lo: the lower bound
//   - hi: the upper bound
//
// Returns:
//   - float32: v limited to [lo, hi]
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 restricts v to [0, 1]. NaN collapses to 0.
//
// Parameters:
//   - v: the value to clamp
//
// Returns:
//   - float32: v limited to [0, 1]
func Clamp01(v float32) float32 {
	if v != v {
		return 0
	}
	return Clamp(v, 0, 1)
}

// Lerp linearly interpolates between a and b by t. t is not clamped.
//
// Parameters:
//   - a: the value at t = 0
//   - b: the value at t = 1
//   - t: the interpolation factor
//
// Returns:
//   - float32: the interpolated value
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// ApproxEqual reports whether a and b differ by no more than eps.
//
// Parameters:
//   - a, b: the values to compare
//   - eps: the allowed absolute difference
//
// Returns:
//   - bool: true if |a - b| <= eps
func ApproxEqual(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}
