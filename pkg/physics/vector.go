// pkg/physics/vector.go
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// World axes. Right, up and forward use the X/Y/Z layout common to game engines.
var (
	WorldRight   = mgl64.Vec3{1, 0, 0}
	WorldUp      = mgl64.Vec3{0, 1, 0}
	WorldForward = mgl64.Vec3{0, 0, 1}
)

// normalizeEpsilon is the shortest vector length that still has a direction.
const normalizeEpsilon = 1e-9

// Finite reports whether every component of v is a finite number.
func Finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Sanitize returns v, or the zero vector when any component is NaN or infinite.
func Sanitize(v mgl64.Vec3) mgl64.Vec3 {
	if !Finite(v) {
		return mgl64.Vec3{}
	}
	return v
}

// SafeNormalize returns a unit vector in the direction of v. Degenerate
// input (zero length, NaN, Inf) yields the zero vector instead of NaN.
func SafeNormalize(v mgl64.Vec3) mgl64.Vec3 {
	if !Finite(v) {
		return mgl64.Vec3{}
	}
	length := v.Len()
	if length < normalizeEpsilon {
		return mgl64.Vec3{}
	}
	return v.Mul(1 / length)
}

// NormalizeAngle maps an angle in degrees into (-180, 180].
// Non-finite input maps to 0.
func NormalizeAngle(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	a := math.Mod(deg, 360)
	if a > 180 {
		a -= 360
	} else if a <= -180 {
		a += 360
	}
	return a
}

// Clamp limits x to [lo, hi]. NaN maps to 0 clamped into the range.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		x = 0
	}
	return math.Max(lo, math.Min(hi, x))
}

// Clamp01 limits x to [0, 1].
func Clamp01(x float64) float64 {
	return Clamp(x, 0, 1)
}

// Sign returns -1 for negative x and 1 otherwise, so Sign(0) == 1.
func Sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
