package math

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

// Parse errors.
var (
	ErrInvalidTransform = errors.New("invalid transform")
	ErrInvalidNumber    = errors.New("invalid number")
)

// Transform is an affine map in 3MF matrix order:
//
//	[m00 m01 m02]   rows of the 3x3 linear block
//	[m10 m11 m12]
//	[m20 m21 m22]
//	[m30 m31 m32]   translation
//
// Points are row vectors: p' = [x y z 1] * M.
type Transform [12]float32

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		0, 0, 0,
	}
}

// Translation returns a translation transform.
func Translation(dx, dy, dz float32) Transform {
	return Transform{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		dx, dy, dz,
	}
}

// Scaling returns a scale transform.
func Scaling(sx, sy, sz float32) Transform {
	return Transform{
		sx, 0, 0,
		0, sy, 0,
		0, 0, sz,
		0, 0, 0,
	}
}

// RotationAxis returns a rotation around an arbitrary axis.
// axis is normalized here; angle is in radians.
func RotationAxis(axis Vec3, angle float32) Transform {
	a := axis.Normalize()
	c := math32.Cos(angle)
	s := math32.Sin(angle)
	t := 1 - c
	x, y, z := a.X, a.Y, a.Z

	return Transform{
		t*x*x + c, t*x*y + s*z, t*x*z - s*y,
		t*x*y - s*z, t*y*y + c, t*y*z + s*x,
		t*x*z + s*y, t*y*z - s*x, t*z*z + c,
		0, 0, 0,
	}
}

// Compose returns the transform that applies m first and then other.
// In matrix terms this is m * other.
func (m Transform) Compose(other Transform) Transform {
	var r Transform
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			r[row*3+col] = m[row*3+0]*other[0*3+col] +
				m[row*3+1]*other[1*3+col] +
				m[row*3+2]*other[2*3+col]
		}
	}
	for col := 0; col < 3; col++ {
		r[9+col] = m[9]*other[0*3+col] +
			m[10]*other[1*3+col] +
			m[11]*other[2*3+col] +
			other[9+col]
	}
	return r
}

// Apply transforms a point.
func (m Transform) Apply(p Vec3) Vec3 {
	return Vec3{
		X: p.X*m[0] + p.Y*m[3] + p.Z*m[6] + m[9],
		Y: p.X*m[1] + p.Y*m[4] + p.Z*m[7] + m[10],
		Z: p.X*m[2] + p.Y*m[5] + p.Z*m[8] + m[11],
	}
}

// Translation returns the translation part of the transform.
func (m Transform) Translation() Vec3 {
	return Vec3{m[9], m[10], m[11]}
}

// Determinant returns the determinant of the linear block. A negative value
// means the transform mirrors geometry.
func (m Transform) Determinant() float32 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Inverse returns the inverse transform. ok is false for singular transforms.
func (m Transform) Inverse() (inv Transform, ok bool) {
	det := m.Determinant()
	if det == 0 {
		return Identity(), false
	}
	d := 1 / det

	inv[0] = (m[4]*m[8] - m[5]*m[7]) * d
	inv[1] = (m[2]*m[7] - m[1]*m[8]) * d
	inv[2] = (m[1]*m[5] - m[2]*m[4]) * d
	inv[3] = (m[5]*m[6] - m[3]*m[8]) * d
	inv[4] = (m[0]*m[8] - m[2]*m[6]) * d
	inv[5] = (m[2]*m[3] - m[0]*m[5]) * d
	inv[6] = (m[3]*m[7] - m[4]*m[6]) * d
	inv[7] = (m[1]*m[6] - m[0]*m[7]) * d
	inv[8] = (m[0]*m[4] - m[1]*m[3]) * d

	for col := 0; col < 3; col++ {
		inv[9+col] = -(m[9]*inv[0*3+col] + m[10]*inv[1*3+col] + m[11]*inv[2*3+col])
	}
	return inv, true
}

// IsIdentity reports whether m is exactly the identity transform.
func (m Transform) IsIdentity() bool {
	return m == Identity()
}

// ApproxEqual reports whether every element differs by at most tol.
func (m Transform) ApproxEqual(other Transform, tol float32) bool {
	for i := range m {
		if math32.Abs(m[i]-other[i]) > tol {
			return false
		}
	}
	return true
}

// IsFinite reports whether every element is a finite number.
func (m Transform) IsFinite() bool {
	for _, f := range m {
		if !finite(f) {
			return false
		}
	}
	return true
}

// String returns the transform as the 12-number 3MF attribute value.
func (m Transform) String() string {
	var sb strings.Builder
	for i, f := range m {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(FormatNumber(f))
	}
	return sb.String()
}

// ParseTransform parses a 12-number 3MF transform attribute.
func ParseTransform(s string) (Transform, error) {
	fields := strings.Fields(s)
	if len(fields) != 12 {
		return Transform{}, fmt.Errorf("%w: expected 12 values, got %d", ErrInvalidTransform, len(fields))
	}

	var m Transform
	for i, field := range fields {
		f, err := ParseNumber(field)
		if err != nil {
			return Transform{}, fmt.Errorf("%w: value %d: %v", ErrInvalidTransform, i, err)
		}
		m[i] = f
	}
	return m, nil
}

// FormatNumber formats a float32 without exponent, using the fewest digits
// that round-trip.
func FormatNumber(f float32) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}

// ParseNumber parses a finite float32.
func ParseNumber(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	f := float32(v)
	if !finite(f) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrInvalidNumber, s)
	}
	return f, nil
}
