package measurement

import (
	"fmt"
	"math"

	"goflare.io/foldscope/pkg/geometry"
)

// Distance returns the Euclidean distance between p1 and p2, in input units.
func Distance(p1, p2 geometry.Point3D) float64 {
	return p1.Distance(p2)
}

// Angle returns the angle in degrees at vertex p2 between p2->p1 and p2->p3.
func Angle(p1, p2, p3 geometry.Point3D) (float64, error) {
	v1 := p1.Sub(p2)
	v2 := p3.Sub(p2)

	m1, m2 := maxAbs(v1), maxAbs(v2)
	if m1 == 0 || m2 == 0 {
		return 0, fmt.Errorf("%w: angle arm has zero length", ErrInvalidInput)
	}
	if math.IsInf(m1, 0) || math.IsInf(m2, 0) {
		return 0, fmt.Errorf("%w: angle arm is too long", ErrInvalidInput)
	}
	// only the directions matter
	v1, v2 = v1.Scale(1/m1), v2.Scale(1/m2)

	mag := v1.Length() * v2.Length()

	// rounding can push the ratio just outside [-1, 1]
	cos := math.Max(-1, math.Min(1, v1.Dot(v2)/mag))
	return math.Acos(cos) * 180 / math.Pi, nil
}

// Surface returns the area of the triangle p1 p2 p3 using Heron's formula.
// The points are scaled by their largest coordinate first so the side
// lengths stay representable.
func Surface(p1, p2, p3 geometry.Point3D) float64 {
	m := maxAbs(p1, p2, p3)
	if m == 0 || math.IsInf(m, 0) || math.IsNaN(m) {
		return heron(p1, p2, p3)
	}
	inv := 1 / m
	return heron(p1.Scale(inv), p2.Scale(inv), p3.Scale(inv)) * m * m
}

func heron(p1, p2, p3 geometry.Point3D) float64 {
	a := Distance(p1, p2)
	b := Distance(p2, p3)
	c := Distance(p3, p1)

	s := (a + b + c) / 2
	radicand := s * (s - a) * (s - b) * (s - c)
	if radicand < 0 {
		radicand = 0
	}
	return math.Sqrt(radicand)
}

func maxAbs(points ...geometry.Point3D) float64 {
	var m float64
	for _, p := range points {
		m = math.Max(m, math.Max(math.Abs(p.X), math.Max(math.Abs(p.Y), math.Abs(p.Z))))
	}
	return m
}

// Compute returns the value of a kind measurement over points.
func Compute(kind Kind, points []geometry.Point3D) (float64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: unknown measurement kind %q", ErrInvalidInput, kind)
	}
	if len(points) != kind.Arity() {
		return 0, fmt.Errorf("%w: %s needs %d points, got %d", ErrInvalidInput, kind, kind.Arity(), len(points))
	}
	for i, p := range points {
		if !p.IsFinite() {
			return 0, fmt.Errorf("%w: point %d is not finite", ErrInvalidInput, i)
		}
	}

	var (
		value float64
		err   error
	)
	switch kind {
	case KindDistance:
		value = Distance(points[0], points[1])
	case KindAngle:
		value, err = Angle(points[0], points[1], points[2])
	default:
		value = Surface(points[0], points[1], points[2])
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %s is not representable for these points", ErrInvalidInput, kind)
	}
	return value, nil
}
