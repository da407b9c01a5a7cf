package measurement

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/foldscope/pkg/geometry"
)

const tolerance = 1e-6

func pt(x, y, z float64) geometry.Point3D {
	return geometry.NewPoint3D(x, y, z)
}

func TestDistance(t *testing.T) {
	p1, p2 := pt(0, 0, 0), pt(3, 4, 0)

	assert.InDelta(t, 5.0, Distance(p1, p2), tolerance)
	assert.Equal(t, Distance(p1, p2), Distance(p2, p1))
	assert.Zero(t, Distance(p2, p2))
}

func TestAngle(t *testing.T) {
	tests := []struct {
		name       string
		p1, p2, p3 geometry.Point3D
		want       float64
	}{
		{"right angle", pt(1, 0, 0), pt(0, 0, 0), pt(0, 1, 0), 90},
		{"straight", pt(-2, 0, 0), pt(0, 0, 0), pt(5, 0, 0), 180},
		{"same direction", pt(1, 1, 1), pt(0, 0, 0), pt(3, 3, 3), 0},
		{"offset vertex", pt(2, 1, 1), pt(1, 1, 1), pt(2, 2, 1), 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Angle(tt.p1, tt.p2, tt.p3)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, tolerance)

			reversed, err := Angle(tt.p3, tt.p2, tt.p1)
			require.NoError(t, err)
			assert.InDelta(t, got, reversed, tolerance)

			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 180.0)
		})
	}
}

func TestAngleZeroLengthArm(t *testing.T) {
	_, err := Angle(pt(0, 0, 0), pt(0, 0, 0), pt(1, 0, 0))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Angle(pt(1, 0, 0), pt(2, 2, 2), pt(2, 2, 2))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSurface(t *testing.T) {
	a, b, c := pt(0, 0, 0), pt(4, 0, 0), pt(0, 3, 0)

	assert.InDelta(t, 6.0, Surface(a, b, c), tolerance)

	permutations := [][3]geometry.Point3D{
		{a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}
	for _, p := range permutations {
		assert.InDelta(t, 6.0, Surface(p[0], p[1], p[2]), tolerance)
	}
}

func TestSurfaceDegenerate(t *testing.T) {
	area := Surface(pt(0, 0, 0), pt(1, 1, 1), pt(2, 2, 2))
	assert.False(t, math.IsNaN(area))
	assert.InDelta(t, 0.0, area, tolerance)

	area = Surface(pt(0.1, 0.2, 0.3), pt(0.1, 0.2, 0.3), pt(0.1, 0.2, 0.3))
	assert.Zero(t, area)
}

func TestSurfaceLargeCoordinates(t *testing.T) {
	area := Surface(pt(0, 0, 0), pt(1e150, 0, 0), pt(0, 1e150, 0))
	assert.InEpsilon(t, 5e299, area, 1e-9)

	area = Surface(pt(1e-100, 0, 0), pt(0, 1e-100, 0), pt(0, 0, 0))
	assert.InEpsilon(t, 5e-201, area, 1e-9)

	angle, err := Angle(pt(1e200, 0, 0), pt(0, 0, 0), pt(0, 1e200, 0))
	require.NoError(t, err)
	assert.InDelta(t, 90.0, angle, tolerance)
}

func TestComputeRejectsOverflow(t *testing.T) {
	huge := []geometry.Point3D{pt(0, 0, 0), pt(1e200, 0, 0), pt(0, 1e200, 0)}

	_, err := Compute(KindSurface, huge)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Compute(KindDistance, huge[:2])
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Compute(KindDistance, []geometry.Point3D{pt(-math.MaxFloat64, 0, 0), pt(math.MaxFloat64, 0, 0)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCompute(t *testing.T) {
	v, err := Compute(KindDistance, []geometry.Point3D{pt(0, 0, 0), pt(3, 4, 0)})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, v, tolerance)

	_, err = Compute(KindAngle, []geometry.Point3D{pt(0, 0, 0), pt(3, 4, 0)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Compute(Kind("volume"), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Compute(KindSurface, []geometry.Point3D{pt(0, 0, 0), pt(math.NaN(), 0, 0), pt(1, 1, 1)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFormatLabel(t *testing.T) {
	assert.Equal(t, "5.00 Å", FormatLabel(KindDistance, 5))
	assert.Equal(t, "90.00°", FormatLabel(KindAngle, 90))
	assert.Equal(t, "6.00 Å²", FormatLabel(KindSurface, 6))
	assert.Equal(t, "1.23 Å", FormatLabel(KindDistance, 1.2349))
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := ParseKind(" Angle ")
	require.NoError(t, err)
	assert.Equal(t, KindAngle, got)

	_, err = ParseKind("dihedral")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
