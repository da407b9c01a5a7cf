// Package measurement turns 3D pick points into distance, angle and surface measurements.
package measurement

import (
	"errors"
	"fmt"
	"strings"

	"goflare.io/foldscope/pkg/geometry"
)

// ErrInvalidInput is returned for geometry that cannot produce a measurement.
var ErrInvalidInput = errors.New("invalid measurement input")

// Kind is the type of measurement being collected.
type Kind string

const (
	KindDistance Kind = "distance"
	KindAngle    Kind = "angle"
	KindSurface  Kind = "surface"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindDistance, KindAngle, KindSurface}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindDistance, KindAngle, KindSurface:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown measurement kind %q", ErrInvalidInput, s)
	}
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	_, err := ParseKind(string(k))
	return err == nil
}

// Arity returns the number of points needed to complete a measurement.
func (k Kind) Arity() int {
	switch k {
	case KindDistance:
		return 2
	case KindAngle, KindSurface:
		return 3
	default:
		return 0
	}
}

// Unit returns the label suffix for values of this kind.
func (k Kind) Unit() string {
	switch k {
	case KindAngle:
		return "°"
	case KindSurface:
		return " Å²"
	default:
		return " Å"
	}
}

// Measurement is a completed measurement. It is never modified after creation.
type Measurement struct {
	ID     string             `json:"id"`
	Kind   Kind               `json:"kind"`
	Points []geometry.Point3D `json:"points"`
	Value  float64            `json:"value"`
	Label  string             `json:"label"`
}

// FormatLabel renders value with two decimals and the unit for kind.
func FormatLabel(kind Kind, value float64) string {
	return fmt.Sprintf("%.2f%s", value, kind.Unit())
}

func (m Measurement) clone() Measurement {
	m.Points = append([]geometry.Point3D(nil), m.Points...)
	return m
}
