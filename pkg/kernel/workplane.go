package kernel

import (
	"fmt"
	"strings"
)

// Axis is one of the three world axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// ParseAxis accepts "x", "y", "z" in either case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToUpper(s) {
	case "X":
		return AxisX, nil
	case "Y":
		return AxisY, nil
	case "Z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("kernel: invalid axis %q, expected X, Y or Z", s)
}

// Workplane names a 2D construction plane by its two in-plane axes, u first.
// "XZ" draws u along X and v along Z, with the normal along Y.
type Workplane string

const (
	PlaneXY Workplane = "XY"
	PlaneXZ Workplane = "XZ"
	PlaneYZ Workplane = "YZ"
	PlaneYX Workplane = "YX"
	PlaneZX Workplane = "ZX"
	PlaneZY Workplane = "ZY"
)

// DefaultWorkplane is the plane shapes are drawn on unless told otherwise.
const DefaultWorkplane = PlaneXZ

// Axes returns the u, v and normal axes of the plane.
func (w Workplane) Axes() (u, v, normal Axis, err error) {
	if len(w) != 2 {
		return 0, 0, 0, fmt.Errorf("kernel: invalid workplane %q", string(w))
	}
	u, err = ParseAxis(string(w[0]))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("kernel: invalid workplane %q: %w", string(w), err)
	}
	v, err = ParseAxis(string(w[1]))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("kernel: invalid workplane %q: %w", string(w), err)
	}
	if u == v {
		return 0, 0, 0, fmt.Errorf("kernel: invalid workplane %q: repeated axis", string(w))
	}
	normal = 3 - u - v
	return u, v, normal, nil
}

// Valid reports whether the plane names two distinct axes.
func (w Workplane) Valid() bool {
	_, _, _, err := w.Axes()
	return err == nil
}

// CompatiblePath reports whether path is a usable path plane for sweeping a
// profile drawn on w: both planes start with the same axis and the path's
// second axis is w's normal.
func (w Workplane) CompatiblePath(path Workplane) bool {
	wu, _, wn, err := w.Axes()
	if err != nil {
		return false
	}
	pu, pv, _, err := path.Axes()
	if err != nil {
		return false
	}
	return wu == pu && pv == wn
}
