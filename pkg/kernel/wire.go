package kernel

import (
	"fmt"
	"math"
)

// Vec2 is a point in a workplane's (u, v) coordinates.
type Vec2 struct {
	U, V float64
}

// Sub returns a - b.
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.U - b.U, a.V - b.V} }

// Dist returns the Euclidean distance between a and b.
func (a Vec2) Dist(b Vec2) float64 { return math.Hypot(a.U-b.U, a.V-b.V) }

// CurveKind selects how a curve interpolates its points.
type CurveKind int

const (
	CurveLine   CurveKind = iota // polyline through the points
	CurveSpline                  // smooth spline through the points
	CurveArc                     // three-point arcs: start, mid, end[, mid, end...]
)

func (k CurveKind) String() string {
	switch k {
	case CurveLine:
		return "line"
	case CurveSpline:
		return "spline"
	case CurveArc:
		return "arc"
	default:
		return fmt.Sprintf("CurveKind(%d)", int(k))
	}
}

// Curve is one sub-curve of a wire. It starts where the previous curve
// ended.
type Curve struct {
	Kind   CurveKind
	Points []Vec2
}

// Wire is a closed boundary made of end-to-end curves. The last point of
// the last curve coincides with the first point of the first curve.
type Wire struct {
	Curves []Curve
}

// DefaultCurveSamples is the number of straight segments used per spline
// span or arc when flattening.
const DefaultCurveSamples = 16

// coincident is the distance below which two points are the same point.
const coincident = 1e-9

// Flatten approximates the wire with a closed polygon. The closing vertex
// is not repeated. samples <= 0 uses DefaultCurveSamples.
func (w Wire) Flatten(samples int) ([]Vec2, error) {
	if samples <= 0 {
		samples = DefaultCurveSamples
	}
	var out []Vec2
	for i, c := range w.Curves {
		if len(c.Points) < 2 {
			return nil, fmt.Errorf("kernel: curve %d (%s) has %d points: %w", i, c.Kind, len(c.Points), ErrDegenerate)
		}
		var pts []Vec2
		var err error
		switch c.Kind {
		case CurveLine:
			pts = c.Points[:len(c.Points)-1]
		case CurveSpline:
			pts = catmullRom(c.Points, samples)
		case CurveArc:
			pts, err = arcs(c.Points, samples)
		default:
			err = fmt.Errorf("kernel: unknown curve kind %v", c.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("kernel: curve %d: %w", i, err)
		}
		out = append(out, pts...)
	}
	out = dedupe(out)
	if len(out) < 3 {
		return nil, fmt.Errorf("kernel: wire flattens to %d distinct points: %w", len(out), ErrDegenerate)
	}
	if math.Abs(PolygonArea(out)) < coincident {
		return nil, fmt.Errorf("kernel: wire encloses no area: %w", ErrDegenerate)
	}
	return out, nil
}

// Interpolate samples a smooth curve through pts, samples points per span,
// ending exactly on the last point.
func Interpolate(pts []Vec2, samples int) []Vec2 {
	if len(pts) < 2 {
		return append([]Vec2(nil), pts...)
	}
	if samples <= 0 {
		samples = DefaultCurveSamples
	}
	return append(catmullRom(pts, samples), pts[len(pts)-1])
}

// catmullRom samples a uniform Catmull-Rom spline through pts. The final
// point is not emitted.
func catmullRom(pts []Vec2, samples int) []Vec2 {
	n := len(pts)
	at := func(i int) Vec2 {
		if i < 0 {
			return pts[0]
		}
		if i >= n {
			return pts[n-1]
		}
		return pts[i]
	}
	out := make([]Vec2, 0, (n-1)*samples)
	for i := 0; i < n-1; i++ {
		p0, p1, p2, p3 := at(i-1), at(i), at(i+1), at(i+2)
		for k := 0; k < samples; k++ {
			t := float64(k) / float64(samples)
			t2, t3 := t*t, t*t*t
			u := 0.5 * (2*p1.U + (-p0.U+p2.U)*t + (2*p0.U-5*p1.U+4*p2.U-p3.U)*t2 + (-p0.U+3*p1.U-3*p2.U+p3.U)*t3)
			v := 0.5 * (2*p1.V + (-p0.V+p2.V)*t + (2*p0.V-5*p1.V+4*p2.V-p3.V)*t2 + (-p0.V+3*p1.V-3*p2.V+p3.V)*t3)
			out = append(out, Vec2{u, v})
		}
	}
	return out
}

// arcs samples consecutive three-point arcs (p0,p1,p2), (p2,p3,p4), ...
// The final point is not emitted.
func arcs(pts []Vec2, samples int) ([]Vec2, error) {
	if len(pts) < 3 || len(pts)%2 == 0 {
		return nil, fmt.Errorf("arc needs an odd number of points >= 3, got %d: %w", len(pts), ErrDegenerate)
	}
	var out []Vec2
	for i := 0; i+2 < len(pts); i += 2 {
		seg, err := arc(pts[i], pts[i+1], pts[i+2], samples)
		if err != nil {
			return nil, err
		}
		out = append(out, seg...)
	}
	return out, nil
}

// arc samples the circular arc from a through m to b, excluding b.
func arc(a, m, b Vec2, samples int) ([]Vec2, error) {
	d := 2 * (a.U*(m.V-b.V) + m.U*(b.V-a.V) + b.U*(a.V-m.V))
	if math.Abs(d) < coincident {
		return nil, fmt.Errorf("arc points are collinear: %w", ErrDegenerate)
	}
	a2 := a.U*a.U + a.V*a.V
	m2 := m.U*m.U + m.V*m.V
	b2 := b.U*b.U + b.V*b.V
	c := Vec2{
		U: (a2*(m.V-b.V) + m2*(b.V-a.V) + b2*(a.V-m.V)) / d,
		V: (a2*(b.U-m.U) + m2*(a.U-b.U) + b2*(m.U-a.U)) / d,
	}
	r := c.Dist(a)
	ta := math.Atan2(a.V-c.V, a.U-c.U)
	tm := ccw(ta, math.Atan2(m.V-c.V, m.U-c.U))
	tb := ccw(ta, math.Atan2(b.V-c.V, b.U-c.U))
	sweep := tb
	if tm > tb {
		// m is not on the counter-clockwise path from a to b.
		sweep = tb - 2*math.Pi
	}
	out := make([]Vec2, 0, samples)
	for k := 0; k < samples; k++ {
		t := ta + sweep*float64(k)/float64(samples)
		out = append(out, Vec2{c.U + r*math.Cos(t), c.V + r*math.Sin(t)})
	}
	return out, nil
}

// ccw returns the counter-clockwise angle from a to t in [0, 2π).
func ccw(a, t float64) float64 {
	d := math.Mod(t-a, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d
}

// dedupe drops consecutive coincident points and a trailing copy of the
// first point.
func dedupe(pts []Vec2) []Vec2 {
	out := pts[:0:0]
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1].Dist(p) < coincident {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[len(out)-1].Dist(out[0]) < coincident {
		out = out[:len(out)-1]
	}
	return out
}

// PolygonArea returns the signed shoelace area of a closed polygon;
// positive when counter-clockwise.
func PolygonArea(pts []Vec2) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].U*pts[j].V - pts[j].U*pts[i].V
	}
	return a / 2
}

// PolygonCentroid returns the area centroid of a closed simple polygon.
func PolygonCentroid(pts []Vec2) Vec2 {
	a := PolygonArea(pts)
	if a == 0 {
		return Vec2{}
	}
	var cu, cv float64
	for i := range pts {
		j := (i + 1) % len(pts)
		cross := pts[i].U*pts[j].V - pts[j].U*pts[i].V
		cu += (pts[i].U + pts[j].U) * cross
		cv += (pts[i].V + pts[j].V) * cross
	}
	return Vec2{cu / (6 * a), cv / (6 * a)}
}

// PolygonBounds returns the bounding box of pts.
func PolygonBounds(pts []Vec2) (min, max Vec2) {
	if len(pts) == 0 {
		return Vec2{}, Vec2{}
	}
	min, max = pts[0], pts[0]
	for _, p := range pts[1:] {
		min.U = math.Min(min.U, p.U)
		min.V = math.Min(min.V, p.V)
		max.U = math.Max(max.U, p.U)
		max.V = math.Max(max.V, p.V)
	}
	return min, max
}
