// Package profile turns an ordered list of tagged 2D points into a closed
// boundary plan: maximal runs of one connection type, each run sharing its
// end point with the start of the next, closed back to the first point.
package profile

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/tokamak/pkg/geomerr"
	"github.com/chazu/tokamak/pkg/kernel"
)

// Connection says how a point connects to the next point in the list.
type Connection string

const (
	Straight Connection = "straight"
	Spline   Connection = "spline"
	Circle   Connection = "circle"
)

// Valid reports whether c is a known connection type.
func (c Connection) Valid() bool {
	switch c {
	case Straight, Spline, Circle:
		return true
	}
	return false
}

func (c Connection) curve() kernel.CurveKind {
	switch c {
	case Spline:
		return kernel.CurveSpline
	case Circle:
		return kernel.CurveArc
	default:
		return kernel.CurveLine
	}
}

// Point is a profile vertex. Connection is empty for the last point and for
// profiles that are straight all the way round.
type Point struct {
	U, V       float64
	Connection Connection
}

// Pt is shorthand for an untagged point.
func Pt(u, v float64) Point { return Point{U: u, V: v} }

func (p Point) vec() kernel.Vec2 { return kernel.Vec2{U: p.U, V: p.V} }

// String renders the point canonically; fingerprints depend on it.
func (p Point) String() string {
	s := strconv.FormatFloat(p.U, 'g', -1, 64) + "," + strconv.FormatFloat(p.V, 'g', -1, 64)
	if p.Connection != "" {
		s += "," + string(p.Connection)
	}
	return s
}

// Uniform tags every point but the last with conn.
func Uniform(conn Connection, pts ...kernel.Vec2) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{U: p.U, V: p.V}
		if i < len(pts)-1 {
			out[i].Connection = conn
		}
	}
	return out
}

// Instruction is one sub-curve of the plan.
type Instruction struct {
	Connection Connection
	Points     []kernel.Vec2
}

// Plan is the ordered, contiguous and closed construction plan.
type Plan struct {
	Start        kernel.Vec2
	Instructions []Instruction
}

// Wire converts the plan into kernel curves.
func (p Plan) Wire() kernel.Wire {
	w := kernel.Wire{Curves: make([]kernel.Curve, len(p.Instructions))}
	for i, in := range p.Instructions {
		w.Curves[i] = kernel.Curve{
			Kind:   in.Connection.curve(),
			Points: append([]kernel.Vec2(nil), in.Points...),
		}
	}
	return w
}

func (p Plan) String() string {
	var b strings.Builder
	for i, in := range p.Instructions {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%s%v", in.Connection, in.Points)
	}
	return b.String()
}

// Build validates the points and groups them into runs.
//
// A profile with no tags at all is straight. Otherwise the first n-1 points
// each carry the tag of the segment they start and the last point is
// untagged; the closing segment back to the first point continues the last
// run.
func Build(points []Point) (Plan, error) {
	if len(points) < 3 {
		return Plan{}, geomerr.Profile("build", "need at least 3 points, got %d", len(points))
	}
	for i, p := range points {
		if !finite(p.U) || !finite(p.V) {
			return Plan{}, geomerr.Profile("build", "point %d (%g, %g) is not finite", i, p.U, p.V)
		}
	}

	tags, err := segmentTags(points)
	if err != nil {
		return Plan{}, err
	}

	distinct := len(points)
	if points[0].vec().Dist(points[len(points)-1].vec()) < 1e-9 {
		distinct--
	}
	if distinct < 3 {
		return Plan{}, geomerr.Profile("build", "need at least 3 distinct points, got %d", distinct)
	}

	var plan Plan
	plan.Start = points[0].vec()

	cur := Instruction{Connection: tags[0], Points: []kernel.Vec2{points[0].vec()}}
	for i := 1; i < len(points); i++ {
		cur.Points = append(cur.Points, points[i].vec())
		if i < len(tags) && tags[i] != cur.Connection {
			plan.Instructions = append(plan.Instructions, cur)
			cur = Instruction{Connection: tags[i], Points: []kernel.Vec2{points[i].vec()}}
		}
	}
	if last := cur.Points[len(cur.Points)-1]; last.Dist(plan.Start) >= 1e-9 {
		cur.Points = append(cur.Points, plan.Start)
	}
	plan.Instructions = append(plan.Instructions, cur)

	for i, in := range plan.Instructions {
		if in.Connection == Circle && (len(in.Points) < 3 || len(in.Points)%2 == 0) {
			return Plan{}, geomerr.Profile("build",
				"circle run %d has %d points; arcs need start, mid and end points (an odd count >= 3)", i, len(in.Points))
		}
	}
	return plan, nil
}

// segmentTags returns the connection type of each segment i -> i+1 for
// i in [0, n-1).
func segmentTags(points []Point) ([]Connection, error) {
	n := len(points)
	tagged := 0
	for i, p := range points {
		if p.Connection == "" {
			continue
		}
		if !p.Connection.Valid() {
			return nil, geomerr.Profile("build", "point %d: unknown connection type %q", i, string(p.Connection))
		}
		tagged++
	}

	tags := make([]Connection, n-1)
	if tagged == 0 {
		for i := range tags {
			tags[i] = Straight
		}
		return tags, nil
	}
	if tagged != n-1 || points[n-1].Connection != "" {
		return nil, geomerr.Profile("build",
			"%d points need %d connection tags (one per segment, last point untagged), got %d", n, n-1, tagged)
	}
	for i := range tags {
		tags[i] = points[i].Connection
	}
	return tags, nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
