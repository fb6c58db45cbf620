package profile

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/tokamak/pkg/geomerr"
	"github.com/chazu/tokamak/pkg/kernel"
)

func v(u, w float64) kernel.Vec2 { return kernel.Vec2{U: u, V: w} }

func TestBuildUntaggedRectangle(t *testing.T) {
	plan, err := Build([]Point{Pt(0, 0), Pt(0, 20), Pt(20, 20), Pt(20, 0)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(plan.Instructions) != 1 {
		t.Fatalf("got %d runs, want 1", len(plan.Instructions))
	}
	in := plan.Instructions[0]
	if in.Connection != Straight {
		t.Errorf("connection = %s, want straight", in.Connection)
	}
	want := []kernel.Vec2{v(0, 0), v(0, 20), v(20, 20), v(20, 0), v(0, 0)}
	if len(in.Points) != len(want) {
		t.Fatalf("points = %v, want %v", in.Points, want)
	}
	for i := range want {
		if in.Points[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, in.Points[i], want[i])
		}
	}
}

func TestBuildMixedRuns(t *testing.T) {
	pts := []Point{
		{0, 0, Straight},
		{0, 20, Spline},
		{10, 30, Spline},
		{20, 20, Straight},
		{20, 0, ""},
	}
	plan, err := Build(pts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wantRuns := []struct {
		conn Connection
		pts  []kernel.Vec2
	}{
		{Straight, []kernel.Vec2{v(0, 0), v(0, 20)}},
		{Spline, []kernel.Vec2{v(0, 20), v(10, 30), v(20, 20)}},
		{Straight, []kernel.Vec2{v(20, 20), v(20, 0), v(0, 0)}},
	}
	if len(plan.Instructions) != len(wantRuns) {
		t.Fatalf("got %d runs (%s), want %d", len(plan.Instructions), plan, len(wantRuns))
	}
	for i, w := range wantRuns {
		got := plan.Instructions[i]
		if got.Connection != w.conn {
			t.Errorf("run %d connection = %s, want %s", i, got.Connection, w.conn)
		}
		if len(got.Points) != len(w.pts) {
			t.Errorf("run %d points = %v, want %v", i, got.Points, w.pts)
			continue
		}
		for j := range w.pts {
			if got.Points[j] != w.pts[j] {
				t.Errorf("run %d point %d = %v, want %v", i, j, got.Points[j], w.pts[j])
			}
		}
	}

	// Runs are contiguous and the plan is closed.
	for i := 1; i < len(plan.Instructions); i++ {
		prev := plan.Instructions[i-1].Points
		if prev[len(prev)-1] != plan.Instructions[i].Points[0] {
			t.Errorf("run %d does not start where run %d ends", i, i-1)
		}
	}
	last := plan.Instructions[len(plan.Instructions)-1].Points
	if last[len(last)-1] != plan.Start {
		t.Error("plan is not closed")
	}
}

func TestBuildExplicitClosureNotDuplicated(t *testing.T) {
	pts := Uniform(Spline, v(0, 0), v(10, 10), v(20, 0), v(0, 0))
	plan, err := Build(pts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n := len(plan.Instructions[0].Points); n != 4 {
		t.Errorf("got %d points, want 4 (closing point not repeated)", n)
	}
}

func TestBuildCircleRun(t *testing.T) {
	pts := Uniform(Circle, v(10, 0), v(0, 10), v(-10, 0), v(0, -10))
	plan, err := Build(pts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := len(plan.Instructions[0].Points); got != 5 {
		t.Fatalf("circle run has %d points, want 5", got)
	}
	if _, err := plan.Wire().Flatten(0); err != nil {
		t.Errorf("Flatten: %v", err)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		pts  []Point
	}{
		{"too few points", []Point{Pt(0, 0), Pt(1, 1)}},
		{"unknown tag", []Point{{0, 0, Straight}, {0, 20, "bogus"}, {20, 20, Straight}, {20, 0, ""}}},
		{"tag on every point", []Point{{0, 0, Straight}, {0, 20, Straight}, {20, 20, Straight}}},
		{"missing tag", []Point{{0, 0, Straight}, {0, 20, ""}, {20, 20, Straight}, {20, 0, ""}}},
		{"closing duplicate leaves two points", []Point{Pt(0, 0), Pt(1, 1), Pt(0, 0)}},
		{"even circle run", []Point{{0, 0, Circle}, {5, 5, Straight}, {10, 0, ""}}},
		{"NaN coordinate", []Point{Pt(0, 0), Pt(math.NaN(), 0), Pt(10, 10)}},
		{"infinite coordinate", []Point{Pt(0, 0), Pt(10, 0), Pt(10, math.Inf(1))}},
		{"negative infinity", []Point{Pt(math.Inf(-1), 0), Pt(10, 0), Pt(10, 10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.pts)
			if !errors.Is(err, geomerr.ErrInvalidProfile) {
				t.Fatalf("expected ErrInvalidProfile, got %v", err)
			}
		})
	}
}

func TestPointString(t *testing.T) {
	if got := (Point{1.5, -2, Spline}).String(); got != "1.5,-2,spline" {
		t.Errorf("String() = %q", got)
	}
	if got := Pt(0.1, 3).String(); got != "0.1,3" {
		t.Errorf("String() = %q", got)
	}
}
