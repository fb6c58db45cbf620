package solid_test

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/tokamak/pkg/geomerr"
	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/kernel/kerneltest"
	"github.com/chazu/tokamak/pkg/kernel/sdfx"
	"github.com/chazu/tokamak/pkg/profile"
	"github.com/chazu/tokamak/pkg/solid"
)

func rectPlan(t *testing.T, u0, v0, u1, v1 float64) profile.Plan {
	t.Helper()
	plan, err := profile.Build([]profile.Point{
		profile.Pt(u0, v0), profile.Pt(u0, v1), profile.Pt(u1, v1), profile.Pt(u1, v0),
	})
	if err != nil {
		t.Fatalf("profile.Build: %v", err)
	}
	return plan
}

func volumeOf(t *testing.T, k kernel.Kernel, s kernel.Solid) float64 {
	t.Helper()
	v, err := k.Volume(s)
	if err != nil {
		t.Fatalf("Volume: %v", err)
	}
	return v
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		spec     solid.Spec
		wantErr  bool
		wantWarn bool
	}{
		{"revolve 90", solid.Spec{Workplane: kernel.PlaneXZ, Sweep: solid.Revolve{Angle: 90}}, false, false},
		{"revolve 360 warns", solid.Spec{Workplane: kernel.PlaneXZ, Sweep: solid.Revolve{Angle: 360}}, false, true},
		{"revolve 0", solid.Spec{Workplane: kernel.PlaneXZ, Sweep: solid.Revolve{Angle: 0}}, true, false},
		{"revolve 400", solid.Spec{Workplane: kernel.PlaneXZ, Sweep: solid.Revolve{Angle: 400}}, true, false},
		{"extrude negative", solid.Spec{Workplane: kernel.PlaneXZ, Sweep: solid.Extrude{Distance: -1}}, true, false},
		{"no sweep", solid.Spec{Workplane: kernel.PlaneXZ}, true, false},
		{"bad plane", solid.Spec{Workplane: "QQ", Sweep: solid.Revolve{Angle: 90}}, true, false},
		{"sweep ok", solid.Spec{Workplane: kernel.PlaneXY, Sweep: solid.PathSweep{
			Path: []kernel.Vec2{{U: 0, V: 0}, {U: 10, V: 50}, {U: 0, V: 100}}, PathPlane: kernel.PlaneXZ}}, false, false},
		{"sweep same plane", solid.Spec{Workplane: kernel.PlaneXY, Sweep: solid.PathSweep{
			Path: []kernel.Vec2{{U: 0, V: 0}, {U: 0, V: 100}}, PathPlane: kernel.PlaneXY}}, true, false},
		{"sweep different first axis", solid.Spec{Workplane: kernel.PlaneXY, Sweep: solid.PathSweep{
			Path: []kernel.Vec2{{U: 0, V: 0}, {U: 0, V: 100}}, PathPlane: kernel.PlaneYZ}}, true, false},
		{"sweep not monotonic", solid.Spec{Workplane: kernel.PlaneXY, Sweep: solid.PathSweep{
			Path: []kernel.Vec2{{U: 0, V: 0}, {U: 0, V: 100}, {U: 0, V: 50}}, PathPlane: kernel.PlaneXZ}}, true, false},
		{"revolve NaN", solid.Spec{Workplane: kernel.PlaneXZ, Sweep: solid.Revolve{Angle: math.NaN()}}, true, false},
		{"NaN placement", solid.Spec{Workplane: kernel.PlaneXZ, Sweep: solid.Revolve{Angle: 90},
			Placement: solid.Placement{0, math.NaN()}}, true, false},
		{"infinite placement", solid.Spec{Workplane: kernel.PlaneXZ, Sweep: solid.Revolve{Angle: 90},
			Placement: solid.Placement{math.Inf(1)}}, true, false},
		{"extrude infinite", solid.Spec{Workplane: kernel.PlaneXZ, Sweep: solid.Extrude{Distance: math.Inf(1)}}, true, false},
		{"NaN start offset", solid.Spec{Workplane: kernel.PlaneXZ, Sweep: solid.Extrude{Distance: 5, StartOffset: math.NaN()}}, true, false},
		{"sweep NaN path", solid.Spec{Workplane: kernel.PlaneXY, Sweep: solid.PathSweep{
			Path: []kernel.Vec2{{U: 0, V: 0}, {U: math.NaN(), V: 50}, {U: 0, V: 100}}, PathPlane: kernel.PlaneXZ}}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings, err := solid.Validate(tt.spec)
			if tt.wantErr {
				if !errors.Is(err, geomerr.ErrInvalidConfiguration) {
					t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := len(warnings) > 0; got != tt.wantWarn {
				t.Errorf("warnings = %v, want some: %v", warnings, tt.wantWarn)
			}
		})
	}
}

func TestBuildPlacementCopies(t *testing.T) {
	k := kerneltest.New()
	plan := rectPlan(t, 0, 0, 20, 20)

	s, err := solid.Build(k, plan, solid.Spec{
		Workplane: kernel.PlaneXZ,
		Sweep:     solid.Revolve{Angle: 10},
		Placement: solid.Placement{0, 90, 180, 270},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := k.Calls(kerneltest.MethodRotate); got != 3 {
		t.Errorf("Rotate calls = %d, want 3 (angle 0 is not rotated)", got)
	}
	if got := k.Calls(kerneltest.MethodUnion); got != 3 {
		t.Errorf("Union calls = %d, want 3", got)
	}
	single := 400 * 2 * math.Pi * 10 * 10 / 360
	if got := volumeOf(t, k, s); math.Abs(got-4*single) > 1e-6 {
		t.Errorf("volume = %v, want %v", got, 4*single)
	}
}

func TestBuildUnionFailureIsConstructionError(t *testing.T) {
	k := kerneltest.New()
	k.Fail(kerneltest.MethodUnion, errors.New("non-manifold"))
	_, err := solid.Build(k, rectPlan(t, 0, 0, 10, 10), solid.Spec{
		Workplane: kernel.PlaneXZ,
		Sweep:     solid.Revolve{Angle: 30},
		Placement: solid.Placement{0, 15},
	})
	if !errors.Is(err, geomerr.ErrGeometryConstruction) {
		t.Fatalf("expected ErrGeometryConstruction, got %v", err)
	}
}

func TestBuildRejectsBeforeKernel(t *testing.T) {
	k := kerneltest.New()
	_, err := solid.Build(k, rectPlan(t, 0, 0, 10, 10), solid.Spec{
		Workplane: kernel.PlaneXY,
		Sweep:     solid.PathSweep{Path: []kernel.Vec2{{U: 0, V: 0}, {U: 0, V: 10}}, PathPlane: kernel.PlaneXY},
	})
	if !errors.Is(err, geomerr.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if k.Total() != 0 {
		t.Errorf("kernel was called %d times", k.Total())
	}
}

func TestExtrudeStartOffset(t *testing.T) {
	k := kerneltest.New()
	s, err := solid.Build(k, rectPlan(t, 0, 0, 10, 10), solid.Spec{
		Workplane: kernel.PlaneZY,
		Sweep:     solid.Extrude{Distance: 5, StartOffset: 1},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if k.Calls(kerneltest.MethodTranslate) != 1 {
		t.Errorf("Translate calls = %d, want 1", k.Calls(kerneltest.MethodTranslate))
	}
	if got := volumeOf(t, k, s); math.Abs(got-500) > 1e-9 {
		t.Errorf("volume = %v, want 500", got)
	}
}

// recorder logs the order of boolean calls.
type recorder struct {
	*kerneltest.Kernel
	ops []string
}

func (r *recorder) Union(a, b kernel.Solid) (kernel.Solid, error) {
	r.ops = append(r.ops, "union")
	return r.Kernel.Union(a, b)
}

func (r *recorder) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	r.ops = append(r.ops, "cut")
	return r.Kernel.Difference(a, b)
}

func (r *recorder) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	r.ops = append(r.ops, "intersect")
	return r.Kernel.Intersection(a, b)
}

func TestComposeOrder(t *testing.T) {
	r := &recorder{Kernel: kerneltest.New()}
	box := func(lo, hi float64, vol float64) kernel.Solid {
		return &kerneltest.Solid{Vol: vol, Min: [3]float64{lo, lo, lo}, Max: [3]float64{hi, hi, hi}}
	}
	base := box(0, 10, 1000)
	_, err := solid.Compose(r, base, solid.Operands{
		Cut:       []kernel.Solid{box(20, 21, 1), box(30, 31, 1)},
		Union:     []kernel.Solid{box(40, 41, 1)},
		Intersect: []kernel.Solid{box(-5, 15, 8000)},
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	want := []string{"intersect", "union", "cut", "cut"}
	if len(r.ops) != len(want) {
		t.Fatalf("ops = %v, want %v", r.ops, want)
	}
	for i := range want {
		if r.ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v", r.ops, want)
		}
	}
}

func TestComposeEmptyResult(t *testing.T) {
	k := kerneltest.New()
	base := &kerneltest.Solid{Vol: 1, Max: [3]float64{1, 1, 1}}
	far := &kerneltest.Solid{Vol: 1, Min: [3]float64{5, 5, 5}, Max: [3]float64{6, 6, 6}}
	_, err := solid.Compose(k, base, solid.Operands{Intersect: []kernel.Solid{far}})
	if !errors.Is(err, geomerr.ErrGeometryConstruction) || !errors.Is(err, kernel.ErrEmptyResult) {
		t.Fatalf("expected construction error wrapping ErrEmptyResult, got %v", err)
	}
}

func TestPlacementHelpers(t *testing.T) {
	if got := solid.Even(4); len(got) != 4 || got[1] != 90 || got[3] != 270 {
		t.Errorf("Even(4) = %v", got)
	}
	if got := solid.Linspace(0, 180, 3); len(got) != 3 || got[1] != 90 || got[2] != 180 {
		t.Errorf("Linspace = %v", got)
	}
	if got := (solid.Placement{}).Canonical(); got != "0" {
		t.Errorf("empty placement canonical = %q", got)
	}
}

// The remaining tests use the SDF backend to check the volume laws.

func newSDF() *sdfx.SdfxKernel {
	return sdfx.New(sdfx.WithVolumeCells(120))
}

func TestAzimuthalUnionLaw(t *testing.T) {
	if testing.Short() {
		t.Skip("sdf volume sampling")
	}
	k := newSDF()
	plan := rectPlan(t, 50, 0, 100, 50)

	build := func(angle float64, placement solid.Placement) float64 {
		s, err := solid.Build(k, plan, solid.Spec{
			Workplane: kernel.PlaneXZ,
			Sweep:     solid.Revolve{Angle: angle},
			Placement: placement,
		})
		if err != nil {
			t.Fatalf("Build(%v, %v): %v", angle, placement, err)
		}
		return volumeOf(t, k, s)
	}

	forty4 := build(40, solid.Even(4))
	twenty4 := build(20, solid.Even(4))
	eighty2 := build(80, solid.Placement{0, 180})

	if math.Abs(forty4-2*twenty4) > 0.04*forty4 {
		t.Errorf("40deg x4 = %.0f, want 2 * (20deg x4) = %.0f", forty4, 2*twenty4)
	}
	if math.Abs(eighty2-forty4) > 0.04*forty4 {
		t.Errorf("80deg x2 = %.0f, want 40deg x4 = %.0f", eighty2, forty4)
	}
	want := 4 * 40.0 / 360 * math.Pi * (100*100 - 50*50) * 50
	if math.Abs(forty4-want) > 0.04*want {
		t.Errorf("40deg x4 = %.0f, want analytic %.0f", forty4, want)
	}
}

func TestRevolveVolumeLaw(t *testing.T) {
	if testing.Short() {
		t.Skip("sdf volume sampling")
	}
	k := newSDF()
	plan := rectPlan(t, 0, 0, 20, 20)
	full, err := solid.Build(k, plan, solid.Spec{Workplane: kernel.PlaneXZ, Sweep: solid.Revolve{Angle: 360}})
	if err != nil {
		t.Fatal(err)
	}
	half, err := solid.Build(k, plan, solid.Spec{Workplane: kernel.PlaneXZ, Sweep: solid.Revolve{Angle: 180}})
	if err != nil {
		t.Fatal(err)
	}
	vf, vh := volumeOf(t, k, full), volumeOf(t, k, half)
	if want := math.Pi * 20 * 20 * 20; math.Abs(vf-want) > 0.02*want {
		t.Errorf("full volume = %.0f, want %.0f", vf, want)
	}
	if math.Abs(2*vh-vf) > 0.03*vf {
		t.Errorf("2 * half = %.0f, want %.0f", 2*vh, vf)
	}
}
