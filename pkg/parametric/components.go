package parametric

import (
	"github.com/chazu/tokamak/pkg/geomerr"
	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/profile"
	"github.com/chazu/tokamak/pkg/shape"
	"github.com/chazu/tokamak/pkg/solid"
)

// CenterColumnShieldCylinder is a hollow cylinder around the machine axis.
type CenterColumnShieldCylinder struct {
	Height        float64 `validate:"gt=0"`
	InnerRadius   float64 `validate:"gte=0"`
	OuterRadius   float64 `validate:"gtfield=InnerRadius"`
	RotationAngle float64 `validate:"gt=0,lte=360"` // zero means 360
	Options
}

// Config returns the shape configuration.
func (c CenterColumnShieldCylinder) Config() (shape.Config, error) {
	c.RotationAngle = defaultAngle(c.RotationAngle)
	if err := check("center column shield", c); err != nil {
		return shape.Config{}, err
	}
	cfg := shape.Config{
		Points: []profile.Point{
			profile.Pt(c.InnerRadius, c.Height/2),
			profile.Pt(c.OuterRadius, c.Height/2),
			profile.Pt(c.OuterRadius, -c.Height/2),
			profile.Pt(c.InnerRadius, -c.Height/2),
		},
		Sweep: solid.Revolve{Angle: c.RotationAngle},
	}
	c.Options.apply(&cfg, Options{
		Name:        "center_column_shield",
		MaterialTag: "center_column_shield_mat",
		STPFilename: "CenterColumnShieldCylinder.stp",
		STLFilename: "CenterColumnShieldCylinder.stl",
	})
	return cfg, nil
}

// Build implements Component.
func (c CenterColumnShieldCylinder) Build(k kernel.Kernel) (*shape.Shape, error) {
	cfg, err := c.Config()
	return newShape(k, "center column shield", cfg, err)
}

// PoloidalFieldCoil is a rectangular-section coil revolved about the axis.
// Center is (radius, height) of the coil centre.
type PoloidalFieldCoil struct {
	Height        float64 `validate:"gt=0"`
	Width         float64 `validate:"gt=0"`
	Center        [2]float64
	RotationAngle float64 `validate:"gt=0,lte=360"`
	Options
}

// Config returns the shape configuration.
func (c PoloidalFieldCoil) Config() (shape.Config, error) {
	c.RotationAngle = defaultAngle(c.RotationAngle)
	if err := check("pf coil", c); err != nil {
		return shape.Config{}, err
	}
	if c.Center[0]-c.Width/2 < 0 {
		return shape.Config{}, geomerr.Validation("pf coil", "coil at radius %g with width %g crosses the axis", c.Center[0], c.Width)
	}
	cfg := shape.Config{
		Points: []profile.Point{
			profile.Pt(c.Center[0]+c.Width/2, c.Center[1]+c.Height/2),
			profile.Pt(c.Center[0]+c.Width/2, c.Center[1]-c.Height/2),
			profile.Pt(c.Center[0]-c.Width/2, c.Center[1]-c.Height/2),
			profile.Pt(c.Center[0]-c.Width/2, c.Center[1]+c.Height/2),
		},
		Sweep: solid.Revolve{Angle: c.RotationAngle},
	}
	c.Options.apply(&cfg, Options{
		Name:        "pf_coil",
		MaterialTag: "pf_coil_mat",
		STPFilename: "PoloidalFieldCoil.stp",
		STLFilename: "PoloidalFieldCoil.stl",
	})
	return cfg, nil
}

// Build implements Component.
func (c PoloidalFieldCoil) Build(k kernel.Kernel) (*shape.Shape, error) {
	cfg, err := c.Config()
	return newShape(k, "pf coil", cfg, err)
}

// PoloidalFieldCoilCase is a constant-thickness casing around a
// rectangular coil. The profile is a single keyhole loop: the coil
// outline one way, the casing outline the other.
type PoloidalFieldCoilCase struct {
	CasingThickness float64 `validate:"gt=0"`
	CoilHeight      float64 `validate:"gt=0"`
	CoilWidth       float64 `validate:"gt=0"`
	Center          [2]float64
	RotationAngle   float64 `validate:"gt=0,lte=360"`
	Options
}

// Config returns the shape configuration.
func (c PoloidalFieldCoilCase) Config() (shape.Config, error) {
	c.RotationAngle = defaultAngle(c.RotationAngle)
	if err := check("pf coil case", c); err != nil {
		return shape.Config{}, err
	}
	hw, hh := c.CoilWidth/2, c.CoilHeight/2
	ow, oh := hw+c.CasingThickness, hh+c.CasingThickness
	cu, cv := c.Center[0], c.Center[1]
	if cu-ow < 0 {
		return shape.Config{}, geomerr.Validation("pf coil case", "case at radius %g with half width %g crosses the axis", cu, ow)
	}
	cfg := shape.Config{
		Points: []profile.Point{
			profile.Pt(cu+hw, cv+hh), // coil, clockwise
			profile.Pt(cu+hw, cv-hh),
			profile.Pt(cu-hw, cv-hh),
			profile.Pt(cu-hw, cv+hh),
			profile.Pt(cu+hw, cv+hh),
			profile.Pt(cu+ow, cv+oh), // casing, anticlockwise
			profile.Pt(cu-ow, cv+oh),
			profile.Pt(cu-ow, cv-oh),
			profile.Pt(cu+ow, cv-oh),
			profile.Pt(cu+ow, cv+oh),
		},
		Sweep: solid.Revolve{Angle: c.RotationAngle},
	}
	c.Options.apply(&cfg, Options{
		Name:        "pf_coil_case",
		MaterialTag: "pf_coil_case_mat",
		STPFilename: "PoloidalFieldCoilCase.stp",
		STLFilename: "PoloidalFieldCoilCase.stl",
	})
	return cfg, nil
}

// Build implements Component.
func (c PoloidalFieldCoilCase) Build(k kernel.Kernel) (*shape.Shape, error) {
	cfg, err := c.Config()
	return newShape(k, "pf coil case", cfg, err)
}

// BlanketCutterStar is a set of thin slabs standing on the machine axis,
// one per placement angle, used to slice a blanket into segments.
type BlanketCutterStar struct {
	Distance float64 `validate:"gt=0"` // slab thickness, the gap left between segments
	Height   float64 `validate:"gte=0"` // zero means 2000
	Width    float64 `validate:"gte=0"` // zero means 2000
	Options
}

// Config returns the shape configuration.
func (c BlanketCutterStar) Config() (shape.Config, error) {
	if err := check("blanket cutter star", c); err != nil {
		return shape.Config{}, err
	}
	if c.Height == 0 {
		c.Height = 2000
	}
	if c.Width == 0 {
		c.Width = 2000
	}
	cfg := shape.Config{
		Points: []profile.Point{
			profile.Pt(0, -c.Height/2),
			profile.Pt(c.Width, -c.Height/2),
			profile.Pt(c.Width, c.Height/2),
			profile.Pt(0, c.Height/2),
		},
		Sweep: solid.Extrude{Distance: c.Distance, Both: true},
	}
	c.Options.apply(&cfg, Options{
		Name:        "blanket_cutter_star",
		MaterialTag: "blanket_cutter_star_mat",
		STPFilename: "BlanketCutterStar.stp",
		STLFilename: "BlanketCutterStar.stl",
		Placement:   solid.Even(10),
	})
	return cfg, nil
}

// Build implements Component.
func (c BlanketCutterStar) Build(k kernel.Kernel) (*shape.Shape, error) {
	cfg, err := c.Config()
	return newShape(k, "blanket cutter star", cfg, err)
}

// CuttingWedge is a revolved block used to keep only a sector of a model:
// intersect with it, or cut it away.
type CuttingWedge struct {
	Height        float64 `validate:"gt=0"`
	Radius        float64 `validate:"gt=0"`
	RotationAngle float64 `validate:"gt=0,lte=360"`
	Options
}

// Config returns the shape configuration.
func (c CuttingWedge) Config() (shape.Config, error) {
	if err := check("cutting wedge", c); err != nil {
		return shape.Config{}, err
	}
	cfg := shape.Config{
		Points: []profile.Point{
			profile.Pt(0, c.Height/2),
			profile.Pt(c.Radius, c.Height/2),
			profile.Pt(c.Radius, -c.Height/2),
			profile.Pt(0, -c.Height/2),
		},
		Sweep: solid.Revolve{Angle: c.RotationAngle},
	}
	c.Options.apply(&cfg, Options{
		Name:        "cutting_wedge",
		MaterialTag: "cutting_wedge_mat",
		STPFilename: "CuttingWedge.stp",
		STLFilename: "CuttingWedge.stl",
	})
	return cfg, nil
}

// Build implements Component.
func (c CuttingWedge) Build(k kernel.Kernel) (*shape.Shape, error) {
	cfg, err := c.Config()
	return newShape(k, "cutting wedge", cfg, err)
}

// VacuumVesselInnerLeg is a vessel wall wrapped around an inner leg: a
// closed can with the leg bore and the vessel cavity cut out.
type VacuumVesselInnerLeg struct {
	InnerHeight    float64 `validate:"gt=0"`
	InnerRadius    float64 `validate:"gt=0"`
	InnerLegRadius float64 `validate:"gt=0"`
	Thickness      float64 `validate:"gt=0"`
	RotationAngle  float64 `validate:"gt=0,lte=360"`
	Options
}

// Build implements Component. The cavity and leg bore become cut
// operands named after the vessel.
func (c VacuumVesselInnerLeg) Build(k kernel.Kernel) (*shape.Shape, error) {
	c.RotationAngle = defaultAngle(c.RotationAngle)
	if err := check("vacuum vessel inner leg", c); err != nil {
		return nil, err
	}
	t, h := c.Thickness, c.InnerHeight/2
	legOuter := c.InnerLegRadius + t
	rim := legOuter + c.InnerRadius
	sweep := solid.Revolve{Angle: c.RotationAngle}

	var cfg shape.Config
	c.Options.apply(&cfg, Options{
		Name:        "vacuum_vessel_inner_leg",
		MaterialTag: "vacuum_vessel_mat",
		STPFilename: "VacuumVesselInnerLeg.stp",
		STLFilename: "VacuumVesselInnerLeg.stl",
	})

	cavity, err := shape.New(k, shape.Config{
		Name: cfg.Name + "_cavity",
		Points: []profile.Point{
			profile.Pt(rim, h), profile.Pt(legOuter, h),
			profile.Pt(legOuter, -h), profile.Pt(rim, -h),
		},
		Sweep:     sweep,
		Placement: cfg.Placement,
	})
	if err != nil {
		return nil, err
	}
	bore, err := shape.New(k, shape.Config{
		Name: cfg.Name + "_bore",
		Points: []profile.Point{
			profile.Pt(0, t+h), profile.Pt(0, -(t + h)),
			profile.Pt(c.InnerLegRadius, -(t + h)), profile.Pt(c.InnerLegRadius, t+h),
		},
		Sweep:     sweep,
		Placement: cfg.Placement,
	})
	if err != nil {
		return nil, err
	}

	cfg.Points = []profile.Point{
		profile.Pt(rim+t, t+h), profile.Pt(0, t+h),
		profile.Pt(0, -(t + h)), profile.Pt(rim+t, -(t + h)),
	}
	cfg.Sweep = sweep
	cfg.Cut = []shape.Operand{cavity, bore}
	return newShape(k, "vacuum vessel inner leg", cfg, nil)
}
