package parametric

import (
	"fmt"

	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/profile"
	"github.com/chazu/tokamak/pkg/shape"
	"github.com/chazu/tokamak/pkg/solid"
)

// PortStartOffset is the usual gap between the axis and the start of a
// port cutter.
const PortStartOffset = 1.0

// PortCutterRectangular is a rectangular bar extruded outward, used to cut
// ports into vessels and blankets. Workplane defaults to ZY, so the bar
// runs along X starting ExtrusionStartOffset from the origin.
type PortCutterRectangular struct {
	Height               float64 `validate:"gt=0"`
	Width                float64 `validate:"gt=0"`
	Distance             float64 `validate:"gt=0"`
	Center               [2]float64
	Workplane            kernel.Workplane
	RotationAxis         string `validate:"omitempty,oneof=X Y Z x y z"`
	ExtrusionStartOffset float64
	Options
}

// Config returns the shape configuration.
func (c PortCutterRectangular) Config() (shape.Config, error) {
	if err := check("rectangular port cutter", c); err != nil {
		return shape.Config{}, err
	}
	cfg := shape.Config{
		Points:       rect(c.Center[0], c.Center[1], c.Width, c.Height),
		Workplane:    pickPlane(c.Workplane, kernel.PlaneZY),
		Sweep:        solid.Extrude{Distance: c.Distance, StartOffset: c.ExtrusionStartOffset},
		RotationAxis: c.RotationAxis,
	}
	c.Options.apply(&cfg, Options{
		Name:        "rectangular_port_cutter",
		MaterialTag: "rectangular_port_cutter_mat",
		STPFilename: "PortCutterRectangular.stp",
		STLFilename: "PortCutterRectangular.stl",
	})
	return cfg, nil
}

// Build implements Component.
func (c PortCutterRectangular) Build(k kernel.Kernel) (*shape.Shape, error) {
	cfg, err := c.Config()
	return newShape(k, "rectangular port cutter", cfg, err)
}

// PortCutterCircular is the circular counterpart of PortCutterRectangular.
type PortCutterCircular struct {
	Radius               float64 `validate:"gt=0"`
	Distance             float64 `validate:"gt=0"`
	Center               [2]float64
	Workplane            kernel.Workplane
	RotationAxis         string `validate:"omitempty,oneof=X Y Z x y z"`
	ExtrusionStartOffset float64
	Options
}

// Config returns the shape configuration.
func (c PortCutterCircular) Config() (shape.Config, error) {
	if err := check("circular port cutter", c); err != nil {
		return shape.Config{}, err
	}
	cfg := shape.Config{
		Points:       circle(c.Center[0], c.Center[1], c.Radius),
		Workplane:    pickPlane(c.Workplane, kernel.PlaneZY),
		Sweep:        solid.Extrude{Distance: c.Distance, StartOffset: c.ExtrusionStartOffset},
		RotationAxis: c.RotationAxis,
	}
	c.Options.apply(&cfg, Options{
		Name:        "circular_port_cutter",
		MaterialTag: "circular_port_cutter_mat",
		STPFilename: "PortCutterCircular.stp",
		STLFilename: "PortCutterCircular.stl",
	})
	return cfg, nil
}

// Build implements Component.
func (c PortCutterCircular) Build(k kernel.Kernel) (*shape.Shape, error) {
	cfg, err := c.Config()
	return newShape(k, "circular port cutter", cfg, err)
}

func pickPlane(p, def kernel.Workplane) kernel.Workplane {
	if p == "" {
		return def
	}
	return p
}

// CircularPort is a round opening in a VacuumVessel wall at height Z,
// centred on azimuth Angle (degrees).
type CircularPort struct {
	Z      float64
	Angle  float64
	Radius float64 `validate:"gt=0"`
}

// RectangularPort is a rectangular opening in a VacuumVessel wall.
type RectangularPort struct {
	Z      float64
	Angle  float64
	Width  float64 `validate:"gt=0"`
	Height float64 `validate:"gt=0"`
}

// VacuumVessel is a closed cylindrical can of constant wall thickness.
// Ports are cut through the side wall.
type VacuumVessel struct {
	Height           float64           `validate:"gt=0"`
	InnerRadius      float64           `validate:"gt=0"`
	Thickness        float64           `validate:"gt=0"`
	CircularPorts    []CircularPort    `validate:"dive"`
	RectangularPorts []RectangularPort `validate:"dive"`
	RotationAngle    float64           `validate:"gt=0,lte=360"`
	Options
}

// Points returns the vessel's cross-section: the cavity outline followed
// by the outer outline in reverse, joined along the axis.
func (c VacuumVessel) Points() []profile.Point {
	h, r, t := c.Height/2, c.InnerRadius, c.Thickness
	return []profile.Point{
		profile.Pt(0, h),
		profile.Pt(r, h),
		profile.Pt(r, -h),
		profile.Pt(0, -h),
		profile.Pt(0, -(h + t)),
		profile.Pt(r+t, -(h + t)),
		profile.Pt(r+t, h+t),
		profile.Pt(0, h+t),
	}
}

// portReach is how far a port cutter extends from the axis; twice the
// outer radius with extra wall margin.
func (c VacuumVessel) portReach() float64 {
	return 2 * (c.InnerRadius + 2*c.Thickness)
}

// Build implements Component. Each port becomes a cut operand extruded
// along the XZ normal and placed at Angle-90, which turns the +Y
// extrusion to face the requested azimuth.
func (c VacuumVessel) Build(k kernel.Kernel) (*shape.Shape, error) {
	c.RotationAngle = defaultAngle(c.RotationAngle)
	if err := check("vacuum vessel", c); err != nil {
		return nil, err
	}
	cfg := shape.Config{
		Points: c.Points(),
		Sweep:  solid.Revolve{Angle: c.RotationAngle},
	}
	c.Options.apply(&cfg, Options{
		Name:        "vacuum_vessel",
		MaterialTag: "vacuum_vessel_mat",
		STPFilename: "VacuumVessel.stp",
		STLFilename: "VacuumVessel.stl",
	})

	reach := c.portReach()
	for i, p := range c.CircularPorts {
		port, err := shape.New(k, shape.Config{
			Name:      fmt.Sprintf("%s_circular_port_%d", cfg.Name, i),
			Points:    circle(0, p.Z, p.Radius),
			Workplane: kernel.PlaneXZ,
			Sweep:     solid.Extrude{Distance: reach},
			Placement: solid.Placement{p.Angle - 90},
		})
		if err != nil {
			return nil, fmt.Errorf("parametric: vacuum vessel circular port %d: %w", i, err)
		}
		cfg.Cut = append(cfg.Cut, port)
	}
	for i, p := range c.RectangularPorts {
		port, err := shape.New(k, shape.Config{
			Name:      fmt.Sprintf("%s_rectangular_port_%d", cfg.Name, i),
			Points:    rect(0, p.Z, p.Width, p.Height),
			Workplane: kernel.PlaneXZ,
			Sweep:     solid.Extrude{Distance: reach},
			Placement: solid.Placement{p.Angle - 90},
		})
		if err != nil {
			return nil, fmt.Errorf("parametric: vacuum vessel rectangular port %d: %w", i, err)
		}
		cfg.Cut = append(cfg.Cut, port)
	}
	return newShape(k, "vacuum vessel", cfg, nil)
}
