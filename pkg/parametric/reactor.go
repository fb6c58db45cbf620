package parametric

import (
	"fmt"

	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/profile"
	"github.com/chazu/tokamak/pkg/reactor"
	"github.com/chazu/tokamak/pkg/shape"
	"github.com/chazu/tokamak/pkg/solid"
)

// Coil places one poloidal field coil: Center is (radius, height).
type Coil struct {
	Center [2]float64
	Width  float64 `validate:"gt=0"`
	Height float64 `validate:"gt=0"`
}

// SegmentedBlanketReactor is a compact reactor built outward from the
// axis: an inner bore, a centre column shield, a gap, the plasma cavity,
// then a first wall, a breeder blanket and a rear wall wrapped around the
// cavity above, outboard and below. The first wall and blanket are cut
// into NumberOfBlanketSegments segments by star cutters. A vacuum vessel
// encloses everything and PF coils sit outside it.
type SegmentedBlanketReactor struct {
	InnerBoreRadialThickness          float64 `validate:"gte=0"`
	CenterColumnShieldRadialThickness float64 `validate:"gt=0"`
	InnerPlasmaGapRadialThickness     float64 `validate:"gt=0"`
	PlasmaRadialThickness             float64 `validate:"gt=0"`
	PlasmaHeight                      float64 `validate:"gt=0"`
	FirstwallRadialThickness          float64 `validate:"gt=0"`
	BlanketRadialThickness            float64 `validate:"gt=0"`
	BlanketRearWallRadialThickness    float64 `validate:"gt=0"`
	VesselGap                         float64 `validate:"gte=0"`
	VesselThickness                   float64 `validate:"gt=0"`
	GapBetweenBlankets                float64 `validate:"gt=0"`
	NumberOfBlanketSegments           int     `validate:"gt=2"`
	PFCoils                           []Coil  `validate:"dive"`
	PFCoilCaseThickness               float64 `validate:"gte=0"` // zero means no cases
	RotationAngle                     float64 `validate:"gt=0,lte=360"`
}

// DefaultSegmentedBlanketReactor returns a small but complete reactor.
func DefaultSegmentedBlanketReactor() SegmentedBlanketReactor {
	return SegmentedBlanketReactor{
		InnerBoreRadialThickness:          10,
		CenterColumnShieldRadialThickness: 60,
		InnerPlasmaGapRadialThickness:     30,
		PlasmaRadialThickness:             300,
		PlasmaHeight:                      500,
		FirstwallRadialThickness:          10,
		BlanketRadialThickness:            90,
		BlanketRearWallRadialThickness:    10,
		VesselGap:                         20,
		VesselThickness:                   10,
		GapBetweenBlankets:                30,
		NumberOfBlanketSegments:           6,
		PFCoils: []Coil{
			{Center: [2]float64{620, 350}, Width: 40, Height: 40},
			{Center: [2]float64{620, -350}, Width: 40, Height: 40},
		},
		PFCoilCaseThickness: 5,
		RotationAngle:       360,
	}
}

// radial build, all radii measured from the axis
type radii struct {
	shieldIn, shieldOut float64
	cavityOut           float64 // outboard edge of the plasma cavity
	halfHeight          float64 // half height of the plasma cavity
	wallOut             float64 // outer radius of the rear wall
	wallTop             float64 // top of the rear wall
}

func (p SegmentedBlanketReactor) radii() radii {
	var r radii
	r.shieldIn = p.InnerBoreRadialThickness
	r.shieldOut = r.shieldIn + p.CenterColumnShieldRadialThickness
	r.cavityOut = r.shieldOut + p.InnerPlasmaGapRadialThickness + p.PlasmaRadialThickness
	r.halfHeight = p.PlasmaHeight / 2
	layers := p.FirstwallRadialThickness + p.BlanketRadialThickness + p.BlanketRearWallRadialThickness
	r.wallOut = r.cavityOut + layers
	r.wallTop = r.halfHeight + layers
	return r
}

// shell is a C-shaped section wrapped around a cavity that spans radii
// [open, cavityOut] and heights [-halfHeight, halfHeight], with the open
// side facing the axis.
func shell(open, cavityOut, halfHeight, thickness float64) []profile.Point {
	out, top := cavityOut+thickness, halfHeight+thickness
	return []profile.Point{
		profile.Pt(open, top),
		profile.Pt(out, top),
		profile.Pt(out, -top),
		profile.Pt(open, -top),
		profile.Pt(open, -halfHeight),
		profile.Pt(cavityOut, -halfHeight),
		profile.Pt(cavityOut, halfHeight),
		profile.Pt(open, halfHeight),
	}
}

// Build validates the parameters and assembles the reactor. Cutters are
// operands only; the returned reactor holds the physical parts.
func (p SegmentedBlanketReactor) Build(k kernel.Kernel, opts ...reactor.Option) (*reactor.Reactor, error) {
	if p.RotationAngle == 0 {
		p.RotationAngle = 360
	}
	if err := check("segmented blanket reactor", p); err != nil {
		return nil, err
	}
	r := p.radii()
	fw, bl, rw := p.FirstwallRadialThickness, p.BlanketRadialThickness, p.BlanketRearWallRadialThickness
	shieldHeight := 2 * r.wallTop
	revolve := solid.Revolve{Angle: p.RotationAngle}

	rc := reactor.New("segmented_blanket_reactor", opts...)
	var b builder
	b.k = k

	ccCutter := b.component(CenterColumnShieldCylinder{
		Height:        shieldHeight * 1.5,
		InnerRadius:   0,
		OuterRadius:   r.shieldOut,
		RotationAngle: p.RotationAngle,
		Options:       Options{Name: "center_column_cutter"},
	})
	star := func(name string, distance float64) *shape.Shape {
		return b.component(BlanketCutterStar{
			Distance: distance,
			Height:   2 * shieldHeight,
			Width:    2 * r.wallOut,
			Options:  Options{Name: name, Placement: solid.Even(p.NumberOfBlanketSegments)},
		})
	}
	thinCutter := star("blanket_cutter_thin", p.GapBetweenBlankets)
	thickCutter := star("blanket_cutter_thick", p.GapBetweenBlankets+2*fw)

	shield := b.component(CenterColumnShieldCylinder{
		Height:        shieldHeight,
		InnerRadius:   r.shieldIn,
		OuterRadius:   r.shieldOut,
		RotationAngle: p.RotationAngle,
		Options: Options{
			Name: "center_column_shield", MaterialTag: "center_column_shield_mat",
			STPFilename: "center_column_shield.stp", STLFilename: "center_column_shield.stl",
		},
	})
	blanket := b.shape(shape.Config{
		Name:        "blanket",
		Points:      shell(r.shieldIn, r.cavityOut+fw, r.halfHeight+fw, bl),
		Sweep:       revolve,
		Cut:         []shape.Operand{ccCutter, thickCutter},
		MaterialTag: "blanket_mat",
		STPFilename: "blanket.stp",
		STLFilename: "blanket.stl",
	})
	firstwall := b.shape(shape.Config{
		Name:        "firstwall",
		Points:      shell(r.shieldIn, r.cavityOut, r.halfHeight, fw+bl),
		Sweep:       revolve,
		Cut:         []shape.Operand{ccCutter, thinCutter},
		MaterialTag: "firstwall_mat",
		STPFilename: "firstwall.stp",
		STLFilename: "firstwall.stl",
	})
	rearWall := b.shape(shape.Config{
		Name:        "blanket_rear_wall",
		Points:      shell(r.shieldIn, r.cavityOut+fw+bl, r.halfHeight+fw+bl, rw),
		Sweep:       revolve,
		Cut:         []shape.Operand{ccCutter},
		MaterialTag: "blanket_rear_wall_mat",
		STPFilename: "blanket_rear_wall.stp",
		STLFilename: "blanket_rear_wall.stl",
	})
	vessel := b.component(VacuumVessel{
		Height:        2 * (r.wallTop + p.VesselGap),
		InnerRadius:   r.wallOut + p.VesselGap,
		Thickness:     p.VesselThickness,
		RotationAngle: p.RotationAngle,
		Options: Options{
			Name: "vacuum_vessel", MaterialTag: "vacuum_vessel_mat",
			STPFilename: "vacuum_vessel.stp", STLFilename: "vacuum_vessel.stl",
		},
	})

	var coils []*shape.Shape
	for i, c := range p.PFCoils {
		coils = append(coils, b.component(PoloidalFieldCoil{
			Height: c.Height, Width: c.Width, Center: c.Center,
			RotationAngle: p.RotationAngle,
			Options: Options{
				Name:        fmt.Sprintf("pf_coil_%d", i),
				STPFilename: fmt.Sprintf("pf_coil_%d.stp", i),
				STLFilename: fmt.Sprintf("pf_coil_%d.stl", i),
			},
		}))
		if p.PFCoilCaseThickness > 0 {
			coils = append(coils, b.component(PoloidalFieldCoilCase{
				CasingThickness: p.PFCoilCaseThickness,
				CoilHeight:      c.Height, CoilWidth: c.Width, Center: c.Center,
				RotationAngle: p.RotationAngle,
				Options: Options{
					Name:        fmt.Sprintf("pf_coil_case_%d", i),
					STPFilename: fmt.Sprintf("pf_coil_case_%d.stp", i),
					STLFilename: fmt.Sprintf("pf_coil_case_%d.stl", i),
				},
			}))
		}
	}
	if b.err != nil {
		return nil, b.err
	}

	// The star cutters are extruded, not revolved; trim them to the sector
	// being modelled.
	if p.RotationAngle < 360 {
		wedge := b.component(CuttingWedge{
			Height:        4 * shieldHeight,
			Radius:        4 * r.wallOut,
			RotationAngle: p.RotationAngle,
		})
		if b.err != nil {
			return nil, b.err
		}
		for _, cutter := range []*shape.Shape{thinCutter, thickCutter} {
			if err := cutter.Update(func(c *shape.Config) { c.AddOperand(shape.OpIntersect, wedge) }); err != nil {
				return nil, err
			}
		}
	}

	members := append([]*shape.Shape{shield, blanket, firstwall, rearWall, vessel}, coils...)
	handles := make(map[*shape.Shape]reactor.Handle, len(members))
	for _, s := range members {
		h, err := rc.Add(s.Name(), s)
		if err != nil {
			return nil, err
		}
		handles[s] = h
	}
	// the first wall is what is left of the envelope once the blanket is
	// taken out
	if err := rc.Depend(handles[firstwall], shape.OpCut, handles[blanket]); err != nil {
		return nil, err
	}
	return rc, nil
}

// builder collects the first construction error so the assembly code
// above reads straight through.
type builder struct {
	k   kernel.Kernel
	err error
}

func (b *builder) component(c Component) *shape.Shape {
	if b.err != nil {
		return nil
	}
	s, err := c.Build(b.k)
	if err != nil {
		b.err = err
		return nil
	}
	return s
}

func (b *builder) shape(cfg shape.Config) *shape.Shape {
	// operands came from component, so an earlier failure is already in
	// b.err and none of them is nil here
	if b.err != nil {
		return nil
	}
	s, err := shape.New(b.k, cfg)
	if err != nil {
		b.err = fmt.Errorf("parametric: %s: %w", cfg.Name, err)
		return nil
	}
	return s
}
