package tessellate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/vector"

	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/profile"
)

// PreviewOptions control profile previews. Zero values take defaults.
type PreviewOptions struct {
	Size    int // longest side in pixels, default 512
	Margin  int // pixels around the outline, default 16
	Samples int // points per curved segment, default kernel.DefaultCurveSamples
	Fill    color.RGBA
}

func (o PreviewOptions) withDefaults() PreviewOptions {
	if o.Size <= 0 {
		o.Size = 512
	}
	if o.Margin < 0 || 2*o.Margin >= o.Size {
		o.Margin = 0
	} else if o.Margin == 0 {
		o.Margin = 16
	}
	if o.Samples <= 0 {
		o.Samples = kernel.DefaultCurveSamples
	}
	if o.Fill == (color.RGBA{}) {
		o.Fill = color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff}
	}
	return o
}

// frame maps profile coordinates onto an image with v pointing up.
type frame struct {
	min           kernel.Vec2
	scale         float64
	width, height int
	margin        int
}

func newFrame(poly []kernel.Vec2, o PreviewOptions) frame {
	lo, hi := kernel.PolygonBounds(poly)
	w, h := hi.U-lo.U, hi.V-lo.V
	span := math.Max(w, h)
	if span == 0 {
		span = 1
	}
	inner := float64(o.Size - 2*o.Margin)
	f := frame{min: lo, scale: inner / span, margin: o.Margin}
	f.width = int(math.Ceil(w*f.scale)) + 2*o.Margin
	f.height = int(math.Ceil(h*f.scale)) + 2*o.Margin
	return f
}

func (f frame) xy(p kernel.Vec2) (float64, float64) {
	x := float64(f.margin) + (p.U-f.min.U)*f.scale
	y := float64(f.height-f.margin) - (p.V-f.min.V)*f.scale
	return x, y
}

func outline(plan profile.Plan, samples int) ([]kernel.Vec2, error) {
	poly, err := plan.Wire().Flatten(samples)
	if err != nil {
		return nil, fmt.Errorf("tessellate: preview: %w", err)
	}
	if len(poly) < 3 {
		return nil, fmt.Errorf("tessellate: preview: outline has %d points", len(poly))
	}
	return poly, nil
}

// WriteSVG draws the profile outline as a filled SVG polygon, with the
// original points marked.
func WriteSVG(w io.Writer, plan profile.Plan, opts PreviewOptions) error {
	o := opts.withDefaults()
	poly, err := outline(plan, o.Samples)
	if err != nil {
		return err
	}
	f := newFrame(poly, o)

	xs, ys := make([]int, len(poly)), make([]int, len(poly))
	for i, p := range poly {
		x, y := f.xy(p)
		xs[i], ys[i] = int(math.Round(x)), int(math.Round(y))
	}

	canvas := svg.New(w)
	canvas.Start(f.width, f.height)
	canvas.Rect(0, 0, f.width, f.height, "fill:white")
	canvas.Polygon(xs, ys, fmt.Sprintf("fill:rgb(%d,%d,%d);fill-opacity:0.6;stroke:black;stroke-width:1",
		o.Fill.R, o.Fill.G, o.Fill.B))
	for _, in := range plan.Instructions {
		for _, p := range in.Points {
			x, y := f.xy(p)
			canvas.Circle(int(math.Round(x)), int(math.Round(y)), 3, "fill:red")
		}
	}
	canvas.End()
	return nil
}

// RenderPNG rasterizes the filled profile onto a white background.
func RenderPNG(plan profile.Plan, opts PreviewOptions) (*image.RGBA, error) {
	o := opts.withDefaults()
	poly, err := outline(plan, o.Samples)
	if err != nil {
		return nil, err
	}
	f := newFrame(poly, o)

	dst := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	r := vector.NewRasterizer(f.width, f.height)
	x, y := f.xy(poly[0])
	r.MoveTo(float32(x), float32(y))
	for _, p := range poly[1:] {
		x, y := f.xy(p)
		r.LineTo(float32(x), float32(y))
	}
	r.ClosePath()
	r.Draw(dst, dst.Bounds(), image.NewUniform(o.Fill), image.Point{})
	return dst, nil
}

// WritePNG renders the profile and encodes it as PNG.
func WritePNG(w io.Writer, plan profile.Plan, opts PreviewOptions) error {
	img, err := RenderPNG(plan, opts)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("tessellate: png: %w", err)
	}
	return nil
}
