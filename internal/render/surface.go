package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/vector"
)

// Point is a position in surface pixels, origin top-left.
type Point struct {
	X, Y float64
}

// Surface is a fixed-size drawing target. The render loop is its only writer.
type Surface interface {
	Size() (width, height float64)
	Clear(c color.Color)
	FillRect(x, y, w, h float64, c color.Color)
	StrokePolyline(points []Point, width float64, c color.Color)
}

// Raster is a Surface backed by an RGBA image. Geometry outside the image is clipped.
type Raster struct {
	img *image.RGBA
	z   *vector.Rasterizer
}

func NewRaster(width, height int) *Raster {
	z := vector.NewRasterizer(width, height)
	z.DrawOp = draw.Over
	return &Raster{
		img: image.NewRGBA(image.Rect(0, 0, width, height)),
		z:   z,
	}
}

// Image returns the backing image. It is mutated in place every frame.
func (r *Raster) Image() *image.RGBA {
	return r.img
}

func (r *Raster) Size() (float64, float64) {
	b := r.img.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}

func (r *Raster) Clear(c color.Color) {
	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

func (r *Raster) FillRect(x, y, w, h float64, c color.Color) {
	width, height := r.Size()
	x0, y0 := clamp(x, 0, width), clamp(y, 0, height)
	x1, y1 := clamp(x+w, 0, width), clamp(y+h, 0, height)
	if x1 <= x0 || y1 <= y0 {
		return
	}

	r.z.Reset(r.img.Bounds().Dx(), r.img.Bounds().Dy())
	r.z.MoveTo(float32(x0), float32(y0))
	r.z.LineTo(float32(x1), float32(y0))
	r.z.LineTo(float32(x1), float32(y1))
	r.z.LineTo(float32(x0), float32(y1))
	r.z.ClosePath()
	r.z.Draw(r.img, r.img.Bounds(), image.NewUniform(c), image.Point{})
}

// StrokePolyline draws each segment as a quad of the given width. All quads
// share one winding so overlaps saturate instead of cancelling.
func (r *Raster) StrokePolyline(points []Point, width float64, c color.Color) {
	if len(points) < 2 || width <= 0 {
		return
	}

	sw, sh := r.Size()
	half := width / 2
	r.z.Reset(r.img.Bounds().Dx(), r.img.Bounds().Dy())

	for i := 1; i < len(points); i++ {
		p0, p1 := points[i-1], points[i]
		dx, dy := p1.X-p0.X, p1.Y-p0.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		nx, ny := -dy/length*half, dx/length*half

		quad := [4]Point{
			{p0.X + nx, p0.Y + ny},
			{p1.X + nx, p1.Y + ny},
			{p1.X - nx, p1.Y - ny},
			{p0.X - nx, p0.Y - ny},
		}
		for j, q := range quad {
			x, y := float32(clamp(q.X, 0, sw)), float32(clamp(q.Y, 0, sh))
			if j == 0 {
				r.z.MoveTo(x, y)
			} else {
				r.z.LineTo(x, y)
			}
		}
		r.z.ClosePath()
	}

	r.z.Draw(r.img, r.img.Bounds(), image.NewUniform(c), image.Point{})
}

// WritePNG encodes the current contents.
func (r *Raster) WritePNG(w io.Writer) error {
	return png.Encode(w, r.img)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
