// Package scanplot renders lidar scans as top-down PNG images.
package scanplot

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/mausbridge/internal/lidar"
)

// ErrEmptyScan is returned when a scan has no points with a return.
var ErrEmptyScan = errors.New("scanplot: scan has no valid points")

// Options control the rendered image.
type Options struct {
	Size vg.Length // square image edge, default 6 inches
	// MaxRange clips the axes in metres. Zero fits the farthest point.
	MaxRange float64
}

func (o Options) size() vg.Length {
	if o.Size <= 0 {
		return 6 * vg.Inch
	}
	return o.Size
}

// Plot builds the scatter plot for s.
func Plot(s *lidar.Scan, opts Options) (*plot.Plot, error) {
	pts := make(plotter.XYs, 0, len(s.Points))
	far := 0.0
	for _, p := range s.Points {
		if !p.Valid() {
			continue
		}
		x, y := p.XY()
		pts = append(pts, plotter.XY{X: x, Y: y})
		far = math.Max(far, math.Max(math.Abs(x), math.Abs(y)))
	}
	if len(pts) == 0 {
		return nil, ErrEmptyScan
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Scan %s (%d points)", shortID(s.ID), len(s.Points))
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %w", err)
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	scatter.GlyphStyle.Radius = vg.Points(1)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(scatter)

	origin, err := plotter.NewScatter(plotter.XYs{{X: 0, Y: 0}})
	if err != nil {
		return nil, fmt.Errorf("failed to create origin marker: %w", err)
	}
	origin.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	origin.GlyphStyle.Radius = vg.Points(3)
	origin.GlyphStyle.Shape = draw.CrossGlyph{}
	p.Add(origin)

	limit := opts.MaxRange
	if limit <= 0 {
		limit = far * 1.05
	}
	if limit == 0 {
		limit = 1
	}
	p.X.Min, p.X.Max = -limit, limit
	p.Y.Min, p.Y.Max = -limit, limit
	return p, nil
}

// Render writes s to w as a PNG.
func Render(s *lidar.Scan, w io.Writer, opts Options) error {
	p, err := Plot(s, opts)
	if err != nil {
		return err
	}
	size := opts.size()
	wt, err := p.WriterTo(size, size, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// Save writes s to path. The format follows the file extension.
func Save(s *lidar.Scan, path string, opts Options) error {
	p, err := Plot(s, opts)
	if err != nil {
		return err
	}
	size := opts.size()
	if err := p.Save(size, size, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
