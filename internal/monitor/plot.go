package monitor

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/pTommyed/osgar/internal/fsutil"
)

var (
	traceColor    = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	prunedColor   = color.RGBA{R: 230, G: 120, B: 20, A: 255}
	artifactColor = color.RGBA{R: 200, G: 30, B: 40, A: 255}
)

func xys(pts []r3.Vec) plotter.XYs {
	out := make(plotter.XYs, 0, len(pts))
	for _, p := range pts {
		out = append(out, plotter.XY{X: p.X, Y: p.Y})
	}
	return out
}

// TracePlot builds a top-down plot of the snapshot.
func TracePlot(s *Snapshot) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Mission %s", s.ID)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(plotter.NewGrid())

	if len(s.Trace) > 0 {
		line, err := plotter.NewLine(xys(s.Trace))
		if err != nil {
			return nil, err
		}
		line.Color = traceColor
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("trace", line)
	}

	if len(s.Pruned) > 0 {
		line, points, err := plotter.NewLinePoints(xys(s.Pruned))
		if err != nil {
			return nil, err
		}
		line.Color = prunedColor
		line.Width = vg.Points(1.5)
		points.Color = prunedColor
		points.Shape = draw.CircleGlyph{}
		p.Add(line, points)
		p.Legend.Add("pruned", line, points)
	}

	if len(s.Artifacts) > 0 {
		pts := make(plotter.XYs, 0, len(s.Artifacts))
		for _, a := range s.Artifacts {
			pts = append(pts, plotter.XY{X: a.Position.X, Y: a.Position.Y})
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.Color = artifactColor
		sc.Shape = draw.PyramidGlyph{}
		sc.Radius = vg.Points(5)
		p.Add(sc)
		p.Legend.Add("artifacts", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// SaveTracePlot renders the snapshot to path. The image format follows the
// file extension (png, svg, pdf...).
func SaveTracePlot(fsys fsutil.FileSystem, path string, s *Snapshot) error {
	p, err := TracePlot(s)
	if err != nil {
		return fmt.Errorf("build trace plot: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format = "png"
	}
	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("trace plot %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		_ = fsys.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
