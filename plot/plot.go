// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plot

import (
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/gorse-io/dge/ensemble"
	"github.com/juju/errors"
	"github.com/samber/lo"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	CalibrationSuffix = "_calibration_curve.png"
	ConfidenceSuffix  = "_confidence_accuracy_curve.png"
)

// Curve is a named polyline. Points with a NaN coordinate are skipped.
type Curve struct {
	Name string
	X    []float64
	Y    []float64
}

func (c Curve) xys() plotter.XYs {
	xys := make(plotter.XYs, 0, len(c.X))
	for i := range c.X {
		if math.IsNaN(c.X[i]) || math.IsNaN(c.Y[i]) {
			continue
		}
		xys = append(xys, plotter.XY{X: c.X[i], Y: c.Y[i]})
	}
	return xys
}

// CalibrationCurves plots fractions of positives against mean predicted probabilities
// with the diagonal of perfect calibration.
func CalibrationCurves(path string, curves []Curve) error {
	p := gplot.New()
	p.X.Label.Text = "Mean predicted probability"
	p.Y.Label.Text = "Fraction of positives"
	if err := addCurves(p, curves); err != nil {
		return err
	}
	diagonal, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return errors.Trace(err)
	}
	diagonal.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(diagonal)
	p.Legend.Add("Perfect calibration", diagonal)
	p.Legend.Top = true
	p.Legend.Left = true
	return save(p, 4*vg.Inch, 4*vg.Inch, path)
}

// ConfidenceCurves plots accuracy on confident predictions against thresholds.
func ConfidenceCurves(path string, curves []Curve) error {
	p := gplot.New()
	p.X.Label.Text = "Confidence threshold"
	p.Y.Label.Text = "Accuracy on confident predictions"
	if err := addCurves(p, curves); err != nil {
		return err
	}
	p.Legend.Top = true
	p.Legend.Left = true
	return save(p, 4*vg.Inch, 4*vg.Inch, path)
}

func addCurves(p *gplot.Plot, curves []Curve) error {
	for i, curve := range curves {
		if len(curve.X) != len(curve.Y) {
			return errors.Errorf("curve %q has %d x values but %d y values", curve.Name, len(curve.X), len(curve.Y))
		}
		xys := curve.xys()
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Trace(err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(curve.Name, line)
	}
	return nil
}

// surface adapts a grid to plotter.GridXYZ. Column c and row r map to (x[c], y[r]).
type surface struct {
	x, y []float64
	z    [][]float64
}

func (s surface) Dims() (c, r int) {
	return len(s.x), len(s.y)
}

func (s surface) Z(c, r int) float64 {
	return s.z[r][c]
}

func (s surface) X(c int) float64 {
	return s.x[c]
}

func (s surface) Y(r int) float64 {
	return s.y[r]
}

type solid struct {
	color.Color
}

func (s solid) Colors() []color.Color {
	return []color.Color{s.Color}
}

// Surfaces saves the mean and standard deviation of a grid to "{prefix}mean.png" and
// "{prefix}std.png". The decision boundary of the mean (0.5) is drawn on both, dotted
// white for the oracle and dashed red otherwise.
func Surfaces(prefix string, grid *ensemble.Grid, oracle bool) error {
	boundary := surface{x: grid.X, y: grid.Y, z: grid.Mean}
	for _, s := range []struct {
		name string
		z    [][]float64
	}{{"mean", grid.Mean}, {"std", grid.Std}} {
		p := gplot.New()
		heatMap := plotter.NewHeatMap(surface{x: grid.X, y: grid.Y, z: s.z}, palette.Heat(64, 1))
		heatMap.Rasterized = true
		if heatMap.Min == heatMap.Max {
			heatMap.Max = heatMap.Min + 1
		}
		p.Add(heatMap)
		if lo.Min(lo.Flatten(grid.Mean)) < 0.5 && lo.Max(lo.Flatten(grid.Mean)) > 0.5 {
			contour := plotter.NewContour(boundary, []float64{0.5}, solid{lo.Ternary[color.Color](oracle, color.White, color.RGBA{R: 255, A: 255})})
			style := draw.LineStyle{Width: vg.Points(1), Dashes: []vg.Length{vg.Points(4), vg.Points(2)}}
			if oracle {
				style.Dashes = []vg.Length{vg.Points(1), vg.Points(2)}
			}
			contour.LineStyles = []draw.LineStyle{style}
			p.Add(contour)
		}
		if err := save(p, 3*vg.Inch, 3*vg.Inch, prefix+s.name+".png"); err != nil {
			return err
		}
	}
	return nil
}

func save(p *gplot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(p.Save(w, h, path))
}
