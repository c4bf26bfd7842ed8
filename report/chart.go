// Package report renders training diagnostics as PNG charts.
package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/YuminosukeSato/tabml/pipeline"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

type settings struct {
	width, height vg.Length
	title         string
}

// Option configures TrainingChart.
type Option func(*settings)

// WithSize sets the image size.
func WithSize(width, height vg.Length) Option {
	return func(s *settings) {
		s.width, s.height = width, height
	}
}

// WithTitle overrides the default chart title.
func WithTitle(title string) Option {
	return func(s *settings) {
		s.title = title
	}
}

var (
	trainingColor  = color.RGBA{R: 66, G: 133, B: 244, A: 255}
	predictedColor = color.RGBA{R: 219, G: 68, B: 55, A: 255}
)

// TrainingChart draws how the artifact behaves on the table it was trained on.
// Classification models get per-class counts of training labels next to
// predicted labels; regression models get actual against predicted values.
func TrainingChart(a *pipeline.Artifact, e *pipeline.EncodedTable, opts ...Option) ([]byte, error) {
	if a.RunID() != e.RunID() {
		return nil, errors.NewContractMismatchError(e.RunID(), a.RunID())
	}
	s := settings{width: 6 * vg.Inch, height: 4 * vg.Inch}
	for _, opt := range opts {
		opt(&s)
	}

	out, err := a.PredictEncoded(e)
	if err != nil {
		return nil, err
	}

	var p *plot.Plot
	if a.TargetKind() == pipeline.Classification {
		p, err = classCounts(a.Classes(), e.Target().Values(), out.Values)
	} else {
		p, err = actualVsPredicted(e.Target().Numbers(), out.Values)
	}
	if err != nil {
		return nil, errors.Wrap(err, "build chart")
	}
	if s.title != "" {
		p.Title.Text = s.title
	} else {
		p.Title.Text = fmt.Sprintf("%s (%s)", a.Algorithm(), a.TargetKind())
	}

	c := vgimg.New(s.width, s.height)
	p.Draw(draw.New(c))
	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: c}
	if _, err := png.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "render chart")
	}
	return buf.Bytes(), nil
}

func classCounts(classes, actual []string, predicted []pipeline.Value) (*plot.Plot, error) {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	trained := make(plotter.Values, len(classes))
	for _, v := range actual {
		if i, ok := index[v]; ok {
			trained[i]++
		}
	}
	guessed := make(plotter.Values, len(classes))
	for _, v := range predicted {
		if i, ok := index[v.Label()]; ok {
			guessed[i]++
		}
	}

	p := plot.New()
	p.Y.Label.Text = "rows"
	width := vg.Points(20)

	tb, err := plotter.NewBarChart(trained, width)
	if err != nil {
		return nil, err
	}
	tb.Color = trainingColor
	tb.Offset = -width / 2

	pb, err := plotter.NewBarChart(guessed, width)
	if err != nil {
		return nil, err
	}
	pb.Color = predictedColor
	pb.Offset = width / 2

	p.Add(tb, pb)
	p.Legend.Add("training", tb)
	p.Legend.Add("predicted", pb)
	p.Legend.Top = true
	p.NominalX(classes...)
	return p, nil
}

func actualVsPredicted(actual []float64, predicted []pipeline.Value) (*plot.Plot, error) {
	pts := make(plotter.XYs, len(actual))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, y := range actual {
		pts[i].X = y
		pts[i].Y = predicted[i].Float()
		lo = math.Min(lo, math.Min(pts[i].X, pts[i].Y))
		hi = math.Max(hi, math.Max(pts[i].X, pts[i].Y))
	}

	p := plot.New()
	p.X.Label.Text = "actual"
	p.Y.Label.Text = "predicted"

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Color = trainingColor

	// y = x
	ideal, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, err
	}
	ideal.LineStyle.Color = predictedColor
	ideal.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(sc, ideal)
	p.Legend.Add("rows", sc)
	p.Legend.Add("ideal", ideal)
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}
