package report

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	red    = color.RGBA{R: 0xC0, G: 0x39, B: 0x2B, A: 0xFF}
	orange = color.RGBA{R: 0xE6, G: 0x7E, B: 0x22, A: 0xFF}
	yellow = color.RGBA{R: 0xF1, G: 0xC4, B: 0x0F, A: 0xFF}
	green  = color.RGBA{R: 0x27, G: 0xAE, B: 0x60, A: 0xFF}
	blue   = color.RGBA{R: 0x29, G: 0x80, B: 0xB9, A: 0xFF}
	gray   = color.RGBA{R: 0xBD, G: 0xC3, B: 0xC7, A: 0xFF}
	dark   = color.RGBA{R: 0x2C, G: 0x3E, B: 0x50, A: 0xFF}

	starColors = []color.Color{red, orange, yellow, blue, green}
)

const barWidth = vg.Length(12)

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

// colouredBars adds one bar per value, coloured by pick. Bars sharing a
// colour are drawn as one series; the other slots of that series are zero.
func colouredBars(p *plot.Plot, values []float64, horizontal bool, pick func(i int, v float64) color.Color) error {
	if len(values) == 0 {
		return nil
	}
	type series struct {
		c  color.Color
		vs plotter.Values
	}
	var groups []*series
	for i, v := range values {
		c := pick(i, v)
		var g *series
		for _, existing := range groups {
			if existing.c == c {
				g = existing
				break
			}
		}
		if g == nil {
			g = &series{c: c, vs: make(plotter.Values, len(values))}
			groups = append(groups, g)
		}
		g.vs[i] = v
	}
	for _, g := range groups {
		b, err := plotter.NewBarChart(g.vs, barWidth)
		if err != nil {
			return err
		}
		b.Horizontal = horizontal
		b.Color = g.c
		b.LineStyle.Width = 0
		p.Add(b)
	}
	return nil
}

func labelsOf(vs []Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Label
	}
	return out
}

func numbersOf(vs []Value) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v.Value
	}
	return out
}

func solid(c color.Color) func(int, float64) color.Color {
	return func(int, float64) color.Color { return c }
}

func renderCategorySentiment(rows []CategoryStars) (*plot.Plot, error) {
	p := newPlot("Customer Sentiment by Category", "Share of reviews (%)", "")
	if len(rows) == 0 {
		return p, nil
	}
	// busiest category on top
	labels := make([]string, len(rows))
	for i, r := range rows {
		labels[len(rows)-1-i] = fmt.Sprintf("%s (n=%d)", r.Category, r.Total)
	}

	var prev *plotter.BarChart
	for k := 0; k < 5; k++ {
		vs := make(plotter.Values, len(rows))
		for i, r := range rows {
			vs[len(rows)-1-i] = r.Shares[k]
		}
		b, err := plotter.NewBarChart(vs, barWidth)
		if err != nil {
			return nil, err
		}
		b.Horizontal = true
		b.Color = starColors[k]
		b.LineStyle.Width = 0
		if prev != nil {
			b.StackOn(prev)
		}
		p.Add(b)
		p.Legend.Add(fmt.Sprintf("%d-Star", k+1), b)
		prev = b
	}
	p.NominalY(labels...)
	p.X.Min, p.X.Max = 0, 100
	p.Legend.Top = true
	return p, nil
}

func renderHorizontal(title, xLabel string, vs []Value, reverse bool, pick func(int, float64) color.Color) (*plot.Plot, error) {
	p := newPlot(title, xLabel, "")
	if reverse {
		vs = reversed(vs)
	}
	if err := colouredBars(p, numbersOf(vs), true, pick); err != nil {
		return nil, err
	}
	if len(vs) > 0 {
		p.NominalY(labelsOf(vs)...)
	}
	return p, nil
}

func renderTopReviewed(vs []Value) (*plot.Plot, error) {
	return renderHorizontal("Top 15 Most Reviewed Companies", "Number of reviews", vs, true, solid(blue))
}

func renderOneStarRate(vs []Value) (*plot.Plot, error) {
	p, err := renderHorizontal("1-Star Rate: Top 15 Most Reviewed Companies", "1-star share (%)", vs, false,
		func(_ int, v float64) color.Color {
			switch {
			case v >= 90:
				return red
			case v >= 80:
				return orange
			default:
				return yellow
			}
		})
	if err != nil {
		return nil, err
	}
	if len(vs) > 0 {
		if err := addVertical(p, 90, -0.5, float64(len(vs))-0.5, dark); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func renderReviewVolume(vs []Value) (*plot.Plot, error) {
	return renderHorizontal("Review Volume by Category", "Total reviews", vs, false,
		func(_ int, v float64) color.Color {
			if v >= 400 {
				return red
			}
			return blue
		})
}

func renderAvgRating(vs []Value) (*plot.Plot, error) {
	p, err := renderHorizontal("Average Company Rating by Category", "Average rating (1-5)", vs, false,
		func(_ int, v float64) color.Color {
			switch {
			case v >= 3:
				return green
			case v >= 2:
				return yellow
			default:
				return red
			}
		})
	if err != nil {
		return nil, err
	}
	p.X.Min, p.X.Max = 0, 5
	return p, nil
}

func renderRatingLabels(vs []Value) (*plot.Plot, error) {
	p := newPlot("Company Rating Label Distribution", "", "Number of companies")
	labelColors := []color.Color{green, blue, yellow, orange, gray}
	if err := colouredBars(p, numbersOf(vs), false, func(i int, _ float64) color.Color {
		return labelColors[i%len(labelColors)]
	}); err != nil {
		return nil, err
	}
	p.NominalX(labelsOf(vs)...)
	return p, nil
}

func renderZeroReviewGap(rows []ReviewGap) (*plot.Plot, error) {
	p := newPlot("Review Coverage Gap by Category", "Number of companies", "")
	if len(rows) == 0 {
		return p, nil
	}
	with := make(plotter.Values, len(rows))
	without := make(plotter.Values, len(rows))
	labels := make([]string, len(rows))
	for i, r := range rows {
		with[i] = float64(r.With)
		without[i] = float64(r.Without)
		pct := float64(r.Without) / float64(r.With+r.Without) * 100
		labels[i] = fmt.Sprintf("%s (%.0f%% unreviewed)", r.Category, pct)
	}
	wb, err := plotter.NewBarChart(with, barWidth)
	if err != nil {
		return nil, err
	}
	wb.Horizontal, wb.Color, wb.LineStyle.Width = true, blue, 0
	nb, err := plotter.NewBarChart(without, barWidth)
	if err != nil {
		return nil, err
	}
	nb.Horizontal, nb.Color, nb.LineStyle.Width = true, gray, 0
	nb.StackOn(wb)

	p.Add(wb, nb)
	p.Legend.Add("Has reviews", wb)
	p.Legend.Add("No reviews", nb)
	p.NominalY(labels...)
	return p, nil
}

func renderPhotoEvidence(vs []Value) (*plot.Plot, error) {
	p := newPlot("Photo Evidence Rate by Star Rating", "Star rating", "Reviews with images (%)")
	if err := colouredBars(p, numbersOf(vs), false, func(i int, _ float64) color.Color {
		return starColors[i%len(starColors)]
	}); err != nil {
		return nil, err
	}
	p.NominalX(labelsOf(vs)...)
	return p, nil
}

func renderBestPerformers(rows []CompanyScore) (*plot.Plot, error) {
	vs := make([]Value, len(rows))
	for i, r := range rows {
		vs[i] = Value{Label: fmt.Sprintf("%s (%.2f, n=%d)", r.Name, r.Avg, r.Count), Value: r.Avg}
	}
	p, err := renderHorizontal("Best-Performing Companies (min. 3 reviews)", "Average rating", vs, false,
		func(_ int, v float64) color.Color {
			if v >= 3 {
				return green
			}
			return yellow
		})
	if err != nil {
		return nil, err
	}
	p.X.Min, p.X.Max = 0, 5.5
	return p, nil
}

func renderRiskMatrix(points []SectorPoint) (*plot.Plot, error) {
	p := newPlot("Sector Risk Matrix: Review Volume vs Average Rating", "Total reviews", "Average rating")
	if len(points) == 0 {
		return p, nil
	}

	byQuadrant := map[string]plotter.XYs{}
	xys := make(plotter.XYs, len(points))
	labels := make([]string, len(points))
	maxX := 0.0
	for i, pt := range points {
		xy := plotter.XY{X: float64(pt.TotalReviews), Y: pt.AvgRating}
		xys[i] = xy
		labels[i] = fmt.Sprintf("%s (%d rev, %.1f)", pt.Category, pt.TotalReviews, pt.AvgRating)
		byQuadrant[pt.Quadrant()] = append(byQuadrant[pt.Quadrant()], xy)
		maxX = math.Max(maxX, xy.X)
	}

	quadrantColors := []struct {
		name string
		c    color.Color
	}{
		{"critical", red},
		{"serious", orange},
		{"elevated", yellow},
		{"contained", green},
	}
	for _, q := range quadrantColors {
		pts, ok := byQuadrant[q.name]
		if !ok {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = q.c
		s.GlyphStyle.Radius = vg.Points(5)
		p.Add(s)
		p.Legend.Add(q.name, s)
	}

	lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return nil, err
	}
	lbl.Offset = vg.Point{X: vg.Points(6), Y: vg.Points(4)}
	p.Add(lbl)

	xMax := math.Max(maxX*1.22, RiskVolumeThreshold*1.5)
	p.X.Min, p.X.Max = 0, xMax
	p.Y.Min, p.Y.Max = 0.85, 2.45
	if err := addVertical(p, RiskVolumeThreshold, p.Y.Min, p.Y.Max, dark); err != nil {
		return nil, err
	}
	return p, addHorizontal(p, RiskRatingThreshold, 0, xMax, dark)
}

func renderReviewStream(points []StreamPoint) (*plot.Plot, error) {
	p := newPlot("Review Activity Over Time", "Chronological order (oldest to newest)", "Reviews per page")
	if len(points) == 0 {
		return p, nil
	}
	raw := make(plotter.XYs, len(points))
	var rolling plotter.XYs
	for i, pt := range points {
		raw[i] = plotter.XY{X: float64(pt.Period), Y: float64(pt.Reviews)}
		if !math.IsNaN(pt.Rolling) {
			rolling = append(rolling, plotter.XY{X: float64(pt.Period), Y: pt.Rolling})
		}
	}
	l, err := plotter.NewLine(raw)
	if err != nil {
		return nil, err
	}
	l.Color = blue
	l.FillColor = color.RGBA{R: 0x29, G: 0x80, B: 0xB9, A: 0x40}
	p.Add(l)
	p.Legend.Add("Reviews per page", l)

	if len(rolling) > 0 {
		r, err := plotter.NewLine(rolling)
		if err != nil {
			return nil, err
		}
		r.Color = red
		r.Width = vg.Points(2)
		p.Add(r)
		p.Legend.Add("5-period rolling average", r)
	}
	return p, nil
}

func renderTopPerCategory(rows []CompanyReviews) (*plot.Plot, error) {
	vs := make([]Value, len(rows))
	catIndex := map[string]int{}
	for i, r := range rows {
		vs[i] = Value{Label: fmt.Sprintf("%s (%s)", r.Name, r.Category), Value: float64(r.Reviews)}
		if _, ok := catIndex[r.Category]; !ok {
			catIndex[r.Category] = len(catIndex)
		}
	}
	palette := []color.Color{red, orange, yellow, green, blue, gray, dark}
	return renderHorizontal("Top 3 Most-Reviewed Companies per Category", "Total reviews", vs, false,
		func(i int, _ float64) color.Color {
			return palette[catIndex[rows[i].Category]%len(palette)]
		})
}

func addVertical(p *plot.Plot, x, y0, y1 float64, c color.Color) error {
	l, err := plotter.NewLine(plotter.XYs{{X: x, Y: y0}, {X: x, Y: y1}})
	if err != nil {
		return err
	}
	l.Color = c
	l.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(l)
	return nil
}

func addHorizontal(p *plot.Plot, y, x0, x1 float64, c color.Color) error {
	l, err := plotter.NewLine(plotter.XYs{{X: x0, Y: y}, {X: x1, Y: y}})
	if err != nil {
		return err
	}
	l.Color = c
	l.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(l)
	return nil
}

func reversed(vs []Value) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[len(vs)-1-i] = v
	}
	return out
}
