package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	applogger "PriceCast/pkg/logger"
)

const (
	DefaultCompaniesPath = "data/companies.csv"
	DefaultFeedbacksPath = "data/feedbacks.csv"
	DefaultOutputDir     = "charts"

	topCompanies   = 15
	bestMinReviews = 3
	rollingWindow  = 5
	topPerCategory = 3
)

// Chart is one named output and how to build it from the dataset.
type Chart struct {
	File   string
	Width  vg.Length
	Height vg.Length
	Build  func(ds *Dataset) (*plot.Plot, error)
}

// Charts returns the twelve charts in output order.
func Charts() []Chart {
	return []Chart{
		{"01_category_sentiment.png", 13 * vg.Inch, 7 * vg.Inch, func(ds *Dataset) (*plot.Plot, error) {
			return renderCategorySentiment(CategorySentiment(ds.Feedbacks))
		}},
		{"02_top_reviewed_companies.png", 13 * vg.Inch, 6 * vg.Inch, func(ds *Dataset) (*plot.Plot, error) {
			return renderTopReviewed(TopReviewedCompanies(ds.Feedbacks, topCompanies))
		}},
		{"03_one_star_rate_top15.png", 13 * vg.Inch, 6 * vg.Inch, func(ds *Dataset) (*plot.Plot, error) {
			return renderOneStarRate(OneStarRate(ds.Feedbacks, topCompanies))
		}},
		{"04_review_volume_by_category.png", 11 * vg.Inch, 6 * vg.Inch, func(ds *Dataset) (*plot.Plot, error) {
			return renderReviewVolume(ReviewVolumeByCategory(ds.Companies))
		}},
		{"05_avg_rating_by_category.png", 11 * vg.Inch, 6 * vg.Inch, func(ds *Dataset) (*plot.Plot, error) {
			return renderAvgRating(AvgRatingByCategory(ds.Companies))
		}},
		{"06_rating_label_distribution.png", 9 * vg.Inch, 5 * vg.Inch, func(ds *Dataset) (*plot.Plot, error) {
			return renderRatingLabels(RatingLabelDistribution(ds.Companies))
		}},
		{"07_zero_review_gap.png", 11 * vg.Inch, 6 * vg.Inch, func(ds *Dataset) (*plot.Plot, error) {
			return renderZeroReviewGap(ZeroReviewGap(ds.Companies))
		}},
		{"08_photo_evidence_by_rating.png", 8 * vg.Inch, 5 * vg.Inch, func(ds *Dataset) (*plot.Plot, error) {
			return renderPhotoEvidence(PhotoEvidenceByRating(ds.Feedbacks))
		}},
		{"09_best_performing_companies.png", 12 * vg.Inch, 6 * vg.Inch, func(ds *Dataset) (*plot.Plot, error) {
			return renderBestPerformers(BestPerformers(ds.Feedbacks, bestMinReviews, topCompanies))
		}},
		{"10_sector_risk_matrix.png", 18 * vg.Inch, 9 * vg.Inch, func(ds *Dataset) (*plot.Plot, error) {
			return renderRiskMatrix(SectorRiskMatrix(ds.Companies))
		}},
		{"11_review_stream.png", 13 * vg.Inch, 5 * vg.Inch, func(ds *Dataset) (*plot.Plot, error) {
			return renderReviewStream(ReviewStream(ds.Feedbacks, rollingWindow))
		}},
		{"12_top3_per_category.png", 13 * vg.Inch, 10 * vg.Inch, func(ds *Dataset) (*plot.Plot, error) {
			return renderTopPerCategory(TopPerCategory(ds.Companies, topPerCategory))
		}},
	}
}

// Generator renders every chart into one directory.
type Generator struct {
	dir string
	l   *applogger.Logger
}

func NewGenerator(dir string, l *applogger.Logger) *Generator {
	if l == nil {
		l = applogger.NewNop()
	}
	return &Generator{dir: dir, l: l}
}

// Run renders all charts. A failing chart is logged and the rest still run;
// the returned error joins every failure.
func (g *Generator) Run(ds *Dataset) ([]string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", g.dir, err)
	}

	var (
		written []string
		errs    []error
	)
	for _, c := range Charts() {
		start := time.Now()
		path := filepath.Join(g.dir, c.File)

		p, err := c.Build(ds)
		if err == nil {
			err = p.Save(c.Width, c.Height, path)
		}
		if err != nil {
			g.l.Error("chart failed", applogger.String("chart", c.File), applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.File, err))
			continue
		}
		g.l.Info("chart saved",
			applogger.String("path", path),
			applogger.Duration("duration_ms", time.Since(start)),
		)
		written = append(written, path)
	}
	return written, errors.Join(errs...)
}
