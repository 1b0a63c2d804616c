package report

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companiesCSV = `name,slug,category_name,category_slug,rating_value,rating_label,review_count
Alpha Bank,alpha,Banklar,banks,1.2,Aşağı,300
Beta Bank,beta,Banklar,banks,2.0,Orta,50
Gamma Bank,gamma,Banklar,banks,0,Yoxdur,0
Delta Bank,delta,Banklar,banks,3.5,Yaxşı,10
Taxi One,taxi1,Taksi,taxi,1.0,Aşağı,120
Taxi Two,taxi2,Taksi,taxi,,Yoxdur,0
Broken,broken,Taksi,taxi,notanumber,Orta,3
Hotel,hotel,Otellər,hotels,4.5,Əla,5
`

const feedbacksCSV = `review_id,company_name,rating,has_images,page
1,Alpha Bank,1,False,1
2,Alpha Bank,1,True,1
3,Alpha Bank,5,False,2
4,Alpha Bank,2,False,2
5,Taxi One,1,False,3
6,Taxi One,4,True,3
7,Taxi One,4,False,3
8,Hotel,5,True,4
9,Unknown Co,3,False,4
10,Beta Bank,oops,False,4
`

func fixture(t *testing.T) *Dataset {
	t.Helper()
	ds, err := ReadDataset(strings.NewReader(companiesCSV), strings.NewReader(feedbacksCSV))
	require.NoError(t, err)
	return ds
}

func TestReadDataset_SkipsMalformedAndJoins(t *testing.T) {
	ds := fixture(t)
	assert.Len(t, ds.Companies, 7)
	assert.Len(t, ds.Feedbacks, 9)
	assert.Equal(t, 2, ds.Skipped)

	assert.Equal(t, "Banklar", ds.Feedbacks[0].Category)
	assert.Equal(t, "", ds.Feedbacks[8].Category, "unknown company keeps an empty category")
	assert.True(t, ds.Feedbacks[1].HasImages)
}

func TestReadDataset_MissingColumn(t *testing.T) {
	_, err := ReadDataset(strings.NewReader("name,slug\nA,a\n"), strings.NewReader(feedbacksCSV))
	assert.Error(t, err)
}

func TestCategorySentiment(t *testing.T) {
	rows := CategorySentiment(fixture(t).Feedbacks)
	require.Len(t, rows, 3)

	assert.Equal(t, "Banklar", rows[0].Category)
	assert.Equal(t, 4, rows[0].Total)
	assert.InDelta(t, 50, rows[0].Shares[0], 1e-9)
	assert.InDelta(t, 25, rows[0].Shares[1], 1e-9)
	assert.InDelta(t, 25, rows[0].Shares[4], 1e-9)

	assert.Equal(t, "Taksi", rows[1].Category)
	assert.InDelta(t, 200.0/3, rows[1].Shares[3], 1e-9)
	assert.Equal(t, "Otellər", rows[2].Category)
}

func TestTopReviewedAndOneStarRate(t *testing.T) {
	fb := fixture(t).Feedbacks

	top := TopReviewedCompanies(fb, 2)
	require.Len(t, top, 2)
	assert.Equal(t, Value{"Alpha Bank", 4}, top[0])
	assert.Equal(t, Value{"Taxi One", 3}, top[1])

	rates := OneStarRate(fb, 2)
	require.Len(t, rates, 2)
	assert.Equal(t, "Taxi One", rates[0].Label)
	assert.InDelta(t, 100.0/3, rates[0].Value, 1e-9)
	assert.Equal(t, "Alpha Bank", rates[1].Label)
	assert.InDelta(t, 50, rates[1].Value, 1e-9)
}

func TestCategoryAggregates(t *testing.T) {
	cs := fixture(t).Companies

	assert.Equal(t, []Value{{"Otellər", 5}, {"Taksi", 120}, {"Banklar", 360}}, ReviewVolumeByCategory(cs))

	avg := AvgRatingByCategory(cs)
	require.Len(t, avg, 3)
	assert.Equal(t, "Taksi", avg[0].Label)
	assert.InDelta(t, 1.0, avg[0].Value, 1e-9)
	assert.Equal(t, "Banklar", avg[1].Label)
	assert.InDelta(t, (1.2+2.0+3.5)/3, avg[1].Value, 1e-9)

	labels := RatingLabelDistribution(cs)
	assert.Equal(t, []Value{{"Əla", 1}, {"Yaxşı", 1}, {"Orta", 1}, {"Aşağı", 2}, {"Yoxdur", 2}}, labels)

	gap := ZeroReviewGap(cs)
	assert.Equal(t, []ReviewGap{
		{Category: "Otellər", With: 1, Without: 0},
		{Category: "Banklar", With: 3, Without: 1},
		{Category: "Taksi", With: 1, Without: 1},
	}, gap)
}

func TestPhotoEvidenceByRating(t *testing.T) {
	vs := PhotoEvidenceByRating(fixture(t).Feedbacks)
	require.Len(t, vs, 5)
	assert.Equal(t, "1★", vs[0].Label)
	assert.InDelta(t, 100.0/3, vs[0].Value, 1e-9)
	assert.Equal(t, "4★", vs[3].Label)
	assert.InDelta(t, 50, vs[3].Value, 1e-9)
	assert.InDelta(t, 50, vs[4].Value, 1e-9)
}

func TestBestPerformers(t *testing.T) {
	got := BestPerformers(fixture(t).Feedbacks, 3, 15)
	require.Len(t, got, 2)
	assert.Equal(t, "Alpha Bank", got[0].Name)
	assert.InDelta(t, 2.25, got[0].Avg, 1e-9)
	assert.Equal(t, "Taxi One", got[1].Name)
	assert.InDelta(t, 3.0, got[1].Avg, 1e-9)
	assert.Equal(t, 3, got[1].Count)

	assert.Len(t, BestPerformers(fixture(t).Feedbacks, 3, 1), 1)
}

func TestSectorRiskMatrix(t *testing.T) {
	pts := SectorRiskMatrix(fixture(t).Companies)
	require.Len(t, pts, 3)

	assert.Equal(t, "Banklar", pts[0].Category)
	assert.Equal(t, 360, pts[0].TotalReviews)
	assert.Equal(t, 3, pts[0].Companies)
	assert.Equal(t, "elevated", pts[0].Quadrant())

	assert.Equal(t, "Taksi", pts[1].Category)
	assert.Equal(t, "serious", pts[1].Quadrant())

	assert.Equal(t, "critical", SectorPoint{TotalReviews: 500, AvgRating: 1.2}.Quadrant())
	assert.Equal(t, "contained", SectorPoint{TotalReviews: 10, AvgRating: 2}.Quadrant())
}

func TestReviewStream(t *testing.T) {
	var fb []Feedback
	// pages 1..7 with 1..7 reviews; page 7 is the oldest
	for page := 1; page <= 7; page++ {
		for i := 0; i < page; i++ {
			fb = append(fb, Feedback{Page: page})
		}
	}
	pts := ReviewStream(fb, 5)
	require.Len(t, pts, 7)

	assert.Equal(t, 1, pts[0].Period)
	assert.Equal(t, 7, pts[0].Reviews)
	assert.Equal(t, 1, pts[6].Reviews)

	assert.True(t, math.IsNaN(pts[0].Rolling))
	assert.True(t, math.IsNaN(pts[1].Rolling))
	assert.InDelta(t, 5, pts[2].Rolling, 1e-9)
	assert.InDelta(t, 3, pts[4].Rolling, 1e-9)
	assert.True(t, math.IsNaN(pts[5].Rolling))
}

func TestTopPerCategory(t *testing.T) {
	got := TopPerCategory(fixture(t).Companies, 2)
	names := make([]string, len(got))
	for i, g := range got {
		names[i] = g.Name
	}
	assert.Equal(t, []string{"Hotel", "Beta Bank", "Taxi One", "Alpha Bank"}, names)
}

func TestTopPerCategory_SkipsUncategorised(t *testing.T) {
	companies := append(fixture(t).Companies,
		Company{Name: "Nowhere", ReviewCount: 999},
		Company{Name: "Nowhere Else", ReviewCount: 500},
	)
	got := TopPerCategory(companies, 2)

	require.Len(t, got, 4)
	for _, g := range got {
		assert.NotEmpty(t, g.Category, g.Name)
		assert.NotContains(t, []string{"Nowhere", "Nowhere Else"}, g.Name)
	}
}

func TestGenerator_WritesAllCharts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	paths, err := NewGenerator(dir, nil).Run(fixture(t))
	require.NoError(t, err)
	require.Len(t, paths, 12)

	for _, c := range Charts() {
		info, err := os.Stat(filepath.Join(dir, c.File))
		require.NoError(t, err, c.File)
		assert.Greater(t, info.Size(), int64(0), c.File)
	}
}

func TestGenerator_EmptyDataset(t *testing.T) {
	ds, err := ReadDataset(
		strings.NewReader("name,slug,category_name,category_slug,rating_value,rating_label,review_count\n"),
		strings.NewReader("review_id,company_name,rating,has_images,page\n"),
	)
	require.NoError(t, err)

	paths, err := NewGenerator(t.TempDir(), nil).Run(ds)
	require.NoError(t, err)
	assert.Len(t, paths, 12)
}
