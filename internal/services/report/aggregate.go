package report

import (
	"math"
	"sort"
	"strconv"
)

// Thresholds used by the risk matrix.
const (
	RiskVolumeThreshold = 200
	RiskRatingThreshold = 1.5
)

// RatingLabels is the fixed display order of company rating labels.
var RatingLabels = []string{"Əla", "Yaxşı", "Orta", "Aşağı", "Yoxdur"}

// Value is one labelled bar.
type Value struct {
	Label string
	Value float64
}

// CategoryStars is the star mix of one category. Shares[k] is the percentage
// of feedback rated k+1.
type CategoryStars struct {
	Category string
	Shares   [5]float64
	Total    int
}

// CategorySentiment returns the star mix per category, busiest first.
// Feedback without a category is ignored.
func CategorySentiment(fb []Feedback) []CategoryStars {
	byCat := map[string]*CategoryStars{}
	counts := map[string]*[5]int{}
	for _, f := range fb {
		if f.Category == "" {
			continue
		}
		cs, ok := byCat[f.Category]
		if !ok {
			cs = &CategoryStars{Category: f.Category}
			byCat[f.Category] = cs
			counts[f.Category] = &[5]int{}
		}
		cs.Total++
		if f.Rating >= 1 && f.Rating <= 5 {
			counts[f.Category][f.Rating-1]++
		}
	}

	out := make([]CategoryStars, 0, len(byCat))
	for cat, cs := range byCat {
		for k, n := range counts[cat] {
			cs.Shares[k] = float64(n) / float64(cs.Total) * 100
		}
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// TopReviewedCompanies returns the n companies with the most feedback,
// busiest first.
func TopReviewedCompanies(fb []Feedback, n int) []Value {
	counts := map[string]float64{}
	for _, f := range fb {
		counts[f.CompanyName]++
	}
	return topN(sortedDesc(counts), n)
}

// OneStarRate returns the 1-star percentage for the n most reviewed
// companies, lowest rate first.
func OneStarRate(fb []Feedback, n int) []Value {
	top := TopReviewedCompanies(fb, n)
	total := map[string]float64{}
	ones := map[string]float64{}
	for _, v := range top {
		total[v.Label] = v.Value
	}
	for _, f := range fb {
		if _, ok := total[f.CompanyName]; ok && f.Rating == 1 {
			ones[f.CompanyName]++
		}
	}
	rates := make(map[string]float64, len(total))
	for name, t := range total {
		rates[name] = ones[name] / t * 100
	}
	return sortedAsc(rates)
}

// ReviewVolumeByCategory sums company review counts per category, smallest
// first.
func ReviewVolumeByCategory(companies []Company) []Value {
	sums := map[string]float64{}
	for _, c := range companies {
		if c.CategoryName == "" {
			continue
		}
		sums[c.CategoryName] += float64(c.ReviewCount)
	}
	return sortedAsc(sums)
}

// AvgRatingByCategory averages the positive rating values per category,
// lowest first.
func AvgRatingByCategory(companies []Company) []Value {
	sums := map[string]float64{}
	counts := map[string]float64{}
	for _, c := range companies {
		if c.CategoryName == "" || !(c.RatingValue > 0) {
			continue
		}
		sums[c.CategoryName] += c.RatingValue
		counts[c.CategoryName]++
	}
	for k := range sums {
		sums[k] /= counts[k]
	}
	return sortedAsc(sums)
}

// RatingLabelDistribution counts companies per label in RatingLabels order.
// Labels outside that set are not reported.
func RatingLabelDistribution(companies []Company) []Value {
	counts := map[string]float64{}
	for _, c := range companies {
		counts[c.RatingLabel]++
	}
	out := make([]Value, len(RatingLabels))
	for i, l := range RatingLabels {
		out[i] = Value{Label: l, Value: counts[l]}
	}
	return out
}

// ReviewGap counts the companies of a category with and without reviews.
type ReviewGap struct {
	Category string
	With     int
	Without  int
}

// ZeroReviewGap returns per-category review coverage, fewest unreviewed
// companies first.
func ZeroReviewGap(companies []Company) []ReviewGap {
	byCat := map[string]*ReviewGap{}
	for _, c := range companies {
		if c.CategoryName == "" {
			continue
		}
		g, ok := byCat[c.CategoryName]
		if !ok {
			g = &ReviewGap{Category: c.CategoryName}
			byCat[c.CategoryName] = g
		}
		switch {
		case c.ReviewCount > 0:
			g.With++
		case c.ReviewCount == 0:
			g.Without++
		}
	}
	out := make([]ReviewGap, 0, len(byCat))
	for _, g := range byCat {
		if g.With+g.Without > 0 {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Without != out[j].Without {
			return out[i].Without < out[j].Without
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// PhotoEvidenceByRating returns the percentage of feedback with images for
// each star rating present, 1 star first. Labels are the star count.
func PhotoEvidenceByRating(fb []Feedback) []Value {
	total := map[int]float64{}
	withImg := map[int]float64{}
	for _, f := range fb {
		total[f.Rating]++
		if f.HasImages {
			withImg[f.Rating]++
		}
	}
	stars := make([]int, 0, len(total))
	for s := range total {
		stars = append(stars, s)
	}
	sort.Ints(stars)

	out := make([]Value, len(stars))
	for i, s := range stars {
		out[i] = Value{Label: starLabel(s), Value: withImg[s] / total[s] * 100}
	}
	return out
}

// CompanyScore is a company's mean feedback rating.
type CompanyScore struct {
	Name  string
	Avg   float64
	Count int
}

// BestPerformers returns the n companies with the highest mean rating among
// those with at least minCount feedbacks, ordered lowest to highest.
func BestPerformers(fb []Feedback, minCount, n int) []CompanyScore {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, f := range fb {
		sums[f.CompanyName] += float64(f.Rating)
		counts[f.CompanyName]++
	}
	out := make([]CompanyScore, 0, len(sums))
	for name, s := range sums {
		if counts[name] < minCount {
			continue
		}
		out = append(out, CompanyScore{Name: name, Avg: s / float64(counts[name]), Count: counts[name]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Avg != out[j].Avg {
			return out[i].Avg < out[j].Avg
		}
		return out[i].Name > out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// SectorPoint is one category on the risk matrix.
type SectorPoint struct {
	Category     string
	AvgRating    float64
	TotalReviews int
	Companies    int
}

// Quadrant names the risk quadrant of p.
func (p SectorPoint) Quadrant() string {
	high := p.TotalReviews >= RiskVolumeThreshold
	low := p.AvgRating < RiskRatingThreshold
	switch {
	case high && low:
		return "critical"
	case high:
		return "elevated"
	case low:
		return "serious"
	default:
		return "contained"
	}
}

// SectorRiskMatrix aggregates rated companies per category, highest review
// volume first.
func SectorRiskMatrix(companies []Company) []SectorPoint {
	byCat := map[string]*SectorPoint{}
	sums := map[string]float64{}
	for _, c := range companies {
		if c.CategoryName == "" || !(c.RatingValue > 0) {
			continue
		}
		p, ok := byCat[c.CategoryName]
		if !ok {
			p = &SectorPoint{Category: c.CategoryName}
			byCat[c.CategoryName] = p
		}
		p.TotalReviews += c.ReviewCount
		p.Companies++
		sums[c.CategoryName] += c.RatingValue
	}
	out := make([]SectorPoint, 0, len(byCat))
	for cat, p := range byCat {
		p.AvgRating = sums[cat] / float64(p.Companies)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalReviews != out[j].TotalReviews {
			return out[i].TotalReviews > out[j].TotalReviews
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// StreamPoint is the feedback volume of one listing page, re-indexed so
// Period 1 is the oldest page. Rolling is NaN where the centred window does
// not fit.
type StreamPoint struct {
	Period  int
	Reviews int
	Rolling float64
}

// ReviewStream counts feedback per page in chronological order with a
// centred rolling mean over window periods.
func ReviewStream(fb []Feedback, window int) []StreamPoint {
	counts := map[int]int{}
	maxPage := math.MinInt
	for _, f := range fb {
		counts[f.Page]++
		if f.Page > maxPage {
			maxPage = f.Page
		}
	}
	out := make([]StreamPoint, 0, len(counts))
	for page, n := range counts {
		out = append(out, StreamPoint{Period: maxPage - page + 1, Reviews: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })

	left := (window - 1) / 2
	right := window - 1 - left
	for i := range out {
		out[i].Rolling = math.NaN()
		if window <= 0 || i-left < 0 || i+right >= len(out) {
			continue
		}
		var sum float64
		for k := i - left; k <= i+right; k++ {
			sum += float64(out[k].Reviews)
		}
		out[i].Rolling = sum / float64(window)
	}
	return out
}

// CompanyReviews is a company's platform review count.
type CompanyReviews struct {
	Name     string
	Category string
	Reviews  int
}

// TopPerCategory keeps the perCat most reviewed companies of every category
// (companies with no reviews or no category excluded), then orders them all by review
// count ascending.
func TopPerCategory(companies []Company, perCat int) []CompanyReviews {
	reviewed := make([]CompanyReviews, 0, len(companies))
	for _, c := range companies {
		if c.ReviewCount > 0 && c.CategoryName != "" {
			reviewed = append(reviewed, CompanyReviews{Name: c.Name, Category: c.CategoryName, Reviews: c.ReviewCount})
		}
	}
	sort.SliceStable(reviewed, func(i, j int) bool { return reviewed[i].Reviews > reviewed[j].Reviews })

	taken := map[string]int{}
	out := make([]CompanyReviews, 0, len(reviewed))
	for _, r := range reviewed {
		if taken[r.Category] >= perCat {
			continue
		}
		taken[r.Category]++
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Reviews < out[j].Reviews })
	return out
}

func sortedDesc(m map[string]float64) []Value {
	out := toValues(m)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func sortedAsc(m map[string]float64) []Value {
	out := toValues(m)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value < out[j].Value
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func toValues(m map[string]float64) []Value {
	out := make([]Value, 0, len(m))
	for k, v := range m {
		out = append(out, Value{Label: k, Value: v})
	}
	return out
}

func topN(vs []Value, n int) []Value {
	if n > 0 && len(vs) > n {
		return vs[:n]
	}
	return vs
}

func starLabel(s int) string {
	return strconv.Itoa(s) + "★"
}
