// Package report turns the review-platform CSV exports into a fixed set of
// business-intelligence charts.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Company is one row of companies.csv.
type Company struct {
	Name         string
	Slug         string
	CategoryName string
	CategorySlug string
	RatingValue  float64
	RatingLabel  string
	ReviewCount  int
}

// Feedback is one row of feedbacks.csv. Category is filled by the join and
// is empty when the company is unknown.
type Feedback struct {
	ReviewID    string
	CompanyName string
	Rating      int
	HasImages   bool
	Page        int
	Category    string
}

// Dataset is both files with feedbacks left-joined to companies by name.
type Dataset struct {
	Companies []Company
	Feedbacks []Feedback
	Skipped   int // malformed rows dropped while loading
}

var (
	companyColumns  = []string{"name", "slug", "category_name", "category_slug", "rating_value", "rating_label", "review_count"}
	feedbackColumns = []string{"review_id", "company_name", "rating", "has_images", "page"}
)

// LoadDataset reads and joins the two CSV files.
func LoadDataset(companiesPath, feedbacksPath string) (*Dataset, error) {
	cf, err := os.Open(companiesPath)
	if err != nil {
		return nil, fmt.Errorf("open companies: %w", err)
	}
	defer cf.Close()
	ff, err := os.Open(feedbacksPath)
	if err != nil {
		return nil, fmt.Errorf("open feedbacks: %w", err)
	}
	defer ff.Close()

	return ReadDataset(cf, ff)
}

// ReadDataset parses both CSV streams. Columns are located by header name
// so extra or reordered columns are fine; a missing required column is an
// error.
func ReadDataset(companies, feedbacks io.Reader) (*Dataset, error) {
	ds := &Dataset{}

	err := readRows(companies, companyColumns, func(get func(string) string) bool {
		c, ok := parseCompany(get)
		if ok {
			ds.Companies = append(ds.Companies, c)
		}
		return ok
	}, &ds.Skipped)
	if err != nil {
		return nil, fmt.Errorf("companies: %w", err)
	}

	err = readRows(feedbacks, feedbackColumns, func(get func(string) string) bool {
		f, ok := parseFeedback(get)
		if ok {
			ds.Feedbacks = append(ds.Feedbacks, f)
		}
		return ok
	}, &ds.Skipped)
	if err != nil {
		return nil, fmt.Errorf("feedbacks: %w", err)
	}

	ds.join()
	return ds, nil
}

// join copies each company's category onto its feedback. With duplicate
// company names the first row wins.
func (ds *Dataset) join() {
	category := make(map[string]string, len(ds.Companies))
	for _, c := range ds.Companies {
		if _, seen := category[c.Name]; !seen {
			category[c.Name] = c.CategoryName
		}
	}
	for i := range ds.Feedbacks {
		ds.Feedbacks[i].Category = category[ds.Feedbacks[i].CompanyName]
	}
}

func readRows(r io.Reader, required []string, row func(get func(string) string) bool, skipped *int) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("missing column %q", col)
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				*skipped++
				continue
			}
			return err
		}
		if len(rec) < len(header) {
			*skipped++
			continue
		}
		get := func(col string) string { return strings.TrimSpace(rec[index[col]]) }
		if !row(get) {
			*skipped++
		}
	}
}

func parseCompany(get func(string) string) (Company, bool) {
	c := Company{
		Name:         get("name"),
		Slug:         get("slug"),
		CategoryName: get("category_name"),
		CategorySlug: get("category_slug"),
		RatingLabel:  get("rating_label"),
	}
	if c.Name == "" {
		return c, false
	}
	var ok bool
	if c.RatingValue, ok = optionalFloat(get("rating_value")); !ok {
		return c, false
	}
	rc, ok := optionalFloat(get("review_count"))
	if !ok {
		return c, false
	}
	c.ReviewCount = int(rc)
	return c, true
}

func parseFeedback(get func(string) string) (Feedback, bool) {
	f := Feedback{
		ReviewID:    get("review_id"),
		CompanyName: get("company_name"),
	}
	rating, err := strconv.ParseFloat(get("rating"), 64)
	if err != nil {
		return f, false
	}
	f.Rating = int(rating)

	if f.HasImages, err = strconv.ParseBool(get("has_images")); err != nil {
		return f, false
	}
	page, err := strconv.ParseFloat(get("page"), 64)
	if err != nil {
		return f, false
	}
	f.Page = int(page)
	return f, true
}

// optionalFloat treats an empty cell as zero.
func optionalFloat(s string) (float64, bool) {
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
