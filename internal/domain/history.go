package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Placeholder values for fields the scanning flow never collects but the
// backend schema requires.
const (
	PlaceholderBrand    = "Unknown Brand"
	PlaceholderCategory = "Other"
	ScanNote            = "Scanned with NutriFacts app"
	DefaultNutriScore   = NutriScoreE
)

// HistoryRecord is a scan archived by the backend.
type HistoryRecord struct {
	ID          string         `json:"id"`
	ProductName string         `json:"productName"`
	ScannedAt   time.Time      `json:"scannedAt"`
	Raw         RawNutrition   `json:"raw"`
	Derived     DerivedMetrics `json:"derived"`
}

// NewRecord is the payload submitted to the history backend.
type NewRecord struct {
	ProductName string
	Brand       string
	Category    string
	Notes       string
	Raw         RawNutrition
	Derived     DerivedMetrics
	// Filled lists the fields that were zero-filled because the recognizer
	// omitted them. Once sent, a filled zero cannot be told apart from a
	// measured zero.
	Filled []string
}

// PrepareRecord builds the persistence payload for a recognized scan:
// omitted fields become zero, an omitted grade becomes DefaultNutriScore,
// brand, category and notes get their placeholders.
func PrepareRecord(raw RawNutrition, derived DerivedMetrics, label string) (NewRecord, error) {
	name := strings.TrimSpace(label)
	if name == "" {
		return NewRecord{}, Validationf("product name is required")
	}

	filled := append([]string(nil), raw.Missing...)
	raw.Missing = nil
	if _, ok := ParseNutriScore(string(raw.NutriScore)); !ok {
		raw.NutriScore = DefaultNutriScore
		if !containsString(filled, FieldNutriScore) {
			filled = append(filled, FieldNutriScore)
		}
	}

	return NewRecord{
		ProductName: name,
		Brand:       PlaceholderBrand,
		Category:    PlaceholderCategory,
		Notes:       ScanNote,
		Raw:         raw,
		Derived:     derived,
		Filled:      filled,
	}, nil
}

// HistoryRepository is the port for the remote per-user history.
type HistoryRepository interface {
	SaveRecord(ctx context.Context, sess Session, rec NewRecord) (*HistoryRecord, error)
	ListHistory(ctx context.Context, sess Session) ([]HistoryRecord, error)
}

// FilterHistory returns the records whose product name contains query,
// ignoring case. An empty query returns records unchanged.
func FilterHistory(records []HistoryRecord, query string) []HistoryRecord {
	if query == "" {
		return records
	}
	q := strings.ToLower(query)
	out := make([]HistoryRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.ProductName), q) {
			out = append(out, r)
		}
	}
	return out
}

// DetailRow is one labelled line of a record's detail view.
type DetailRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Detail projects a record into its detail rows.
func Detail(r HistoryRecord) []DetailRow {
	grams := func(v float64) string { return fmt.Sprintf("%gg", v) }
	return []DetailRow{
		{"Nutri-Score", string(r.Raw.NutriScore)},
		{"Total Fat", grams(r.Raw.Fat)},
		{"Saturated Fat", grams(r.Raw.SaturatedFat)},
		{"Trans Fat", grams(r.Raw.TransFat)},
		{"Cholesterol", grams(r.Raw.Cholesterol)},
		{"Sodium", grams(r.Raw.Sodium)},
		{"Total Carbohydrates", grams(r.Raw.Carbohydrates)},
		{"Dietary Fiber", grams(r.Raw.Fiber)},
		{"Sugars", grams(r.Raw.Sugars)},
		{"Protein", grams(r.Raw.Protein)},
		{"Calories", fmt.Sprintf("%d kcal", r.Derived.Calories)},
		{"Water", fmt.Sprintf("%dg", r.Derived.WaterGrams)},
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
