// Package domain contains the core entities of the scan-to-history pipeline
// and the ports its adapters implement.
package domain

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// NutriScore is the A-E front-of-pack grade reported by the recognizer.
type NutriScore string

// Nutri-Score grades.
const (
	NutriScoreA NutriScore = "A"
	NutriScoreB NutriScore = "B"
	NutriScoreC NutriScore = "C"
	NutriScoreD NutriScore = "D"
	NutriScoreE NutriScore = "E"
)

// ParseNutriScore normalises s and reports whether it is a known grade.
func ParseNutriScore(s string) (NutriScore, bool) {
	switch g := NutriScore(strings.ToUpper(strings.TrimSpace(s))); g {
	case NutriScoreA, NutriScoreB, NutriScoreC, NutriScoreD, NutriScoreE:
		return g, true
	}
	return "", false
}

// Recognizer field names, as the backend spells them.
const (
	FieldFat           = "fat_100g"
	FieldSaturatedFat  = "saturated-fat_100g"
	FieldTransFat      = "trans-fat_100g"
	FieldCholesterol   = "cholesterol_100g"
	FieldSodium        = "sodium_100g"
	FieldCarbohydrates = "carbohydrates_100g"
	FieldFiber         = "fiber_100g"
	FieldSugars        = "sugars_100g"
	FieldProteins      = "proteins_100g"
	FieldNutriScore    = "nutri_score"
)

// RawNutrition is the per-100 g profile produced by the remote recognizer.
// Missing lists the recognizer fields that were absent from the response;
// their values are zero.
type RawNutrition struct {
	Fat           float64    `json:"fat"`
	SaturatedFat  float64    `json:"saturatedFat"`
	TransFat      float64    `json:"transFat"`
	Cholesterol   float64    `json:"cholesterol"`
	Sodium        float64    `json:"sodium"`
	Carbohydrates float64    `json:"carbohydrates"`
	Fiber         float64    `json:"fiber"`
	Sugars        float64    `json:"sugars"`
	Protein       float64    `json:"protein"`
	NutriScore    NutriScore `json:"nutriScore"`
	Missing       []string   `json:"missing,omitempty"`
}

// Validate rejects profiles that cannot describe 100 g of food: negative
// amounts, or more than 100 g of protein, carbohydrates and fat together.
// Derive would otherwise produce negative water content.
func (r RawNutrition) Validate() error {
	values := []struct {
		name string
		v    float64
	}{
		{FieldFat, r.Fat},
		{FieldSaturatedFat, r.SaturatedFat},
		{FieldTransFat, r.TransFat},
		{FieldCholesterol, r.Cholesterol},
		{FieldSodium, r.Sodium},
		{FieldCarbohydrates, r.Carbohydrates},
		{FieldFiber, r.Fiber},
		{FieldSugars, r.Sugars},
		{FieldProteins, r.Protein},
	}
	for _, f := range values {
		if f.v < 0 || math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s out of range: %v", f.name, f.v)
		}
	}
	if sum := r.macroSum(); sum > 100 {
		return fmt.Errorf("protein, carbohydrates and fat add up to %.1fg per 100g", sum)
	}
	return nil
}

// IsMissing reports whether the recognizer omitted field.
func (r RawNutrition) IsMissing(field string) bool {
	return containsString(r.Missing, field)
}

func (r RawNutrition) macroSum() float64 {
	return r.Protein + r.Carbohydrates + r.Fat
}

// DerivedMetrics are computed locally from a RawNutrition.
type DerivedMetrics struct {
	Calories   int `json:"calories"`
	WaterGrams int `json:"waterGrams"`
}

const (
	kcalPerGramProtein = 4
	kcalPerGramCarbs   = 4
	kcalPerGramFat     = 9
	waterFactor        = 0.7
	basisGrams         = 100
)

// Derive computes calories and the estimated water content of 100 g.
func Derive(r RawNutrition) DerivedMetrics {
	kcal := r.Protein*kcalPerGramProtein + r.Carbohydrates*kcalPerGramCarbs + r.Fat*kcalPerGramFat
	water := (basisGrams - r.macroSum()) * waterFactor
	return DerivedMetrics{
		Calories:   int(math.Round(kcal)),
		WaterGrams: int(math.Round(water)),
	}
}

// Recognizer is the port for the remote label-recognition service.
type Recognizer interface {
	Recognize(ctx context.Context, sess Session, img CapturedImage) (RawNutrition, error)
}
