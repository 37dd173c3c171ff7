package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nutrifacts/internal/domain"
)

type savePayload struct {
	ProductName   string  `json:"product_name"`
	Brand         string  `json:"brand"`
	Category      string  `json:"category"`
	NutriScore    string  `json:"nutri_score"`
	Fat100g       float64 `json:"fat_100g"`
	SaturatedFat  float64 `json:"saturated-fat_100g"`
	TransFat      float64 `json:"trans-fat_100g"`
	Cholesterol   float64 `json:"cholesterol_100g"`
	Sodium        float64 `json:"sodium_100g"`
	Carbohydrates float64 `json:"carbohydrates_100g"`
	Fiber         float64 `json:"fiber_100g"`
	Sugars        float64 `json:"sugars_100g"`
	Proteins      float64 `json:"proteins_100g"`
	Calories      int     `json:"calories"`
	Protein       float64 `json:"protein"`
	Carbs         float64 `json:"carbs"`
	Fat           float64 `json:"fat"`
	Water         int     `json:"water"`
	Notes         string  `json:"notes"`
}

type saveResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		ProductID          identifier `json:"product_id"`
		NutritionHistoryID identifier `json:"nutrition_history_id"`
		UserID             identifier `json:"user_id"`
	} `json:"data"`
}

// historyItem is one entry of the history listing. Note the underscore
// spellings, which differ from the scan and save payloads.
type historyItem struct {
	ID            identifier `json:"id"`
	ProductName   string     `json:"product_name"`
	ScanDate      string     `json:"scan_date"`
	NutriScore    string     `json:"nutri_score"`
	Fat100g       amount     `json:"fat_100g"`
	SaturatedFat  amount     `json:"saturated_fat_100g"`
	TransFat      amount     `json:"trans_fat_100g"`
	Cholesterol   amount     `json:"cholesterol_100g"`
	Sodium        amount     `json:"sodium_100g"`
	Carbohydrates amount     `json:"carbohydrates_100g"`
	Fiber         amount     `json:"fiber_100g"`
	Sugars        amount     `json:"sugars_100g"`
	Proteins      amount     `json:"proteins_100g"`
}

var scanDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// SaveRecord archives rec in the user's history.
func (c *Client) SaveRecord(ctx context.Context, sess domain.Session, rec domain.NewRecord) (*domain.HistoryRecord, error) {
	tok, err := bearer(sess)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(toSavePayload(rec))
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, PathSaveNutrition, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	authorize(req, tok)

	status, body, err := c.do(req, domain.ErrPersistenceFailed)
	if err != nil {
		return nil, err
	}

	var out saveResponse
	if err := decodeJSON(body, &out); err != nil {
		return nil, &domain.RemoteError{Kind: domain.ErrPersistenceFailed, Status: status, Err: err}
	}
	if !out.Success {
		return nil, &domain.RemoteError{Kind: domain.ErrPersistenceFailed, Status: status, Message: messageFrom(body)}
	}

	saved := &domain.HistoryRecord{
		ProductName: rec.ProductName,
		Raw:         rec.Raw,
		Derived:     rec.Derived,
	}
	if out.Data != nil {
		saved.ID = string(out.Data.NutritionHistoryID)
	}
	return saved, nil
}

func toSavePayload(rec domain.NewRecord) savePayload {
	r := rec.Raw
	return savePayload{
		ProductName:   rec.ProductName,
		Brand:         rec.Brand,
		Category:      rec.Category,
		NutriScore:    string(r.NutriScore),
		Fat100g:       r.Fat,
		SaturatedFat:  r.SaturatedFat,
		TransFat:      r.TransFat,
		Cholesterol:   r.Cholesterol,
		Sodium:        r.Sodium,
		Carbohydrates: r.Carbohydrates,
		Fiber:         r.Fiber,
		Sugars:        r.Sugars,
		Proteins:      r.Protein,
		Calories:      rec.Derived.Calories,
		Protein:       r.Protein,
		Carbs:         r.Carbohydrates,
		Fat:           r.Fat,
		Water:         rec.Derived.WaterGrams,
		Notes:         rec.Notes,
	}
}

// ListHistory returns the user's records, newest first. Derived metrics are
// recomputed locally rather than trusted from the listing.
func (c *Client) ListHistory(ctx context.Context, sess domain.Session) ([]domain.HistoryRecord, error) {
	tok, err := bearer(sess)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, PathHistory, nil)
	if err != nil {
		return nil, err
	}
	authorize(req, tok)

	status, body, err := c.do(req, domain.ErrFetchFailed)
	if err != nil {
		return nil, err
	}

	var items []historyItem
	if err := decodeJSON(body, &items); err != nil {
		return nil, &domain.RemoteError{Kind: domain.ErrFetchFailed, Status: status, Err: err}
	}

	records := make([]domain.HistoryRecord, 0, len(items))
	for _, it := range items {
		records = append(records, it.toDomain())
	}
	return records, nil
}

func (it historyItem) toDomain() domain.HistoryRecord {
	raw := domain.RawNutrition{
		Fat:           float64(it.Fat100g),
		SaturatedFat:  float64(it.SaturatedFat),
		TransFat:      float64(it.TransFat),
		Cholesterol:   float64(it.Cholesterol),
		Sodium:        float64(it.Sodium),
		Carbohydrates: float64(it.Carbohydrates),
		Fiber:         float64(it.Fiber),
		Sugars:        float64(it.Sugars),
		Protein:       float64(it.Proteins),
	}
	if g, ok := domain.ParseNutriScore(it.NutriScore); ok {
		raw.NutriScore = g
	}
	return domain.HistoryRecord{
		ID:          string(it.ID),
		ProductName: it.ProductName,
		ScannedAt:   parseScanDate(it.ScanDate),
		Raw:         raw,
		Derived:     domain.Derive(raw),
	}
}

func parseScanDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range scanDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
