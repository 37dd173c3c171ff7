package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"

	"nutrifacts/internal/domain"
)

const (
	uploadField    = "image"
	uploadFileName = "photo.jpg"
	uploadMIMEType = "image/jpeg"
)

type scanData struct {
	Fat           *amount `json:"fat_100g"`
	SaturatedFat  *amount `json:"saturated-fat_100g"`
	TransFat      *amount `json:"trans-fat_100g"`
	Cholesterol   *amount `json:"cholesterol_100g"`
	Sodium        *amount `json:"sodium_100g"`
	Carbohydrates *amount `json:"carbohydrates_100g"`
	Fiber         *amount `json:"fiber_100g"`
	Sugars        *amount `json:"sugars_100g"`
	Proteins      *amount `json:"proteins_100g"`
	NutriScore    *string `json:"nutri_score"`
}

type scanResponse struct {
	Success bool      `json:"success"`
	Data    *scanData `json:"data"`
}

// Recognize uploads the captured image and returns the nutrition profile the
// backend read from it. Fields the backend omitted are listed in Missing.
func (c *Client) Recognize(ctx context.Context, sess domain.Session, img domain.CapturedImage) (domain.RawNutrition, error) {
	tok, err := bearer(sess)
	if err != nil {
		return domain.RawNutrition{}, err
	}

	body, contentType, err := imageForm(img.Path())
	if err != nil {
		return domain.RawNutrition{}, fmt.Errorf("%w: %w", domain.ErrRecognitionFailed, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, PathScanImage, body)
	if err != nil {
		return domain.RawNutrition{}, err
	}
	req.Header.Set("Content-Type", contentType)
	authorize(req, tok)

	status, respBody, err := c.do(req, domain.ErrRecognitionFailed)
	if err != nil {
		return domain.RawNutrition{}, err
	}

	var out scanResponse
	if err := decodeJSON(respBody, &out); err != nil {
		return domain.RawNutrition{}, &domain.RemoteError{Kind: domain.ErrRecognitionFailed, Status: status, Err: err}
	}
	if !out.Success {
		return domain.RawNutrition{}, &domain.RemoteError{Kind: domain.ErrRecognitionFailed, Status: status, Message: messageFrom(respBody)}
	}
	if out.Data == nil {
		return domain.RawNutrition{}, &domain.RemoteError{Kind: domain.ErrRecognitionFailed, Status: status, Message: "response carries no nutrition data"}
	}

	raw := out.Data.toDomain()
	if err := raw.Validate(); err != nil {
		return domain.RawNutrition{}, &domain.RemoteError{Kind: domain.ErrRecognitionFailed, Status: status, Message: err.Error()}
	}
	return raw, nil
}

func (d *scanData) toDomain() domain.RawNutrition {
	var raw domain.RawNutrition
	fields := []struct {
		name string
		src  *amount
		dst  *float64
	}{
		{domain.FieldFat, d.Fat, &raw.Fat},
		{domain.FieldSaturatedFat, d.SaturatedFat, &raw.SaturatedFat},
		{domain.FieldTransFat, d.TransFat, &raw.TransFat},
		{domain.FieldCholesterol, d.Cholesterol, &raw.Cholesterol},
		{domain.FieldSodium, d.Sodium, &raw.Sodium},
		{domain.FieldCarbohydrates, d.Carbohydrates, &raw.Carbohydrates},
		{domain.FieldFiber, d.Fiber, &raw.Fiber},
		{domain.FieldSugars, d.Sugars, &raw.Sugars},
		{domain.FieldProteins, d.Proteins, &raw.Protein},
	}
	for _, f := range fields {
		if f.src == nil {
			raw.Missing = append(raw.Missing, f.name)
			continue
		}
		*f.dst = float64(*f.src)
	}

	if d.NutriScore != nil {
		if g, ok := domain.ParseNutriScore(*d.NutriScore); ok {
			raw.NutriScore = g
		}
	}
	if raw.NutriScore == "" {
		raw.Missing = append(raw.Missing, domain.FieldNutriScore)
	}
	return raw
}

// imageForm builds the single-part multipart body the scan endpoint expects.
func imageForm(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading captured image: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, uploadFileName))
	h.Set("Content-Type", uploadMIMEType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading captured image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
