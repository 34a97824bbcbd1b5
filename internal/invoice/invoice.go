// Package invoice turns the output of an invoice-reading model into a cost draft that a
// person confirms before it is saved.
package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/PeacockIllustrated/project-manager/internal/store"
)

var ErrExtraction = errors.New("invoice extraction failed")

// Prompt is sent alongside the image. Models are asked for JSON matching Data.
const Prompt = "Analyze this invoice or receipt image. Extract the vendor name, the invoice date (formatted as YYYY-MM-DD), and the final total amount."

type Data struct {
	Vendor      string   `json:"vendor" validate:"required"`
	Date        string   `json:"date" validate:"required,datetime=2006-01-02"`
	TotalAmount *float64 `json:"totalAmount" validate:"required,gte=0"`
}

// Extractor reads an invoice image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (Data, error)
}

type ExtractorFunc func(ctx context.Context, image []byte, mimeType string) (Data, error)

func (f ExtractorFunc) Extract(ctx context.Context, image []byte, mimeType string) (Data, error) {
	return f(ctx, image, mimeType)
}

var validate = validator.New()

// Decode parses and checks a model response. Code fences around the JSON are tolerated.
func Decode(raw []byte) (Data, error) {
	raw = bytes.TrimSpace(raw)
	raw = bytes.TrimPrefix(raw, []byte("```json"))
	raw = bytes.TrimPrefix(raw, []byte("```"))
	raw = bytes.TrimSuffix(raw, []byte("```"))

	var d Data
	if err := json.Unmarshal(bytes.TrimSpace(raw), &d); err != nil {
		return Data{}, fmt.Errorf("%w: decode response: %v", ErrExtraction, err)
	}
	d.Vendor = strings.TrimSpace(d.Vendor)
	if err := d.Validate(); err != nil {
		return Data{}, err
	}
	return d, nil
}

func (d Data) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: response is missing required fields: %v", ErrExtraction, err)
	}
	return nil
}

// CostDraft converts extracted data into an unsaved material cost for projectID.
// documentID links the cost to the uploaded invoice and may be empty.
func (d Data) CostDraft(projectID, documentID string) store.CostItem {
	var amount float64
	if d.TotalAmount != nil {
		amount = *d.TotalAmount
	}
	return store.CostItem{
		ProjectID:   projectID,
		Description: "Invoice: " + d.Vendor,
		Amount:      amount,
		Type:        store.CostMaterial,
		Date:        d.Date + "T00:00:00Z",
		DocumentID:  documentID,
	}
}
