package expense

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"iexpense/internal/core"
)

// recordJSON is the persisted shape of one record. Amount is a bare JSON
// number, which decimal.Decimal does not produce on its own.
type recordJSON struct {
	ID     uuid.UUID   `json:"id"`
	Name   string      `json:"name"`
	Type   string      `json:"type"`
	Amount json.Number `json:"amount"`
}

// Encode serializes the full record sequence. A nil sequence encodes as [].
func Encode(records []core.ExpenseRecord) ([]byte, error) {
	out := make([]recordJSON, len(records))
	for i, r := range records {
		out[i] = recordJSON{
			ID:     r.ID,
			Name:   r.Name,
			Type:   string(r.Category),
			Amount: json.Number(r.Amount.String()),
		}
	}
	return json.Marshal(out)
}

// Decode parses a persisted blob. Any malformed record fails the whole blob.
func Decode(data []byte) ([]core.ExpenseRecord, error) {
	var in []recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}

	records := make([]core.ExpenseRecord, 0, len(in))
	for i, r := range in {
		if r.ID == uuid.Nil {
			return nil, fmt.Errorf("record %d: missing id", i)
		}
		category := core.Category(r.Type)
		if !category.IsValid() {
			return nil, fmt.Errorf("record %d: %w: %q", i, core.ErrInvalidCategory, r.Type)
		}
		if r.Amount == "" {
			return nil, fmt.Errorf("record %d: missing amount", i)
		}
		amount, err := decimal.NewFromString(r.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, errors.Join(core.ErrInvalidAmount, err))
		}
		records = append(records, core.ExpenseRecord{
			ID:       r.ID,
			Name:     r.Name,
			Category: category,
			Amount:   amount,
		})
	}
	return records, nil
}
