package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"iexpense/internal/core"
)

// PersistWarningHeader carries a storage write failure on otherwise
// successful mutations.
const PersistWarningHeader = "X-Persist-Warning"

const persistWarning = "change applied but could not be saved to storage"

// recordView is the presentation shape of one record, shared by the JSON API
// and the HTML page.
type recordView struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Category string      `json:"type"`
	Amount   json.Number `json:"amount"`
	Display  string      `json:"display"`
	Tier     string      `json:"tier"`
}

func newRecordView(r core.ExpenseRecord, currency string) recordView {
	return recordView{
		ID:       r.ID.String(),
		Name:     r.Name,
		Category: string(r.Category),
		Amount:   json.Number(r.Amount.String()),
		Display:  core.FormatAmount(r.Amount, currency),
		Tier:     string(core.Tier(r.Amount)),
	}
}

func newRecordViews(records []core.ExpenseRecord, currency string) []recordView {
	out := make([]recordView, len(records))
	for i, r := range records {
		out[i] = newRecordView(r, currency)
	}
	return out
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// setPersistWarning marks the response when err is a storage failure and
// returns the warning text for the body.
func setPersistWarning(w http.ResponseWriter, err error) string {
	if err == nil {
		return ""
	}
	w.Header().Set(PersistWarningHeader, persistWarning)
	return persistWarning
}
