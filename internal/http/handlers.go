package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"iexpense/internal/core"
	"iexpense/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady reports whether templates loaded. The store itself is always
// usable once constructed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"records":  s.store.Len(),
		"requests": s.tracer.GetMetrics().TotalRequests,
	}
	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}

type columnView struct {
	Title    string
	Category string
	Records  []recordView
	Total    string
}

type indexData struct {
	Columns []columnView
	Warning string
	Error   string
	Form    formValues
}

// CategoryLabel returns the display label for a wire category value.
func (indexData) CategoryLabel(category string) string {
	return core.Category(category).String()
}

type formValues struct {
	Name     string
	Category string
	Amount   string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := s.indexData()
	if r.URL.Query().Get("warning") == "persist" {
		data.Warning = persistWarning
	}
	s.renderIndex(w, r, http.StatusOK, data)
}

func (s *Server) indexData() indexData {
	data := indexData{
		Form: formValues{Category: string(core.Personal), Amount: "0"},
	}
	for _, c := range core.Categories() {
		records := s.store.CategoryView(c)
		total := decimal.Zero
		for _, rec := range records {
			total = total.Add(rec.Amount)
		}
		data.Columns = append(data.Columns, columnView{
			Title:    c.String(),
			Category: string(c),
			Records:  newRecordViews(records, s.currency),
			Total:    core.FormatAmount(total, s.currency),
		})
	}
	return data
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, data indexData) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to render index",
			log.FieldOperation, log.OpRender, log.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// handleListExpenses serves the category views as JSON. Responses carry an
// ETag derived from the mutation counter.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	categories := core.Categories()
	key := "all"
	if q := r.URL.Query().Get("category"); q != "" {
		c, err := core.ParseCategory(q)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		categories = []core.Category{c}
		key = string(c)
	}

	version := s.version.Load()
	etag := fmt.Sprintf(`"v%d"`, version)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	cacheKey := fmt.Sprintf("%s@%d", key, version)
	body, ok := s.views.Get(cacheKey)
	if !ok {
		views := make(map[string][]recordView, len(categories))
		for _, c := range categories {
			views[string(c)] = newRecordViews(s.store.CategoryView(c), s.currency)
		}
		var err error
		body, err = json.Marshal(views)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode records")
			return
		}
		s.views.Set(cacheKey, body)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type createResponse struct {
	Record  recordView `json:"record"`
	Warning string     `json:"warning,omitempty"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.badInput(w, r, p, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := ParseRecordInput(p)
	if err != nil {
		logger.WarnContext(ctx, "Rejected expense input",
			log.FieldOperation, log.OpValidate, log.FieldError, err)
		s.badInput(w, r, p, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	perr := s.store.Add(ctx, rec)
	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, createResponse{
			Record:  newRecordView(rec, s.currency),
			Warning: setPersistWarning(w, perr),
		})
		return
	}
	s.redirectHome(w, r, perr)
}

type removeResponse struct {
	Count   int    `json:"count"`
	Warning string `json:"warning,omitempty"`
}

// handleRemoveIndices removes records by position in the full sequence.
func (s *Server) handleRemoveIndices(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	indices, err := ParseIndices(p)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	perr := s.store.Remove(r.Context(), indices...)
	writeJSON(w, http.StatusOK, removeResponse{
		Count:   s.store.Len(),
		Warning: setPersistWarning(w, perr),
	})
}

// handleDeleteExpense removes one record by id. It serves both the DELETE
// API and the HTML form fallback.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	if !s.hasRecord(id) {
		writeJSONError(w, http.StatusNotFound, "record not found")
		return
	}

	perr := s.store.RemoveIDs(r.Context(), id)
	if r.Method == http.MethodPost && !wantsJSON(r) {
		s.redirectHome(w, r, perr)
		return
	}
	if perr != nil {
		writeJSON(w, http.StatusOK, removeResponse{
			Count:   s.store.Len(),
			Warning: setPersistWarning(w, perr),
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) hasRecord(id uuid.UUID) bool {
	for _, rec := range s.store.Records() {
		if rec.ID == id {
			return true
		}
	}
	return false
}

// badInput answers a rejected create with JSON or by re-rendering the form.
func (s *Server) badInput(w http.ResponseWriter, r *http.Request, p *RequestBodyParser, status int, msg string) {
	if wantsJSON(r) || p.IsJSON() {
		writeJSONError(w, status, msg)
		return
	}
	data := s.indexData()
	data.Error = msg
	data.Form = formValues{Name: p.Get("name"), Category: p.Get("type"), Amount: p.Get("amount")}
	s.renderIndex(w, r, status, data)
}

func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request, perr error) {
	target := "/"
	if perr != nil {
		w.Header().Set(PersistWarningHeader, persistWarning)
		target = "/?warning=persist"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		return "name is required"
	case errors.Is(err, core.ErrNegativeAmount):
		return "amount must not be negative"
	case errors.Is(err, core.ErrInvalidAmount):
		return "amount must be a number"
	case errors.Is(err, core.ErrInvalidCategory):
		return "type must be business or personal"
	default:
		return err.Error()
	}
}
