package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"iexpense/internal/core"
	"iexpense/internal/expense"
	"iexpense/internal/kv/memory"
	"iexpense/internal/log"
)

func newTestServer(t *testing.T) (*Server, *expense.Store, *memory.Store) {
	t.Helper()
	backend := memory.New()
	store := expense.New(context.Background(), backend, expense.DefaultKey, expense.WithLogger(log.Discard()))
	srv := NewServer(":0", store, Options{CurrencyCode: "USD", Logger: log.Discard()})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store, backend
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func addRecord(t *testing.T, store *expense.Store, name string, c core.Category, amount string) core.ExpenseRecord {
	t.Helper()
	r := core.NewRecord(name, c, decimal.RequireFromString(amount))
	if err := store.Add(context.Background(), r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return r
}

func TestIndexAndHealth(t *testing.T) {
	srv, store, _ := newTestServer(t)
	addRecord(t, store, "Rent", core.Business, "1200")
	addRecord(t, store, "Coffee", core.Personal, "3.5")

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Rent", "$1,200.00", "amount high", "Coffee", "$3.50", "amount low", "Add new expense"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected security headers on index")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	srv, store, _ := newTestServer(t)

	tests := []struct {
		name string
		form url.Values
		want int
	}{
		{"invalid amount", url.Values{"name": {"x"}, "type": {"personal"}, "amount": {"abc"}}, http.StatusUnprocessableEntity},
		{"negative amount", url.Values{"name": {"x"}, "type": {"personal"}, "amount": {"-1"}}, http.StatusUnprocessableEntity},
		{"missing name", url.Values{"type": {"personal"}, "amount": {"1"}}, http.StatusUnprocessableEntity},
		{"unknown type", url.Values{"name": {"x"}, "type": {"travel"}, "amount": {"1"}}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(srv, postForm("/expenses", tt.form))
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			if !strings.Contains(rr.Body.String(), "Add new expense") {
				t.Error("expected form to be re-rendered")
			}
		})
	}
	if store.Len() != 0 {
		t.Fatalf("rejected input must not reach the store, have %d records", store.Len())
	}

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/expenses", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestCreateExpenseFormRedirects(t *testing.T) {
	srv, store, _ := newTestServer(t)

	rr := serve(srv, postForm("/expenses", url.Values{"name": {"Rent"}, "type": {"business"}, "amount": {"1200"}}))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", store.Len())
	}
}

func TestCreateExpenseJSON(t *testing.T) {
	srv, store, _ := newTestServer(t)

	rr := serve(srv, postJSON("/expenses", `{"name":"Coffee","type":"personal","amount":3.5}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Record struct {
			ID     string      `json:"id"`
			Name   string      `json:"name"`
			Type   string      `json:"type"`
			Amount json.Number `json:"amount"`
			Tier   string      `json:"tier"`
		} `json:"record"`
		Warning string `json:"warning"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Record.Name != "Coffee" || resp.Record.Type != "personal" || resp.Record.Amount != "3.5" {
		t.Errorf("unexpected record %+v", resp.Record)
	}
	if resp.Record.Tier != "low" {
		t.Errorf("tier = %q, want low", resp.Record.Tier)
	}
	if resp.Warning != "" || rr.Header().Get(PersistWarningHeader) != "" {
		t.Error("unexpected persist warning")
	}

	got := store.Records()
	if len(got) != 1 || got[0].ID.String() != resp.Record.ID {
		t.Fatalf("store does not hold the created record: %+v", got)
	}
}

func TestCreateExpenseBlankAmountDefaultsToZero(t *testing.T) {
	srv, store, _ := newTestServer(t)

	rr := serve(srv, postJSON("/expenses", `{"name":"Gift","type":"personal","amount":""}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if !store.Records()[0].Amount.IsZero() {
		t.Errorf("amount = %s, want 0", store.Records()[0].Amount)
	}
}

func TestCreateExpensePersistWarning(t *testing.T) {
	srv, store, backend := newTestServer(t)
	backend.FailWrites(errors.New("disk full"))

	rr := serve(srv, postJSON("/expenses", `{"name":"Rent","type":"business","amount":"1200"}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if rr.Header().Get(PersistWarningHeader) == "" {
		t.Error("expected persist warning header")
	}
	if !strings.Contains(rr.Body.String(), `"warning"`) {
		t.Error("expected warning field in body")
	}
	if store.Len() != 1 {
		t.Error("record should remain in memory after a failed write")
	}

	rr = serve(srv, postForm("/expenses", url.Values{"name": {"Tea"}, "type": {"personal"}}))
	if loc := rr.Header().Get("Location"); loc != "/?warning=persist" {
		t.Errorf("Location = %q", loc)
	}
	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/?warning=persist", nil))
	if !strings.Contains(rr.Body.String(), persistWarning) {
		t.Error("expected warning banner on index")
	}
}

type listResponse map[string][]struct {
	Name   string      `json:"name"`
	Type   string      `json:"type"`
	Amount json.Number `json:"amount"`
}

func TestListExpenses(t *testing.T) {
	srv, store, _ := newTestServer(t)
	addRecord(t, store, "Rent", core.Business, "1200")
	addRecord(t, store, "Coffee", core.Personal, "3.5")
	addRecord(t, store, "Flight", core.Business, "300")

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var all listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all["business"]) != 2 || all["business"][0].Name != "Rent" || all["business"][1].Name != "Flight" {
		t.Errorf("business view = %+v", all["business"])
	}
	if len(all["personal"]) != 1 || all["personal"][0].Name != "Coffee" {
		t.Errorf("personal view = %+v", all["personal"])
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/expenses?category=Personal", nil))
	var one listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &one); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := one["business"]; ok || len(one["personal"]) != 1 {
		t.Errorf("filtered view = %+v", one)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/expenses?category=travel", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestListExpensesEmptyViewsAreArrays(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))
	body := rr.Body.String()
	if !strings.Contains(body, `"business":[]`) || !strings.Contains(body, `"personal":[]`) {
		t.Errorf("expected empty arrays, got %s", body)
	}
}

func TestListExpensesETagTracksMutations(t *testing.T) {
	srv, store, _ := newTestServer(t)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))
	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set("If-None-Match", etag)
	if rr := serve(srv, req); rr.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", rr.Code)
	}

	addRecord(t, store, "Rent", core.Business, "1200")
	if srv.Version() != 1 {
		t.Errorf("Version() = %d, want 1", srv.Version())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set("If-None-Match", etag)
	rr = serve(srv, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 after mutation, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Rent") {
		t.Error("stale view served after mutation")
	}
}

func TestRemoveIndices(t *testing.T) {
	srv, store, _ := newTestServer(t)
	addRecord(t, store, "A", core.Personal, "1")
	addRecord(t, store, "B", core.Business, "2")
	addRecord(t, store, "C", core.Personal, "3")

	rr := serve(srv, postJSON("/expenses/remove", `{"indices":[2,0,0,9]}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", rr.Code, rr.Body.String())
	}
	var resp removeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
	if got := store.Records(); len(got) != 1 || got[0].Name != "B" {
		t.Errorf("remaining = %+v", got)
	}

	rr = serve(srv, postForm("/expenses/remove", url.Values{"indices": {"0"}}))
	if rr.Code != http.StatusOK || store.Len() != 0 {
		t.Fatalf("form removal failed: status=%d len=%d", rr.Code, store.Len())
	}

	rr = serve(srv, postForm("/expenses/remove", url.Values{}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without indices, got %d", rr.Code)
	}
}

func TestDeleteExpense(t *testing.T) {
	srv, store, _ := newTestServer(t)
	rent := addRecord(t, store, "Rent", core.Business, "1200")
	coffee := addRecord(t, store, "Coffee", core.Personal, "3.5")

	rr := serve(srv, httptest.NewRequest(http.MethodDelete, "/expenses/"+rent.ID.String(), nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := store.Records(); len(got) != 1 || got[0].ID != coffee.ID {
		t.Fatalf("remaining = %+v", got)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodDelete, "/expenses/"+rent.ID.String(), nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodDelete, "/expenses/not-a-uuid", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = serve(srv, postForm("/expenses/"+coffee.ID.String()+"/delete", url.Values{}))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}
