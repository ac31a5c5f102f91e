// Package http provides the HTTP presentation layer over the expense store.
//
// This file implements utilities for parsing and validating request bodies.
// Both JSON and form-encoded bodies are accepted by every mutating endpoint.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"iexpense/internal/core"
)

const maxBodyBytes = 1 << 16 // 64KB

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.Contains(p.contentType, "application/json") || body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetAll returns every value for key. JSON arrays and repeated form fields
// both work, and comma-separated values are split.
func (p *RequestBodyParser) GetAll(key string) []string {
	var raw []string
	if p.jsonData != nil {
		switch val := p.jsonData[key].(type) {
		case []interface{}:
			for _, v := range val {
				raw = append(raw, stringValue(v))
			}
		case nil:
		default:
			raw = append(raw, stringValue(val))
		}
	} else if p.formData != nil {
		raw = p.formData[key]
	}

	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = sanitizeInput(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseRecordInput builds a new record from name, type and amount fields and
// validates it. The amount defaults to zero when left blank.
func ParseRecordInput(p *RequestBodyParser) (core.ExpenseRecord, error) {
	category, err := core.ParseCategory(p.Get("type"))
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.ExpenseRecord{}, err
	}

	rec := core.NewRecord(p.Get("name"), category, amount)
	if err := rec.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}
	return rec, nil
}

var errNoIndices = errors.New("no indices given")

// ParseIndices reads the "indices" field as a list of integers.
func ParseIndices(p *RequestBodyParser) ([]int, error) {
	values := p.GetAll("indices")
	if len(values) == 0 {
		return nil, errNoIndices
	}
	out := make([]int, 0, len(values))
	for _, v := range values {
		i, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q", v)
		}
		out = append(out, i)
	}
	return out, nil
}
