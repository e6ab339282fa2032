// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for reading request bodies. Browsers post
// the session forms either as JSON or form-encoded; budget records are
// always JSON objects.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"presupuestos/internal/core"
)

const maxBodyBytes = 1 << 20

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most 1MB of the request body once and
// keeps it for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as a JSON object or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(trimmed, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("decode json body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns a trimmed, sanitized string value.
func (p *RequestBodyParser) Get(key string) string {
	return strings.TrimSpace(sanitizeInput(p.Raw(key)))
}

// Raw returns the value exactly as sent. Passwords are read with Raw so
// surrounding spaces reach the validator.
func (p *RequestBodyParser) Raw(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return stringValue(val)
		}
		return ""
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// Bool returns key as a boolean; absent or unparsable values are false.
func (p *RequestBodyParser) Bool(key string) bool {
	if p.jsonData != nil {
		if b, ok := p.jsonData[key].(bool); ok {
			return b
		}
	}
	b, _ := strconv.ParseBool(p.Get(key))
	return b
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
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

// ParseCredential reads the email/password pair of a session form.
func ParseCredential(w http.ResponseWriter, r *http.Request) (core.Credential, error) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return core.Credential{}, err
	}
	return core.Credential{
		Email:    p.Get("email"),
		Password: p.Raw("password"),
	}, nil
}

var errNotObject = errors.New("presupuesto must be a JSON object")

// ParsePresupuesto reads a budget record. Anything but a JSON object is
// rejected.
func ParsePresupuesto(w http.ResponseWriter, r *http.Request) (core.Presupuesto, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, errNotObject
	}
	var record core.Presupuesto
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("decode presupuesto: %w", err)
	}
	return record, nil
}
