// Package docstore serves flat JSON collections over HTTP with the same
// URL and reply conventions as the hosted document endpoint:
//
//	POST   /{collection}.json       -> {"name": "<id>"}
//	GET    /{collection}.json       -> {"<id>": {...}, ...} or null
//	GET    /{collection}/{id}.json  -> {...} or null
//	PUT    /{collection}/{id}.json  -> the stored body
//	DELETE /{collection}/{id}.json  -> null
//
// Local backends mount it so the budget client can run without the hosted
// service.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	applog "presupuestos/internal/log"
)

// Store persists JSON documents by collection and id.
type Store interface {
	InsertDocument(ctx context.Context, collection string, doc json.RawMessage) (id string, err error)
	// Document returns ok=false when the document does not exist.
	Document(ctx context.Context, collection, id string) (doc json.RawMessage, ok bool, err error)
	Documents(ctx context.Context, collection string) (map[string]json.RawMessage, error)
	PutDocument(ctx context.Context, collection, id string, doc json.RawMessage) error
	// DeleteDocument is a no-op for missing documents.
	DeleteDocument(ctx context.Context, collection, id string) error
}

// TokenVerifier checks the auth query parameter.
type TokenVerifier func(ctx context.Context, token string) error

const maxBodyBytes = 1 << 20

// Handler serves a Store.
type Handler struct {
	store       Store
	collections map[string]struct{}
	verify      TokenVerifier
	logger      *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithTokenVerifier requires a valid ?auth= token on every request.
func WithTokenVerifier(v TokenVerifier) Option {
	return func(h *Handler) { h.verify = v }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler serves the given collections of store.
func NewHandler(store Store, collections []string, opts ...Option) *Handler {
	h := &Handler{
		store:       store,
		collections: make(map[string]struct{}, len(collections)),
		logger:      slog.Default(),
	}
	for _, c := range collections {
		h.collections[c] = struct{}{}
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := parsePath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if _, known := h.collections[collection]; !known {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	if h.verify != nil {
		if err := h.verify(r.Context(), r.URL.Query().Get("auth")); err != nil {
			h.logger.WarnContext(r.Context(), "Rejected document request",
				applog.FieldPath, r.URL.Path,
				applog.FieldError, err)
			writeError(w, http.StatusUnauthorized, "Permission denied")
			return
		}
	}

	if id == "" {
		h.serveCollection(w, r, collection)
		return
	}
	h.serveItem(w, r, collection, id)
}

func (h *Handler) serveCollection(w http.ResponseWriter, r *http.Request, collection string) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		docs, err := h.store.Documents(ctx, collection)
		if err != nil {
			h.internal(w, r, applog.OpList, err)
			return
		}
		if len(docs) == 0 {
			writeRaw(w, http.StatusOK, nil)
			return
		}
		writeJSON(w, http.StatusOK, docs)
	case http.MethodPost:
		doc, ok := readDoc(w, r)
		if !ok {
			return
		}
		id, err := h.store.InsertDocument(ctx, collection, doc)
		if err != nil {
			h.internal(w, r, applog.OpCreate, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"name": id})
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *Handler) serveItem(w http.ResponseWriter, r *http.Request, collection, id string) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		doc, found, err := h.store.Document(ctx, collection, id)
		if err != nil {
			h.internal(w, r, applog.OpRead, err)
			return
		}
		if !found {
			writeRaw(w, http.StatusOK, nil)
			return
		}
		writeRaw(w, http.StatusOK, doc)
	case http.MethodPut:
		doc, ok := readDoc(w, r)
		if !ok {
			return
		}
		if err := h.store.PutDocument(ctx, collection, id, doc); err != nil {
			h.internal(w, r, applog.OpUpdate, err)
			return
		}
		writeRaw(w, http.StatusOK, doc)
	case http.MethodDelete:
		if err := h.store.DeleteDocument(ctx, collection, id); err != nil {
			h.internal(w, r, applog.OpDelete, err)
			return
		}
		writeRaw(w, http.StatusOK, nil)
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "Document store failure",
		applog.FieldOperation, op,
		applog.FieldPath, r.URL.Path,
		applog.FieldError, err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// parsePath splits /{collection}.json and /{collection}/{id}.json.
func parsePath(p string) (collection, id string, ok bool) {
	p = strings.TrimPrefix(p, "/")
	if !strings.HasSuffix(p, ".json") {
		return "", "", false
	}
	p = strings.TrimSuffix(p, ".json")
	parts := strings.Split(p, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", parts[0] != ""
	case 2:
		return parts[0], parts[1], parts[0] != "" && parts[1] != ""
	default:
		return "", "", false
	}
}

var errInvalidJSON = errors.New("Invalid data; couldn't parse JSON object, array, or value.")

func readDoc(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
		return nil, false
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, errInvalidJSON.Error())
		return nil, false
	}
	return json.RawMessage(body), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeRaw(w, status, b)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	if len(body) == 0 {
		body = []byte("null")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	b, _ := json.Marshal(map[string]string{"error": msg})
	writeRaw(w, status, b)
}
