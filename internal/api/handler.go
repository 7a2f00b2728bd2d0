// Package api serves a preference store over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/prefstate/pkg/datastore"
	"github.com/kalambet/prefstate/pkg/preference"
)

const maxRequestBodySize = 1 << 20 // 1MB

type Deps struct {
	Store *datastore.Store
	// Token enables bearer auth on /preferences when non-empty.
	Token  string
	Logger *slog.Logger
}

// SnapshotResponse is the body of GET /preferences.
type SnapshotResponse struct {
	Version uint64                     `json:"version"`
	ID      string                     `json:"id"`
	Entries map[string]datastore.Entry `json:"entries"`
}

// EntryResponse is the body of single-preference responses.
type EntryResponse struct {
	Name  string         `json:"name"`
	Kind  datastore.Kind `json:"kind"`
	Value string         `json:"value"`
}

// Event is one server-sent event on /preferences/{name}/events.
type Event struct {
	Name    string         `json:"name"`
	Present bool           `json:"present"`
	Kind    datastore.Kind `json:"kind,omitempty"`
	Value   string         `json:"value,omitempty"`
}

func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Route("/preferences", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token, deps.Logger))
		}
		r.Get("/", handleList(deps))
		r.Get("/{name}", handleGet(deps))
		r.Put("/{name}", handlePut(deps))
		r.Delete("/{name}", handleDelete(deps))
		r.Get("/{name}/events", handleEvents(deps))
	})
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleList(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := deps.Store.Snapshot()
		writeJSON(w, http.StatusOK, SnapshotResponse{
			Version: p.Version(),
			ID:      p.ID(),
			Entries: p.Entries(),
		})
	}
}

func handleGet(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		e, ok := deps.Store.Snapshot().Entry(name)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "preference %q not set", name)
			return
		}
		writeJSON(w, http.StatusOK, EntryResponse{Name: name, Kind: e.Kind, Value: e.Value})
	}
}

func handlePut(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var e datastore.Entry
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		_, err := deps.Store.Edit(r.Context(), func(m *datastore.MutablePreferences) error {
			return m.SetEntry(name, e)
		})
		if err != nil {
			writeEditError(w, deps, name, err)
			return
		}
		writeJSON(w, http.StatusOK, EntryResponse{Name: name, Kind: e.Kind, Value: e.Value})
	}
}

func handleDelete(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		_, err := deps.Store.Edit(r.Context(), func(m *datastore.MutablePreferences) error {
			return m.Remove(name)
		})
		if err != nil {
			writeEditError(w, deps, name, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeEditError(w http.ResponseWriter, deps Deps, name string, err error) {
	switch {
	case errors.Is(err, datastore.ErrInvalidName), errors.Is(err, datastore.ErrInvalidEntry):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, datastore.ErrClosed):
		httpError(w, http.StatusServiceUnavailable, "api_error", "store is shutting down")
	default:
		deps.Logger.Error("preference write failed", "name", name, "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "failed to write %q: %v", name, err)
	}
}

// handleEvents streams the preference's value as server-sent events: one
// immediately, then one per change, until the client goes away.
func handleEvents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := datastore.ValidateName(name); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		b := preference.Bind(r.Context(), deps.Store, datastore.RawKey(name))
		stream := b.Observe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		for {
			e := stream.Value()
			data, _ := json.Marshal(Event{Name: name, Present: e.Kind != "", Kind: e.Kind, Value: e.Value})
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()

			select {
			case <-r.Context().Done():
				return
			case <-stream.Changes():
				stream.Next()
			}
		}
	}
}
