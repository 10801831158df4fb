// Package statusapi serves a read-only HTTP view of a coordinator:
// sessions, workers, relays, archived tours and Prometheus metrics.
package statusapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/katalvlaran/tspgrid/archive"
	"github.com/katalvlaran/tspgrid/dispatch"
)

// Lister is the archive surface used by the API.
type Lister interface {
	List() ([]archive.Entry, error)
}

type api struct {
	coord   *dispatch.Coordinator
	archive Lister
	log     *slog.Logger
}

// NewHandler builds the router. arch may be nil.
func NewHandler(coord *dispatch.Coordinator, arch Lister, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	a := &api{coord: coord, archive: arch, log: log.With("component", "statusapi")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(coord.Metrics().Registry, promhttp.HandlerOpts{}))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "use a versioned path like /api/v1/...")
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Get("/sessions", a.listSessions)
		v1.Get("/sessions/{sessionId}", a.getSession)
		v1.Get("/workers", a.listWorkers)
		v1.Get("/relays", a.listRelays)
		v1.Get("/archive", a.listArchive)
	})

	return r
}

func (a *api) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.coord.Sessions())
}

func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	info, ok := a.coord.Session(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown session "+id)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *api) listWorkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.coord.Workers())
}

func (a *api) listRelays(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.coord.Relays())
}

func (a *api) listArchive(w http.ResponseWriter, _ *http.Request) {
	if a.archive == nil {
		writeJSON(w, http.StatusOK, []archive.Entry{})
		return
	}
	entries, err := a.archive.List()
	if err != nil {
		a.log.Error("list archive", "error", err)
		writeError(w, http.StatusInternalServerError, "archive", err.Error())
		return
	}
	if entries == nil {
		entries = []archive.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, map[string]string{"error": kind, "message": msg})
}
