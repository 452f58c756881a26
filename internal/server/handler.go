package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mkazlausk/collabsync/internal/coord"
	"github.com/mkazlausk/collabsync/internal/session"
)

// ServerConfig holds configurable limits for the HTTP surface.
type ServerConfig struct {
	AdminToken string // guards the /api/sessions endpoints when set
}

// Handler creates the HTTP handler with all routes and middleware.
func Handler(hub *Hub, registry *session.Registry, cfg *ServerConfig, logger *slog.Logger) http.Handler {
	if cfg == nil {
		cfg = &ServerConfig{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	// Health endpoints (no auth)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleHealthz)

	// Collaboration transport
	mux.HandleFunc("GET /ws", hub.HandleWS)

	// Inspection endpoints
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/sessions", makeListSessionsHandler(registry))
	apiMux.HandleFunc("GET /api/sessions/{id}", makeGetSessionHandler(registry))
	apiMux.HandleFunc("GET /api/sessions/{id}/history", makeSessionHistoryHandler(registry))
	if cfg.AdminToken != "" {
		mux.Handle("/api/", adminAuth(cfg.AdminToken, apiMux))
	} else {
		mux.Handle("/api/", apiMux)
	}

	// applyMiddleware reverses the list, so the last item runs outermost (first).
	// Execution order: requestID -> logging -> recovery -> mux
	return applyMiddleware(mux,
		recoveryMiddleware(logger),
		loggingMiddleware(logger),
		requestIDMiddleware,
	)
}

// applyMiddleware applies middleware in reverse order so the first in the list runs first.
func applyMiddleware(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func makeListSessionsHandler(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, registry.Summaries())
	}
}

func makeGetSessionHandler(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		snap, err := registry.Snapshot(id)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "session not found"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func makeSessionHistoryHandler(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "invalid limit value"})
				return
			}
			limit = n
		}

		history, total, err := registry.History(id, limit)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "session not found"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sessionId":     id,
			"history":       history,
			"totalVersions": total,
		})
	}
}

// --- Health Handlers ---

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// --- Admin Auth ---

func adminAuth(adminToken string, next http.Handler) http.Handler {
	expected := "Bearer " + adminToken
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(auth), []byte(expected)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "auth_failed", "message": "invalid admin token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func marshalMessage(msg coord.Message) ([]byte, error) {
	return json.Marshal(msg)
}
