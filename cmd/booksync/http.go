package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rickgao/booksync/internal/book"
	"github.com/rickgao/booksync/internal/engine"
	"github.com/rickgao/booksync/internal/subscription"
)

// books is the read-only engine surface served over HTTP.
type books interface {
	Status() []engine.Status
	Book(symbol string, limit int) (book.View, bool)
}

type feed interface {
	IsConnected() bool
}

type pinger interface {
	Ping(ctx context.Context) error
}

// createHTTPHandler serves /health, /debug/books and the metrics handler.
// archive may be nil when archiving is disabled.
func createHTTPHandler(eng books, session feed, archive pinger, metricsPath string, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metricsHandler)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if session.IsConnected() {
			health.Components["feed"] = "connected"
		} else {
			health.Status = "unhealthy"
			health.Components["feed"] = "disconnected"
		}

		counts := make(map[string]int)
		statuses := eng.Status()
		for _, st := range statuses {
			counts[st.State.String()]++
		}
		health.Components["books"] = counts
		if health.Status == "healthy" && counts[subscription.StateSynced.String()] < len(statuses) {
			health.Status = "degraded"
		}

		if archive != nil {
			if err := archive.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["archive"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["archive"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	// /debug/books lists every channel; ?symbol=btcusdt&limit=10 returns that book.
	mux.HandleFunc("/debug/books", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		symbol := strings.ToLower(r.URL.Query().Get("symbol"))
		if symbol == "" {
			json.NewEncoder(w).Encode(map[string]any{"books": eng.Status()})
			return
		}

		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}

		view, ok := eng.Book(symbol, limit)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "book not synced: " + symbol})
			return
		}
		json.NewEncoder(w).Encode(view)
	})

	return mux
}
