package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// NewServer builds the HTTP server for the gateway: channel routes, stats, health and
// service info, wrapped in CORS and served over h2c.
func NewServer(addr string, s *Service) *http.Server {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	registerHealth(mux)

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]any{
			"service":     "session-gateway",
			"connections": s.GetStats().TotalConnections,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to write info response")
		}
	})

	return &http.Server{
		Addr:        addr,
		Handler:     h2c.NewHandler(withCORS(mux), &http2.Server{}),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
}

func withCORS(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(h)
}

func registerHealth(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
