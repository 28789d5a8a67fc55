package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/store"
	"github.com/rs/zerolog"
)

// StatusServer provides read-only HTTP inspection endpoints over the store.
type StatusServer struct {
	store  *store.Store
	logger zerolog.Logger
	mux    *http.ServeMux
}

// NewStatusServer creates the inspection HTTP server.
func NewStatusServer(s *store.Store) *StatusServer {
	mux := http.NewServeMux()
	ss := &StatusServer{
		store:  s,
		logger: log.WithComponent("api"),
		mux:    mux,
	}

	// Register endpoints
	mux.HandleFunc("/api/health", ss.healthHandler)
	mux.HandleFunc("/api/keys", ss.keysHandler)
	mux.HandleFunc("/api/values/", ss.valuesHandler)

	return ss
}

// Handler returns the underlying mux, mainly for tests.
func (ss *StatusServer) Handler() http.Handler {
	return ss.mux
}

// Start starts the inspection HTTP server.
func (ss *StatusServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      ss.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// KeysResponse lists the live keys
type KeysResponse struct {
	Keys []string `json:"keys"`
}

// ValueResponse is one value record
type ValueResponse struct {
	Key     string `json:"key"`
	Flags   uint16 `json:"flags"`
	Exptime uint32 `json:"exptime"`
	Data    []byte `json:"data"`
}

func (ss *StatusServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (ss *StatusServer) keysHandler(w http.ResponseWriter, r *http.Request) {
	keys := ss.store.Keys()
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, KeysResponse{Keys: keys})
}

func (ss *StatusServer) valuesHandler(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/values/")
	if key == "" {
		http.NotFound(w, r)
		return
	}

	ss.logger.Debug().Str("key", key).Msg("value lookup")
	item, err := ss.store.Item([]byte(key))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, ValueResponse{
		Key:     key,
		Flags:   item.Flags,
		Exptime: item.Exptime,
		Data:    item.Data,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
