// Package api provides the HTTP and WebSocket control server: status,
// configuration updates, keymap editing and the touch snapshot feed.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"

	"padkeys/internal/config"
	"padkeys/internal/dispatch"
	"padkeys/internal/touch"
)

// Server exposes the engine to display and configuration clients.
type Server struct {
	configMgr   *config.Manager
	coordinator *dispatch.Coordinator
	publisher   *touch.Publisher
	wsMgr       *WSManager
}

// NewServer creates an API server over the given engine components.
func NewServer(configMgr *config.Manager, coordinator *dispatch.Coordinator, publisher *touch.Publisher) *Server {
	s := &Server{
		configMgr:   configMgr,
		coordinator: coordinator,
		publisher:   publisher,
	}
	s.wsMgr = newWSManager(s)
	return s
}

// Start starts the server on the specified port. Blocks until the listener
// fails or the server is shut down.
func (s *Server) Start(port int) error {
	go s.wsMgr.start()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/keymap", s.handleKeymap)
	mux.HandleFunc("/api/layout", s.handleLayout)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("API: Starting control server on %s", addr)

	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Printf("API: failed to listen on %s: %v", addr, err)
		return err
	}

	server := &http.Server{
		Handler: s.authMiddleware(s.recoverMiddleware(mux)),
	}

	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("API: server stopped: %v", err)
		return err
	}
	return nil
}

// recoverMiddleware prevents handler panics from crashing the daemon.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: panic in handler: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the API token if one is configured. The token is read
// per request so rotating it in the config takes effect without a restart.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health stays open for monitoring.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if token := s.configMgr.Get().General.APIToken; token != "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader != "Bearer "+token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, s.coordinator.Status())
}

// handleConfig handles GET (read) and POST (replace) for the configuration.
// A POST saves to disk; the manager's change callback rebuilds the engine.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		writeJSON(w, s.configMgr.Get())

	case "POST":
		var newCfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
			http.Error(w, "Invalid configuration data", http.StatusBadRequest)
			return
		}
		// Validate before accepting: a bad keymap or layout must not reach
		// the engine or the file.
		if err := validate(&newCfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		log.Printf("API: Receiving configuration update from %s", r.RemoteAddr)
		s.configMgr.Set(&newCfg)
		if err := s.configMgr.Save(); err != nil {
			log.Printf("API: Failed to save received config: %v", err)
			http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleKeymap handles POST /api/keymap - replaces only the keymap section.
func (s *Server) handleKeymap(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var keymap map[string]map[string]map[string]config.MappingConfig
	if err := json.NewDecoder(r.Body).Decode(&keymap); err != nil {
		http.Error(w, "Invalid keymap data", http.StatusBadRequest)
		return
	}

	cur := s.configMgr.Get()
	next := *cur
	next.Keymap = keymap
	if err := validate(&next); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.configMgr.Set(&next)
	if err := s.configMgr.Save(); err != nil {
		http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleLayout handles POST /api/layout - replaces only the layouts section.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var layouts map[string]config.LayoutConfig
	if err := json.NewDecoder(r.Body).Decode(&layouts); err != nil {
		http.Error(w, "Invalid layout data", http.StatusBadRequest)
		return
	}

	cur := s.configMgr.Get()
	next := *cur
	next.Layouts = layouts
	if err := validate(&next); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.configMgr.Set(&next)
	if err := s.configMgr.Save(); err != nil {
		http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleSnapshot handles GET /api/snapshot?since=<revision>. Without since it
// returns the current snapshot; with it, 204 when nothing changed.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sinceStr := r.URL.Query().Get("since")
	if sinceStr == "" {
		writeJSON(w, s.publisher.Current())
		return
	}

	since, err := strconv.ParseUint(sinceStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid since parameter", http.StatusBadRequest)
		return
	}

	snap, ok := s.publisher.IfUpdated(since)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, snap)
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// validate checks that a configuration builds a usable table and layouts.
func validate(cfg *config.Config) error {
	if _, err := cfg.BuildTable(); err != nil {
		return err
	}
	for side := touch.Side(0); side < touch.NumSides; side++ {
		if _, err := cfg.BuildLayout(side); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// BroadcastStatus pushes the current engine status to all WebSocket clients.
func (s *Server) BroadcastStatus() {
	if s.wsMgr != nil {
		s.wsMgr.BroadcastStatus(s.coordinator.Status())
	}
}

// BroadcastHit pushes a resolved-binding notification to all clients.
func (s *Server) BroadcastHit(hit dispatch.Hit, edit bool) {
	if s.wsMgr != nil {
		s.wsMgr.BroadcastHit(hit, edit)
	}
}
