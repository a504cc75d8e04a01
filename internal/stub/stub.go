// Package stub is an in-memory travel planner backend. It serves the endpoints
// the travel scenario exercises so a run can be tried locally or in tests.
package stub

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures the stub backend.
type Options struct {
	// Email and Password, when set, are the only accepted credentials.
	Email    string
	Password string

	// Latency is the upper bound of a random delay added to every read.
	Latency time.Duration

	Logger *zap.Logger
}

// Group is a travel group as stored by the stub.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
}

type profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	City  string `json:"home_city"`
}

// Server implements http.Handler.
type Server struct {
	opts   Options
	logger *zap.Logger
	mux    *http.ServeMux

	mu       sync.RWMutex
	sessions map[string]string // token -> email
	profiles map[string]profile
	groups   map[string]*Group
}

// New creates an empty backend.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		opts:     opts,
		logger:   logger,
		mux:      http.NewServeMux(),
		sessions: make(map[string]string),
		profiles: make(map[string]profile),
		groups:   make(map[string]*Group),
	}

	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /profile", s.authenticated(s.handleProfile))
	s.mux.HandleFunc("GET /groups", s.authenticated(s.handleListGroups))
	s.mux.HandleFunc("POST /groups", s.authenticated(s.handleCreateGroup))
	s.mux.HandleFunc("GET /groups/{id}", s.authenticated(s.handleGetGroup))
	s.mux.HandleFunc("DELETE /groups/{id}", s.authenticated(s.handleDeleteGroup))
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("healthy"))
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// GroupCount returns the number of stored groups.
func (s *Server) GroupCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, email string)

func (s *Server) authenticated(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		s.mu.RLock()
		email, found := s.sessions[token]
		s.mu.RUnlock()
		if !found {
			writeError(w, http.StatusUnauthorized, "unknown token")
			return
		}

		if r.Method == http.MethodGet {
			s.delay()
		}
		next(w, r, email)
	}
}

func (s *Server) delay() {
	if s.opts.Latency <= 0 {
		return
	}
	time.Sleep(rand.N(s.opts.Latency))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if s.opts.Email != "" && (req.Email != s.opts.Email || req.Password != s.opts.Password) {
		s.logger.Info("login rejected", zap.String("email", req.Email))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = req.Email
	if _, ok := s.profiles[req.Email]; !ok {
		s.profiles[req.Email] = profile{Email: req.Email, Name: gofakeit.Name(), City: gofakeit.City()}
	}
	s.mu.Unlock()

	s.logger.Info("login", zap.String("email", req.Email))
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, email string) {
	s.mu.RLock()
	p := s.profiles[email]
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request, email string) {
	s.mu.RLock()
	groups := make([]*Group, 0, len(s.groups))
	for _, g := range s.groups {
		if g.Owner == email {
			groups = append(groups, g)
		}
	}
	s.mu.RUnlock()

	sort.Slice(groups, func(i, j int) bool { return groups[i].CreatedAt.Before(groups[j].CreatedAt) })
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request, email string) {
	var g Group
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil || g.Name == "" {
		writeError(w, http.StatusBadRequest, "group name is required")
		return
	}
	g.ID = uuid.NewString()
	g.Owner = email
	g.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	s.groups[g.ID] = &g
	s.mu.Unlock()

	s.logger.Info("group created", zap.String("id", g.ID), zap.String("name", g.Name))
	writeJSON(w, http.StatusCreated, &g)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request, email string) {
	s.mu.RLock()
	g, ok := s.groups[r.PathValue("id")]
	s.mu.RUnlock()
	if !ok || g.Owner != email {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request, email string) {
	id := r.PathValue("id")

	s.mu.Lock()
	g, ok := s.groups[id]
	if ok && g.Owner == email {
		delete(s.groups, id)
	}
	s.mu.Unlock()

	if !ok || g.Owner != email {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	s.logger.Info("group deleted", zap.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
