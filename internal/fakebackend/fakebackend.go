// Package fakebackend is an in-memory chat backend for tests.
package fakebackend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
)

// ChatRequest is a decoded /chat request body.
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// Server serves the backend contract. Handlers can be swapped at any time.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	health  http.HandlerFunc
	chat    http.HandlerFunc
	history map[string][]map[string]string
	chats   []ChatRequest

	healthHits atomic.Int64
}

// New starts a backend that is healthy and echoes "echo: <message>".
func New() *Server {
	s := &Server{history: map[string][]map[string]string{}}
	s.health = func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"message": "AI Assistant API is running",
			"version": "1.0.0",
		})
	}
	s.chat = func(w http.ResponseWriter, r *http.Request) {
		req := s.lastChat()
		WriteJSON(w, http.StatusOK, map[string]string{"response": "echo: " + req.Message})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		s.healthHits.Add(1)
		s.mu.Lock()
		h := s.health
		s.mu.Unlock()
		h(w, r)
	})
	mux.HandleFunc("/chat", s.serveChat)
	mux.HandleFunc("/chat/history/", s.serveHistory)
	s.Server = httptest.NewServer(mux)
	return s
}

// SetHealth replaces the /health handler.
func (s *Server) SetHealth(h http.HandlerFunc) {
	s.mu.Lock()
	s.health = h
	s.mu.Unlock()
}

// SetHealthStatus makes /health answer with a bare status code.
func (s *Server) SetHealthStatus(code int) {
	s.SetHealth(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(code) })
}

// SetChat replaces the /chat handler. The request body has already been
// recorded; use Chats to inspect it.
func (s *Server) SetChat(h http.HandlerFunc) {
	s.mu.Lock()
	s.chat = h
	s.mu.Unlock()
}

// ReplyWith makes /chat answer {"response": reply}.
func (s *Server) ReplyWith(reply string) {
	s.SetChat(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"response": reply})
	})
}

// HealthHits returns the number of /health requests served.
func (s *Server) HealthHits() int64 { return s.healthHits.Load() }

// Chats returns the recorded /chat requests.
func (s *Server) Chats() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatRequest(nil), s.chats...)
}

func (s *Server) lastChat() ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chats) == 0 {
		return ChatRequest{}
	}
	return s.chats[len(s.chats)-1]
}

func (s *Server) serveChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	s.chats = append(s.chats, req)
	s.history[req.UserID] = append(s.history[req.UserID], map[string]string{"role": "user", "content": req.Message})
	h := s.chat
	s.mu.Unlock()

	h(w, r)
}

func (s *Server) serveHistory(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimPrefix(r.URL.Path, "/chat/history/")
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		entries := s.history[user]
		if entries == nil {
			entries = []map[string]string{}
		}
		WriteJSON(w, http.StatusOK, map[string]any{"history": entries})
	case http.MethodDelete:
		delete(s.history, user)
		WriteJSON(w, http.StatusOK, map[string]string{"message": "Chat history cleared for user " + user})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
