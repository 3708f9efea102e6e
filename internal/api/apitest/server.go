// Package apitest runs an in-process implementation of the session-cookie
// auth API for tests.
package apitest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CookieName is the session cookie the server sets.
const CookieName = "session"

// Request is a call the server received.
type Request struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

type account struct {
	id       int
	username string
	email    string
	password string
}

// Server is a fake auth API backed by memory.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*account
	sessions map[string]string // session id -> username
	nextID   int
	requests []Request
	failures map[string]int // path -> forced status
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		accounts: make(map[string]*account),
		sessions: make(map[string]string),
		failures: make(map[string]int),
		nextID:   1,
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/check-auth", s.checkAuth)
		r.Post("/login", s.login)
		r.Post("/register", s.register)
		r.Post("/logout", s.logout)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// AddUser creates an account directly.
func (s *Server) AddUser(username, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(username, email, password)
}

// Fail makes every request to path answer with status until cleared with 0.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, path)
		return
	}
	s.failures[path] = status
}

// Requests returns the calls received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent call to path.
func (s *Server) LastRequest(path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return Request{}, false
}

// ActiveSessions reports how many sessions are open.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) addLocked(username, email, password string) *account {
	a := &account{id: s.nextID, username: username, email: email, password: password}
	s.nextID++
	s.accounts[username] = a
	return a
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{Method: r.Method, Path: r.URL.Path}
		if r.Body != nil && r.ContentLength != 0 {
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				req.Body = body
			}
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		status := s.failures[r.URL.Path]
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}

		// Handlers read the decoded body from the recorded request.
		next.ServeHTTP(w, r.WithContext(withBody(r.Context(), req.Body)))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a := s.sessionAccountLocked(r); a != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"authenticated": true,
			"user":          a.public(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r.Context())
	username, password := str(body, "username"), str(body, "password")
	if username == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username and password are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[username]
	if !ok || a.password != password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid username or password"})
		return
	}
	s.startSessionLocked(w, a)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"user":    a.public(),
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r.Context())
	username, email, password := str(body, "username"), str(body, "email"), str(body, "password")
	if username == "" || email == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "All fields are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.accounts[username]; taken {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Username or email already exists"})
		return
	}
	for _, a := range s.accounts {
		if a.email == email {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "Username or email already exists"})
			return
		}
	}

	a := s.addLocked(username, email, password)
	s.startSessionLocked(w, a)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Registration successful",
		"user":    a.public(),
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if c, err := r.Cookie(CookieName); err == nil {
		delete(s.sessions, c.Value)
	}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:    CookieName,
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (s *Server) startSessionLocked(w http.ResponseWriter, a *account) {
	id := uuid.NewString()
	s.sessions[id] = a.username
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(7 * 24 * time.Hour),
		HttpOnly: true,
	})
}

func (s *Server) sessionAccountLocked(r *http.Request) *account {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	username, ok := s.sessions[c.Value]
	if !ok {
		return nil
	}
	return s.accounts[username]
}

func (a *account) public() map[string]interface{} {
	return map[string]interface{}{"id": a.id, "username": a.username, "email": a.email}
}

func str(body map[string]interface{}, key string) string {
	v, _ := body[key].(string)
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type bodyKey struct{}

func withBody(ctx context.Context, body map[string]interface{}) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

func bodyFrom(ctx context.Context) map[string]interface{} {
	body, _ := ctx.Value(bodyKey{}).(map[string]interface{})
	return body
}
