// Package server exposes the engine's snapshot and acknowledgment
// operations over a small JSON API, so a wall tablet or another
// process can render the dashboard.
package server

import (
	"log"
	"net/http"

	"github.com/quickserve/expo/pkg/reconcile"
)

type Server struct {
	Session  *reconcile.Session
	Username string
	Password string
}

func New(session *reconcile.Session, user, pass string) *Server {
	return &Server{
		Session:  session,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/snapshot", s.basicAuth(s.handleSnapshot))
	mux.HandleFunc("GET /api/acks", s.basicAuth(s.handleAcks))
	mux.HandleFunc("POST /api/orders/accept", s.basicAuth(s.handleAccept))
	mux.HandleFunc("POST /api/messages/read", s.basicAuth(s.handleRead))

	log.Printf("Starting server on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
