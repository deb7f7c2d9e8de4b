package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/quickserve/expo/pkg/entry"
)

type snapshotResponse struct {
	Orders      []entry.Entry `json:"orders"`
	Messages    []entry.Entry `json:"messages"`
	OrdersToday int           `json:"orders_today"`
	FetchedAt   time.Time     `json:"fetched_at"`

	Accepted     []string `json:"accepted"`
	SeenOrders   []string `json:"seen_orders"`
	SeenMessages []string `json:"seen_messages"`
	ReadMessages []string `json:"read_messages"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.Session.Snapshot()
	now := time.Now()
	resp := snapshotResponse{
		Orders:       snap.Orders,
		Messages:     snap.Messages,
		OrdersToday:  snap.OrdersToday(now),
		FetchedAt:    snap.FetchedAt,
		Accepted:     setToList(snap.Acks.Accepted),
		SeenOrders:   setToList(snap.Acks.SeenOrders),
		SeenMessages: setToList(snap.Acks.SeenMessages),
		ReadMessages: setToList(snap.Acks.ReadMessages),
	}
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleAcks(w http.ResponseWriter, r *http.Request) {
	snap := s.Session.Snapshot()
	json.NewEncoder(w).Encode(map[string][]string{
		"accepted":      setToList(snap.Acks.Accepted),
		"seen_orders":   setToList(snap.Acks.SeenOrders),
		"seen_messages": setToList(snap.Acks.SeenMessages),
		"read_messages": setToList(snap.Acks.ReadMessages),
	})
}

type ackRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "missing entry id", http.StatusBadRequest)
		return
	}
	if err := s.Session.AcceptOrder(r.Context(), req.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "missing entry id", http.StatusBadRequest)
		return
	}
	if err := s.Session.MarkMessageRead(r.Context(), req.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func setToList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
