// Package web serves the status/control HTTP API and the websocket event
// channel.
package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

// Server holds the HTTP handlers around the link service.
type Server struct {
	service ports.LinkService
	hub     *Hub
}

// NewServer creates the handler set.
func NewServer(service ports.LinkService, hub *Hub) *Server {
	return &Server{service: service, hub: hub}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNoDriverSupport):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devs := s.service.Devices()
	views := make([]domain.DeviceView, 0, len(devs))
	for _, dev := range devs {
		views = append(views, dev.View())
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.service.Device(mux.Vars(r)["udi"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such device"})
		return
	}
	aps := dev.Visible().Snapshot()
	views := make([]domain.APView, 0, len(aps))
	for _, ap := range aps {
		views = append(views, ap.View())
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Activate(mux.Vars(r)["udi"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "activating"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CancelActivation(mux.Vars(r)["udi"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type forceESSIDRequest struct {
	ESSID   string `json:"essid"`
	Key     string `json:"key,omitempty"`
	KeyType int    `json:"key_type,omitempty"`
}

func (s *Server) handleForceESSID(w http.ResponseWriter, r *http.Request) {
	var req forceESSIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request body"})
		return
	}
	err := s.service.ForceESSID(r.Context(), mux.Vars(r)["udi"], req.ESSID,
		req.Key, domain.KeyType(req.KeyType))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "selected", "essid": req.ESSID})
}

type allowedRequest struct {
	ESSID   string `json:"essid"`
	Key     string `json:"key,omitempty"`
	KeyType int    `json:"key_type,omitempty"`
	Trusted bool   `json:"trusted,omitempty"`
}

func (s *Server) handleListAllowed(w http.ResponseWriter, r *http.Request) {
	aps := s.service.Allowed().Snapshot()
	views := make([]domain.APView, 0, len(aps))
	for _, ap := range aps {
		views = append(views, ap.View())
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAddAllowed(w http.ResponseWriter, r *http.Request) {
	var req allowedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request body"})
		return
	}
	if err := domain.ValidateESSID(req.ESSID); err != nil {
		writeError(w, err)
		return
	}
	ap := &domain.AccessPoint{
		ESSID:   req.ESSID,
		Key:     req.Key,
		KeyType: domain.KeyType(req.KeyType),
		Trusted: req.Trusted,
	}
	if ap.Key != "" {
		ap.Encrypted = true
	}
	s.service.Allowed().Append(ap)
	writeJSON(w, http.StatusCreated, ap.View())
}

func (s *Server) handleRemoveAllowed(w http.ResponseWriter, r *http.Request) {
	s.service.Allowed().RemoveByESSID(mux.Vars(r)["essid"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearInvalid(w http.ResponseWriter, r *http.Request) {
	s.service.ClearInvalid()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.service.RecentEvents(r.Context(), 100)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	pdf, err := s.service.DiagnosticsReport(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="linkd-diagnostics.pdf"`)
	w.Write(pdf)
}
